package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working
// directory and restores the previous one when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "data/subfeed.db", cfg.DBPath)
	assert.Equal(t, TransportAPI, cfg.YouTube.Transport)
	assert.Equal(t, 20, cfg.Feed.PageSize)
	assert.Equal(t, 50, cfg.Feed.MaxPageSize)
	assert.Equal(t, 15*time.Second, cfg.Feed.SourceTimeout)
}

func TestLoad_ReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "custom.toml", `
addr = ":8080"
db_path = "/var/lib/subfeed/prefs.db"
log_format = "json"

[youtube]
api_key = "from-file"
transport = "rss"
requests_per_second = 2.5

[feed]
page_size = 10
max_page_size = 30
concurrency = 4

[auth]
username = "alice"
password = "secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "/var/lib/subfeed/prefs.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "from-file", cfg.YouTube.APIKey)
	assert.Equal(t, TransportRSS, cfg.YouTube.Transport)
	assert.InDelta(t, 2.5, cfg.YouTube.RequestsPerSecond, 0.001)
	assert.Equal(t, 10, cfg.Feed.PageSize)
	assert.Equal(t, 30, cfg.Feed.MaxPageSize)
	assert.Equal(t, 4, cfg.Feed.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Feed.SourceTimeout, "unset keys keep their defaults")
	assert.Equal(t, "alice", cfg.Auth.Username)
}

func TestLoad_PicksUpDefaultFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, DefaultPath, `addr = ":9999"`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load("missing.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "bad.toml", `addr = `)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing config file")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "subfeed.toml", `
[youtube]
api_key = "from-file"

[feed]
page_size = 10
`)
	t.Setenv("YOUTUBE_API_KEY", "from-env")
	t.Setenv("SUBFEED_PAGE_SIZE", "25")
	t.Setenv("SUBFEED_SOURCE_TIMEOUT", "3s")
	t.Setenv("SUBFEED_YOUTUBE_REQUESTS_PER_SECOND", "7")
	t.Setenv("AUTH_USERNAME", "bob")
	t.Setenv("AUTH_PASSWORD", "pw")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.YouTube.APIKey)
	assert.Equal(t, 25, cfg.Feed.PageSize)
	assert.Equal(t, 3*time.Second, cfg.Feed.SourceTimeout)
	assert.InDelta(t, 7.0, cfg.YouTube.RequestsPerSecond, 0.001)
	assert.Equal(t, "bob", cfg.Auth.Username)
	assert.Equal(t, "pw", cfg.Auth.Password)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, ".env", "SUBFEED_DB_PATH=dotenv.db\n")
	t.Cleanup(func() { _ = os.Unsetenv("SUBFEED_DB_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv.db", cfg.DBPath)
}

func TestLoad_RejectsMalformedNumbers(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SUBFEED_MAX_PAGE_SIZE", "lots")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUBFEED_MAX_PAGE_SIZE")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.YouTube.APIKey = "key"
		return cfg
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"rss needs no key", func(c *Config) { c.YouTube.APIKey = ""; c.YouTube.Transport = TransportRSS }, ""},
		{"zero page size", func(c *Config) { c.Feed.PageSize = 0 }, "feed.page_size"},
		{"zero max page size", func(c *Config) { c.Feed.MaxPageSize = 0 }, "feed.max_page_size"},
		{"page size above max", func(c *Config) { c.Feed.PageSize = 60 }, "exceeds"},
		{"negative concurrency", func(c *Config) { c.Feed.Concurrency = -1 }, "feed.concurrency"},
		{"unknown transport", func(c *Config) { c.YouTube.Transport = "scrape" }, "youtube.transport"},
		{"api without key", func(c *Config) { c.YouTube.APIKey = "" }, "YOUTUBE_API_KEY"},
		{"half credentials", func(c *Config) { c.Auth.Username = "alice" }, "auth.username"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestWrite_MasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.YouTube.APIKey = "AIzaSyExampleKey"
	cfg.Auth.Username = "alice"
	cfg.Auth.Password = "hunter2"

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))
	out := buf.String()

	assert.NotContains(t, out, "AIzaSyExampleKey")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "AI************ey")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, `addr = ":3000"`)
	assert.Equal(t, "AIzaSyExampleKey", cfg.YouTube.APIKey, "masking must not touch the live config")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "ab**ef", mask("abcdef"))
}
