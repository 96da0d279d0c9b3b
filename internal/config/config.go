// Package config loads subfeed settings from an optional TOML file, a .env
// file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath is read when no config file is given and it exists.
const DefaultPath = "subfeed.toml"

const (
	TransportAPI = "api"
	TransportRSS = "rss"
)

type YouTube struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url,omitempty"`
	RSSBaseURL        string  `toml:"rss_base_url,omitempty"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Transport         string  `toml:"transport"`
}

type Feed struct {
	PageSize      int           `toml:"page_size"`
	MaxPageSize   int           `toml:"max_page_size"`
	SourceTimeout time.Duration `toml:"source_timeout"`
	// Concurrency caps parallel source fetches; 0 means one per source.
	Concurrency int `toml:"concurrency"`
}

type Auth struct {
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
}

type CORS struct {
	AllowOrigins string `toml:"allow_origins,omitempty"`
}

// Config is the effective configuration of every subfeed command.
type Config struct {
	Addr      string  `toml:"addr"`
	ServerURL string  `toml:"server_url"`
	DBPath    string  `toml:"db_path"`
	LogLevel  string  `toml:"log_level"`
	LogFormat string  `toml:"log_format"`
	YouTube   YouTube `toml:"youtube"`
	Feed      Feed    `toml:"feed"`
	Auth      Auth    `toml:"auth"`
	CORS      CORS    `toml:"cors"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Addr:      ":3000",
		ServerURL: "http://localhost:3000",
		DBPath:    "data/subfeed.db",
		LogLevel:  "info",
		LogFormat: "text",
		YouTube: YouTube{
			RequestsPerSecond: 5,
			Transport:         TransportAPI,
		},
		Feed: Feed{
			PageSize:      20,
			MaxPageSize:   50,
			SourceTimeout: 15 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path, a .env
// file in the working directory and the process environment. An empty path
// reads DefaultPath when it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if _, err := toml.Decode(string(data), c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	str("SUBFEED_ADDR", &c.Addr)
	str("SUBFEED_SERVER_URL", &c.ServerURL)
	str("SUBFEED_DB_PATH", &c.DBPath)
	str("SUBFEED_LOG_LEVEL", &c.LogLevel)
	str("SUBFEED_LOG_FORMAT", &c.LogFormat)
	str("YOUTUBE_API_KEY", &c.YouTube.APIKey)
	str("SUBFEED_YOUTUBE_BASE_URL", &c.YouTube.BaseURL)
	str("SUBFEED_YOUTUBE_RSS_BASE_URL", &c.YouTube.RSSBaseURL)
	str("SUBFEED_YOUTUBE_TRANSPORT", &c.YouTube.Transport)
	str("AUTH_USERNAME", &c.Auth.Username)
	str("AUTH_PASSWORD", &c.Auth.Password)
	str("SUBFEED_CORS_ALLOW_ORIGINS", &c.CORS.AllowOrigins)

	if err := integer("SUBFEED_PAGE_SIZE", &c.Feed.PageSize); err != nil {
		return err
	}
	if err := integer("SUBFEED_MAX_PAGE_SIZE", &c.Feed.MaxPageSize); err != nil {
		return err
	}
	if err := integer("SUBFEED_CONCURRENCY", &c.Feed.Concurrency); err != nil {
		return err
	}

	if v, ok := lookup("SUBFEED_YOUTUBE_REQUESTS_PER_SECOND"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SUBFEED_YOUTUBE_REQUESTS_PER_SECOND %q: %w", v, err)
		}
		c.YouTube.RequestsPerSecond = rps
	}
	if v, ok := lookup("SUBFEED_SOURCE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SUBFEED_SOURCE_TIMEOUT %q: %w", v, err)
		}
		c.Feed.SourceTimeout = d
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Feed.PageSize < 1:
		return fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize)
	case c.Feed.MaxPageSize < 1:
		return fmt.Errorf("feed.max_page_size must be positive, got %d", c.Feed.MaxPageSize)
	case c.Feed.PageSize > c.Feed.MaxPageSize:
		return fmt.Errorf("feed.page_size (%d) exceeds feed.max_page_size (%d)", c.Feed.PageSize, c.Feed.MaxPageSize)
	case c.Feed.Concurrency < 0:
		return fmt.Errorf("feed.concurrency must not be negative, got %d", c.Feed.Concurrency)
	case c.Feed.SourceTimeout < 0:
		return fmt.Errorf("feed.source_timeout must not be negative, got %s", c.Feed.SourceTimeout)
	case c.YouTube.RequestsPerSecond < 0:
		return fmt.Errorf("youtube.requests_per_second must not be negative, got %g", c.YouTube.RequestsPerSecond)
	case c.YouTube.Transport != TransportAPI && c.YouTube.Transport != TransportRSS:
		return fmt.Errorf("youtube.transport must be %q or %q, got %q", TransportAPI, TransportRSS, c.YouTube.Transport)
	case c.YouTube.Transport == TransportAPI && c.YouTube.APIKey == "":
		return errors.New("the api transport needs a YouTube API key: set YOUTUBE_API_KEY or youtube.api_key, or use youtube.transport = \"rss\"")
	case (c.Auth.Username == "") != (c.Auth.Password == ""):
		return errors.New("auth.username and auth.password must be set together")
	}
	return nil
}

// Write prints the configuration as TOML with secrets masked.
func (c *Config) Write(w io.Writer) error {
	masked := *c
	masked.YouTube.APIKey = mask(c.YouTube.APIKey)
	masked.Auth.Password = mask(c.Auth.Password)
	return toml.NewEncoder(w).Encode(masked)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
