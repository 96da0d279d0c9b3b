// Package browser opens links in the system browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"runtime"

	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// start launches the platform opener; replaced in tests.
var start = func(name string, args ...string) error {
	return exec.Command(name, args...).Start() // #nosec G204 -- arguments validated by Open
}

// Open opens the specified URL in the default browser.
// It validates the URL before passing it to the system browser to prevent command injection.
func Open(urlString string) error {
	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https allowed)", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		return start("xdg-open", urlString)
	case "darwin":
		return start("open", urlString)
	case "windows":
		return start("rundll32", "url.dll,FileProtocolHandler", urlString)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// OpenVideo opens a YouTube video by id.
func OpenVideo(videoID string) error {
	if !videoIDPattern.MatchString(videoID) {
		return fmt.Errorf("invalid video id %q", videoID)
	}
	return Open(youtube.WatchURL(videoID))
}
