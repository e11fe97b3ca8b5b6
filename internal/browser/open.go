package browser

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// ErrUnsupportedURL is returned for anything that is not an absolute http(s) link.
var ErrUnsupportedURL = errors.New("only http and https links can be opened")

// start launches the OS handler. Replaced in tests.
var start = defaultStart

func defaultStart(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open opens an item link in the user's default browser.
func Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("browser.Open: %w", ErrUnsupportedURL)
	}
	link := u.String()
	switch runtime.GOOS {
	case "darwin":
		return start("open", link)
	case "linux":
		return start("xdg-open", link)
	case "windows":
		return start("rundll32", "url.dll,FileProtocolHandler", link)
	default:
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}
