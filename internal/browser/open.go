package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Command returns the command that opens rawURL in the user's default
// browser. Only absolute http and https URLs are accepted.
func Command(rawURL string) (*exec.Cmd, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("browser.Command: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("browser.Command: refusing to open %q", rawURL)
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u.String()), nil
	case "linux":
		return exec.Command("xdg-open", u.String()), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", u.String()), nil
	default:
		return nil, fmt.Errorf("browser.Command: unsupported OS: %s", runtime.GOOS)
	}
}

// Open opens the specified URL in the user's default browser.
func Open(rawURL string) error {
	cmd, err := Command(rawURL)
	if err != nil {
		return err
	}
	return cmd.Start()
}
