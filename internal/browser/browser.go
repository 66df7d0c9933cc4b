// Package browser opens paper links in the user's web browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Open launches the platform browser for an http(s) URL without waiting for it
func Open(rawURL string) error {
	if err := validate(rawURL); err != nil {
		return err
	}
	return command(runtime.GOOS, rawURL).Start()
}

func validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open URL with scheme %q (only http/https allowed)", u.Scheme)
	}
	return nil
}

func command(goos, rawURL string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", rawURL)
	case "windows":
		// rundll32 avoids cmd's shell interpretation of the URL
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return exec.Command("xdg-open", rawURL)
	}
}
