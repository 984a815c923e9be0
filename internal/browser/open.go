// Package browser hands links from chat messages to the desktop.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Check rejects anything but absolute http(s) URLs. Message bodies come from
// other users and must never reach the opener as flags or local paths.
func Check(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("bad link %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not a web link", raw)
	}
	return nil
}

// Open opens a web link in the user's default browser.
func Open(raw string) error {
	if err := Check(raw); err != nil {
		return err
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", raw)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", raw)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", raw)
	default:
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", raw, err)
	}
	// Reap the helper so it does not linger as a zombie.
	go cmd.Wait() //nolint:errcheck // exit status of the opener is irrelevant
	return nil
}
