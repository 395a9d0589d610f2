// Package browser opens the consent URL in the user's default web browser and
// offers a clipboard fallback for sessions where no browser can be launched.
package browser

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// OpenURL opens url in the default web browser. It tries open-golang first and
// falls back to platform commands.
func OpenURL(url string) error {
	err := open.Start(url)
	if err == nil {
		log.Debug("opened consent URL using open-golang")
		return nil
	}
	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)
	return openURLPlatformSpecific(url)
}

func openURLPlatformSpecific(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux":
		if browser := os.Getenv("BROWSER"); browser != "" {
			cmd = exec.Command(browser, url)
			break
		}
		for _, browser := range linuxBrowsers {
			if _, err := exec.LookPath(browser); err == nil {
				cmd = exec.Command(browser, url)
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no suitable browser found on Linux system")
		}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	log.Debugf("Running command: %s %v", cmd.Path, cmd.Args[1:])
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// IsAvailable reports whether a browser launcher exists for this platform.
func IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin":
		_, err := exec.LookPath("open")
		return err == nil
	case "windows":
		_, err := exec.LookPath("rundll32")
		return err == nil
	case "linux":
		if os.Getenv("BROWSER") != "" {
			return true
		}
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return false
		}
		for _, browser := range linuxBrowsers {
			if _, err := exec.LookPath(browser); err == nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// CopyToClipboard places text on the system clipboard. It reports false when no
// clipboard utility is available, which is normal over SSH.
func CopyToClipboard(text string) bool {
	if clipboard.Unsupported {
		return false
	}
	if err := clipboard.WriteAll(text); err != nil {
		log.Debugf("clipboard copy failed: %v", err)
		return false
	}
	return true
}
