package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// OpenBrowser opens the given playlist URL in the user's browser.
//
// The BROWSER environment variable takes precedence over platform
// detection. Otherwise macOS, Linux, and Windows are supported.
func OpenBrowser(url string) error {
	if browser := os.Getenv("BROWSER"); browser != "" {
		return launchBrowser(exec.Command(browser, url))
	}

	rt := getRuntime()
	switch rt {
	case "darwin":
		return launchBrowser(exec.Command("open", url))
	case "linux":
		return launchBrowser(exec.Command("xdg-open", url))
	case "windows":
		return launchBrowser(exec.Command("cmd", "/c", "start", url))
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}
}

// launchBrowser starts the command without waiting for it. Browsers
// outlive the CLI invocation that opened them.
func launchBrowser(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
