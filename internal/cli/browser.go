package cli

import (
	"fmt"
	"os/exec"
	"runtime"
)

// systemBrowser opens URLs in the user's default browser. It satisfies
// keyline.Navigator.
type systemBrowser struct{}

func (systemBrowser) Navigate(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("no known browser launcher for %s", runtime.GOOS)
	}

	// Fire and forget: the browser process outlives this command.
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}
