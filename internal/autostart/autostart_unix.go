//go:build !windows

package autostart

import (
	"os"
	"path/filepath"
	"runtime"
)

// entryPath is the LaunchAgent plist on macOS and the XDG autostart
// desktop file elsewhere.
func entryPath() (string, error) {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "LaunchAgents", Label+".plist"), nil
	}

	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "autostart", "promptman.desktop"), nil
}

func enable(execPath string) error {
	path, err := entryPath()
	if err != nil {
		return err
	}
	src := xdgDesktopEntry
	if runtime.GOOS == "darwin" {
		src = macLaunchAgentPlist
	}
	return writeTemplate(path, src, execPath)
}

func disable() error {
	path, err := entryPath()
	if err != nil {
		return err
	}
	return removeFile(path)
}

func isEnabled() bool {
	path, err := entryPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
