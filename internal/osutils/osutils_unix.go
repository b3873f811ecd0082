//go:build !windows

// Package osutils reports process privileges that affect keyboard capture
// and injection.
package osutils

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// IsAdmin reports whether the process runs as root.
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// uinputPath is replaced in tests.
var uinputPath = "/dev/uinput"

// InputHints lists conditions that will stop capture or injection from
// working.
func InputHints() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"grant Accessibility and Input Monitoring access in System Settings > Privacy & Security"}
	case "linux":
		var hints []string
		if unix.Access(uinputPath, unix.W_OK) != nil {
			hints = append(hints, uinputPath+" is not writable: add a udev rule or run with access to it")
		}
		if !IsAdmin() && !inGroup("input") {
			hints = append(hints, "user is not in the input group: keyboard devices in /dev/input cannot be read")
		}
		return hints
	}
	return nil
}
