//go:build !windows && !darwin && !linux

package hook

import "errors"

type platformHook struct{}

func (l *Listener) startPlatform() error {
	return errors.New("hook: keyboard capture is not supported on this platform")
}

func (l *Listener) stopPlatform() error {
	return nil
}
