//go:build linux

package input

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bendahl/uinput"
)

// DeviceName is the name of the virtual keyboard. The evdev hook skips
// devices with this name so synthesized keys never reach the buffer.
const DeviceName = "promptman virtual keyboard"

// virtualKeyboard is the part of uinput.Keyboard the injector drives.
type virtualKeyboard interface {
	KeyPress(key int) error
	KeyDown(key int) error
	KeyUp(key int) error
	Close() error
}

// Injector synthesizes keystrokes through a /dev/uinput virtual keyboard.
// Only characters on the US layout can be typed.
type Injector struct {
	mu sync.Mutex
	kb virtualKeyboard
}

// NewInjector creates the virtual keyboard device.
func NewInjector() (*Injector, error) {
	kb, err := uinput.CreateKeyboard("/dev/uinput", []byte(DeviceName))
	if err != nil {
		return nil, fmt.Errorf("input: create virtual keyboard: %w", err)
	}
	return &Injector{kb: kb}, nil
}

// Close destroys the virtual keyboard.
func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.kb == nil {
		return nil
	}
	err := i.kb.Close()
	i.kb = nil
	return err
}

// Backspace emits one KEY_BACKSPACE press and release.
func (i *Injector) Backspace() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tap(EvKeyBackspace, false)
}

// TypeText types text key by key. Characters outside the US layout are
// skipped and reported with ErrUnsupported once the rest has been typed.
func (i *Injector) TypeText(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var skipped int
	for _, r := range text {
		if r == '\r' {
			continue
		}
		code, shift, ok := EvdevKeyFor(r)
		if !ok {
			skipped++
			continue
		}
		if err := i.tap(code, shift); err != nil {
			return err
		}
	}
	if skipped > 0 {
		return fmt.Errorf("input: %d characters not on the US layout: %w", skipped, ErrUnsupported)
	}
	return nil
}

func (i *Injector) tap(code uint16, shift bool) error {
	if i.kb == nil {
		return errors.New("input: injector closed")
	}
	if shift {
		if err := i.kb.KeyDown(uinput.KeyLeftshift); err != nil {
			return fmt.Errorf("input: shift down: %w", err)
		}
	}
	err := i.kb.KeyPress(int(code))
	if shift {
		if upErr := i.kb.KeyUp(uinput.KeyLeftshift); err == nil && upErr != nil {
			err = fmt.Errorf("input: shift up: %w", upErr)
		}
	}
	if err != nil {
		return fmt.Errorf("input: key %d: %w", code, err)
	}
	return nil
}
