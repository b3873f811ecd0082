// Package actuator turns decisions into synthetic keystrokes.
package actuator

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"promptman/internal/input"
)

// DefaultPace is the pause after each synthesized backspace.
const DefaultPace = 10 * time.Millisecond

// Actuator serializes keystroke synthesis so sequences from different
// goroutines never interleave.
type Actuator struct {
	mu    sync.Mutex
	kb    input.Keyboard
	pace  time.Duration
	sleep func(time.Duration)
}

// New creates an actuator over kb that pauses pace after each backspace.
func New(kb input.Keyboard, pace time.Duration) *Actuator {
	return &Actuator{kb: kb, pace: pace, sleep: time.Sleep}
}

// Replace erases trigger and types replacement in its place.
func (a *Actuator) Replace(trigger, replacement string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.erase(utf8.RuneCountInString(trigger), a.pace); err != nil {
		return err
	}
	return a.typeText(replacement)
}

// EraseText removes as many characters as text contains.
func (a *Actuator) EraseText(text string) error {
	return a.Erase(utf8.RuneCountInString(text), a.pace)
}

// Erase sends n backspaces, pausing pace after each.
func (a *Actuator) Erase(n int, pace time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.erase(n, pace)
}

// Type types text with trailing whitespace removed.
func (a *Actuator) Type(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.typeText(text)
}

func (a *Actuator) erase(n int, pace time.Duration) error {
	for i := 0; i < n; i++ {
		if err := a.kb.Backspace(); err != nil {
			return fmt.Errorf("backspace %d of %d: %w", i+1, n, err)
		}
		if pace > 0 {
			a.sleep(pace)
		}
	}
	return nil
}

func (a *Actuator) typeText(text string) error {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if text == "" {
		return nil
	}
	if err := a.kb.TypeText(text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}
