// Package hook observes system-wide keyboard input and delivers it as a
// stream of key events.
package hook

import (
	"sync"

	"go.uber.org/zap"

	"promptman/internal/input"
)

// EventBuffer is the capacity of the event channel. Events are dropped
// when the consumer falls this far behind.
const EventBuffer = 1000

// Listener installs the platform keyboard hook. Key presses are delivered on
// Events; every transition also feeds the Hotkeys matcher.
type Listener struct {
	mu      sync.Mutex
	events  chan input.KeyEvent
	hotkeys *Hotkeys
	running bool
	log     *zap.Logger

	platform platformHook
}

// NewListener creates a stopped listener. hotkeys may be nil.
func NewListener(hotkeys *Hotkeys, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{
		events:  make(chan input.KeyEvent, EventBuffer),
		hotkeys: hotkeys,
		log:     log,
	}
}

// Events returns the key event stream. The channel stays open across
// Stop and Start.
func (l *Listener) Events() <-chan input.KeyEvent {
	return l.events
}

// Start installs the hook.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	if err := l.startPlatform(); err != nil {
		return err
	}
	l.running = true
	return nil
}

// Stop removes the hook.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return nil
	}
	l.running = false
	return l.stopPlatform()
}

// Running reports whether the hook is installed.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// dispatch is called by the platform hook for every key transition.
func (l *Listener) dispatch(ev input.KeyEvent) {
	if l.hotkeys != nil && ev.Name != "" && !ev.Injected {
		l.hotkeys.UpdateState(ev.Name, ev.Down)
	}
	if !ev.Down || ev.Injected {
		return
	}
	select {
	case l.events <- ev:
	default:
		l.log.Warn("Key event dropped, consumer is behind")
	}
}
