// Package animation draws a moving glyph while a slow operation runs.
package animation

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"promptman/internal/actuator"
)

// Options controls the indicator's look and timing.
type Options struct {
	// Glyph is the moving character.
	Glyph string
	// MaxSpaces is the largest indent before wrapping back to zero.
	MaxSpaces int
	// Frame is how long each frame stays on screen.
	Frame time.Duration
	// StopWait bounds how long Stop waits for the loop to exit.
	StopWait time.Duration
	// Pace is the pause after each backspace when erasing frames.
	Pace time.Duration
}

// DefaultOptions returns the standard indicator settings.
func DefaultOptions() Options {
	return Options{
		Glyph:     "➤",
		MaxSpaces: 10,
		Frame:     150 * time.Millisecond,
		StopWait:  250 * time.Millisecond,
		Pace:      5 * time.Millisecond,
	}
}

// Indicator types successive frames "", " ", "  " ... followed by the glyph,
// erasing each frame before drawing the next.
type Indicator struct {
	act  *actuator.Actuator
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	frame   string // text currently on screen
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates an indicator drawing through act.
func New(act *actuator.Actuator, opts Options, log *zap.Logger) *Indicator {
	if opts.Glyph == "" {
		opts.Glyph = DefaultOptions().Glyph
	}
	if opts.MaxSpaces < 0 {
		opts.MaxSpaces = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Indicator{act: act, opts: opts, log: log}
}

// Frame returns the text of frame k.
func (ind *Indicator) Frame(k int) string {
	return strings.Repeat(" ", k) + ind.opts.Glyph
}

// MaxFrameLen is the number of characters erased by Stop.
func (ind *Indicator) MaxFrameLen() int {
	return ind.opts.MaxSpaces + utf8.RuneCountInString(ind.opts.Glyph)
}

// Running reports whether the loop is active.
func (ind *Indicator) Running() bool {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.running
}

// Current returns the frame currently on screen.
func (ind *Indicator) Current() string {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.frame
}

// Start begins the animation. It is a no-op while already running.
func (ind *Indicator) Start() {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	if ind.running {
		return
	}
	ind.running = true
	ind.stopped = false
	ind.frame = ""
	ind.stopCh = make(chan struct{})
	ind.doneCh = make(chan struct{})
	go ind.loop(ind.stopCh, ind.doneCh)
}

// Stop ends the animation and clears it from the screen. The wait for the
// loop is bounded; afterwards the longest possible frame is erased
// regardless of what was drawn.
func (ind *Indicator) Stop() {
	ind.mu.Lock()
	if !ind.running {
		ind.mu.Unlock()
		return
	}
	// Frames are drawn under mu, so once stopped is set no frame is in
	// flight and none will start.
	ind.stopped = true
	close(ind.stopCh)
	done := ind.doneCh
	ind.mu.Unlock()

	select {
	case <-done:
	case <-time.After(ind.opts.StopWait):
		ind.log.Warn("Indicator loop did not exit in time")
	}

	if err := ind.act.Erase(ind.MaxFrameLen(), ind.opts.Pace); err != nil {
		ind.log.Warn("Failed to clear indicator", zap.Error(err))
	}

	ind.mu.Lock()
	ind.running = false
	ind.frame = ""
	ind.mu.Unlock()
}

func (ind *Indicator) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(ind.opts.Frame)
	defer timer.Stop()

	for k := 0; ; k = (k + 1) % (ind.opts.MaxSpaces + 1) {
		if !ind.draw(ind.Frame(k)) {
			return
		}
		timer.Reset(ind.opts.Frame)
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

// draw replaces the current frame with next. It returns false once Stop has
// been called.
func (ind *Indicator) draw(next string) bool {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	if ind.stopped {
		return false
	}
	if ind.frame != "" {
		if err := ind.act.Erase(utf8.RuneCountInString(ind.frame), ind.opts.Pace); err != nil {
			ind.log.Warn("Failed to erase frame", zap.Error(err))
		}
		ind.frame = ""
	}
	if err := ind.act.Type(next); err != nil {
		ind.log.Warn("Failed to draw frame", zap.Error(err))
		return true
	}
	ind.frame = next
	return true
}
