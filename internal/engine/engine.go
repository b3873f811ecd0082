// Package engine ties the keystroke buffer, matcher, actuator and
// enhancement pipeline to the stream of key events from the OS hook.
package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"promptman/internal/actuator"
	"promptman/internal/enhance"
	"promptman/internal/input"
	"promptman/internal/keybuf"
	"promptman/internal/matcher"
	"promptman/internal/rules"
	"promptman/internal/usage"
)

// DefaultSentinel is the marker that sends the preceding text for enhancement.
const DefaultSentinel = "//enhance"

// RuleSource provides the current rules in match order.
type RuleSource interface {
	Snapshot() []rules.Rule
}

// Options configures an Engine.
type Options struct {
	Sentinel  string
	BufferCap int
}

// Engine owns the keystroke buffer. HandleKey and Run must be called from
// a single goroutine, the hook loop.
type Engine struct {
	buf      *keybuf.Buffer
	rules    RuleSource
	act      *actuator.Actuator
	pipeline *enhance.Pipeline
	notifier usage.Notifier
	sentinel string
	log      *zap.Logger

	paused   atomic.Bool
	stale    atomic.Bool
	lastTask atomic.Pointer[enhance.Task]
}

// New creates an engine. pipeline may be nil to disable enhancement and
// notifier may be nil to disable usage reporting.
func New(src RuleSource, act *actuator.Actuator, pipeline *enhance.Pipeline, notifier usage.Notifier, opts Options, log *zap.Logger) *Engine {
	if notifier == nil {
		notifier = usage.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		buf:      keybuf.New(opts.BufferCap),
		rules:    src,
		act:      act,
		pipeline: pipeline,
		notifier: notifier,
		sentinel: opts.Sentinel,
		log:      log,
	}
}

// Run consumes events until ctx is cancelled or events is closed.
func (e *Engine) Run(ctx context.Context, events <-chan input.KeyEvent) error {
	e.log.Info("Engine started", zap.String("sentinel", e.sentinel))
	for {
		select {
		case <-ctx.Done():
			e.log.Info("Engine stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.HandleKey(ev)
		}
	}
}

// HandleKey applies one event and acts on the resulting match.
func (e *Engine) HandleKey(ev input.KeyEvent) matcher.Result {
	if ev.Injected || e.paused.Load() {
		return matcher.Result{}
	}
	if e.stale.CompareAndSwap(true, false) {
		e.buf.Reset()
	}
	if !e.buf.Apply(ev) {
		return matcher.Result{}
	}

	res := matcher.Match(e.buf.String(), e.rules.Snapshot(), e.sentinel)
	switch res.Kind {
	case matcher.Expand:
		e.expand(res)
	case matcher.Enhance:
		if !e.enhance(res) {
			return matcher.Result{}
		}
	}
	return res
}

func (e *Engine) expand(res matcher.Result) {
	e.buf.Reset()
	e.log.Debug("Expanding", zap.String("shortcut", res.Shortcut))
	if err := e.act.Replace(res.Trigger, res.Replacement); err != nil {
		e.log.Warn("Expansion failed", zap.String("shortcut", res.Shortcut), zap.Error(err))
		return
	}
	e.notifier.Notify(res.Shortcut)
}

// enhance hands the text to the pipeline. A busy or absent pipeline leaves
// the buffer untouched.
func (e *Engine) enhance(res matcher.Result) bool {
	if e.pipeline == nil {
		return false
	}
	if e.pipeline.Busy() {
		e.log.Info("Enhancement already running, ignoring sentinel")
		return false
	}

	e.buf.Reset()
	task, err := e.pipeline.Submit(enhance.Request{
		Text:     res.Text,
		Prefix:   res.Prefix,
		Sentinel: res.Trigger,
	})
	if err != nil {
		if !errors.Is(err, enhance.ErrBusy) {
			e.log.Warn("Enhancement rejected", zap.Error(err))
		}
		return false
	}
	e.lastTask.Store(task)
	return true
}

// LastTask returns the most recently submitted enhancement, if any.
func (e *Engine) LastTask() *enhance.Task {
	return e.lastTask.Load()
}

// SetPaused stops or resumes reacting to keys. The buffer is cleared on
// resume so text typed while paused cannot fire.
func (e *Engine) SetPaused(paused bool) {
	if e.paused.Swap(paused) == paused {
		return
	}
	if !paused {
		e.stale.Store(true)
	}
	e.log.Info("Expansion state changed", zap.Bool("paused", paused))
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// Buffer returns the buffered text. Only call it from the hook loop.
func (e *Engine) Buffer() string {
	return e.buf.String()
}
