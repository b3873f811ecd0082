// Package enhance rewrites typed text through an external rewriter, in the
// background, while a progress indicator runs in its place.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"promptman/internal/actuator"
)

var (
	// ErrNotConfigured is returned by rewriters that lack credentials.
	ErrNotConfigured = errors.New("rewriter not configured")
	// ErrBusy is returned when an enhancement is already in flight.
	ErrBusy = errors.New("enhancement already in progress")
	// ErrTimeout is reported when the rewriter does not answer in time.
	ErrTimeout = errors.New("enhancement timed out")
	// ErrEmptyResponse is reported when the rewriter returns no text.
	ErrEmptyResponse = errors.New("empty response from rewriter")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pipeline closed")
)

// Messages typed in place of the text when enhancement fails.
const (
	MsgNotConfigured = "Error: API key not configured."
	MsgTimeout       = "Error: enhancement timed out."
	MsgFailed        = "Error enhancing prompt."
)

// DefaultTimeout bounds a single rewriter call.
const DefaultTimeout = 30 * time.Second

// State is the pipeline's position in an enhancement.
type State int32

const (
	Idle State = iota
	SentinelDetected
	Erasing
	Calling
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case SentinelDetected:
		return "sentinel_detected"
	case Erasing:
		return "erasing"
	case Calling:
		return "calling"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Rewriter turns a rough instruction into a refined one.
type Rewriter interface {
	Enhance(ctx context.Context, input string) (string, error)
}

// RewriterFunc adapts a function to Rewriter.
type RewriterFunc func(ctx context.Context, input string) (string, error)

// Enhance calls f.
func (f RewriterFunc) Enhance(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// Indicator shows progress while the rewriter runs.
type Indicator interface {
	Start()
	Stop()
}

// Request is one enhancement.
type Request struct {
	// Text is the trimmed text sent to the rewriter.
	Text string
	// Prefix is the text as typed on screen, before the sentinel.
	Prefix string
	// Sentinel is the marker that triggered the request.
	Sentinel string
}

// Outcome is the result of a finished task.
type Outcome struct {
	State State
	// Output is the text typed on screen.
	Output string
	Err    error
}

// Task is a handle to a running enhancement.
type Task struct {
	ID      string
	done    chan struct{}
	outcome Outcome
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Options configures a Pipeline.
type Options struct {
	Timeout time.Duration
	// OnState observes every state transition.
	OnState func(taskID string, s State)
}

// Pipeline runs at most one enhancement at a time.
type Pipeline struct {
	act  *actuator.Actuator
	ind  Indicator
	opts Options
	log  *zap.Logger

	rwMu sync.RWMutex
	rw   Rewriter

	state  atomic.Int32
	busy   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pipeline. rw may be nil until SetRewriter is called.
func New(act *actuator.Actuator, ind Indicator, rw Rewriter, opts Options, log *zap.Logger) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		act:    act,
		ind:    ind,
		rw:     rw,
		opts:   opts,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetRewriter swaps the rewriter used by later tasks.
func (p *Pipeline) SetRewriter(rw Rewriter) {
	p.rwMu.Lock()
	defer p.rwMu.Unlock()
	p.rw = rw
}

func (p *Pipeline) rewriter() Rewriter {
	p.rwMu.RLock()
	defer p.rwMu.RUnlock()
	return p.rw
}

// State returns the current state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Busy reports whether a task is in flight.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// Submit starts an enhancement in the background. The caller must already
// have cleared its keystroke buffer. It returns ErrBusy while another task runs.
func (p *Pipeline) Submit(req Request) (*Task, error) {
	if p.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	task := &Task{ID: uuid.NewString(), done: make(chan struct{})}
	p.setState(task.ID, SentinelDetected)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		task.outcome = p.run(task.ID, req)
		p.setState(task.ID, Idle)
		p.busy.Store(false)
		close(task.done)
	}()
	return task, nil
}

// Close cancels any in-flight call and waits for the task to finish.
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pipeline) run(id string, req Request) Outcome {
	log := p.log.With(zap.String("task", id))
	log.Info("Enhancement started", zap.Int("chars", len(req.Text)))

	p.setState(id, Erasing)
	if err := p.act.EraseText(req.Sentinel); err != nil {
		log.Warn("Failed to erase sentinel", zap.Error(err))
	}
	if err := p.act.EraseText(req.Prefix); err != nil {
		log.Warn("Failed to erase text", zap.Error(err))
	}

	p.setState(id, Calling)
	if p.ind != nil {
		p.ind.Start()
	}
	out, err := p.call(req.Text)
	if p.ind != nil {
		p.ind.Stop()
	}

	if err != nil {
		msg := failureMessage(err)
		p.setState(id, Failed)
		log.Warn("Enhancement failed", zap.Error(err))
		if typeErr := p.act.Type(msg); typeErr != nil {
			log.Warn("Failed to type error message", zap.Error(typeErr))
		}
		return Outcome{State: Failed, Output: msg, Err: err}
	}

	p.setState(id, Succeeded)
	if typeErr := p.act.Type(out); typeErr != nil {
		log.Warn("Failed to type enhanced text", zap.Error(typeErr))
		return Outcome{State: Succeeded, Output: out, Err: typeErr}
	}
	log.Info("Enhancement finished", zap.Int("chars", len(out)))
	return Outcome{State: Succeeded, Output: out}
}

// call runs the rewriter with a timeout and normalizes its answer to a
// single line.
func (p *Pipeline) call(text string) (string, error) {
	rw := p.rewriter()
	if rw == nil {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.opts.Timeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := rw.Enhance(ctx, text)
		ch <- result{out, err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	if r.err != nil {
		if errors.Is(r.err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, p.opts.Timeout)
		}
		return "", r.err
	}
	out := flatten(r.out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func (p *Pipeline) setState(id string, s State) {
	p.state.Store(int32(s))
	if p.opts.OnState != nil {
		p.opts.OnState(id, s)
	}
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return MsgNotConfigured
	case errors.Is(err, ErrTimeout):
		return MsgTimeout
	default:
		return MsgFailed
	}
}
