package enhance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"promptman/internal/actuator"
	"promptman/internal/animation"
	"promptman/internal/input/inputtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sentinel = "//enhance"

type fixture struct {
	screen   *inputtest.Screen
	pipeline *Pipeline

	mu     sync.Mutex
	states []State
}

func newFixture(t *testing.T, typed string, rw Rewriter, timeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{screen: inputtest.NewScreen(typed)}
	act := actuator.New(f.screen, 0)
	ind := animation.New(act, animation.Options{
		Glyph:     ">",
		MaxSpaces: 2,
		Frame:     time.Millisecond,
		StopWait:  250 * time.Millisecond,
	}, nil)
	f.pipeline = New(act, ind, rw, Options{
		Timeout: timeout,
		OnState: func(_ string, s State) {
			f.mu.Lock()
			f.states = append(f.states, s)
			f.mu.Unlock()
		},
	}, zaptest.NewLogger(t))
	t.Cleanup(f.pipeline.Close)
	return f
}

func (f *fixture) submit(t *testing.T, prefix string) Outcome {
	t.Helper()
	task, err := f.pipeline.Submit(Request{Text: strings.TrimSpace(prefix), Prefix: prefix, Sentinel: sentinel})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := task.Wait(ctx)
	require.NoError(t, err)
	return out
}

func (f *fixture) seenStates() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.states...)
}

func TestEnhanceSuccess(t *testing.T) {
	var got string
	rw := RewriterFunc(func(_ context.Context, in string) (string, error) {
		got = in
		return "Refactor the parser.\nAdd tests.\n", nil
	})
	f := newFixture(t, "fix parser //enhance", rw, time.Second)

	out := f.submit(t, "fix parser ")

	assert.Equal(t, "fix parser", got)
	assert.Equal(t, Succeeded, out.State)
	assert.NoError(t, out.Err)
	assert.Equal(t, "Refactor the parser. Add tests.", f.screen.String())
	assert.Equal(t, Idle, f.pipeline.State())
	assert.False(t, f.pipeline.Busy())
	assert.Equal(t, []State{SentinelDetected, Erasing, Calling, Succeeded, Idle}, f.seenStates())
}

func TestEnhanceErasesBeforeIndicatorAndClearsIndicatorBeforeResult(t *testing.T) {
	rw := RewriterFunc(func(ctx context.Context, _ string) (string, error) {
		select {
		case <-time.After(20 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	f := newFixture(t, "ab//enhance", rw, time.Second)
	f.submit(t, "ab")

	tr := f.screen.Transcript()
	// 9 sentinel + 2 text backspaces come first.
	require.True(t, strings.HasPrefix(tr, strings.Repeat("<", 11)+"[>]"), tr)
	assert.True(t, strings.HasSuffix(tr, "<<<[done]"), tr)
	assert.Equal(t, "done", f.screen.String())
}

func TestEnhanceFailureTypesErrorAndRecovers(t *testing.T) {
	calls := 0
	rw := RewriterFunc(func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("quota exceeded")
		}
		return "second try", nil
	})
	f := newFixture(t, "x //enhance", rw, time.Second)

	out := f.submit(t, "x ")
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, MsgFailed, f.screen.String())
	assert.Equal(t, Idle, f.pipeline.State())

	f.screen.Type("y //enhance")
	out = f.submit(t, "y ")
	assert.Equal(t, Succeeded, out.State)
	typed := f.screen.Typed()
	assert.Equal(t, "second try", typed[len(typed)-1])
}

func TestEnhanceNotConfigured(t *testing.T) {
	f := newFixture(t, "hello//enhance", nil, time.Second)

	out := f.submit(t, "hello")
	assert.ErrorIs(t, out.Err, ErrNotConfigured)
	assert.Equal(t, MsgNotConfigured, f.screen.String())

	f.pipeline.SetRewriter(RewriterFunc(func(context.Context, string) (string, error) {
		return "configured", nil
	}))
	f.screen.Type("hello//enhance")
	out = f.submit(t, "hello")
	assert.Equal(t, Succeeded, out.State)
}

func TestEnhanceTimeout(t *testing.T) {
	rw := RewriterFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	f := newFixture(t, "slow//enhance", rw, 20*time.Millisecond)

	out := f.submit(t, "slow")
	assert.Equal(t, Failed, out.State)
	assert.ErrorIs(t, out.Err, ErrTimeout)
	assert.Equal(t, MsgTimeout, f.screen.String())
}

func TestEnhanceEmptyResponseFails(t *testing.T) {
	rw := RewriterFunc(func(context.Context, string) (string, error) { return " \n ", nil })
	f := newFixture(t, "q//enhance", rw, time.Second)

	out := f.submit(t, "q")
	assert.ErrorIs(t, out.Err, ErrEmptyResponse)
	assert.Equal(t, MsgFailed, f.screen.String())
}

func TestSubmitWhileBusy(t *testing.T) {
	release := make(chan struct{})
	rw := RewriterFunc(func(ctx context.Context, _ string) (string, error) {
		select {
		case <-release:
			return "ok", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	f := newFixture(t, "a//enhance", rw, 5*time.Second)

	task, err := f.pipeline.Submit(Request{Text: "a", Prefix: "a", Sentinel: sentinel})
	require.NoError(t, err)
	assert.True(t, f.pipeline.Busy())

	_, err = f.pipeline.Submit(Request{Text: "b", Prefix: "b", Sentinel: sentinel})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-task.Done()
	assert.False(t, f.pipeline.Busy())
}

func TestSubmitAfterClose(t *testing.T) {
	f := newFixture(t, "", nil, time.Second)
	f.pipeline.Close()

	_, err := f.pipeline.Submit(Request{Text: "a", Prefix: "a", Sentinel: sentinel})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "a b  c", flatten("a\nb\r\n\nc\n"))
}
