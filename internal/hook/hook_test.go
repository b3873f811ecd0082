package hook

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"promptman/internal/input"
)

func TestHotkeyFiresOncePerChord(t *testing.T) {
	h := NewHotkeys(nil)
	var count atomic.Int32
	h.Register("Ctrl+Alt+P", func() { count.Add(1) })

	h.UpdateState("CTRL", true)
	h.UpdateState("alt", true)
	assert.Equal(t, int32(0), count.Load())

	h.UpdateState("P", true)
	h.UpdateState("P", true) // auto-repeat
	assert.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, time.Millisecond)

	h.UpdateState("P", false)
	h.UpdateState("P", true)
	assert.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, time.Millisecond)
}

func TestHotkeyRequiresAllParts(t *testing.T) {
	h := NewHotkeys(nil)
	fired := make(chan struct{}, 1)
	h.Register("Ctrl+Alt+P", func() { fired <- struct{}{} })
	h.Register("", func() { t.Error("empty chord must not register") })

	h.UpdateState("CTRL", true)
	h.UpdateState("P", true)
	h.UpdateState("CTRL", false)
	h.UpdateState("ALT", true)
	h.UpdateState("P", true)

	select {
	case <-fired:
		t.Fatal("chord fired without all keys held")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHotkeyClear(t *testing.T) {
	h := NewHotkeys(nil)
	fired := make(chan struct{}, 1)
	h.Register("F9", func() { fired <- struct{}{} })
	h.Clear()

	h.UpdateState("F9", true)
	select {
	case <-fired:
		t.Fatal("cleared hotkey fired")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDispatchForwardsPressesOnly(t *testing.T) {
	l := NewListener(NewHotkeys(nil), nil)

	l.dispatch(input.KeyEvent{Kind: input.KeyChar, Char: 'a', Name: "A", Down: true})
	l.dispatch(input.KeyEvent{Kind: input.KeyChar, Char: 'a', Name: "A", Down: false})
	l.dispatch(input.KeyEvent{Kind: input.KeyChar, Char: 'b', Down: true, Injected: true})

	assert.Len(t, l.events, 1)
	ev := <-l.Events()
	assert.Equal(t, 'a', ev.Char)
}

func TestDispatchDropsWhenFull(t *testing.T) {
	l := NewListener(nil, nil)
	for range EventBuffer + 10 {
		l.dispatch(input.Char('x'))
	}
	assert.Len(t, l.events, EventBuffer)
}

func TestDispatchFeedsHotkeys(t *testing.T) {
	hk := NewHotkeys(nil)
	fired := make(chan struct{}, 1)
	hk.Register("Ctrl+P", func() { fired <- struct{}{} })
	l := NewListener(hk, nil)

	l.dispatch(input.KeyEvent{Kind: input.KeyOther, Name: "CTRL", Down: true})
	l.dispatch(input.KeyEvent{Kind: input.KeyOther, Name: "P", Down: true})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("hotkey did not fire")
	}
}
