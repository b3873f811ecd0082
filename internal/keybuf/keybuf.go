// Package keybuf holds the rolling window of recently typed characters.
package keybuf

import "promptman/internal/input"

// DefaultCap is the number of characters retained.
const DefaultCap = 500

// Buffer is a bounded rune window. It is not safe for concurrent use; the
// hook loop is its only owner.
type Buffer struct {
	runes []rune
	cap   int
}

// New creates a buffer holding at most capacity runes. A non-positive
// capacity selects DefaultCap.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Buffer{
		runes: make([]rune, 0, capacity+1),
		cap:   capacity,
	}
}

// Apply updates the buffer for a key press and reports whether it changed
// the buffer's meaning (a matcher pass is due).
func (b *Buffer) Apply(ev input.KeyEvent) bool {
	if !ev.Down {
		return false
	}
	switch ev.Kind {
	case input.KeyChar:
		if ev.Char == 0 {
			return false
		}
		b.push(ev.Char)
	case input.KeySpace:
		b.push(' ')
	case input.KeyEnter:
		b.Reset()
	case input.KeyBackspace:
		if n := len(b.runes); n > 0 {
			b.runes = b.runes[:n-1]
		}
	default:
		return false
	}
	return true
}

func (b *Buffer) push(r rune) {
	b.runes = append(b.runes, r)
	if over := len(b.runes) - b.cap; over > 0 {
		// Shift in place so the backing array never grows past cap+1.
		n := copy(b.runes, b.runes[over:])
		b.runes = b.runes[:n]
	}
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.runes = b.runes[:0]
}

// String returns the buffered text, oldest first.
func (b *Buffer) String() string {
	return string(b.runes)
}

// Len returns the number of buffered runes.
func (b *Buffer) Len() int {
	return len(b.runes)
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return b.cap
}
