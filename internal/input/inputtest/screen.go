// Package inputtest provides an in-memory keyboard that renders synthesized
// keystrokes onto a text screen.
package inputtest

import (
	"strings"
	"sync"
)

// Op is one operation received by a Screen.
type Op struct {
	Backspace bool
	Text      string
}

// Screen is an input.Keyboard that applies keystrokes to an in-memory line.
// Backspace on an empty screen is a no-op.
type Screen struct {
	mu      sync.Mutex
	text    []rune
	ops     []Op
	onOp    func(Op)
	typeErr error
}

// NewScreen returns a screen pre-filled with initial text.
func NewScreen(initial string) *Screen {
	return &Screen{text: []rune(initial)}
}

// OnOp registers a hook invoked after every operation.
func (s *Screen) OnOp(fn func(Op)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOp = fn
}

// FailTyping makes every later TypeText call return err.
func (s *Screen) FailTyping(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typeErr = err
}

// Backspace removes the last character.
func (s *Screen) Backspace() error {
	s.mu.Lock()
	if len(s.text) > 0 {
		s.text = s.text[:len(s.text)-1]
	}
	op := Op{Backspace: true}
	s.ops = append(s.ops, op)
	fn := s.onOp
	s.mu.Unlock()
	if fn != nil {
		fn(op)
	}
	return nil
}

// TypeText appends text.
func (s *Screen) TypeText(text string) error {
	s.mu.Lock()
	if s.typeErr != nil {
		err := s.typeErr
		s.mu.Unlock()
		return err
	}
	s.text = append(s.text, []rune(text)...)
	op := Op{Text: text}
	s.ops = append(s.ops, op)
	fn := s.onOp
	s.mu.Unlock()
	if fn != nil {
		fn(op)
	}
	return nil
}

// Type simulates the user typing text directly onto the screen.
func (s *Screen) Type(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = append(s.text, []rune(text)...)
}

// String returns the current screen contents.
func (s *Screen) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.text)
}

// Ops returns a copy of every operation received so far.
func (s *Screen) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

// Backspaces counts backspace operations.
func (s *Screen) Backspaces() int {
	n := 0
	for _, op := range s.Ops() {
		if op.Backspace {
			n++
		}
	}
	return n
}

// Typed concatenates every TypeText call in order.
func (s *Screen) Typed() []string {
	var out []string
	for _, op := range s.Ops() {
		if !op.Backspace {
			out = append(out, op.Text)
		}
	}
	return out
}

// Transcript renders the operations as a compact string, "<" per backspace.
func (s *Screen) Transcript() string {
	var b strings.Builder
	for _, op := range s.Ops() {
		if op.Backspace {
			b.WriteByte('<')
		} else {
			b.WriteString("[" + op.Text + "]")
		}
	}
	return b.String()
}
