// Package input provides keyboard event types and cross-platform keystroke injection.
package input

import "errors"

// ErrUnsupported is returned when the platform cannot synthesize the requested input.
var ErrUnsupported = errors.New("input: not supported on this platform")

// KeyKind classifies a keyboard event for the keystroke buffer.
type KeyKind int

const (
	// KeyOther is any key that does not affect the buffer (arrows, function keys, chords).
	KeyOther KeyKind = iota
	// KeyChar is a printable character.
	KeyChar
	// KeySpace is the space bar.
	KeySpace
	// KeyEnter is Return / Enter.
	KeyEnter
	// KeyBackspace is Backspace.
	KeyBackspace
)

func (k KeyKind) String() string {
	switch k {
	case KeyChar:
		return "char"
	case KeySpace:
		return "space"
	case KeyEnter:
		return "enter"
	case KeyBackspace:
		return "backspace"
	default:
		return "other"
	}
}

// KeyEvent is a single keyboard event observed by the OS hook.
type KeyEvent struct {
	Kind KeyKind `json:"kind"`

	// Char is the translated character for KeyChar events.
	Char rune `json:"char,omitempty"`

	// Name is the layout-independent key name used for hotkey chords (e.g. "CTRL", "P").
	Name string `json:"name,omitempty"`

	// Down is true for key presses (including auto-repeat), false for releases.
	Down bool `json:"down"`

	// Injected marks events synthesized by this process.
	Injected bool `json:"injected,omitempty"`
}

// Char builds a KeyChar press event. Space is mapped to KeySpace.
func Char(r rune) KeyEvent {
	if r == ' ' {
		return KeyEvent{Kind: KeySpace, Name: "SPACE", Down: true}
	}
	return KeyEvent{Kind: KeyChar, Char: r, Down: true}
}

// Press builds a press event of the given kind.
func Press(kind KeyKind) KeyEvent {
	return KeyEvent{Kind: kind, Down: true}
}

// Keyboard synthesizes keystrokes into the focused application.
type Keyboard interface {
	// Backspace emits one backspace press and release.
	Backspace() error
	// TypeText emits text as keyboard input.
	TypeText(text string) error
}
