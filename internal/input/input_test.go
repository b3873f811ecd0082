package input

import (
	"testing"
)

// TestCharEvent tests that printable characters produce char presses
func TestCharEvent(t *testing.T) {
	event := Char('a')

	if event.Kind != KeyChar {
		t.Errorf("Expected kind 'char', got '%s'", event.Kind)
	}
	if event.Char != 'a' {
		t.Errorf("Expected char 'a', got %q", event.Char)
	}
	if !event.Down {
		t.Error("Expected key to be pressed")
	}
}

// TestCharSpace tests that the space rune is reported as the space key
func TestCharSpace(t *testing.T) {
	event := Char(' ')

	if event.Kind != KeySpace {
		t.Errorf("Expected kind 'space', got '%s'", event.Kind)
	}
	if event.Char != 0 {
		t.Errorf("Expected no char for space, got %q", event.Char)
	}
}

// TestPress tests special key presses
func TestPress(t *testing.T) {
	for _, kind := range []KeyKind{KeyEnter, KeyBackspace, KeyOther} {
		event := Press(kind)
		if event.Kind != kind {
			t.Errorf("Expected kind '%s', got '%s'", kind, event.Kind)
		}
		if !event.Down {
			t.Errorf("Expected %s to be pressed", kind)
		}
		if event.Injected {
			t.Errorf("Expected %s not to be injected", kind)
		}
	}
}
