package input

import "fmt"

// Linux evdev key codes (linux/input-event-codes.h) and a US layout table.
// The Linux hook and the uinput injector both translate through it.
const (
	EvKeyEsc        = 1
	EvKeyBackspace  = 14
	EvKeyTab        = 15
	EvKeyEnter      = 28
	EvKeyLeftCtrl   = 29
	EvKeyLeftShift  = 42
	EvKeyRightShift = 54
	EvKeyLeftAlt    = 56
	EvKeySpace      = 57
	EvKeyCapsLock   = 58
	EvKeyKPEnter    = 96
	EvKeyRightCtrl  = 97
	EvKeyRightAlt   = 100
	EvKeyLeftMeta   = 125
	EvKeyRightMeta  = 126
)

type evdevRow struct {
	first   uint16
	lower   string
	shifted string
}

var evdevRows = []evdevRow{
	{2, "1234567890-=", "!@#$%^&*()_+"},
	{16, "qwertyuiop[]", "QWERTYUIOP{}"},
	{30, "asdfghjkl;'`", "ASDFGHJKL:\"~"},
	{43, "\\zxcvbnm,./", "|ZXCVBNM<>?"},
}

type evdevKey struct {
	code  uint16
	shift bool
}

var (
	evdevLower   = map[uint16]rune{}
	evdevShifted = map[uint16]rune{}
	evdevByRune  = map[rune]evdevKey{}
)

func init() {
	for _, row := range evdevRows {
		lower, shifted := []rune(row.lower), []rune(row.shifted)
		for i := range lower {
			code := row.first + uint16(i)
			evdevLower[code] = lower[i]
			evdevShifted[code] = shifted[i]
			evdevByRune[lower[i]] = evdevKey{code: code}
			evdevByRune[shifted[i]] = evdevKey{code: code, shift: true}
		}
	}
	evdevByRune[' '] = evdevKey{code: EvKeySpace}
	evdevByRune['\n'] = evdevKey{code: EvKeyEnter}
	evdevByRune['\t'] = evdevKey{code: EvKeyTab}
}

// EvdevRune translates an evdev key code to the character a US layout
// produces. Caps Lock only affects letters.
func EvdevRune(code uint16, shift, caps bool) (rune, bool) {
	lower, ok := evdevLower[code]
	if !ok {
		return 0, false
	}
	if lower >= 'a' && lower <= 'z' && caps {
		shift = !shift
	}
	if shift {
		return evdevShifted[code], true
	}
	return lower, true
}

// EvdevKeyFor returns the key code and shift state that type r on a US layout.
func EvdevKeyFor(r rune) (code uint16, shift bool, ok bool) {
	k, ok := evdevByRune[r]
	return k.code, k.shift, ok
}

// EvdevName returns the hotkey name of an evdev key code.
func EvdevName(code uint16) string {
	switch code {
	case EvKeyLeftCtrl, EvKeyRightCtrl:
		return "CTRL"
	case EvKeyLeftAlt, EvKeyRightAlt:
		return "ALT"
	case EvKeyLeftShift, EvKeyRightShift:
		return "SHIFT"
	case EvKeyLeftMeta, EvKeyRightMeta:
		return "CMD"
	case EvKeySpace:
		return "SPACE"
	case EvKeyEnter, EvKeyKPEnter:
		return "ENTER"
	case EvKeyEsc:
		return "ESC"
	case EvKeyBackspace:
		return "BACKSPACE"
	case EvKeyTab:
		return "TAB"
	}
	if code >= 59 && code <= 68 {
		return fmt.Sprintf("F%d", code-58)
	}
	if r, ok := evdevLower[code]; ok {
		switch {
		case r >= 'a' && r <= 'z':
			return string(r - 'a' + 'A')
		case r >= '0' && r <= '9':
			return string(r)
		}
	}
	return ""
}
