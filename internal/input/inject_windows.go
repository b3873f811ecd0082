//go:build windows

package input

import (
	"fmt"
	"sync"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const (
	inputKeyboard = 1

	keyeventfKeyUp   = 0x0002
	keyeventfUnicode = 0x0004

	vkBack   = 0x08
	vkReturn = 0x0D
	vkTab    = 0x09
)

// InjectedTag is written to dwExtraInfo of every synthesized event so the
// keyboard hook can recognise and skip its own output.
const InjectedTag uintptr = 0x50524D4E

type keybdInput struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type keyInput struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte // Padding to match the size of the C INPUT union
}

// Injector synthesizes keystrokes with SendInput.
type Injector struct {
	mu sync.Mutex
}

// NewInjector creates a new Windows injector
func NewInjector() (*Injector, error) {
	if err := procSendInput.Find(); err != nil {
		return nil, fmt.Errorf("input: SendInput unavailable: %w", err)
	}
	return &Injector{}, nil
}

// Backspace emits one VK_BACK press and release.
func (i *Injector) Backspace() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return send(virtualKey(vkBack, false), virtualKey(vkBack, true))
}

// TypeText emits text as unicode keystrokes. Newlines and tabs are sent as
// their virtual keys so editors treat them like typed keys.
func (i *Injector) TypeText(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var inputs []keyInput
	for _, r := range text {
		switch r {
		case '\r':
			continue
		case '\n':
			inputs = append(inputs, virtualKey(vkReturn, false), virtualKey(vkReturn, true))
			continue
		case '\t':
			inputs = append(inputs, virtualKey(vkTab, false), virtualKey(vkTab, true))
			continue
		}
		for _, unit := range utf16.Encode([]rune{r}) {
			inputs = append(inputs, unicodeKey(unit, false), unicodeKey(unit, true))
		}
	}
	if len(inputs) == 0 {
		return nil
	}
	return send(inputs...)
}

func virtualKey(vk uint16, up bool) keyInput {
	in := keyInput{Type: inputKeyboard}
	in.Ki.WVk = vk
	in.Ki.DwExtraInfo = InjectedTag
	if up {
		in.Ki.DwFlags = keyeventfKeyUp
	}
	return in
}

func unicodeKey(unit uint16, up bool) keyInput {
	in := keyInput{Type: inputKeyboard}
	in.Ki.WScan = unit
	in.Ki.DwFlags = keyeventfUnicode
	in.Ki.DwExtraInfo = InjectedTag
	if up {
		in.Ki.DwFlags |= keyeventfKeyUp
	}
	return in
}

func send(inputs ...keyInput) error {
	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		return fmt.Errorf("input: SendInput sent %d of %d events: %w", n, len(inputs), err)
	}
	return nil
}
