//go:build windows

package hook

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"

	"promptman/internal/input"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx         = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx           = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx      = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage               = user32.NewProc("GetMessageW")
	procPostThreadMessage        = user32.NewProc("PostThreadMessageW")
	procGetKeyState              = user32.NewProc("GetKeyState")
	procGetAsyncKeyState         = user32.NewProc("GetAsyncKeyState")
	procToUnicodeEx              = user32.NewProc("ToUnicodeEx")
	procGetKeyboardLayout        = user32.NewProc("GetKeyboardLayout")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle          = kernel32.NewProc("GetModuleHandleW")
)

const (
	WH_KEYBOARD_LL = 13
	WM_KEYDOWN     = 0x0100
	WM_KEYUP       = 0x0101
	WM_SYSKEYDOWN  = 0x0104
	WM_SYSKEYUP    = 0x0105
	WM_QUIT        = 0x0012

	vkBack    = 0x08
	vkReturn  = 0x0D
	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12
	vkCapital = 0x14
	vkSpace   = 0x20
	vkLWin    = 0x5B
	vkRWin    = 0x5C

	// Leave the keyboard state untouched so dead keys keep working in the
	// focused application.
	toUnicodeNoStateChange = 0x4
)

type KBDLLHOOKSTRUCT struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type platformHook struct {
	threadID uint32
	done     chan struct{}
}

var (
	// Low-level hooks are process-wide; only one listener can be active.
	activeListener atomic.Pointer[Listener]
	keyboardHook   atomic.Uintptr
	keyboardProc   = windows.NewCallback(keyboardHookProc)
)

func (l *Listener) startPlatform() error {
	activeListener.Store(l)
	ready := make(chan error, 1)
	done := make(chan struct{})

	// Hooks must be registered in the same thread that runs the message loop
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)

		tid := windows.GetCurrentThreadId()
		hMod, _, _ := procGetModuleHandle.Call(0)
		hook, _, err := procSetWindowsHookEx.Call(WH_KEYBOARD_LL, keyboardProc, hMod, 0)
		if hook == 0 {
			ready <- fmt.Errorf("hook: SetWindowsHookEx: %w", err)
			return
		}
		keyboardHook.Store(hook)
		l.platform.threadID = tid
		ready <- nil

		var msg struct {
			Hwnd    windows.Handle
			Message uint32
			Wparam  uintptr
			Lparam  uintptr
			Time    uint32
			Pt      struct{ X, Y int32 }
		}
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}

		procUnhookWindowsHookEx.Call(hook)
		keyboardHook.Store(0)
	}()

	if err := <-ready; err != nil {
		activeListener.CompareAndSwap(l, nil)
		return err
	}
	l.platform.done = done
	l.log.Info("Windows keyboard hook started")
	return nil
}

func (l *Listener) stopPlatform() error {
	procPostThreadMessage.Call(uintptr(l.platform.threadID), WM_QUIT, 0, 0)
	select {
	case <-l.platform.done:
	case <-time.After(time.Second):
		l.log.Warn("Keyboard hook thread did not exit")
	}
	activeListener.CompareAndSwap(l, nil)
	l.log.Info("Windows keyboard hook stopped")
	return nil
}

func keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		if l := activeListener.Load(); l != nil {
			kbd := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))
			isDown := wParam == WM_KEYDOWN || wParam == WM_SYSKEYDOWN
			l.dispatch(translateKey(kbd, isDown))
		}
	}
	ret, _, _ := procCallNextHookEx.Call(keyboardHook.Load(), uintptr(nCode), wParam, lParam)
	return ret
}

func translateKey(kbd *KBDLLHOOKSTRUCT, isDown bool) input.KeyEvent {
	ev := input.KeyEvent{
		Name:     vkCodeToName(kbd.VkCode),
		Down:     isDown,
		Injected: kbd.DwExtraInfo == input.InjectedTag,
	}
	switch kbd.VkCode {
	case vkBack:
		ev.Kind = input.KeyBackspace
		return ev
	case vkReturn:
		ev.Kind = input.KeyEnter
		return ev
	case vkSpace:
		ev.Kind = input.KeySpace
		return ev
	}
	if !isDown {
		return ev
	}

	ctrl, alt := keyHeld(vkControl), keyHeld(vkMenu)
	// Ctrl+Alt is AltGr on international layouts and still produces text.
	if (ctrl && !alt) || keyHeld(vkLWin) || keyHeld(vkRWin) {
		return ev
	}
	if r := toUnicode(kbd, ctrl && alt); r != 0 && unicode.IsPrint(r) {
		ev.Kind = input.KeyChar
		ev.Char = r
	}
	return ev
}

func keyHeld(vk uintptr) bool {
	ret, _, _ := procGetAsyncKeyState.Call(vk)
	return ret&0x8000 != 0
}

// toUnicode translates a key with the foreground window's layout.
func toUnicode(kbd *KBDLLHOOKSTRUCT, altGr bool) rune {
	var state [256]byte
	if keyHeld(vkShift) {
		state[vkShift] = 0x80
	}
	if caps, _, _ := procGetKeyState.Call(vkCapital); caps&1 != 0 {
		state[vkCapital] = 0x01
	}
	if altGr {
		state[vkControl] = 0x80
		state[vkMenu] = 0x80
	}

	fg, _, _ := procGetForegroundWindow.Call()
	tid, _, _ := procGetWindowThreadProcessId.Call(fg, 0)
	hkl, _, _ := procGetKeyboardLayout.Call(tid)

	var buf [8]uint16
	n, _, _ := procToUnicodeEx.Call(
		uintptr(kbd.VkCode),
		uintptr(kbd.ScanCode),
		uintptr(unsafe.Pointer(&state[0])),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		toUnicodeNoStateChange,
		hkl,
	)
	if int32(n) <= 0 {
		return 0
	}
	runes := utf16.Decode(buf[:n])
	if len(runes) != 1 {
		return 0
	}
	return runes[0]
}

func vkCodeToName(vk uint32) string {
	switch vk {
	case 0x11, 0xA2, 0xA3:
		return "CTRL"
	case 0x12, 0xA4, 0xA5:
		return "ALT"
	case 0x10, 0xA0, 0xA1:
		return "SHIFT"
	case 0x5B, 0x5C:
		return "CMD" // Windows key as CMD for consistency
	case 0x20:
		return "SPACE"
	case 0x0D:
		return "ENTER"
	case 0x1B:
		return "ESC"
	case 0x08:
		return "BACKSPACE"
	case 0x09:
		return "TAB"
	case 0x2E:
		return "DELETE"
	case 0x13:
		return "PAUSE"
	}

	// Letters A-Z and digits 0-9 share their ASCII codes
	if (vk >= 0x41 && vk <= 0x5A) || (vk >= 0x30 && vk <= 0x39) {
		return string(rune(vk))
	}

	// F1-F12
	if vk >= 0x70 && vk <= 0x7B {
		return fmt.Sprintf("F%d", vk-0x6F)
	}

	return ""
}
