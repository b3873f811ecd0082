//go:build darwin

package hook

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

CGEventRef promptmanKeyCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static CFMachPortRef pmTap = NULL;
static CFRunLoopRef pmLoop = NULL;

// Creates the tap on the calling thread's run loop. Returns 0 when
// Accessibility / Input Monitoring permission is missing.
static inline int pmCreateTap(uintptr_t refcon) {
    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) |
                       CGEventMaskBit(kCGEventKeyUp) |
                       CGEventMaskBit(kCGEventFlagsChanged);
    pmTap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        mask,
        promptmanKeyCallback,
        (void*)refcon
    );
    if (!pmTap) {
        return 0;
    }
    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, pmTap, 0);
    pmLoop = CFRunLoopGetCurrent();
    CFRunLoopAddSource(pmLoop, source, kCFRunLoopCommonModes);
    CFRelease(source);
    CGEventTapEnable(pmTap, true);
    return 1;
}

static inline void pmRunTap(void) {
    CFRunLoopRun();
    if (pmTap) {
        CGEventTapEnable(pmTap, false);
        CFMachPortInvalidate(pmTap);
        CFRelease(pmTap);
        pmTap = NULL;
    }
    pmLoop = NULL;
}

static inline void pmStopTap(void) {
    if (pmLoop) {
        CFRunLoopStop(pmLoop);
    }
}

static inline void pmReenableTap(void) {
    if (pmTap) {
        CGEventTapEnable(pmTap, true);
    }
}

static inline int pmUnicode(CGEventRef event, UniChar *buf, int max) {
    UniCharCount n = 0;
    CGEventKeyboardGetUnicodeString(event, (UniCharCount)max, &n, buf);
    return (int)n;
}
*/
import "C"
import (
	"errors"
	"runtime"
	"runtime/cgo"
	"time"
	"unicode"
	"unicode/utf16"
	"unsafe"

	"go.uber.org/zap"

	"promptman/internal/input"
)

const (
	macKeyDelete      = 51
	macKeyReturn      = 36
	macKeyEnterKeypad = 76
	macKeySpace       = 49
)

type platformHook struct {
	handle cgo.Handle
	done   chan struct{}
}

//export promptmanKeyCallback
func promptmanKeyCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	l := cgo.Handle(uintptr(refcon)).Value().(*Listener)

	switch eventType {
	case C.kCGEventTapDisabledByTimeout, C.kCGEventTapDisabledByUserInput:
		C.pmReenableTap()

	case C.kCGEventFlagsChanged:
		flags := C.CGEventGetFlags(event)
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		switch keyCode {
		case 55, 54: // Command keys
			l.dispatch(input.KeyEvent{Name: "CMD", Down: flags&C.kCGEventFlagMaskCommand != 0})
		case 56, 60: // Shift keys
			l.dispatch(input.KeyEvent{Name: "SHIFT", Down: flags&C.kCGEventFlagMaskShift != 0})
		case 58, 61: // Alt/Option keys
			l.dispatch(input.KeyEvent{Name: "ALT", Down: flags&C.kCGEventFlagMaskAlternate != 0})
		case 59, 62: // Control keys
			l.dispatch(input.KeyEvent{Name: "CTRL", Down: flags&C.kCGEventFlagMaskControl != 0})
		}

	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		l.dispatch(translateEvent(event, eventType == C.kCGEventKeyDown))
	}

	return event
}

func translateEvent(event C.CGEventRef, isDown bool) input.KeyEvent {
	keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
	tag := int64(C.CGEventGetIntegerValueField(event, C.kCGEventSourceUserData))
	ev := input.KeyEvent{
		Name:     macKeyCodeToName(keyCode),
		Down:     isDown,
		Injected: tag == input.InjectedTag,
	}

	switch keyCode {
	case macKeyDelete:
		ev.Kind = input.KeyBackspace
		return ev
	case macKeyReturn, macKeyEnterKeypad:
		ev.Kind = input.KeyEnter
		return ev
	case macKeySpace:
		ev.Kind = input.KeySpace
		return ev
	}
	if !isDown {
		return ev
	}

	flags := C.CGEventGetFlags(event)
	if flags&(C.kCGEventFlagMaskCommand|C.kCGEventFlagMaskControl) != 0 {
		return ev
	}

	var buf [4]C.UniChar
	n := int(C.pmUnicode(event, &buf[0], C.int(len(buf))))
	units := make([]uint16, n)
	for i := range units {
		units[i] = uint16(buf[i])
	}
	if runes := utf16.Decode(units); len(runes) == 1 && unicode.IsPrint(runes[0]) {
		ev.Kind = input.KeyChar
		ev.Char = runes[0]
	}
	return ev
}

func (l *Listener) startPlatform() error {
	handle := cgo.NewHandle(l)
	ready := make(chan bool, 1)
	done := make(chan struct{})

	go func() {
		// The tap is bound to this thread's run loop.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)

		if C.pmCreateTap(C.uintptr_t(handle)) == 0 {
			ready <- false
			return
		}
		ready <- true
		C.pmRunTap()
	}()

	if !<-ready {
		handle.Delete()
		return errors.New("hook: failed to create CGEventTap, grant Accessibility and Input Monitoring access")
	}
	l.platform = platformHook{handle: handle, done: done}
	l.log.Info("macOS CGEventTap started")
	return nil
}

func (l *Listener) stopPlatform() error {
	C.pmStopTap()
	select {
	case <-l.platform.done:
	case <-time.After(time.Second):
		l.log.Warn("Event tap run loop did not exit")
		return nil
	}
	l.platform.handle.Delete()
	l.log.Info("macOS CGEventTap stopped", zap.Bool("clean", true))
	return nil
}

func macKeyCodeToName(code uint16) string {
	switch code {
	case 55, 54:
		return "CMD"
	case 56, 60:
		return "SHIFT"
	case 58, 61:
		return "ALT"
	case 59, 62:
		return "CTRL"
	case 49:
		return "SPACE"
	case 36:
		return "ENTER"
	case 53:
		return "ESC"
	case 51:
		return "BACKSPACE"
	}
	if name, ok := macLetters[code]; ok {
		return name
	}
	return ""
}

var macLetters = map[uint16]string{
	0: "A", 11: "B", 8: "C", 2: "D", 14: "E", 3: "F", 5: "G", 4: "H", 34: "I",
	38: "J", 40: "K", 37: "L", 46: "M", 45: "N", 31: "O", 35: "P", 12: "Q",
	15: "R", 1: "S", 17: "T", 32: "U", 9: "V", 13: "W", 7: "X", 16: "Y", 6: "Z",
	29: "0", 18: "1", 19: "2", 20: "3", 21: "4", 23: "5", 22: "6", 26: "7", 28: "8", 25: "9",
	122: "F1", 120: "F2", 99: "F3", 118: "F4", 96: "F5", 97: "F6",
	98: "F7", 100: "F8", 101: "F9", 109: "F10", 103: "F11", 111: "F12",
}
