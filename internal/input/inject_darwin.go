//go:build darwin

package input

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <ApplicationServices/ApplicationServices.h>
#include <stdbool.h>
#include <stdint.h>

static bool pmAccessibilityTrusted(void) {
    return AXIsProcessTrusted();
}

static void pmPostKey(CGKeyCode code, int64_t tag) {
    CGEventSourceRef src = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
    CGEventRef down = CGEventCreateKeyboardEvent(src, code, true);
    CGEventRef up = CGEventCreateKeyboardEvent(src, code, false);
    CGEventSetIntegerValueField(down, kCGEventSourceUserData, tag);
    CGEventSetIntegerValueField(up, kCGEventSourceUserData, tag);
    CGEventPost(kCGHIDEventTap, down);
    CGEventPost(kCGHIDEventTap, up);
    CFRelease(down);
    CFRelease(up);
    if (src) {
        CFRelease(src);
    }
}

static void pmPostUnicode(const UniChar *chars, int n, int64_t tag) {
    CGEventSourceRef src = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
    CGEventRef down = CGEventCreateKeyboardEvent(src, 0, true);
    CGEventRef up = CGEventCreateKeyboardEvent(src, 0, false);
    CGEventKeyboardSetUnicodeString(down, (UniCharCount)n, chars);
    CGEventKeyboardSetUnicodeString(up, (UniCharCount)n, chars);
    CGEventSetIntegerValueField(down, kCGEventSourceUserData, tag);
    CGEventSetIntegerValueField(up, kCGEventSourceUserData, tag);
    CGEventPost(kCGHIDEventTap, down);
    CGEventPost(kCGHIDEventTap, up);
    CFRelease(down);
    CFRelease(up);
    if (src) {
        CFRelease(src);
    }
}
*/
import "C"
import (
	"sync"
	"unicode/utf16"
	"unsafe"
)

// InjectedTag is stored in kCGEventSourceUserData of every synthesized event
// so the event tap can recognise and skip its own output.
const InjectedTag int64 = 0x50524D4E

const (
	macKeyDelete = 51
	macKeyReturn = 36
	macKeyTab    = 48

	// CGEventKeyboardSetUnicodeString silently truncates longer strings.
	maxUnicodeChunk = 20
)

// Injector synthesizes keystrokes with CGEventPost.
type Injector struct {
	mu sync.Mutex
}

// NewInjector creates a new input injector for macOS
func NewInjector() (*Injector, error) {
	return &Injector{}, nil
}

// Trusted reports whether the process has been granted Accessibility access,
// without which posted events are dropped by the system.
func Trusted() bool {
	return bool(C.pmAccessibilityTrusted())
}

// Backspace emits one Delete press and release.
func (i *Injector) Backspace() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	C.pmPostKey(C.CGKeyCode(macKeyDelete), C.int64_t(InjectedTag))
	return nil
}

// TypeText emits text as unicode keyboard events.
func (i *Injector) TypeText(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var pending []rune
	flush := func() {
		units := utf16.Encode(pending)
		for len(units) > 0 {
			n := min(len(units), maxUnicodeChunk)
			// Keep surrogate pairs in the same event.
			if n < len(units) && utf16.IsSurrogate(rune(units[n-1])) && units[n-1] < 0xDC00 {
				n--
			}
			C.pmPostUnicode((*C.UniChar)(unsafe.Pointer(&units[0])), C.int(n), C.int64_t(InjectedTag))
			units = units[n:]
		}
		pending = pending[:0]
	}

	for _, r := range text {
		switch r {
		case '\r':
		case '\n':
			flush()
			C.pmPostKey(C.CGKeyCode(macKeyReturn), C.int64_t(InjectedTag))
		case '\t':
			flush()
			C.pmPostKey(C.CGKeyCode(macKeyTab), C.int64_t(InjectedTag))
		default:
			pending = append(pending, r)
		}
	}
	flush()
	return nil
}
