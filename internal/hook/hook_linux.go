//go:build linux

package hook

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"promptman/internal/input"
)

// inputEvent is struct input_event. The timeval makes it 24 bytes on 64-bit
// kernels and 16 on 32-bit ones.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

const (
	evKey       = 1
	keyRelease  = 0
	evRepBit    = 20
	evKeyBit    = 1
	procDevices = "/proc/bus/input/devices"
)

type platformHook struct {
	files []*os.File
	wg    sync.WaitGroup
}

func (l *Listener) startPlatform() error {
	f, err := os.Open(procDevices)
	if err != nil {
		return fmt.Errorf("hook: list input devices: %w", err)
	}
	paths := parseKeyboards(f, input.DeviceName)
	f.Close()
	if len(paths) == 0 {
		return errors.New("hook: no keyboard devices found")
	}

	state := &evdevState{}
	for _, path := range paths {
		dev, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			l.log.Warn("Cannot open keyboard device (need the 'input' group or root)", zap.String("device", path), zap.Error(err))
			continue
		}
		l.platform.files = append(l.platform.files, dev)
		l.platform.wg.Add(1)
		go l.readDevice(dev, state)
	}
	if len(l.platform.files) == 0 {
		return fmt.Errorf("hook: cannot read any of %d keyboard devices", len(paths))
	}
	l.log.Info("Linux evdev hook started", zap.Int("devices", len(l.platform.files)))
	return nil
}

func (l *Listener) stopPlatform() error {
	for _, f := range l.platform.files {
		f.Close()
	}
	l.platform.wg.Wait()
	l.platform.files = nil
	l.log.Info("Linux evdev hook stopped")
	return nil
}

func (l *Listener) readDevice(f *os.File, state *evdevState) {
	defer l.platform.wg.Done()

	err := readKeyEvents(f, func(code uint16, value int32) {
		l.dispatch(state.translate(code, value))
	})
	if !errors.Is(err, os.ErrClosed) {
		l.log.Debug("Keyboard device closed", zap.String("device", f.Name()), zap.Error(err))
	}
}

// readKeyEvents decodes input events from r and passes EV_KEY ones to fn
// until r fails.
func readKeyEvents(r io.Reader, fn func(code uint16, value int32)) error {
	var ev inputEvent
	for {
		if err := binary.Read(r, binary.NativeEndian, &ev); err != nil {
			return err
		}
		if ev.Type == evKey {
			fn(ev.Code, ev.Value)
		}
	}
}

// evdevState tracks modifiers across all keyboards.
type evdevState struct {
	mu   sync.Mutex
	held map[uint16]bool
	caps bool
}

func (s *evdevState) translate(code uint16, value int32) input.KeyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = make(map[uint16]bool)
	}

	down := value != keyRelease
	ev := input.KeyEvent{Name: input.EvdevName(code), Down: down}

	switch code {
	case input.EvKeyLeftShift, input.EvKeyRightShift,
		input.EvKeyLeftCtrl, input.EvKeyRightCtrl,
		input.EvKeyLeftAlt, input.EvKeyRightAlt,
		input.EvKeyLeftMeta, input.EvKeyRightMeta:
		s.held[code] = down
		return ev
	case input.EvKeyCapsLock:
		if value == 1 {
			s.caps = !s.caps
		}
		return ev
	case input.EvKeyBackspace:
		ev.Kind = input.KeyBackspace
		return ev
	case input.EvKeyEnter, input.EvKeyKPEnter:
		ev.Kind = input.KeyEnter
		return ev
	case input.EvKeySpace:
		ev.Kind = input.KeySpace
		return ev
	}

	if s.held[input.EvKeyLeftCtrl] || s.held[input.EvKeyRightCtrl] ||
		s.held[input.EvKeyLeftAlt] ||
		s.held[input.EvKeyLeftMeta] || s.held[input.EvKeyRightMeta] {
		return ev
	}
	shift := s.held[input.EvKeyLeftShift] || s.held[input.EvKeyRightShift]
	if r, ok := input.EvdevRune(code, shift, s.caps); ok {
		ev.Kind = input.KeyChar
		ev.Char = r
	}
	return ev
}

// parseKeyboards returns the event device of every keyboard listed in
// /proc/bus/input/devices, skipping the device named skip.
func parseKeyboards(r io.Reader, skip string) []string {
	var devices []string
	var name, handler string
	var evBits uint64
	kbd := false

	flush := func() {
		isKeyboard := kbd && evBits&(1<<evKeyBit) != 0 && evBits&(1<<evRepBit) != 0
		if isKeyboard && handler != "" && name != skip {
			devices = append(devices, "/dev/input/"+handler)
		}
		name, handler, evBits, kbd = "", "", 0, false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "N: Name="):
			name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)
		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				switch {
				case part == "kbd":
					kbd = true
				case strings.HasPrefix(part, "event"):
					handler = part
				}
			}
		case strings.HasPrefix(line, "B: EV="):
			evBits, _ = strconv.ParseUint(strings.TrimPrefix(line, "B: EV="), 16, 64)
		case line == "":
			flush()
		}
	}
	flush()
	return devices
}
