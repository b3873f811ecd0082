//go:build linux

package hook

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptman/internal/input"
)

const procSample = `I: Bus=0019 Vendor=0000 Product=0001 Version=0000
N: Name="Power Button"
P: Phys=PNP0C0C/button/input0
H: Handlers=kbd event0
B: PROP=0
B: EV=3
B: KEY=10000000000000 0

I: Bus=0011 Vendor=0001 Product=0001 Version=ab41
N: Name="AT Translated Set 2 keyboard"
P: Phys=isa0060/serio0/input0
H: Handlers=sysrq kbd event3 leds
B: PROP=0
B: EV=120013
B: KEY=402000000 3803078f800d001 feffffdfffefffff fffffffffffffffe

I: Bus=0003 Vendor=046d Product=c52b Version=0111
N: Name="Logitech USB Receiver Mouse"
H: Handlers=mouse0 event5
B: EV=17

I: Bus=0003 Vendor=1209 Product=5052 Version=0001
N: Name="promptman virtual keyboard"
H: Handlers=sysrq kbd event9 leds
B: EV=120013
`

func TestParseKeyboards(t *testing.T) {
	got := parseKeyboards(strings.NewReader(procSample), input.DeviceName)
	assert.Equal(t, []string{"/dev/input/event3"}, got)
}

func TestParseKeyboardsIncludesVirtualWhenNotSkipped(t *testing.T) {
	got := parseKeyboards(strings.NewReader(procSample), "")
	assert.Equal(t, []string{"/dev/input/event3", "/dev/input/event9"}, got)
}

func TestEvdevTranslate(t *testing.T) {
	s := &evdevState{}

	ev := s.translate(30, 1) // a
	assert.Equal(t, input.KeyChar, ev.Kind)
	assert.Equal(t, 'a', ev.Char)
	assert.Equal(t, "A", ev.Name)

	s.translate(input.EvKeyLeftShift, 1)
	ev = s.translate(2, 1) // !
	assert.Equal(t, '!', ev.Char)
	s.translate(input.EvKeyLeftShift, 0)

	s.translate(input.EvKeyCapsLock, 1)
	s.translate(input.EvKeyCapsLock, 0)
	assert.Equal(t, 'A', s.translate(30, 1).Char)
	assert.Equal(t, '1', s.translate(2, 1).Char)
	s.translate(input.EvKeyCapsLock, 1)

	s.translate(input.EvKeyLeftCtrl, 1)
	ev = s.translate(46, 1) // ctrl+c
	assert.Equal(t, input.KeyOther, ev.Kind)
	assert.Equal(t, "C", ev.Name)
	s.translate(input.EvKeyLeftCtrl, 0)

	assert.Equal(t, input.KeyBackspace, s.translate(input.EvKeyBackspace, 2).Kind)
	assert.Equal(t, input.KeyEnter, s.translate(input.EvKeyKPEnter, 1).Kind)
	assert.Equal(t, input.KeySpace, s.translate(input.EvKeySpace, 1).Kind)

	release := s.translate(30, 0)
	assert.False(t, release.Down)
}

func TestReadKeyEvents(t *testing.T) {
	var raw bytes.Buffer
	for _, ev := range []inputEvent{
		{Type: 4, Code: 4, Value: 458756}, // EV_MSC scan code
		{Type: evKey, Code: 30, Value: 1},
		{Type: 0, Code: 0, Value: 0}, // SYN_REPORT
		{Type: evKey, Code: 30, Value: 0},
	} {
		require.NoError(t, binary.Write(&raw, binary.NativeEndian, ev))
	}
	assert.Equal(t, 4*binary.Size(inputEvent{}), raw.Len())

	type keyEvent struct {
		code  uint16
		value int32
	}
	var got []keyEvent
	err := readKeyEvents(&raw, func(code uint16, value int32) {
		got = append(got, keyEvent{code, value})
	})
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []keyEvent{{30, 1}, {30, 0}}, got)
}
