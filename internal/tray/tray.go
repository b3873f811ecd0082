// Package tray provides the system tray menu using getlantern/systray.
package tray

import (
	"encoding/binary"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"
)

// Actions are invoked from the tray's click loop.
type Actions struct {
	// SetPaused applies the requested pause state.
	SetPaused func(paused bool)
	// OpenSettings opens the settings page.
	OpenSettings func()
	// Quit is called once when the user picks Quit.
	Quit func()
}

// Tray manages the system tray icon and menu
type Tray struct {
	tooltip string
	actions Actions
	log     *zap.Logger

	mu        sync.Mutex
	paused    bool
	pauseItem *systray.MenuItem
	quitCh    chan struct{}
	quitOnce  sync.Once
}

// New creates a system tray menu.
func New(tooltip string, actions Actions, log *zap.Logger) *Tray {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tray{
		tooltip: tooltip,
		actions: actions,
		log:     log,
		quitCh:  make(chan struct{}),
	}
}

// Run starts the tray event loop and blocks until Stop. On macOS it must
// be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// SetPaused updates the menu to reflect a pause made elsewhere.
func (t *Tray) SetPaused(paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = paused
	if t.pauseItem != nil {
		t.pauseItem.SetTitle(pauseLabel(paused))
		systray.SetTooltip(tooltipFor(t.tooltip, paused))
	}
}

func (t *Tray) onExit() {
	t.quitOnce.Do(func() { close(t.quitCh) })
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("promptman")
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(icon())

	t.mu.Lock()
	t.pauseItem = systray.AddMenuItem(pauseLabel(t.paused), "Stop or resume text expansion")
	t.mu.Unlock()
	settings := systray.AddMenuItem("Settings…", "Open the settings page")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit promptman")

	// Handle clicks in goroutine
	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.mu.Lock()
				next := !t.paused
				t.mu.Unlock()
				if t.actions.SetPaused != nil {
					t.actions.SetPaused(next)
				}
				t.SetPaused(next)
			case <-settings.ClickedCh:
				if t.actions.OpenSettings != nil {
					t.actions.OpenSettings()
				}
			case <-quit.ClickedCh:
				t.log.Info("Quit requested from tray")
				if t.actions.Quit != nil {
					t.actions.Quit()
				}
				return
			case <-t.quitCh:
				return
			}
		}
	}()
}

func pauseLabel(paused bool) string {
	if paused {
		return "Resume expansions"
	}
	return "Pause expansions"
}

func tooltipFor(base string, paused bool) string {
	if paused {
		return base + " (paused)"
	}
	return base
}

const iconSize = 16

// icon renders a 16x16 32-bit ICO with a right-pointing arrow.
func icon() []byte {
	const (
		headerLen = 6 + 16
		dibLen    = 40
		pixelLen  = iconSize * iconSize * 4
		maskLen   = iconSize * 4 // 1bpp rows padded to 32 bits
	)
	buf := make([]byte, headerLen+dibLen+pixelLen+maskLen)

	// ICONDIR and one ICONDIRENTRY
	binary.LittleEndian.PutUint16(buf[2:], 1)
	binary.LittleEndian.PutUint16(buf[4:], 1)
	buf[6], buf[7] = iconSize, iconSize
	binary.LittleEndian.PutUint16(buf[10:], 1)
	binary.LittleEndian.PutUint16(buf[12:], 32)
	binary.LittleEndian.PutUint32(buf[14:], dibLen+pixelLen+maskLen)
	binary.LittleEndian.PutUint32(buf[18:], headerLen)

	// BITMAPINFOHEADER; height counts the XOR and AND masks
	dib := buf[headerLen:]
	binary.LittleEndian.PutUint32(dib[0:], dibLen)
	binary.LittleEndian.PutUint32(dib[4:], iconSize)
	binary.LittleEndian.PutUint32(dib[8:], iconSize*2)
	binary.LittleEndian.PutUint16(dib[12:], 1)
	binary.LittleEndian.PutUint16(dib[14:], 32)
	binary.LittleEndian.PutUint32(dib[20:], pixelLen)

	// BGRA rows, bottom-up
	pixels := dib[dibLen:]
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			if !inArrow(x, y) {
				continue
			}
			off := ((iconSize-1-y)*iconSize + x) * 4
			pixels[off+0] = 0xea // B
			pixels[off+1] = 0x7e // G
			pixels[off+2] = 0x66 // R
			pixels[off+3] = 0xff
		}
	}
	return buf
}

// inArrow reports whether (x, y) lies in a triangle pointing right.
func inArrow(x, y int) bool {
	const left, right = 3, 13
	if x < left || x > right {
		return false
	}
	half := (right - x) * 7 / (right - left)
	return y >= 8-half && y <= 7+half
}
