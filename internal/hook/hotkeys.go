package hook

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Hotkeys matches global key chords such as "Ctrl+Alt+P".
type Hotkeys struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // keys currently held
	log          *zap.Logger
}

type registeredHotkey struct {
	parts    []string // e.g. ["CTRL", "ALT", "P"]
	original string
	callback func()
	fired    bool // suppresses auto-repeat until the chord is released
}

// NewHotkeys creates an empty chord matcher.
func NewHotkeys(log *zap.Logger) *Hotkeys {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hotkeys{
		currentState: make(map[string]bool),
		log:          log,
	}
}

// Register adds a chord (e.g. "Ctrl+Alt+P") and its callback. An empty
// chord is ignored.
func (h *Hotkeys) Register(chord string, callback func()) {
	if chord == "" {
		return
	}
	parts := strings.Split(strings.ToUpper(chord), "+")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.hotkeys = append(h.hotkeys, &registeredHotkey{
		parts:    parts,
		original: chord,
		callback: callback,
	})
}

// Clear removes all chords.
func (h *Hotkeys) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hotkeys = nil
}

// UpdateState records a key transition and fires chords that became complete.
func (h *Hotkeys) UpdateState(key string, isDown bool) {
	if key == "" {
		return
	}
	key = strings.ToUpper(key)

	h.mu.Lock()
	if isDown {
		h.currentState[key] = true
	} else {
		delete(h.currentState, key)
	}

	var fire []*registeredHotkey
	for _, hk := range h.hotkeys {
		held := true
		for _, part := range hk.parts {
			if !h.currentState[part] {
				held = false
				break
			}
		}
		switch {
		case held && isDown && !hk.fired:
			hk.fired = true
			fire = append(fire, hk)
		case !held:
			hk.fired = false
		}
	}
	h.mu.Unlock()

	for _, hk := range fire {
		h.log.Info("Hotkey triggered", zap.String("hotkey", hk.original))
		go hk.callback()
	}
}
