package usage

import (
	"slices"
	"sync"
	"time"
)

// Entry is the usage history of one shortcut.
type Entry struct {
	Shortcut string    `json:"shortcut"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// Tracker keeps the most recently used shortcuts, newest first.
type Tracker struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
	now     func() time.Time
	onUse   func(Entry)
}

// NewTracker keeps at most limit shortcuts.
func NewTracker(limit int) *Tracker {
	if limit <= 0 {
		limit = 10
	}
	return &Tracker{limit: limit, now: time.Now}
}

// OnUse registers a callback run after every Record.
func (t *Tracker) OnUse(fn func(Entry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUse = fn
}

// Record moves shortcut to the front and bumps its count.
func (t *Tracker) Record(shortcut string) Entry {
	t.mu.Lock()
	e := Entry{Shortcut: shortcut}
	if i := slices.IndexFunc(t.entries, func(e Entry) bool { return e.Shortcut == shortcut }); i >= 0 {
		e = t.entries[i]
		t.entries = slices.Delete(t.entries, i, i+1)
	}
	e.Count++
	e.LastUsed = t.now()
	t.entries = slices.Insert(t.entries, 0, e)
	if len(t.entries) > t.limit {
		t.entries = t.entries[:t.limit]
	}
	fn := t.onUse
	t.mu.Unlock()

	if fn != nil {
		fn(e)
	}
	return e
}

// Notify records shortcut. It makes a Tracker usable as a Notifier.
func (t *Tracker) Notify(shortcut string) {
	t.Record(shortcut)
}

// Recent returns the tracked shortcuts, newest first.
func (t *Tracker) Recent() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}
