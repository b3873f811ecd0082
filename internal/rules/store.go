package rules

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Backend persists the ordered rule set.
type Backend interface {
	Load() ([]Rule, error)
	Save(rules []Rule) error
}

// Store is the process-wide rule set. Mutations are serialized and persisted
// before they become visible; readers load an immutable snapshot without
// blocking on writers.
type Store struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]Rule]
	backend  Backend
	log      *zap.Logger

	listenersMu sync.Mutex
	listeners   []func([]Rule)
}

// NewStore creates a store backed by backend. A nil backend keeps rules in memory only.
func NewStore(backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{backend: backend, log: log}
	empty := []Rule{}
	s.snapshot.Store(&empty)
	return s
}

// Load replaces the in-memory rules with the backend contents. Malformed or
// invalid stored data leaves the store empty and is reported.
func (s *Store) Load() error {
	if s.backend == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.read()
	if err != nil {
		s.publish([]Rule{})
		return err
	}
	s.publish(loaded)
	s.log.Info("Rules loaded", zap.Int("count", len(loaded)))
	return nil
}

// Reload re-reads the backend after an external edit. Unlike Load, a backend
// that cannot be read keeps the current rules, so a half-saved file never
// becomes the base of the next write.
func (s *Store) Reload() error {
	if s.backend == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.read()
	if err != nil {
		return err
	}
	s.publish(loaded)
	return nil
}

// read loads and validates the backend contents. Callers hold s.mu.
func (s *Store) read() ([]Rule, error) {
	loaded, err := s.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	valid := make([]Rule, 0, len(loaded))
	for _, r := range loaded {
		if err := r.Validate(); err != nil {
			s.log.Warn("Skipping stored rule", zap.String("shortcut", r.Shortcut), zap.Error(err))
			continue
		}
		valid = append(valid, r)
	}
	return valid, nil
}

// Snapshot returns the rules in registration order. The slice is shared and
// must not be modified.
func (s *Store) Snapshot() []Rule {
	return *s.snapshot.Load()
}

// Len returns the number of rules.
func (s *Store) Len() int {
	return len(s.Snapshot())
}

// Get returns the rule for shortcut.
func (s *Store) Get(shortcut string) (Rule, bool) {
	for _, r := range s.Snapshot() {
		if r.Shortcut == shortcut {
			return r, true
		}
	}
	return Rule{}, false
}

// Add inserts a rule, or replaces the rule with the same shortcut in place.
func (s *Store) Add(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	next := make([]Rule, 0, len(cur)+1)
	replaced := false
	for _, r := range cur {
		if r.Shortcut == rule.Shortcut {
			r = rule
			replaced = true
		}
		next = append(next, r)
	}
	if !replaced {
		next = append(next, rule)
	}
	return s.commit(next)
}

// Delete removes the rule for shortcut.
func (s *Store) Delete(shortcut string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	i := slices.IndexFunc(cur, func(r Rule) bool { return r.Shortcut == shortcut })
	if i < 0 {
		return fmt.Errorf("%q: %w", shortcut, ErrNotFound)
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	return s.commit(next)
}

// Replace swaps the whole rule set. Every rule is validated first; nothing
// changes if any is invalid.
func (s *Store) Replace(rules []Rule) error {
	next := make([]Rule, 0, len(rules))
	index := make(map[string]int, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if i, ok := index[r.Shortcut]; ok {
			next[i] = r
			continue
		}
		index[r.Shortcut] = len(next)
		next = append(next, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(next)
}

// OnChange registers fn to receive the new snapshot after every change.
func (s *Store) OnChange(fn func([]Rule)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// commit persists next and publishes it. Callers hold s.mu.
func (s *Store) commit(next []Rule) error {
	if s.backend != nil {
		if err := s.backend.Save(next); err != nil {
			return fmt.Errorf("save rules: %w", err)
		}
	}
	s.publish(next)
	return nil
}

func (s *Store) publish(next []Rule) {
	s.snapshot.Store(&next)

	s.listenersMu.Lock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
}
