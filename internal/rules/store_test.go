package rules

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct {
	err error
}

func (f failingBackend) Load() ([]Rule, error) { return nil, f.err }
func (f failingBackend) Save([]Rule) error     { return f.err }

func TestStoreAddKeepsInsertionOrder(t *testing.T) {
	s := NewStore(nil, nil)
	require.NoError(t, s.Add(Rule{Shortcut: "b", Text: "B"}))
	require.NoError(t, s.Add(Rule{Shortcut: "a", Text: "A"}))
	require.NoError(t, s.Add(Rule{Shortcut: "b", Text: "B2"}))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].Shortcut)
	assert.Equal(t, "B2", snap[0].Text)
	assert.Equal(t, "a", snap[1].Shortcut)
}

func TestStoreRejectsWhitespaceShortcut(t *testing.T) {
	s := NewStore(nil, nil)
	err := s.Add(Rule{Shortcut: "my sig", Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidShortcut)
	assert.Equal(t, 0, s.Len())
}

func TestStoreDelete(t *testing.T) {
	s := NewStore(nil, nil)
	require.NoError(t, s.Add(Rule{Shortcut: "a", Text: "A"}))
	require.NoError(t, s.Add(Rule{Shortcut: "b", Text: "B"}))

	require.NoError(t, s.Delete("a"))
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
}

func TestStoreSnapshotIsolatedFromLaterWrites(t *testing.T) {
	s := NewStore(nil, nil)
	require.NoError(t, s.Add(Rule{Shortcut: "a", Text: "A"}))
	snap := s.Snapshot()

	require.NoError(t, s.Add(Rule{Shortcut: "a", Text: "changed"}))
	require.NoError(t, s.Delete("a"))

	require.Len(t, snap, 1)
	assert.Equal(t, "A", snap[0].Text)
}

func TestStoreConcurrentAdds(t *testing.T) {
	backend := NewFileBackend(filepath.Join(t.TempDir(), "prompts.json"))
	s := NewStore(backend, nil)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Add(Rule{Shortcut: fmt.Sprintf("k%d", i), Text: "v"}))
		}()
	}
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
	persisted, err := backend.Load()
	require.NoError(t, err)
	assert.Len(t, persisted, 10)
}

func TestStoreSaveFailureLeavesRulesUnchanged(t *testing.T) {
	boom := errors.New("disk full")
	s := NewStore(failingBackend{err: boom}, nil)

	err := s.Add(Rule{Shortcut: "a", Text: "A"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())
}

func TestStoreLoadMalformedIsEmpty(t *testing.T) {
	boom := errors.New("bad json")
	s := NewStore(failingBackend{err: boom}, nil)

	err := s.Load()
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Snapshot())
}

// switchableBackend fails Load while broken is set.
type switchableBackend struct {
	rules  []Rule
	broken bool
}

func (b *switchableBackend) Load() ([]Rule, error) {
	if b.broken {
		return nil, errors.New("decode rules: unexpected EOF")
	}
	return b.rules, nil
}

func (b *switchableBackend) Save(rules []Rule) error {
	b.rules = rules
	b.broken = false
	return nil
}

func TestStoreReloadKeepsRulesOnError(t *testing.T) {
	backend := &switchableBackend{rules: []Rule{{Shortcut: "a", Text: "A"}, {Shortcut: "b", Text: "B"}}}
	s := NewStore(backend, nil)
	require.NoError(t, s.Load())

	backend.broken = true
	assert.Error(t, s.Reload())
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Add(Rule{Shortcut: "c", Text: "C"}))
	assert.Len(t, backend.rules, 3)

	backend.rules = []Rule{{Shortcut: "z", Text: "Z"}}
	require.NoError(t, s.Reload())
	assert.Equal(t, []Rule{{Shortcut: "z", Text: "Z"}}, s.Snapshot())
}

func TestStoreLoadSkipsInvalidRules(t *testing.T) {
	backend := NewFileBackend(filepath.Join(t.TempDir(), "prompts.json"))
	require.NoError(t, backend.Save([]Rule{
		{Shortcut: "ok", Text: "fine"},
		{Shortcut: "not ok", Text: "skipped"},
	}))

	s := NewStore(backend, nil)
	require.NoError(t, s.Load())
	require.Len(t, s.Snapshot(), 1)
	assert.Equal(t, "ok", s.Snapshot()[0].Shortcut)
}

func TestStoreReplace(t *testing.T) {
	s := NewStore(nil, nil)
	require.NoError(t, s.Add(Rule{Shortcut: "old", Text: "x"}))

	var notified []Rule
	s.OnChange(func(r []Rule) { notified = r })

	require.NoError(t, s.Replace([]Rule{
		{Shortcut: "x", Text: "1"},
		{Shortcut: "y", Text: "2"},
		{Shortcut: "x", Text: "3"},
	}))
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "3", snap[0].Text)
	assert.Equal(t, snap, notified)

	err := s.Replace([]Rule{{Shortcut: "a b", Text: "bad"}})
	assert.ErrorIs(t, err, ErrInvalidShortcut)
	assert.Len(t, s.Snapshot(), 2)
}
