package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend stores rules in a JSON object file compatible with the
// legacy prompts.json layout.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the file location.
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads the file. A missing file is an empty rule set.
func (b *FileBackend) Load() ([]Rule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return DecodeMap(data)
}

// Save writes the rules atomically through a temp file and rename.
func (b *FileBackend) Save(rules []Rule) error {
	data, err := EncodeMap(rules)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("create rules directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".prompts-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write rules: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace rules file: %w", err)
	}
	return nil
}
