// Package prefs provides a durable PreferenceStore backed by a small JSON
// file. The lifecycle guard needs its storage-initialized marker to outlive
// the secure store, so hosts point this at a path whose lifetime matches the
// installation (an application support directory, not a cache).
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goliatone/go-mfa/core"
)

// FileStore persists boolean markers as a flat JSON object. Writes go through
// a temp file and rename so a crash mid-write never leaves a truncated file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("prefs: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("prefs: create preference directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) GetBool(_ context.Context, key string) (bool, bool, error) {
	if s == nil {
		return false, false, fmt.Errorf("prefs: file store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return false, false, err
	}
	value, present := values[key]
	return value, present, nil
}

func (s *FileStore) SetBool(_ context.Context, key string, value bool) error {
	if s == nil {
		return fmt.Errorf("prefs: file store is required")
	}
	if strings.TrimSpace(key) == "" {
		return core.NewInvalidParameterError("prefs: preference key must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = value
	return s.write(values)
}

func (s *FileStore) read() (map[string]bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: read %s: %w", s.path, err)
	}
	values := map[string]bool{}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("prefs: decode %s: %w", s.path, err)
	}
	return values, nil
}

func (s *FileStore) write(values map[string]bool) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("prefs: encode preferences: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".prefs-*")
	if err != nil {
		return fmt.Errorf("prefs: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("prefs: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("prefs: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("prefs: replace %s: %w", s.path, err)
	}
	return nil
}

var _ core.PreferenceStore = (*FileStore)(nil)
