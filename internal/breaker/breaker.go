// Package breaker implements the persisted circuit breaker that guards the
// pipeline against hammering the warehouse with bad credentials. The open
// marker lives outside the warehouse on purpose: it must stay readable when
// warehouse auth is exactly what is broken.
package breaker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// State describes an open breaker.
type State struct {
	OpenedAt time.Time `json:"opened_at"`
	Reason   string    `json:"reason"`
}

// Store is the persisted breaker contract. Open and Close are idempotent,
// and state survives process restarts - separate scheduled runs of the
// pipeline observe each other through it.
type Store interface {
	// IsOpen reads the persisted state.
	IsOpen() (bool, error)

	// Open persists the open marker with a reason. No-op when already open.
	Open(reason string) error

	// Close removes the marker. No-op when already closed.
	Close() error

	// State returns the marker contents, or nil when the breaker is closed.
	State() (*State, error)
}

// FileStore persists the breaker as a small JSON marker file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed breaker at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// IsOpen reports whether the marker file exists.
func (s *FileStore) IsOpen() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat breaker marker: %w", err)
}

// Open writes the marker. An already-open breaker keeps its original
// opened-at and reason.
func (s *FileStore) Open(reason string) error {
	open, err := s.IsOpen()
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	data, err := json.Marshal(State{OpenedAt: time.Now().UTC(), Reason: reason})
	if err != nil {
		return fmt.Errorf("marshal breaker state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write breaker marker: %w", err)
	}
	return nil
}

// Close removes the marker file.
func (s *FileStore) Close() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove breaker marker: %w", err)
	}
	return nil
}

// State reads the marker contents. A marker written by hand (or by an older
// version) that is not valid JSON still counts as open, with an empty reason.
func (s *FileStore) State() (*State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read breaker marker: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return &State{}, nil
	}
	return &st, nil
}
