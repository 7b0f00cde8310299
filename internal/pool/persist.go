package pool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cognitoemu/cognito-emu/internal/clockid"
)

// Load reads a pool's persisted JSON document from path and rebuilds
// its indexes. If path does not exist, ErrNotExist-style (os.IsNotExist)
// is returned so callers (the facade) can decide whether to create a
// fresh pool instead.
func Load(path string, clock clockid.Clock) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("pool: decode %s: %w", path, err)
	}
	if doc.Users == nil {
		doc.Users = map[string]*User{}
	}
	if doc.Groups == nil {
		doc.Groups = map[string]*Group{}
	}
	if doc.Clients == nil {
		doc.Clients = map[string]*AppClient{}
	}
	if clock == nil {
		clock = clockid.System{}
	}
	s := &Store{doc: doc, path: path, clock: clock}
	s.rebuildIndexesLocked()
	return s, nil
}

// persistLocked serializes the store to its backing file, writing to a
// temp file in the same directory and renaming over the destination so
// that a reader never observes a partially-written document — the
// "flushed after each mutating operation" discipline of spec.md §1/§4.2.
// Called with mu already held.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("pool: encode %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pool: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".pool-*.tmp")
	if err != nil {
		return fmt.Errorf("pool: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("pool: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("pool: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pool: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("pool: rename into place: %w", err)
	}
	return nil
}
