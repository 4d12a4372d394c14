// Package kvstore implements the directory-as-map persistent store that
// backs every queue: one file per record, named so that lexicographic
// filename order equals insertion order.
//
// All mutations are rename-into-place or single-file overwrites, which are
// atomic on any filesystem this package is expected to run on. Readers
// tolerate a directory listing racing a concurrent writer: a file that
// disappears between List and Get is not an error, it is reported as such
// to the caller so list-style commands can skip it.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNotFound is returned by Get when the named key does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a directory-backed map from Key to an opaque serialized record.
type Store struct {
	dir string
}

// Open ensures dir exists and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store is rooted at.
func (s *Store) Dir() string { return s.dir }

// Insert writes data under the given key, failing if the key already exists.
// Callers mint fresh keys via job.NewKey, so collisions should not occur;
// Insert still refuses to silently clobber an existing file.
func (s *Store) Insert(key string, data []byte) error {
	path := s.path(key)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("kvstore: write temp for %s: %w", key, err)
	}

	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("kvstore: key %s already exists", key)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("kvstore: rename into place for %s: %w", key, err)
	}
	return nil
}

// Put overwrites the record at key, creating it if absent. Used when
// persisting a job's updated state back into the same queue.
func (s *Store) Put(key string, data []byte) error {
	path := s.path(key)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("kvstore: write temp for %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("kvstore: rename into place for %s: %w", key, err)
	}
	return nil
}

// Get reads the record at key.
func (s *Store) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("kvstore: read %s: %w", key, err)
	}
	return data, nil
}

// Remove deletes the record at key. Removing an absent key is not an error,
// matching the tolerant-reader posture described in spec §5.
func (s *Store) Remove(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("kvstore: remove %s: %w", key, err)
	}
	return nil
}

// List returns all keys currently present, in ascending (= insertion) order.
// Temp files from in-flight writes are filtered out.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("kvstore: list %s: %w", s.dir, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) == ".tmp" {
			continue
		}
		keys = append(keys, name)
	}

	sort.Strings(keys)
	return keys, nil
}

// MoveTo relocates the record at key from s into other, atomically when both
// stores share a filesystem (os.Rename), falling back to copy-then-remove
// across filesystem boundaries.
func (s *Store) MoveTo(other *Store, key string) error {
	src := s.path(key)
	dst := other.path(key)

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("kvstore: move %s: read source: %w", key, err)
	}
	if err := other.Put(key, data); err != nil {
		return fmt.Errorf("kvstore: move %s: write destination: %w", key, err)
	}
	if err := s.Remove(key); err != nil {
		return fmt.Errorf("kvstore: move %s: remove source: %w", key, err)
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}
