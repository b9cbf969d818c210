package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists the binding document as a JSON file. The file is the
// source of truth and may also be edited out of process; Registry
// polls it for changes.
type Store struct {
	path string
}

// NewStore creates a store backed by the JSON file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the full binding document from disk.
//
// A missing file is not an error and yields an empty document, so a
// fresh deployment starts with no bindings. A malformed file also
// yields an empty document, with the parse error returned alongside so
// the caller can log it; service continues rather than crashing on a
// bad hand edit.
//
// Returns:
//   - document: Parsed bindings, never nil
//   - error: Parse error for a malformed file, nil otherwise
func (s *Store) Load() (document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return document{}, nil
		}
		return document{}, fmt.Errorf("read bindings file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("parse bindings file %s: %w", s.path, err)
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

// Save writes the document atomically: marshal to a temp file in the
// same directory, then rename over the target so readers never observe
// a partial write.
func (s *Store) Save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bindings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bindings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".bindings-*.json")
	if err != nil {
		return fmt.Errorf("create temp bindings file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp bindings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp bindings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace bindings file: %w", err)
	}
	return nil
}

// ModTime returns the file's last modification time, or the zero time
// if the file does not exist yet.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("stat bindings file: %w", err)
	}
	return info.ModTime(), nil
}
