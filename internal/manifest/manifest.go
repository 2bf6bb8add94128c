// Package manifest persists the path -> digest mapping that records the last
// successfully indexed state of every document.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/renameio"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

// Manifest maps a document path to the hex digest it had when last indexed.
type Manifest map[string]string

// Clone returns an independent copy.
func (m Manifest) Clone() Manifest {
	if m == nil {
		return Manifest{}
	}
	return maps.Clone(m)
}

// Paths returns the manifest keys in sorted order.
func (m Manifest) Paths() []string {
	return slices.Sorted(maps.Keys(m))
}

// Equal reports whether both manifests hold the same entries.
func (m Manifest) Equal(other Manifest) bool {
	return maps.Equal(m, other)
}

// Store reads and writes a manifest file.
type Store struct {
	path string
}

// NewStore returns a Store for the manifest at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the manifest file path.
func (s *Store) Path() string { return s.path }

// Load returns the saved manifest. A missing or empty file is the first-run
// state and yields an empty manifest.
func (s *Store) Load() (Manifest, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Manifest{}, nil
	}
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeReadFailed, fmt.Sprintf("read manifest %s", s.path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Manifest{}, nil
	}

	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, rerrors.New(rerrors.ErrCodeManifestCorrupt, fmt.Sprintf("parse manifest %s", s.path), err).
			WithSuggestion("run `tfrag index --rebuild` to recreate the index and manifest")
	}
	return m, nil
}

// Save replaces the manifest atomically: readers see either the previous
// file or the new one, never a partial write.
func (s *Store) Save(m Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return rerrors.ManifestPersistError(s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return rerrors.ManifestPersistError(s.path, err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return rerrors.ManifestPersistError(s.path, err)
	}
	return nil
}

// Encode renders m as indented JSON with sorted keys, so equal manifests
// encode to identical bytes.
func Encode(m Manifest) ([]byte, error) {
	if m == nil {
		m = Manifest{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
