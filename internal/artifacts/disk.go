package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"fairweather/internal/types"
)

// DiskStore persists artifacts as gzipped JSON, one file per
// (location, category):
//
//	<root>/<location_key>/<category>.json.gz
//
// Writes go through a temp file and an atomic rename so a concurrent reader
// can never observe a half-written artifact. Unreadable or corrupt files
// are reported as absent, logged, and superseded by the next successful
// training run.
type DiskStore struct {
	root   string
	logger *slog.Logger
}

// NewDiskStore creates the artifact directory if needed and returns a store.
func NewDiskStore(root string, logger *slog.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to create artifact directory", err)
	}
	return &DiskStore{root: root, logger: logger}, nil
}

// keyDir sanitizes a location key into a directory name. Location keys are
// "lat,lon"; the comma is replaced so keys stay portable across filesystems.
func (s *DiskStore) keyDir(key string) string {
	return filepath.Join(s.root, strings.ReplaceAll(key, ",", "_"))
}

func (s *DiskStore) path(key string, cat types.Category) string {
	return filepath.Join(s.keyDir(key), string(cat)+".json.gz")
}

// Save persists one artifact atomically.
func (s *DiskStore) Save(a *Artifact) error {
	dir := s.keyDir(a.LocationKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to create artifact location directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+string(a.Category)+".tmp-*")
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to create artifact temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		tmp.Close()
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to encode artifact", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to compress artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to flush artifact temp file", err)
	}

	if err := os.Rename(tmpName, s.path(a.LocationKey, a.Category)); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to commit artifact file", err)
	}
	return nil
}

// Load reads one artifact. A missing, unreadable, or corrupt file returns
// (nil, nil): corrupt artifacts are absent, never fatal.
func (s *DiskStore) Load(key string, cat types.Category) (*Artifact, error) {
	f, err := os.Open(s.path(key, cat))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		s.logger.Warn("artifact file unreadable, treating as absent",
			"location_key", key,
			"category", string(cat),
			"error", err,
		)
		return nil, nil
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		s.logger.Warn("artifact file corrupt, treating as absent",
			"location_key", key,
			"category", string(cat),
			"error", err,
		)
		return nil, nil
	}
	defer zr.Close()

	var a Artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		s.logger.Warn("artifact payload corrupt, treating as absent",
			"location_key", key,
			"category", string(cat),
			"error", err,
		)
		return nil, nil
	}

	// A decoded artifact that does not match its file location is corrupt.
	if a.LocationKey != key || a.Category != cat {
		s.logger.Warn("artifact identity mismatch, treating as absent",
			"location_key", key,
			"category", string(cat),
			"stored_key", a.LocationKey,
		)
		return nil, nil
	}

	return &a, nil
}

// LoadAll reads every category artifact present for a location.
func (s *DiskStore) LoadAll(key string) (map[types.Category]*Artifact, error) {
	out := make(map[types.Category]*Artifact)
	for _, cat := range types.Categories() {
		a, err := s.Load(key, cat)
		if err != nil {
			return nil, err
		}
		if a != nil {
			out[cat] = a
		}
	}
	return out, nil
}

// Delete removes every artifact for a location. Used when a location's
// models are explicitly discarded.
func (s *DiskStore) Delete(key string) error {
	if err := os.RemoveAll(s.keyDir(key)); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage,
			fmt.Sprintf("failed to delete artifacts for %s", key), err)
	}
	return nil
}
