// Package assets is the single source of truth for whether a model variant's
// file is present and complete on disk. Files are named by the variant's
// catalog file name inside one data directory; in-progress downloads live next
// to them with a ".partial" suffix so materialization is a same-volume rename.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mindbridge/internal/common/fsutil"
	"mindbridge/pkg/types"
)

// PartialSuffix marks temp files of in-progress downloads.
const PartialSuffix = ".partial"

// Store resolves and materializes variant files. It holds no mutable state
// besides the filesystem and is safe for concurrent use.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. A leading '~' is expanded.
func New(dir string) (*Store, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute data directory.
func (s *Store) Dir() string { return s.dir }

// Prepare creates the data directory if missing.
func (s *Store) Prepare() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return ioFailureError{op: "prepare", err: err}
	}
	return nil
}

// Path returns where v lives once materialized.
func (s *Store) Path(v types.ModelVariant) string {
	return filepath.Join(s.dir, filepath.Base(v.FileName))
}

// TempPath returns the download staging path for v.
func (s *Store) TempPath(v types.ModelVariant) string {
	return s.Path(v) + PartialSuffix
}

// Resolve returns the file path of v if it exists and is non-empty.
func (s *Store) Resolve(v types.ModelVariant) (string, bool) {
	if v.FileName == "" {
		return "", false
	}
	p := s.Path(v)
	if !fsutil.NonEmptyFile(p) {
		return "", false
	}
	return p, true
}

// Materialize atomically moves a completed temp file into v's final location.
// The temp file must sit in the data directory so the rename never crosses volumes.
func (s *Store) Materialize(v types.ModelVariant, tempPath string) error {
	if filepath.Clean(filepath.Dir(tempPath)) != s.dir {
		return ioFailureError{op: "materialize", err: fmt.Errorf("temp file %s is outside %s", tempPath, s.dir)}
	}
	fi, err := os.Stat(tempPath)
	if err != nil {
		return ioFailureError{op: "materialize", err: err}
	}
	if !fi.Mode().IsRegular() || fi.Size() == 0 {
		return ioFailureError{op: "materialize", err: errors.New("temp file is empty")}
	}
	if err := os.Rename(tempPath, s.Path(v)); err != nil {
		return ioFailureError{op: "materialize", err: err}
	}
	// Rename already happened; a failed dir sync only weakens crash durability.
	_ = fsutil.SyncDir(s.dir)
	return nil
}

// Delete removes v's materialized file.
func (s *Store) Delete(v types.ModelVariant) error {
	p := s.Path(v)
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFoundError{path: p}
		}
		return ioFailureError{op: "delete", err: err}
	}
	return nil
}

// RemoveTemp deletes v's staging file if present.
func (s *Store) RemoveTemp(v types.ModelVariant) error {
	if err := os.Remove(s.TempPath(v)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioFailureError{op: "remove temp", err: err}
	}
	return nil
}

// TempSize returns the size of v's staging file, or 0 when absent.
func (s *Store) TempSize(v types.ModelVariant) int64 {
	fi, err := os.Stat(s.TempPath(v))
	if err != nil || !fi.Mode().IsRegular() {
		return 0
	}
	return fi.Size()
}
