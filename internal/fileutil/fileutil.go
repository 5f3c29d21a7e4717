// Package fileutil provides atomic file replacement helpers.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicFile is a temporary file created beside its destination. Commit
// renames it over the destination; Abort removes it. Exactly one of the two
// takes effect.
type AtomicFile struct {
	*os.File
	dst  string
	perm os.FileMode
	done bool
}

// CreateAtomic opens a temporary file in dst's directory, creating the
// directory when needed.
func CreateAtomic(dst string, perm os.FileMode) (*AtomicFile, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicFile{File: tmp, dst: dst, perm: perm}, nil
}

// Destination returns the path Commit replaces.
func (f *AtomicFile) Destination() string {
	return f.dst
}

// Commit flushes the temporary file and renames it over the destination.
// On failure the temporary file is removed.
func (f *AtomicFile) Commit() error {
	if f.done {
		return errors.New("atomic file already finished")
	}
	f.done = true
	tmpName := f.Name()
	if err := f.Chmod(f.perm); err != nil {
		f.File.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.File.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.File.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (f *AtomicFile) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.File.Close()
	os.Remove(f.Name())
}

// WriteFileAtomic replaces path with data so readers never observe a
// partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := CreateAtomic(path, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return fmt.Errorf("write temp file: %w", err)
	}
	return f.Commit()
}
