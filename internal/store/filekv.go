package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileKV is a directory-backed key-value store: one file per (domain, key).
// Writes go through a temp file that is fsynced and renamed into place, so
// a reader never observes a partial value, even after a crash.
type FileKV struct {
	dir string
}

// NewFileKV returns a FileKV rooted at dir, creating it if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(domain, key string) (string, error) {
	for _, part := range []string{domain, key} {
		if part == "" || strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return "", fmt.Errorf("invalid store key %q.%q", domain, key)
		}
	}
	return filepath.Join(f.dir, domain+"."+key), nil
}

// Read returns the value stored under (domain, key).
func (f *FileKV) Read(domain, key string) (string, bool, error) {
	p, err := f.path(domain, key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s.%s: %w", domain, key, err)
	}
	return string(data), true, nil
}

// Write stores value under (domain, key); nil removes the file.
func (f *FileKV) Write(domain, key string, value *string) error {
	p, err := f.path(domain, key)
	if err != nil {
		return err
	}

	if value == nil {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear %s.%s: %w", domain, key, err)
		}
		return syncDir(f.dir)
	}

	tmp, err := os.CreateTemp(f.dir, "."+domain+"."+key+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(*value); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return syncDir(f.dir)
}

// syncDir flushes directory metadata so a rename or unlink is durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open store directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("failed to sync store directory: %w", err)
	}
	return nil
}
