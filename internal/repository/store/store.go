package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFilePermissions restricts record files to the owner; cookies live here.
	DefaultFilePermissions = 0o600
	// DefaultDirPermissions is used when the configuration directory is created.
	DefaultDirPermissions = 0o700
)

// Store defines persistence operations for one record kind.
type Store[T any] interface {
	Load(ctx context.Context) (T, error)
	Store(ctx context.Context, value T) error
	Clear(ctx context.Context) error
}

// File persists a record as a YAML file on disk.
type File[T any] struct {
	// path is the filesystem location of the YAML file.
	path string
	// empty builds the value returned when nothing is stored.
	empty func() T
	// mu serialises access within the process.
	mu sync.Mutex
}

// NewFile creates a store at path. empty may be nil, in which case the zero value of T is used.
func NewFile[T any](path string, empty func() T) *File[T] {
	if empty == nil {
		empty = func() T {
			var zero T

			return zero
		}
	}

	return &File[T]{
		path:  filepath.Clean(path),
		empty: empty,
	}
}

// Path returns the file location.
func (f *File[T]) Path() string {
	return f.path
}

// Load reads the record. A missing or empty file yields the empty value.
func (f *File[T]) Load(_ context.Context) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	value := f.empty()

	contents, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return value, nil
		}

		return value, fmt.Errorf("read %s: %w", f.path, err)
	}

	if err = yaml.Unmarshal(contents, &value); err != nil {
		return f.empty(), fmt.Errorf("decode %s: %w", f.path, err)
	}

	return value, nil
}

// Store replaces the record on disk.
func (f *File[T]) Store(_ context.Context, value T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	return writeAtomic(f.path, data)
}

// Clear removes the record; a later Load returns the empty value.
func (f *File[T]) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear %s: %w", f.path, err)
	}

	return nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write %s: %w", tmpName, err)
	}

	if err = tmp.Chmod(DefaultFilePermissions); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
