package installer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/carnival/internal/logger"
)

// tracker remembers what one call created so a failed call can undo it.
type tracker struct {
	mu sync.Mutex
	// dirs are created directories, parents before children.
	dirs []string
	// files are created files.
	files []string
}

// mkdirAll creates dir and its missing parents, recording each one.
func (t *tracker) mkdirAll(dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var missing []string

	for current := filepath.Clean(dir); ; {
		info, err := os.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return &DirectoryCreateError{Path: current, Err: errNotDirectory}
			}

			break
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return &DirectoryCreateError{Path: current, Err: err}
		}

		missing = append(missing, current)

		parent := filepath.Dir(current)
		if parent == current {
			break
		}

		current = parent
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], dirPermissions); err != nil && !errors.Is(err, fs.ErrExist) {
			return &DirectoryCreateError{Path: missing[i], Err: err}
		}

		t.dirs = append(t.dirs, missing[i])
	}

	return nil
}

// createdFile records a file that did not exist before the call.
func (t *tracker) createdFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.files = append(t.files, path)
}

// createdRoot reports whether root was created by this call.
func (t *tracker) createdRoot(root string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	root = filepath.Clean(root)
	for _, dir := range t.dirs {
		if dir == root {
			return true
		}
	}

	return false
}

// rollback removes created files, then created directories deepest first.
// Directories that still hold foreign content are left in place.
func (t *tracker) rollback(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, file := range t.files {
		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WarnKV(ctx, "Rollback could not remove file", "path", file, "error", err)
		}
	}

	for i := len(t.dirs) - 1; i >= 0; i-- {
		if err := os.Remove(t.dirs[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WarnKV(ctx, "Rollback could not remove directory", "path", t.dirs[i], "error", err)
		}
	}

	t.files, t.dirs = nil, nil
}
