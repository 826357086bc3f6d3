package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/carnival/internal/logger"
)

// Uninstall removes an install root recursively. A missing directory is not an error.
func Uninstall(ctx context.Context, installPath string) error {
	if installPath == "" {
		return fmt.Errorf("empty install path: %w", ErrUnsafePath)
	}

	path, err := filepath.Abs(installPath)
	if err != nil {
		return &DirectoryRemoveError{Path: installPath, Err: err}
	}

	if filepath.Dir(path) == path {
		return fmt.Errorf("%s is a filesystem root: %w", path, ErrUnsafePath)
	}

	if home, homeErr := os.UserHomeDir(); homeErr == nil && filepath.Clean(home) == path {
		return fmt.Errorf("%s is the home directory: %w", path, ErrUnsafePath)
	}

	logger.InfoKV(ctx, "Removing install directory", "path", path)

	if err = os.RemoveAll(path); err != nil {
		return &DirectoryRemoveError{Path: path, Err: err}
	}

	return nil
}
