package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/manifest"
)

// intact reports whether path already holds the entry's content.
func (o *Orchestrator) intact(path string, entry *manifest.Entry) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() != entry.Size {
		return false
	}

	res, err := o.verifier.VerifyFile(path, entry.Digest)

	return err == nil && res.Match
}

// materialize writes entry to path chunk by chunk and verifies the whole file.
// An existing file is truncated and rewritten.
func (o *Orchestrator) materialize(ctx context.Context, path string, entry *manifest.Entry, mode os.FileMode) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	for _, chunk := range entry.Chunks {
		if err = o.fetcher.Fetch(ctx, chunk, f); err != nil {
			_ = f.Close()

			return err
		}
	}

	// Sparse tails and zero-size files get their declared length here.
	if err = f.Truncate(entry.Size); err != nil {
		_ = f.Close()

		return fmt.Errorf("truncate: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	res, err := o.verifier.VerifyFile(path, entry.Digest)
	if err != nil {
		return err
	}

	if !res.Match {
		return fmt.Errorf("expected %s, got %s: %w", entry.Digest, res.Actual, ErrFileDigestMismatch)
	}

	logger.DebugKV(ctx, "File ready", "path", entry.Path, "size", entry.Size)

	return nil
}

// placeEntry materialises entry under root unless an intact copy is already there.
// It reports whether the entry was skipped.
func (o *Orchestrator) placeEntry(
	ctx context.Context,
	root string,
	entry *manifest.Entry,
	mode os.FileMode,
	tr *tracker,
) (bool, error) {
	target := entry.LocalPath(root)

	if err := tr.mkdirAll(filepath.Dir(target)); err != nil {
		return false, err
	}

	_, err := os.Lstat(target)

	switch {
	case err == nil:
		if o.intact(target, entry) {
			logger.DebugKV(ctx, "File already intact", "path", entry.Path)
			return true, nil
		}
	case errors.Is(err, fs.ErrNotExist):
		tr.createdFile(target)
	default:
		return false, fmt.Errorf("stat: %w", err)
	}

	return false, o.materialize(ctx, target, entry, mode)
}

// modeFor returns the permissions of a manifest entry; the entry point is executable.
func modeFor(entry *manifest.Entry, executable string) os.FileMode {
	if executable != "" && filepath.ToSlash(filepath.Clean(filepath.FromSlash(executable))) == entry.Path {
		return execPermissions
	}

	return filePermissions
}

// collectFailures pairs per-index errors with their entries.
func collectFailures(entries []manifest.Entry, errs []error) []EntryError {
	var failed []EntryError

	for i, err := range errs {
		if err != nil {
			failed = append(failed, EntryError{Path: entries[i].Path, Err: err})
		}
	}

	return failed
}
