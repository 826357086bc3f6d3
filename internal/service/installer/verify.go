package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/logger"
)

// VerifyReport is the integrity state of an installed product.
type VerifyReport struct {
	// OK is true when every file is present and intact.
	OK bool
	// Missing lists manifest paths absent from disk.
	Missing []string
	// Mismatched lists manifest paths whose size or digest differ, or that cannot be read.
	Mismatched []string
	// Checked is the number of manifest entries examined.
	Checked int
}

// fileState is the outcome of checking one file.
type fileState int

const (
	fileIntact fileState = iota
	fileMissing
	fileMismatched
)

// Verify re-hashes every file of the installed version. It never modifies the install.
func (o *Orchestrator) Verify(ctx context.Context, p product.Product, info product.InstallInfo) (*VerifyReport, error) {
	v, ok := p.FindVersion(info.Version, info.Platform)
	if !ok {
		return nil, fmt.Errorf("%s %s for %s: %w", p.Slug, info.Version, info.Platform, ErrVersionNotFound)
	}

	if stat, err := os.Stat(info.InstallPath); err != nil || !stat.IsDir() {
		return nil, fmt.Errorf("%s: install directory %s is missing: %w", p.Slug, info.InstallPath, ErrNotInstalled)
	}

	ctx = logger.WithKV(ctx, "slug", p.Slug, "version", v.Version)

	entries, err := o.source.Manifest(ctx, p, v)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	states := make([]fileState, len(entries))

	runPool(ctx, o.settings.Workers, len(entries), func(ctx context.Context, i int) error {
		states[i] = o.check(ctx, entries[i].LocalPath(info.InstallPath), entries[i].Size, entries[i].Digest)

		return nil
	})

	report := &VerifyReport{Checked: len(entries)}

	for i, state := range states {
		switch state {
		case fileMissing:
			report.Missing = append(report.Missing, entries[i].Path)
		case fileMismatched:
			report.Mismatched = append(report.Mismatched, entries[i].Path)
		case fileIntact:
		}
	}

	report.OK = len(report.Missing) == 0 && len(report.Mismatched) == 0

	logger.InfoKV(ctx, "Verified", "checked", report.Checked,
		"missing", len(report.Missing), "mismatched", len(report.Mismatched))

	return report, nil
}

func (o *Orchestrator) check(ctx context.Context, path string, size int64, expected string) fileState {
	if ctx.Err() != nil {
		return fileMismatched
	}

	stat, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileMissing
	}

	if err != nil || !stat.Mode().IsRegular() || stat.Size() != size {
		return fileMismatched
	}

	res, err := o.verifier.VerifyFile(path, expected)
	if err != nil {
		logger.WarnKV(ctx, "Unable to read file", "path", path, "error", err)

		return fileMismatched
	}

	if !res.Match {
		return fileMismatched
	}

	return fileIntact
}
