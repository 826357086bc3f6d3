package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/lockfile"
	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/manifest"
)

// Install downloads version of p. installed is only read; the caller persists
// Result.Info once Install returns successfully.
func (o *Orchestrator) Install(
	ctx context.Context,
	installed product.InstalledState,
	p product.Product,
	version string,
	opts Options,
) (*Result, error) {
	if current, ok := installed.Get(p.Slug); ok && !opts.Force {
		return nil, fmt.Errorf("%s %s at %s: %w", p.Slug, current.Version, current.InstallPath, ErrAlreadyInstalled)
	}

	v, err := ResolveVersion(&p, version, opts.Platform)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(ResolveInstallPath(p.Slug, opts.Path, opts.BasePath, o.settings.BaseInstallPath))
	if err != nil {
		return nil, fmt.Errorf("resolve install path: %w", err)
	}

	ctx = logger.WithKV(ctx, "slug", p.Slug, "version", v.Version)

	entries, err := o.source.Manifest(ctx, p, v)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	summary := Summary{
		Slug:     p.Slug,
		Version:  v.Version,
		Platform: v.Platform,
		Path:     root,
		Files:    len(entries),
		Bytes:    manifest.TotalSize(entries),
	}

	if opts.InfoOnly {
		return &Result{Summary: summary}, nil
	}

	tr := new(tracker)
	if err = tr.mkdirAll(root); err != nil {
		return nil, err
	}

	lock, err := lockfile.Acquire(root, o.settings.LockName)
	if err != nil {
		tr.rollback(ctx)

		return nil, err
	}

	logger.InfoKV(ctx, "Installing", "path", root, "files", summary.Files, "bytes", summary.Bytes)

	var skipped atomic.Int32

	errs := runPool(ctx, o.workers(opts), len(entries), func(ctx context.Context, i int) error {
		ok, placeErr := o.placeEntry(ctx, root, &entries[i], modeFor(&entries[i], v.Executable), tr)
		if ok {
			skipped.Add(1)
		}

		return placeErr
	})

	// Release before rollback so a root created by this call can be removed.
	if releaseErr := lock.Release(); releaseErr != nil {
		logger.WarnKV(ctx, "Unable to release lock", "error", releaseErr)
	}

	if failed := collectFailures(entries, errs); len(failed) > 0 {
		logger.ErrorKV(ctx, "Install failed, rolling back", "failed", len(failed))
		tr.rollback(ctx)

		return nil, &InstallFailedError{Slug: p.Slug, Failed: failed}
	}

	summary.Skipped = int(skipped.Load())

	logger.InfoKV(ctx, "Installed", "path", root, "skipped", summary.Skipped)

	return &Result{
		Info: &product.InstallInfo{
			Slug:        p.Slug,
			Version:     v.Version,
			Platform:    v.Platform,
			InstallPath: root,
			Executable:  v.Executable,
		},
		Summary: summary,
	}, nil
}
