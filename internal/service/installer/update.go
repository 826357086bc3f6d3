package installer

import (
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/lockfile"
	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/manifest"
	"github.com/oshokin/carnival/internal/service/planner"
)

// maxBufferedApply is the largest file swapped in through an in-memory update.
const maxBufferedApply = 64 << 20

// updatePlan is the diff between the installed and the target manifest.
type updatePlan struct {
	// changed entries must be downloaded.
	changed []manifest.Entry
	// removed paths exist only in the installed manifest.
	removed []string
	// unchanged counts entries with the same path and digest.
	unchanged int
}

// Update moves an installed product to version (the latest for its platform when empty).
// Changed files are staged first; the install is only modified once all of them are ready.
func (o *Orchestrator) Update(
	ctx context.Context,
	p product.Product,
	current product.InstallInfo,
	version string,
	opts Options,
) (*Result, error) {
	v, err := o.updateTarget(&p, current, version)
	if err != nil {
		return nil, err
	}

	if v.Version == current.Version && !opts.Force {
		return nil, fmt.Errorf("%s %s: %w", p.Slug, current.Version, ErrUpToDate)
	}

	root := current.InstallPath
	if info, statErr := os.Stat(root); statErr != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: install directory %s is missing: %w", p.Slug, root, ErrNotInstalled)
	}

	ctx = logger.WithKV(ctx, "slug", p.Slug, "from", current.Version, "to", v.Version)

	target, err := o.source.Manifest(ctx, p, v)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	var installed []manifest.Entry

	if old, ok := p.FindVersion(current.Version, current.Platform); ok {
		if installed, err = o.source.Manifest(ctx, p, old); err != nil {
			logger.WarnKV(ctx, "Installed manifest unavailable, downloading every file", "error", err)
		}
	}

	plan := o.plan(ctx, root, installed, target, opts.Force)

	summary := Summary{
		Slug:     p.Slug,
		Version:  v.Version,
		Platform: v.Platform,
		Path:     root,
		Files:    len(plan.changed),
		Bytes:    manifest.TotalSize(plan.changed),
		Skipped:  plan.unchanged,
		Removed:  len(plan.removed),
	}

	if opts.InfoOnly {
		return &Result{Summary: summary}, nil
	}

	lock, err := lockfile.Acquire(root, o.settings.LockName)
	if err != nil {
		return nil, err
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to release lock", "error", releaseErr)
		}
	}()

	logger.InfoKV(ctx, "Updating", "path", root, "files", summary.Files, "bytes", summary.Bytes, "removed", summary.Removed)

	staging := filepath.Join(root, StagingDirname)
	if err = os.RemoveAll(staging); err != nil {
		return nil, &DirectoryRemoveError{Path: staging, Err: err}
	}

	defer func() {
		if removeErr := os.RemoveAll(staging); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove staging directory", "path", staging, "error", removeErr)
		}
	}()

	tr := new(tracker)

	errs := runPool(ctx, o.workers(opts), len(plan.changed), func(ctx context.Context, i int) error {
		entry := &plan.changed[i]
		staged := entry.LocalPath(staging)

		if mkErr := tr.mkdirAll(filepath.Dir(staged)); mkErr != nil {
			return mkErr
		}

		return o.materialize(ctx, staged, entry, modeFor(entry, v.Executable))
	})

	if failed := collectFailures(plan.changed, errs); len(failed) > 0 {
		logger.ErrorKV(ctx, "Update failed, install left untouched", "failed", len(failed))

		return nil, &InstallFailedError{Slug: p.Slug, Failed: failed}
	}

	if err = o.apply(ctx, p.Slug, root, staging, plan, v.Executable); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Updated", "path", root)

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

// updateTarget resolves the version to update to on the installed platform.
func (o *Orchestrator) updateTarget(p *product.Product, current product.InstallInfo, version string) (product.ProductVersion, error) {
	if version == "" {
		v, ok := planner.Latest(p.Versions, current.Platform)
		if !ok {
			return product.ProductVersion{}, fmt.Errorf("%s has no %s build: %w", p.Slug, current.Platform, ErrVersionNotFound)
		}

		return v, nil
	}

	return ResolveVersion(p, version, current.Platform)
}

// plan diffs the installed manifest against the target one. With force,
// unchanged entries whose local copy is damaged are downloaded again.
func (o *Orchestrator) plan(ctx context.Context, root string, installed, target []manifest.Entry, force bool) updatePlan {
	var (
		result   updatePlan
		previous = manifest.Index(installed)
		next     = manifest.Index(target)
	)

	for i := range target {
		entry := &target[i]

		old, ok := previous[entry.Path]
		if ok && old.Digest == entry.Digest && (!force || o.intact(entry.LocalPath(root), entry)) {
			result.unchanged++
			continue
		}

		result.changed = append(result.changed, *entry)
	}

	for i := range installed {
		if _, ok := next[installed[i].Path]; !ok {
			result.removed = append(result.removed, installed[i].Path)
		}
	}

	logger.DebugKV(ctx, "Update plan", "changed", len(result.changed), "unchanged", result.unchanged, "removed", len(result.removed))

	return result
}

// apply swaps staged files into the install and deletes files the target dropped.
// A file that cannot be swapped in does not stop the others.
func (o *Orchestrator) apply(ctx context.Context, slug, root, staging string, plan updatePlan, executable string) error {
	var failed []EntryError

	for i := range plan.changed {
		entry := &plan.changed[i]

		if err := o.applyEntry(root, staging, entry, modeFor(entry, executable)); err != nil {
			logger.ErrorKV(ctx, "Unable to apply file", "path", entry.Path, "error", err)
			failed = append(failed, EntryError{Path: entry.Path, Err: err})
		}
	}

	for _, path := range plan.removed {
		target := filepath.Join(root, filepath.FromSlash(path))

		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove obsolete file", "path", path, "error", err)
			continue
		}

		pruneEmptyParents(root, filepath.Dir(target))
	}

	if len(failed) > 0 {
		applied := len(plan.changed) - len(failed)
		logger.ErrorKV(ctx, "Update partially applied, run it again to repair", "applied", applied, "failed", len(failed))

		return &PartialUpdateError{Slug: slug, Applied: applied, Failed: failed}
	}

	return nil
}

// applyEntry atomically replaces the installed copy of entry with the staged one.
func (o *Orchestrator) applyEntry(root, staging string, entry *manifest.Entry, mode os.FileMode) error {
	target := entry.LocalPath(root)

	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return &DirectoryCreateError{Path: filepath.Dir(target), Err: err}
	}

	// The replacement renames the old file aside first, so it has to exist.
	if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
		if err = os.WriteFile(target, nil, mode); err != nil {
			return err
		}
	}

	staged := entry.LocalPath(staging)

	// The swap buffers the whole file, so large files are renamed in directly;
	// both paths live under root and share a filesystem.
	if entry.Size > maxBufferedApply {
		if err := os.Chmod(staged, mode); err != nil {
			return err
		}

		return os.Rename(staged, target)
	}

	data, err := os.ReadFile(filepath.Clean(staged))
	if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: mode,
	}

	if o.verifier.Algorithm().Name() == digest.SHA256.Name() {
		if sum, decodeErr := hex.DecodeString(entry.Digest); decodeErr == nil {
			options.Checksum = sum
			options.Hash = crypto.SHA256
		}
	}

	return goupdate.Apply(bytes.NewReader(data), options)
}

// pruneEmptyParents removes now-empty directories between dir and root.
func pruneEmptyParents(root, dir string) {
	root = filepath.Clean(root)

	for dir = filepath.Clean(dir); dir != root && len(dir) > len(root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			return
		}
	}
}
