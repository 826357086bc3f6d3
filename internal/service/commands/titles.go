package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/procs"
	"github.com/oshokin/carnival/internal/service/installer"
	"github.com/oshokin/carnival/internal/service/launcher"
	"github.com/oshokin/carnival/internal/service/planner"
)

// Install installs slug and records it.
func (a *App) Install(ctx context.Context, slug, version string, opts installer.Options) error {
	ctx = logger.WithName(ctx, "install")

	p, err := a.findProduct(ctx, slug)
	if err != nil {
		return err
	}

	installed, err := a.loadInstalled(ctx)
	if err != nil {
		return err
	}

	res, err := a.orchestrator.Install(ctx, installed, *p, version, opts)
	if err != nil {
		return err
	}

	if opts.InfoOnly {
		a.printf("%s\n", res.Summary.String())
		return nil
	}

	installed[slug] = *res.Info
	if err = a.installed.Store(ctx, installed); err != nil {
		return fmt.Errorf("record install: %w", err)
	}

	a.printf("Installed %s %s (%s) to %s\n", slug, res.Info.Version, res.Info.Platform, res.Info.InstallPath)

	return nil
}

// Uninstall removes slug's files (unless keep) and forgets it.
func (a *App) Uninstall(ctx context.Context, slug string, keep, force bool) error {
	ctx = logger.WithName(ctx, "uninstall")

	installed, info, err := a.installRecord(ctx, slug)
	if err != nil {
		return err
	}

	if !force {
		if err = a.ensureNotRunning(ctx, info); err != nil {
			return err
		}
	}

	if !keep {
		if err = installer.Uninstall(ctx, info.InstallPath); err != nil {
			return err
		}
	}

	delete(installed, slug)

	if err = a.installed.Store(ctx, installed); err != nil {
		return fmt.Errorf("forget install: %w", err)
	}

	a.printf("Uninstalled %s\n", slug)

	return nil
}

// ListUpdates prints installed titles with newer builds.
func (a *App) ListUpdates(ctx context.Context) error {
	lib, err := a.currentLibrary(ctx)
	if err != nil {
		return err
	}

	installed, err := a.loadInstalled(ctx)
	if err != nil {
		return err
	}

	updates := planner.CheckUpdates(lib, installed)
	if len(updates) == 0 {
		a.printf("Everything is up to date\n")
		return nil
	}

	for _, slug := range slices.Sorted(maps.Keys(updates)) {
		a.printf("%s: %s -> %s\n", slug, installed[slug].Version, updates[slug])
	}

	return nil
}

// Update moves slug to version, or to the latest build when version is empty.
func (a *App) Update(ctx context.Context, slug, version string, opts installer.Options) error {
	ctx = logger.WithName(ctx, "update")

	installed, info, err := a.installRecord(ctx, slug)
	if err != nil {
		return err
	}

	p, err := a.findProduct(ctx, slug)
	if err != nil {
		return err
	}

	if !opts.Force && !opts.InfoOnly {
		if err = a.ensureNotRunning(ctx, info); err != nil {
			return err
		}
	}

	res, err := a.orchestrator.Update(ctx, *p, info, version, opts)
	if err != nil {
		return err
	}

	if opts.InfoOnly {
		a.printf("%s\n", res.Summary.String())
		return nil
	}

	installed[slug] = *res.Info
	if err = a.installed.Store(ctx, installed); err != nil {
		return fmt.Errorf("record update: %w", err)
	}

	a.printf("Updated %s from %s to %s\n", slug, info.Version, res.Info.Version)

	return nil
}

// Verify re-hashes slug's files. It uses the cached library and manifest when possible.
func (a *App) Verify(ctx context.Context, slug string) error {
	ctx = logger.WithName(ctx, "verify")

	_, info, err := a.installRecord(ctx, slug)
	if err != nil {
		return err
	}

	p, err := a.cachedProduct(ctx, info)
	if err != nil {
		return err
	}

	report, err := a.orchestrator.Verify(ctx, *p, info)
	if err != nil {
		return err
	}

	for _, path := range report.Missing {
		a.printf("missing: %s\n", path)
	}

	for _, path := range report.Mismatched {
		a.printf("corrupt: %s\n", path)
	}

	if !report.OK {
		return fmt.Errorf("%s: %d missing, %d corrupt of %d: %w",
			slug, len(report.Missing), len(report.Mismatched), report.Checked, ErrVerificationFailed)
	}

	a.printf("%s: %d file(s) verified\n", slug, report.Checked)

	return nil
}

// LaunchOptions control how a title is started.
type LaunchOptions struct {
	// NoCompat runs the executable directly even for foreign builds.
	NoCompat bool
	// Runtime overrides the configured compatibility runtime.
	Runtime string
	// Prefix overrides the configured compatibility prefix.
	Prefix string
	// Wrapper is prepended to the command line.
	Wrapper string
	// Args are passed to the title.
	Args []string
}

// Launch starts slug and returns its exit code.
func (a *App) Launch(ctx context.Context, slug string, opts LaunchOptions) (int, error) {
	ctx = logger.WithName(ctx, "launch")

	_, info, err := a.installRecord(ctx, slug)
	if err != nil {
		return 0, err
	}

	p, err := a.cachedProduct(ctx, info)
	if err != nil {
		p = &product.Product{Slug: slug}
	}

	runtime := opts.Runtime
	if runtime == "" {
		runtime = a.cfg.CompatRuntime
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = a.cfg.CompatPrefix
	}

	return launcher.Launch(ctx, *p, info, launcher.Options{
		Strategy: launcher.SelectStrategy(info.Platform, product.NativePlatform(), opts.NoCompat, runtime, prefix),
		Wrapper:  opts.Wrapper,
		Args:     opts.Args,
		Stdout:   a.out,
	})
}

// cachedProduct finds the product of info in the stored library without syncing.
func (a *App) cachedProduct(ctx context.Context, info product.InstallInfo) (*product.Product, error) {
	lib, err := a.library.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}

	return lib.Find(info.Slug)
}

// ensureNotRunning refuses to touch a title whose entry point is running.
func (a *App) ensureNotRunning(ctx context.Context, info product.InstallInfo) error {
	if info.Executable == "" {
		return nil
	}

	running, err := procs.IsRunning(info.Executable)
	if err != nil {
		logger.WarnKV(ctx, "Unable to check running processes", "error", err)
		return nil
	}

	if running {
		return fmt.Errorf("%s (%s); close it or use --force: %w", info.Slug, info.Executable, procs.ErrTitleRunning)
	}

	return nil
}
