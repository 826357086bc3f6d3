package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/carnival/internal/catalog"
	"github.com/oshokin/carnival/internal/config"
	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/fetcher"
	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/repository/store"
	"github.com/oshokin/carnival/internal/service/installer"
)

var (
	// ErrNotInstalled is returned for slugs without an install record.
	ErrNotInstalled = installer.ErrNotInstalled
	// ErrVerificationFailed is returned by Verify when files are missing or damaged.
	ErrVerificationFailed = errors.New("verification failed")
	// errUsernameRequired is returned when login has no account name.
	errUsernameRequired = errors.New("username must be provided")
)

// Options are inputs shared by every command.
type Options struct {
	// ConfigDir overrides the configuration directory.
	ConfigDir string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Stdout receives command output; nil means os.Stdout.
	Stdout io.Writer
}

// App holds the wiring for one CLI invocation.
type App struct {
	// cfg is the effective configuration.
	cfg *config.Config
	// dir is the configuration directory.
	dir string
	// out receives command results.
	out io.Writer

	installed store.Store[product.InstalledState]
	library   store.Store[product.Library]
	user      store.Store[catalog.UserInfo]
	session   store.Store[catalog.Session]

	// client talks to the storefront with the stored session.
	client *catalog.Client
	// manifests serves cached manifests to the orchestrator.
	manifests *catalog.ManifestCache
	// orchestrator installs, updates and verifies titles.
	orchestrator *installer.Orchestrator
	// hasSession is true when a session was stored before this run.
	hasSession bool
}

// New loads the configuration and the stored session and wires the engine.
func New(ctx context.Context, opts Options) (*App, error) {
	dir := opts.ConfigDir
	if dir == "" {
		var err error
		if dir, err = config.Dir(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(filepath.Join(dir, config.DefaultConfigFilename))
	if err != nil {
		return nil, err
	}

	applyLogLevel(ctx, opts.LogLevel, cfg.LogLevel)

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	app := &App{
		cfg:       cfg,
		dir:       dir,
		out:       out,
		installed: store.NewInstalled(dir),
		library:   store.NewLibrary(dir),
		user:      store.NewUser(dir),
		session:   store.NewSession(dir),
	}

	session, err := app.session.Load(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Ignoring unreadable session", "error", err)

		session = catalog.Session{}
	}

	app.hasSession = !session.Empty()

	app.client, err = catalog.NewClient(catalog.Options{
		APIURL:     cfg.APIURL,
		ContentURL: cfg.ContentURL,
		Timeout:    cfg.Timeout,
		Algorithm:  cfg.Algorithm(),
	}, session)
	if err != nil {
		return nil, err
	}

	verifier := digest.New(cfg.Algorithm())

	chunks := fetcher.New(fetcher.NewHTTPClient(cfg.Timeout), verifier,
		fetcher.WithMaxRetries(cfg.MaxRetries),
		fetcher.WithIdleTimeout(cfg.Timeout),
		fetcher.WithDigestRetries(cfg.DigestRetries),
		fetcher.WithBackoff(cfg.RetryInterval, 0),
		fetcher.WithRequestDecorator(app.client.Apply),
	)

	app.manifests = catalog.NewManifestCache(filepath.Join(dir, catalog.ManifestsDirname), app.client)
	app.orchestrator = installer.New(app.manifests, chunks, verifier, installer.Settings{
		Workers:         cfg.Workers,
		BaseInstallPath: cfg.BaseInstallPath,
	})

	return app, nil
}

// Config returns the effective configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// ConfigDir returns the configuration directory in use.
func (a *App) ConfigDir() string {
	return a.dir
}

func applyLogLevel(ctx context.Context, flagLevel, configLevel string) {
	raw := flagLevel
	if raw == "" {
		raw = configLevel
	}

	level, ok := logger.ParseLogLevel(raw)
	if !ok {
		logger.Warnf(ctx, "Unknown log level %q, using %s", raw, level)
	}

	logger.SetLevel(level)
}

// printf writes command output.
func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// loadInstalled returns the install records, never nil.
func (a *App) loadInstalled(ctx context.Context) (product.InstalledState, error) {
	installed, err := a.installed.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load installed titles: %w", err)
	}

	if installed == nil {
		installed = make(product.InstalledState)
	}

	return installed, nil
}

// installRecord returns the record of slug or ErrNotInstalled.
func (a *App) installRecord(ctx context.Context, slug string) (product.InstalledState, product.InstallInfo, error) {
	installed, err := a.loadInstalled(ctx)
	if err != nil {
		return nil, product.InstallInfo{}, err
	}

	info, ok := installed.Get(slug)
	if !ok {
		return nil, product.InstallInfo{}, fmt.Errorf("%s: %w", slug, ErrNotInstalled)
	}

	return installed, info, nil
}
