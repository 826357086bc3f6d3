package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/fetcher"
	"github.com/oshokin/carnival/internal/lockfile"
	"github.com/oshokin/carnival/internal/manifest"
	"github.com/oshokin/carnival/internal/service/planner"
)

const (
	// DefaultWorkers is the pool size used when neither Settings nor Options set one.
	DefaultWorkers = 4

	// StagingDirname holds update downloads inside the install root until they are applied.
	StagingDirname = ".carnival-staging"

	dirPermissions  = 0o755
	filePermissions = 0o644
	execPermissions = 0o755
)

// ManifestSource returns the parsed manifest of a product version.
type ManifestSource interface {
	Manifest(ctx context.Context, p product.Product, v product.ProductVersion) ([]manifest.Entry, error)
}

// ChunkFetcher writes one verified chunk into a sink.
type ChunkFetcher interface {
	Fetch(ctx context.Context, chunk manifest.Chunk, sink fetcher.Sink) error
}

// Settings are the orchestrator defaults taken from the configuration.
type Settings struct {
	// Workers is the default number of entries processed in parallel.
	Workers int
	// BaseInstallPath receives <slug> directories when no path is given.
	BaseInstallPath string
	// LockName is the advisory lock file name inside the install root.
	LockName string
}

// Options tune a single Install or Update call.
type Options struct {
	// Force reinstalls over an existing record, or re-checks unchanged files on update.
	Force bool
	// InfoOnly reports what would happen without touching the disk.
	InfoOnly bool
	// Workers overrides Settings.Workers when positive.
	Workers int
	// Platform selects the build; empty means native, then windows, then the first offered.
	Platform product.Platform
	// Path is the exact install root.
	Path string
	// BasePath receives <slug> when Path is empty.
	BasePath string
}

// Summary describes the work of a call.
type Summary struct {
	// Slug is the product.
	Slug string
	// Version is the target build label.
	Version string
	// Platform is the target build platform.
	Platform product.Platform
	// Path is the install root.
	Path string
	// Files is the number of files to download.
	Files int
	// Bytes is the total size of those files.
	Bytes int64
	// Skipped counts files that were already intact.
	Skipped int
	// Removed counts files deleted by an update.
	Removed int
}

// String renders the summary for the --info output.
func (s Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Product: %s\nVersion: %s\nPlatform: %s\nPath: %s\nFiles: %d\nDownload size: %s",
		s.Slug, s.Version, s.Platform, s.Path, s.Files, humanize.IBytes(uint64(max(s.Bytes, 0))))

	if s.Skipped > 0 {
		fmt.Fprintf(&b, "\nAlready present: %d", s.Skipped)
	}

	if s.Removed > 0 {
		fmt.Fprintf(&b, "\nTo remove: %d", s.Removed)
	}

	return b.String()
}

// Result is the outcome of a successful Install or Update.
type Result struct {
	// Info is the record to persist; nil for InfoOnly calls.
	Info *product.InstallInfo
	// Summary describes the work done or planned.
	Summary Summary
}

// Orchestrator installs, updates and verifies products.
type Orchestrator struct {
	source   ManifestSource
	fetcher  ChunkFetcher
	verifier *digest.Verifier
	settings Settings
}

// New creates an Orchestrator. A nil verifier means SHA256.
func New(source ManifestSource, f ChunkFetcher, verifier *digest.Verifier, settings Settings) *Orchestrator {
	if verifier == nil {
		verifier = digest.New(digest.SHA256)
	}

	if settings.Workers <= 0 {
		settings.Workers = DefaultWorkers
	}

	if settings.LockName == "" {
		settings.LockName = lockfile.DefaultName
	}

	return &Orchestrator{
		source:   source,
		fetcher:  f,
		verifier: verifier,
		settings: settings,
	}
}

func (o *Orchestrator) workers(opts Options) int {
	if opts.Workers > 0 {
		return opts.Workers
	}

	return o.settings.Workers
}

// ResolveInstallPath returns path when set, otherwise <basePath or defaultBase>/<slug>.
func ResolveInstallPath(slug, path, basePath, defaultBase string) string {
	if path != "" {
		return filepath.Clean(path)
	}

	if basePath == "" {
		basePath = defaultBase
	}

	return filepath.Join(basePath, slug)
}

// ResolveVersion picks the build to install. An empty version means the latest
// enabled one; an empty platform means native if offered, then windows, then the
// first platform offered.
func ResolveVersion(p *product.Product, version string, platform product.Platform) (product.ProductVersion, error) {
	if platform == "" {
		platform = preferredPlatform(p)
	}

	if version == "" {
		if v, ok := planner.Latest(p.Versions, platform); ok {
			return v, nil
		}

		return product.ProductVersion{}, fmt.Errorf("%s has no %s build: %w", p.Slug, platform, ErrVersionNotFound)
	}

	v, ok := p.FindVersion(version, platform)
	if !ok || !v.Enabled {
		return product.ProductVersion{}, fmt.Errorf("%s %s for %s: %w", p.Slug, version, platform, ErrVersionNotFound)
	}

	return v, nil
}

func preferredPlatform(p *product.Product) product.Platform {
	offered := p.Platforms()
	if len(offered) == 0 {
		return product.NativePlatform()
	}

	for _, want := range []product.Platform{product.NativePlatform(), product.PlatformWindows} {
		for _, have := range offered {
			if have == want {
				return have
			}
		}
	}

	return offered[0]
}
