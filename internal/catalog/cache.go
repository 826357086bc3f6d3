package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/manifest"
)

const (
	// ManifestsDirname is the cache directory inside the configuration directory.
	ManifestsDirname = "manifests"

	cacheDirPermissions  = 0o700
	cacheFilePermissions = 0o600
)

// manifestBackend downloads and parses manifests.
type manifestBackend interface {
	ManifestData(ctx context.Context, p product.Product, v product.ProductVersion) ([]byte, error)
	ParseManifest(v product.ProductVersion, data []byte) ([]manifest.Entry, error)
}

// ManifestCache serves manifests from disk and falls back to the storefront.
// A published manifest never changes, so cached copies do not expire.
type ManifestCache struct {
	// dir is the cache root.
	dir string
	// backend fetches documents that are not cached yet.
	backend manifestBackend
	// offline forbids network fallback.
	offline bool
}

// NewManifestCache caches backend's manifests under dir.
func NewManifestCache(dir string, backend manifestBackend) *ManifestCache {
	return &ManifestCache{
		dir:     dir,
		backend: backend,
	}
}

// Offline returns a copy that only reads the cache.
func (m *ManifestCache) Offline() *ManifestCache {
	cloned := *m
	cloned.offline = true

	return &cloned
}

// Manifest returns the parsed manifest of v.
func (m *ManifestCache) Manifest(ctx context.Context, p product.Product, v product.ProductVersion) ([]manifest.Entry, error) {
	path := m.Path(p, v)

	data, err := os.ReadFile(filepath.Clean(path))
	if err == nil {
		entries, parseErr := m.backend.ParseManifest(v, data)
		if parseErr == nil {
			logger.DebugKV(ctx, "Using cached manifest", "path", path)
			return entries, nil
		}

		logger.WarnKV(ctx, "Ignoring unreadable cached manifest", "path", path, "error", parseErr)
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.WarnKV(ctx, "Ignoring cached manifest", "path", path, "error", err)
	}

	if m.offline {
		return nil, fmt.Errorf("manifest of %s %s is not cached: %w", p.Slug, v.Version, fs.ErrNotExist)
	}

	data, err = m.backend.ManifestData(ctx, p, v)
	if err != nil {
		return nil, err
	}

	entries, err := m.backend.ParseManifest(v, data)
	if err != nil {
		return nil, err
	}

	if err = m.write(path, data); err != nil {
		logger.WarnKV(ctx, "Unable to cache manifest", "path", path, "error", err)
	}

	return entries, nil
}

// Path returns the cache file of v.
func (m *ManifestCache) Path(p product.Product, v product.ProductVersion) string {
	ext := ".csv"
	if manifest.DetectFormat(v.Manifest) == manifest.FormatYAML {
		ext = ".yaml"
	}

	name := fmt.Sprintf("%s_%s%s", sanitize(v.Version), sanitize(string(v.Platform)), ext)

	return filepath.Join(m.dir, sanitize(p.Slug), name)
}

func (m *ManifestCache) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), cacheDirPermissions); err != nil {
		return err
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, cacheFilePermissions); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// sanitize keeps a storefront label usable as a single path element.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, s)

	if s == "" || s == "." || s == ".." {
		return "_"
	}

	return s
}
