package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/carnival/internal/catalog"
	"github.com/oshokin/carnival/internal/domain/product"
)

// TestInstalled_MissingFile loads an empty, writable map.
func TestInstalled_MissingFile(t *testing.T) {
	t.Parallel()

	installed, err := NewInstalled(t.TempDir()).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, installed)
	require.Empty(t, installed)

	installed["x"] = product.InstallInfo{Slug: "x"}
}

// TestInstalled_Roundtrip stores and reloads install records with restricted permissions.
func TestInstalled_Roundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	s := NewInstalled(dir)

	want := product.InstalledState{
		"space-game": {
			Slug:        "space-game",
			Version:     "1.1",
			Platform:    product.PlatformLinux,
			InstallPath: "/games/space-game",
			Executable:  "bin/game",
		},
	}

	require.NoError(t, s.Store(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)

	if os.PathSeparator == '/' {
		require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

// TestLibrary_Clear removes the record.
func TestLibrary_Clear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewLibrary(t.TempDir())

	lib := product.Library{Products: []product.Product{{
		Slug: "space-game",
		Name: "Space Game",
		Versions: []product.ProductVersion{
			{Version: "1.0", Platform: product.PlatformWindows, Manifest: "m/1.0.csv", Enabled: true},
		},
	}}}
	require.NoError(t, s.Store(ctx, lib))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, lib, got)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got.Products)
}

// TestSessionAndUser persist catalog records.
func TestSessionAndUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	session := catalog.Session{Cookies: []catalog.Cookie{{Name: "auth", Value: "token"}}}
	require.NoError(t, NewSession(dir).Store(ctx, session))

	gotSession, err := NewSession(dir).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, session, gotSession)

	user := catalog.UserInfo{Status: "success", UserFound: "true", Email: "player@example.com"}
	require.NoError(t, NewUser(dir).Store(ctx, user))

	gotUser, err := NewUser(dir).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, user, gotUser)
}

// TestLoad_Corrupt reports decode failures.
func TestLoad_Corrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, InstalledFilename), []byte("{{not yaml"), DefaultFilePermissions))

	installed, err := NewInstalled(dir).Load(context.Background())
	require.Error(t, err)
	require.NotNil(t, installed)
}
