package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/carnival/internal/domain/product"
)

// TestRootCommand_RegistersSubcommands ensures every user-facing command is reachable.
func TestRootCommand_RegistersSubcommands(t *testing.T) {
	t.Parallel()

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{
		"login", "logout", "sync", "library", "info", "install", "update",
		"uninstall", "verify", "launch", "list-updates", "config", "package",
	} {
		require.True(t, names[want], want)
	}
}

// TestInstallOptions converts the platform flag and rejects unknown names.
//
//nolint:paralleltest // Mutates package-level flag storage.
func TestInstallOptions(t *testing.T) {
	t.Cleanup(func() { installFlags.platform = "" })

	installFlags.platform = "win"

	opts, err := installOptions()
	require.NoError(t, err)
	require.Equal(t, product.PlatformWindows, opts.Platform)

	installFlags.platform = "amiga"

	_, err = installOptions()
	require.ErrorIs(t, err, product.ErrUnknownPlatform)
}
