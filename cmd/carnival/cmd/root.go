package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/service/commands"
	"github.com/oshokin/carnival/internal/version"
)

var (
	// configDir overrides the configuration directory.
	configDir string
	// logLevel overrides the configured log level.
	logLevel string
	// exitCode is set by commands that report a child's status.
	exitCode int

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:           "carnival",
		Short:         "Install, verify, update and launch titles from your storefront library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the carnival CLI and exits with non-zero status on error.
func Execute() {
	rootCmd.AddCommand(version.NewCommand())

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		logger.Error(ctx, err)
		logger.Sync()
		os.Exit(1)
	}

	logger.Sync()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// newApp wires the engine for the running command.
func newApp(cmd *cobra.Command) (context.Context, *commands.App, error) {
	ctx := logger.WithName(cmd.Context(), cmd.Name())

	app, err := commands.New(ctx, commands.Options{
		ConfigDir: configDir,
		LogLevel:  logLevel,
		Stdout:    cmd.OutOrStdout(),
	})
	if err != nil {
		return ctx, nil, err
	}

	return ctx, app, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default $CARNIVAL_CONFIG_PATH or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
}
