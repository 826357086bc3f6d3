package cmd

import (
	"github.com/spf13/cobra"
)

var (
	libraryCmd = &cobra.Command{
		Use:   "library",
		Short: "List purchased products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.Library(ctx)
		},
	}

	infoCmd = &cobra.Command{
		Use:   "info <slug>",
		Short: "Show a product's builds and install state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.Info(ctx, args[0])
		},
	}

	listUpdatesCmd = &cobra.Command{
		Use:   "list-updates",
		Short: "List installed products with newer builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.ListUpdates(ctx)
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.PrintConfig()
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(libraryCmd, infoCmd, listUpdatesCmd, configCmd)
}
