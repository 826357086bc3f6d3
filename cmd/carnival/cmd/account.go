package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/carnival/internal/catalog"
	"github.com/oshokin/carnival/internal/service/commands"
)

var (
	// password is taken from the flag instead of a prompt when set.
	password string

	loginCmd = &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in to the storefront and sync the library",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			prompter := commands.NewPrompter(os.Stdin, cmd.ErrOrStderr())
			creds := catalog.Credentials{Password: password}

			if len(args) == 1 {
				creds.Username = args[0]
			} else if creds.Username, err = prompter.Username(); err != nil {
				return err
			}

			if creds.Password == "" {
				if creds.Password, err = prompter.Password(); err != nil {
					return err
				}
			}

			return app.Login(ctx, creds)
		},
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Forget the session and the synced library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.Logout(ctx)
		},
	}

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Refresh the library from the storefront",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.PrintSync(ctx)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")

	rootCmd.AddCommand(loginCmd, logoutCmd, syncCmd)
}
