package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand builds the `version` subcommand.
func NewCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the carnival release",
		Long: "Print the carnival release, the commit it was built from and the build time, " +
			"followed by the User-Agent the storefront sees in catalog and download requests.\n" +
			"With --short only the release is printed, for use in scripts.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()

			if short {
				_, _ = fmt.Fprintln(out, Short())
				return
			}

			_, _ = fmt.Fprintln(out, Full())
			_, _ = fmt.Fprintln(out, "User-Agent:", UserAgent())
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the release")

	return cmd
}
