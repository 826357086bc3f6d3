package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/service/commands"
	"github.com/oshokin/carnival/internal/service/installer"
)

var (
	// installFlags holds the flags shared by install and update.
	installFlags struct {
		version  string
		platform string
		path     string
		basePath string
		force    bool
		infoOnly bool
		workers  int
	}

	// uninstallFlags holds the uninstall flags.
	uninstallFlags struct {
		keep  bool
		force bool
	}

	// launchFlags holds the launch flags.
	launchFlags struct {
		noCompat bool
		runtime  string
		prefix   string
		wrapper  string
	}

	installCmd = &cobra.Command{
		Use:   "install <slug>",
		Short: "Download and install a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := installOptions()
			if err != nil {
				return err
			}

			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.Install(ctx, args[0], installFlags.version, opts)
		},
	}

	updateCmd = &cobra.Command{
		Use:   "update <slug>",
		Short: "Update an installed product to the latest or a given build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := installOptions()
			if err != nil {
				return err
			}

			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.Update(ctx, args[0], installFlags.version, opts)
		},
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall <slug>",
		Short: "Remove an installed product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.Uninstall(ctx, args[0], uninstallFlags.keep, uninstallFlags.force)
		},
	}

	verifyCmd = &cobra.Command{
		Use:   "verify <slug>",
		Short: "Check installed files against the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.Verify(ctx, args[0])
		},
	}

	launchCmd = &cobra.Command{
		Use:   "launch <slug> [-- args...]",
		Short: "Run an installed product",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			code, err := app.Launch(ctx, args[0], commands.LaunchOptions{
				NoCompat: launchFlags.noCompat,
				Runtime:  launchFlags.runtime,
				Prefix:   launchFlags.prefix,
				Wrapper:  launchFlags.wrapper,
				Args:     args[1:],
			})
			if err != nil {
				return err
			}

			exitCode = code

			return nil
		},
	}
)

// installOptions converts the shared flags into installer options.
func installOptions() (installer.Options, error) {
	opts := installer.Options{
		Force:    installFlags.force,
		InfoOnly: installFlags.infoOnly,
		Workers:  installFlags.workers,
		Path:     installFlags.path,
		BasePath: installFlags.basePath,
	}

	if installFlags.platform != "" {
		platform, err := product.ParsePlatform(installFlags.platform)
		if err != nil {
			return opts, err
		}

		opts.Platform = platform
	}

	return opts, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	for _, c := range []*cobra.Command{installCmd, updateCmd} {
		c.Flags().StringVar(&installFlags.version, "version", "", "build version (default latest)")
		c.Flags().BoolVar(&installFlags.force, "force", false, "reinstall or re-check files that look unchanged")
		c.Flags().BoolVar(&installFlags.infoOnly, "info", false, "only print what would be done")
		c.Flags().IntVarP(&installFlags.workers, "workers", "w", 0, "parallel downloads (default from config)")
	}

	installCmd.Flags().StringVar(&installFlags.platform, "os", "", "target platform: windows, linux or mac")
	installCmd.Flags().StringVar(&installFlags.path, "path", "", "exact install directory")
	installCmd.Flags().StringVar(&installFlags.basePath, "base-path", "", "directory that receives <slug>")

	uninstallCmd.Flags().BoolVar(&uninstallFlags.keep, "keep", false, "forget the install but keep its files")
	uninstallCmd.Flags().BoolVar(&uninstallFlags.force, "force", false, "uninstall even if the title is running")

	launchCmd.Flags().BoolVar(&launchFlags.noCompat, "no-compat", false, "never run through the compatibility runtime")
	launchCmd.Flags().StringVar(&launchFlags.runtime, "compat-runtime", "", "compatibility runtime (default from config)")
	launchCmd.Flags().StringVar(&launchFlags.prefix, "compat-prefix", "", "compatibility prefix directory")
	launchCmd.Flags().StringVar(&launchFlags.wrapper, "wrapper", "", "command prepended to the launch, e.g. \"gamemoderun\"")

	rootCmd.AddCommand(installCmd, updateCmd, uninstallCmd, verifyCmd, launchCmd)
}
