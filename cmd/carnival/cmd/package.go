package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/oshokin/carnival/internal/service/packager"
)

var (
	// packageFlags holds the package flags.
	packageFlags struct {
		output       string
		sourcePrefix string
		chunkSize    string
		chunkDir     string
		workers      int
	}

	packageCmd = &cobra.Command{
		Use:   "package <build-dir>",
		Short: "Write a manifest for a build directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := packager.Options{
				Dir:          args[0],
				Output:       packageFlags.output,
				SourcePrefix: packageFlags.sourcePrefix,
				ChunkDir:     packageFlags.chunkDir,
				Workers:      packageFlags.workers,
			}

			if packageFlags.chunkSize != "" {
				size, err := humanize.ParseBytes(packageFlags.chunkSize)
				if err != nil {
					return fmt.Errorf("chunk size %q: %w", packageFlags.chunkSize, err)
				}

				opts.ChunkSize = int64(size) //nolint:gosec // Chunk sizes are far below MaxInt64.
			}

			ctx, app, err := newApp(cmd)
			if err != nil {
				return err
			}

			return app.Package(ctx, opts)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	packageCmd.Flags().StringVarP(&packageFlags.output, "output", "o", "manifest.csv", "manifest path; .yml or .yaml writes YAML")
	packageCmd.Flags().StringVar(&packageFlags.sourcePrefix, "source-prefix", packager.DefaultSourcePrefix, "prefix of whole-file sources, relative to the manifest or absolute")
	packageCmd.Flags().StringVar(&packageFlags.chunkSize, "chunk-size", "", "split files into chunks of this size, e.g. 4MiB")
	packageCmd.Flags().StringVar(&packageFlags.chunkDir, "chunk-dir", "", "chunk store directory (default \"chunks\" next to the manifest)")
	packageCmd.Flags().IntVarP(&packageFlags.workers, "workers", "w", 0, "files hashed in parallel (default from config)")

	rootCmd.AddCommand(packageCmd)
}
