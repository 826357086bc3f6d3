package commands

import (
	"context"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/service/packager"
)

// Package writes a manifest for a local build directory using the configured digest.
func (a *App) Package(ctx context.Context, opts packager.Options) error {
	if opts.Workers <= 0 {
		opts.Workers = a.cfg.Workers
	}

	result, err := packager.Run(ctx, digest.New(a.cfg.Algorithm()), opts)
	if err != nil {
		return err
	}

	a.printf("Packaged %d file(s), %s, into %s\n", result.Files, humanize.IBytes(uint64(max(result.Bytes, 0))), result.Output)

	if result.ChunkDir != "" {
		a.printf("Chunk store: %s (%d chunk(s))\n", result.ChunkDir, result.Chunks)
	}

	return nil
}
