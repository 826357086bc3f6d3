package installer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runPool calls work for every index in [0, n) on at most workers goroutines and
// returns the per-index errors once all of them finished. A failing index never
// stops the others.
func runPool(ctx context.Context, workers, n int, work func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)

	var g errgroup.Group

	g.SetLimit(max(workers, 1))

	for i := range n {
		g.Go(func() error {
			errs[i] = work(ctx, i)

			return nil
		})
	}

	_ = g.Wait()

	return errs
}
