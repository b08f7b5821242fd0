package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// chunksPerWorker keeps workers busy when rows have uneven cost.
const chunksPerWorker = 4

// forEachRange runs fn over [0,n) split into contiguous ranges on at most workers goroutines.
// fn must only write state owned by its range.
func forEachRange(ctx context.Context, n, workers int, fn func(lo, hi int)) error {
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers*chunksPerWorker - 1) / (workers * chunksPerWorker)
	if chunk < 1 {
		chunk = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(lo, hi)
			return nil
		})
	}
	return g.Wait()
}
