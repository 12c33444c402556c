// Package parallel runs index-addressed work on a bounded worker pool.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers returns the pool size used when callers pass workers <= 0.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// ForEach calls fn(ctx, i) for every i in [0, n) with at most workers calls
// in flight. It stops scheduling new work once ctx is cancelled or any call
// fails, and returns the first error. fn must only write to state owned by
// index i.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Chunks splits [0, n) into at most parts contiguous half-open ranges.
func Chunks(n, parts int) [][2]int {
	if n <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = DefaultWorkers()
	}
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts
	out := make([][2]int, 0, parts)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		out = append(out, [2]int{lo, hi})
	}
	return out
}
