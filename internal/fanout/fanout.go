// Package fanout runs a function over a slice with bounded concurrency and
// returns the results in input order.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map applies fn to every item using at most limit goroutines. Results are
// written into indexed slots, so out[i] always corresponds to items[i]
// whatever the completion order. fn must not fail; callers fold errors into R.
// A limit below 1 runs sequentially.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) R) []R {
	out := make([]R, len(items))
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			out[i] = fn(gctx, i, item)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
