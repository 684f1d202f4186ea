package util

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel calls fn for every input with at most limit calls in flight. The
// first error cancels the context passed to the remaining calls and is
// returned once all started calls have finished.
func Parallel[T any](ctx context.Context, inputs []T, limit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(ctx, in)
		})
	}
	return g.Wait()
}
