package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runPool runs work for indexes 0..n-1 on at most workers goroutines. Each
// index writes only its own result slot, so no locking is needed; slots are
// read after every goroutine has returned. Indexes not yet started when ctx
// is done are left at the zero value and the context error is returned.
func runPool[T any](ctx context.Context, workers, n int, work func(ctx context.Context, i int) T) ([]T, error) {
	results := make([]T, n)
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = work(ctx, i)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return results, err
}
