package merging

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// RunBatch calls fn for every job with at most concurrency calls in flight.
// A failing job does not stop the others; every failure is returned together.
func RunBatch[J any](ctx context.Context, jobs []J, concurrency int, fn func(context.Context, J) error) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
				return nil
			}
			if err := fn(ctx, job); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs.ErrorOrNil()
}
