// Package workpool runs fan-out tasks with bounded parallelism.
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds the number of concurrently running tasks.
type Pool struct {
	limit int
}

// New creates a pool. limit < 1 falls back to GOMAXPROCS.
func New(limit int) *Pool {
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Pool{limit: limit}
}

// Limit returns the maximum number of concurrent tasks.
func (p *Pool) Limit() int { return p.limit }

// Item is one unit of work.
type Item[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// Result is the outcome of one Item, stored at the item's submission index.
type Result[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process runs every item and returns results in submission order.
// A failing item never cancels its siblings; items not yet started when ctx
// is done report ctx.Err().
func Process[T any](ctx context.Context, pool *Pool, items []Item[T]) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	var g errgroup.Group
	g.SetLimit(pool.limit)

	for i, item := range items {
		g.Go(func() error {
			results[i].ID = item.ID
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = item.Execute(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
