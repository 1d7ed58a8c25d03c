package collector

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 8
	MaxConcurrency     = 64
)

// Pool runs indexed tasks with bounded parallelism.
type Pool struct {
	limit int
}

// NewPool returns a pool running at most limit tasks at once. A limit outside
// 1..MaxConcurrency is clamped; zero means DefaultConcurrency.
func NewPool(limit int) *Pool {
	switch {
	case limit == 0:
		limit = DefaultConcurrency
	case limit < 1:
		limit = 1
	case limit > MaxConcurrency:
		limit = MaxConcurrency
	}
	return &Pool{limit: limit}
}

func (p *Pool) Limit() int {
	return p.limit
}

// Run calls task for every index in [0, n) and waits for all of them. Tasks report
// per-item problems through their own result slot; a returned error or a panic
// cancels the remaining tasks and is returned. Run also fails when ctx is done.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task %d panicked: %v", i, r)
				}
			}()
			return task(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
