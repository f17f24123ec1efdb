package server

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/semaphore"
)

// pool runs image work for sessions. With a positive size it bounds how many
// jobs run at once; with size zero every job runs immediately.
//
// Jobs run on the calling session's goroutine, never on the accept loop.
type pool struct {
	sem *semaphore.Weighted
}

func newPool(size int) *pool {
	if size <= 0 {
		return &pool{}
	}
	return &pool{sem: semaphore.NewWeighted(int64(size))}
}

// do runs fn once a slot is free. It returns ctx.Err() if ctx is done before
// a slot frees up. A panic in fn is recovered and returned as an error
// wrapping ErrTransform.
func (p *pool) do(ctx context.Context, fn func() error) (err error) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("waiting for worker: %w", err)
		}
		defer p.sem.Release(1)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v\n%s", ErrTransform, r, debug.Stack())
		}
	}()

	return fn()
}
