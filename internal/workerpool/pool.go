// Package workerpool bounds the number of in-flight upstream calls.
// The pipeline itself is sequential; the pool only caps concurrency
// across requests so a traffic burst cannot exhaust upstream quotas.
package workerpool

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool runs submitted tasks on a fixed set of workers.
type Pool struct {
	tasks  chan func()
	done   chan struct{}
	logger *zap.Logger
}

// New creates a pool with the given number of workers. Size defaults to 1
// when non-positive.
func New(size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		tasks:  make(chan func()),
		done:   make(chan struct{}),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			return
		}
	}
}

// Close stops the workers. Tasks already running finish; queued submissions
// waiting for a worker fail with ErrPoolClosed.
func (p *Pool) Close() {
	close(p.done)
}

// Future holds the eventual result of a submitted task.
type Future[T any] struct {
	ch  chan struct{}
	val T
	err error
}

// Wait blocks until the task finishes or ctx expires.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.ch:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn on the pool and returns a future for its result.
// The submission itself honors ctx so callers are not parked forever
// behind a saturated pool.
func Submit[T any](p *Pool, ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{ch: make(chan struct{})}

	task := func() {
		defer close(f.ch)
		f.val, f.err = fn(ctx)
	}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		f.err = ctx.Err()
		close(f.ch)
	case <-p.done:
		f.err = ErrPoolClosed
		close(f.ch)
	}
	return f
}
