// Package limiter provides a bounded-parallelism gate for components that
// fan out to external calls.
package limiter

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

// ErrLimiterBusy is returned by TryDo when no permit is free.
var ErrLimiterBusy = errors.New("limiter: no permit available")

// Limiter is a counting semaphore with FIFO waiters. The permit is always
// released exactly once per admitted task, including when the task returns
// an error or panics.
type Limiter struct {
	sem     *semaphore.Weighted
	permits int
}

// New creates a limiter with n permits. n below 1 is treated as 1.
func New(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), permits: n}
}

// Permits returns the configured permit count.
func (l *Limiter) Permits() int { return l.permits }

// Do runs task once a permit is available, blocking in FIFO order behind
// earlier waiters. Context cancellation while waiting returns the context
// error without running the task.
func (l *Limiter) Do(ctx context.Context, task func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return task()
}

// TryDo runs task only if a permit is immediately free; otherwise it
// returns ErrLimiterBusy without blocking.
func (l *Limiter) TryDo(task func() error) error {
	if !l.sem.TryAcquire(1) {
		return ErrLimiterBusy
	}
	defer l.sem.Release(1)
	return task()
}
