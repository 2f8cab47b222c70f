package httputil

import (
	"context"
	"sync/atomic"
)

// Semaphore bounds concurrent backend calls so a burst of requests does
// not fan out into an unbounded number of in-flight model invocations.
type Semaphore struct {
	slots   chan struct{}
	dropped atomic.Int64
}

// NewSemaphore creates a semaphore with the given capacity. Capacity at
// or below zero defaults to 32.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 32
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// TryAcquire takes a slot without blocking. A false return means the
// caller should shed the call rather than queue it.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Acquire blocks for a slot until the context is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Only call after a successful acquire.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
	}
}

// Dropped reports how many calls were shed at capacity.
func (s *Semaphore) Dropped() int64 {
	return s.dropped.Load()
}

// InUse reports the slots currently held.
func (s *Semaphore) InUse() int {
	return len(s.slots)
}
