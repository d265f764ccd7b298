package bsum

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool is the admission gate for concurrent file I/O. Every file being read
// holds at least one unit; a large file claims the whole capacity so that it
// is the only sequential read in flight. It is not a lock over any data.
type Pool struct {
	sem *semaphore.Weighted
	cap int
}

func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(capacity)), cap: capacity}
}

// Cap returns the total capacity of the pool.
func (p *Pool) Cap() int {
	return p.cap
}

// Acquire blocks until n units are simultaneously available. Acquisition is
// FIFO-fair, so a waiter asking for the full capacity cannot be starved by a
// stream of single-unit acquirers.
func (p *Pool) Acquire(n int) {
	if n <= 0 {
		return
	}
	// The context is never canceled, so Acquire cannot fail.
	_ = p.sem.Acquire(context.Background(), int64(n))
}

// Release returns n units to the pool. Releasing more than was acquired is a
// programming error and panics.
func (p *Pool) Release(n int) {
	p.sem.Release(int64(n))
}

// TryAcquire acquires n units without blocking, reporting whether it did.
func (p *Pool) TryAcquire(n int) bool {
	return p.sem.TryAcquire(int64(n))
}
