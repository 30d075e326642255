package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of concurrent in-flight provider calls per
// process. Excess callers block in FIFO order rather than issuing
// unbounded parallel outbound calls.
type Gate struct {
	sem *semaphore.Weighted
	max int64
}

// NewGate creates a gate allowing max concurrent holders. Default: 8.
func NewGate(max int64) *Gate {
	if max <= 0 {
		max = 8
	}
	return &Gate{
		sem: semaphore.NewWeighted(max),
		max: max,
	}
}

// Acquire blocks until a slot is free or ctx ends.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release frees a slot acquired with Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Max returns the configured concurrency limit.
func (g *Gate) Max() int64 {
	return g.max
}
