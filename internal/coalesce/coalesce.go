// Package coalesce merges concurrent identical requests into one
// underlying operation with one shared result, keyed by fingerprint.
//
// It follows the singleflight model (one in-flight call per key, every
// concurrent caller observes the identical outcome) with two additions:
// a resolved call lingers briefly in the registry to absorb duplicates
// arriving in the same tick as the resolution, and unresolved calls are
// pruned after a maximum age so a provider call that never returns
// cannot wedge all subsequent identical requests.
package coalesce

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultLinger keeps a resolved call visible briefly so a
	// near-simultaneous duplicate still attaches instead of re-calling.
	DefaultLinger = time.Second

	// DefaultMaxAge bounds how long an unresolved call may occupy the
	// registry.
	DefaultMaxAge = 60 * time.Second
)

type call[V any] struct {
	done    chan struct{}
	val     V
	err     error
	created time.Time
}

// Group coalesces calls per key. The zero value is not usable; use
// NewGroup. Guarantees are per-process: each server process runs its own
// Group.
type Group[V any] struct {
	mu     sync.Mutex
	calls  map[string]*call[V]
	linger time.Duration
	maxAge time.Duration
}

// NewGroup creates a Group. Non-positive durations fall back to the
// defaults.
func NewGroup[V any](linger, maxAge time.Duration) *Group[V] {
	if linger <= 0 {
		linger = DefaultLinger
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Group[V]{
		calls:  make(map[string]*call[V]),
		linger: linger,
		maxAge: maxAge,
	}
}

// Do returns the result of fn for key, guaranteeing at most one fn in
// flight per key at a time. Concurrent callers for the same key wait on
// the same call and receive the identical value or error; shared reports
// whether this caller attached to a call started by another.
//
// A waiter whose own context ends returns early with the context error;
// the shared call keeps running, since other callers may still need its
// result.
func (g *Group[V]) Do(ctx context.Context, key string, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	g.pruneLocked(time.Now())

	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		return g.wait(ctx, c, true)
	}

	c := &call[V]{
		done:    make(chan struct{}),
		created: time.Now(),
	}
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	close(c.done)

	// Keep the resolved call around briefly, then drop it if it is
	// still the registered call for this key.
	time.AfterFunc(g.linger, func() {
		g.mu.Lock()
		if cur, ok := g.calls[key]; ok && cur == c {
			delete(g.calls, key)
		}
		g.mu.Unlock()
	})

	return c.val, c.err, false
}

// Pending reports whether a call is currently registered for key.
func (g *Group[V]) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}

func (g *Group[V]) wait(ctx context.Context, c *call[V], shared bool) (V, error, bool) {
	select {
	case <-c.done:
		return c.val, c.err, shared
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err(), shared
	}
}

// pruneLocked evicts calls older than maxAge regardless of resolution
// state. Existing waiters keep their call pointer; only the registry
// entry is dropped.
func (g *Group[V]) pruneLocked(now time.Time) {
	for key, c := range g.calls {
		if now.Sub(c.created) > g.maxAge {
			delete(g.calls, key)
		}
	}
}
