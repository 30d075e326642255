// Package ratelimit bounds per-client request rates over a fixed window.
//
// When Redis is available the window counters live in the shared store
// and the limit is cluster-wide; otherwise an in-memory limiter scoped
// to the single process is used, an accepted degradation under
// horizontal scaling.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a client exceeded its window limit.
var ErrRateLimited = errors.New("ratelimit: limit exceeded")

// Result describes the state of a client's window after one request was
// counted against it.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Limiter counts requests per client identity over a fixed window.
type Limiter interface {
	// Allow counts one request for clientID and reports whether it is
	// within the limit.
	Allow(ctx context.Context, clientID string) (Result, error)
}

// Config tunes the window limiter.
type Config struct {
	Window time.Duration // default 15 minutes
	Limit  int64         // default 50
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.Limit <= 0 {
		c.Limit = 50
	}
	return c
}

// New selects the backend: Redis when a client is provided, otherwise
// the in-process limiter.
func New(cfg Config, redisClient *redis.Client) Limiter {
	if redisClient != nil {
		return NewRedisLimiter(cfg, redisClient)
	}
	return NewMemoryLimiter(cfg)
}

// windowStart truncates now to the current window boundary.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

// RedisLimiter implements Limiter with atomic INCR + EXPIRE against the
// shared store. The store provides the atomicity; the application never
// performs read-modify-write cycles.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
}

func NewRedisLimiter(cfg Config, client *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg.withDefaults(),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, clientID string) (Result, error) {
	now := time.Now()
	start := windowStart(now, l.cfg.Window)
	resetAt := start.Add(l.cfg.Window)
	key := fmt.Sprintf("ratelimit:%s:%d", clientID, start.Unix())

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		// Degrade open: a broken store must not take the API down.
		return Result{Allowed: true, Limit: l.cfg.Limit, Remaining: l.cfg.Limit, ResetAt: resetAt},
			fmt.Errorf("redis incr failed: %w", err)
	}
	if count == 1 {
		// First hit in this window owns setting the expiry.
		if err := l.client.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return Result{Allowed: true, Limit: l.cfg.Limit, Remaining: l.cfg.Limit - 1, ResetAt: resetAt},
				fmt.Errorf("redis expire failed: %w", err)
		}
	}

	remaining := l.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= l.cfg.Limit,
		Limit:     l.cfg.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

type memoryWindow struct {
	start time.Time
	count int64
}

// MemoryLimiter is the single-process fallback.
type MemoryLimiter struct {
	cfg Config

	mu      sync.Mutex
	windows map[string]*memoryWindow
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg.withDefaults(),
		windows: make(map[string]*memoryWindow),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, clientID string) (Result, error) {
	now := time.Now()
	start := windowStart(now, l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[clientID]
	if !ok || w.start.Before(start) {
		w = &memoryWindow{start: start}
		l.windows[clientID] = w
	}
	w.count++

	// Opportunistic cleanup of other clients' dead windows.
	for id, win := range l.windows {
		if win.start.Before(start) {
			delete(l.windows, id)
		}
	}

	remaining := l.cfg.Limit - w.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   w.count <= l.cfg.Limit,
		Limit:     l.cfg.Limit,
		Remaining: remaining,
		ResetAt:   start.Add(l.cfg.Window),
	}, nil
}

// ClientID derives the rate-limit identity from a request's remote
// address, stripping the port when present.
func ClientID(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
