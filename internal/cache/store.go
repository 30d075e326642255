package cache

import (
	"context"
	"time"
)

// Store is the key-value cache used for validated generation results.
// Implemented by the memory cache (dev) and the Redis cache (prod).
//
// Every method is best-effort: a transport failure surfaces as an error
// the caller logs and treats as a miss / no-op, so the rest of the
// system behaves exactly as it would on a cold cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Config selects and tunes the cache backend.
type Config struct {
	Backend string
	TTL     time.Duration
	Prefix  string
}
