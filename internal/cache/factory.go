package cache

import (
	"github.com/redis/go-redis/v9"
)

// NewStore selects the backend by Config.Backend: "redis" when a client
// is provided, otherwise the in-memory store.
func NewStore(cfg Config, redisClient *redis.Client) Store {
	switch {
	case cfg.Backend == "redis" && redisClient != nil:
		return NewRedisStore(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	default:
		return NewMemoryStore(0)
	}
}
