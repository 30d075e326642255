package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds the process configuration, loaded once at startup.
type Config struct {
	Port string
	Env  string

	// Cache / shared store
	CacheBackend string // "memory" or "redis"
	RedisAddr    string
	CacheTTL     time.Duration

	// Upstream AI provider
	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderModel   string
	RequestTimeout  time.Duration

	// Outbound concurrency gate
	MaxConcurrency int64

	// Rate limiting (per client IP)
	RateLimitWindow time.Duration
	RateLimitMax    int64

	// Validation tuning: minimum share of advanced chords required when
	// tensions are requested.
	AdvancedChordRatio float64
}

// Load reads configuration from the environment, applying defaults for
// everything except the provider credential.
func Load() Config {
	return Config{
		Port:               getenv("PORT", "8080"),
		Env:                getenv("ENV", "production"),
		CacheBackend:       getenv("CACHE_BACKEND", "memory"),
		RedisAddr:          getenv("REDIS_ADDR", "127.0.0.1:6379"),
		CacheTTL:           getenvDuration("CACHE_TTL", 24*time.Hour),
		ProviderBaseURL:    getenv("PROVIDER_BASE_URL", "https://api.x.ai"),
		ProviderAPIKey:     os.Getenv("PROVIDER_API_KEY"),
		ProviderModel:      getenv("PROVIDER_MODEL", "grok-3-mini"),
		RequestTimeout:     getenvDuration("REQUEST_TIMEOUT", 25*time.Second),
		MaxConcurrency:     getenvInt("MAX_CONCURRENCY", 8),
		RateLimitWindow:    getenvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:       getenvInt("RATE_LIMIT_MAX", 50),
		AdvancedChordRatio: getenvFloat("ADVANCED_CHORD_RATIO", 0.2),
	}
}

// Validate checks the fatal startup conditions. A missing provider
// credential is not recoverable at runtime.
func (c Config) Validate() error {
	if c.ProviderAPIKey == "" {
		return errors.New("PROVIDER_API_KEY is required")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getenvInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
