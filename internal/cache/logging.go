package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonnydry/progger/internal/metrics"
	"github.com/jonnydry/progger/pkg/logging"
)

// LoggingStore wraps a Store with structured logging + metrics.
type LoggingStore struct {
	inner Store
}

// NewLoggingStore returns a cache that logs and records metrics for every
// operation.
func NewLoggingStore(inner Store) Store {
	return &LoggingStore{inner: inner}
}

func (s *LoggingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.CacheHitsTotal.Inc()
	}

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}

	if err != nil {
		// Best-effort store: log at warn, caller proceeds as on a miss.
		logger.Warn("cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_get", fields...)
	}

	return value, ok, err
}

func (s *LoggingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.Duration("ttl", ttl),
		zap.Float64("latency_ms", latencyMs),
	}

	if err != nil {
		logger.Warn("cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_set", fields...)
	}

	return err
}

func (s *LoggingStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.inner.Exists(ctx, key)
	if err != nil {
		logging.L(ctx).Warn("cache_exists", zap.String("cache_key", key), zap.Error(err))
	}
	return ok, err
}

func (s *LoggingStore) Delete(ctx context.Context, key string) error {
	err := s.inner.Delete(ctx, key)
	logger := logging.L(ctx)
	if err != nil {
		logger.Warn("cache_delete", zap.String("cache_key", key), zap.Error(err))
	} else {
		metrics.CacheInvalidationsTotal.Inc()
		logger.Info("cache_delete", zap.String("cache_key", key))
	}
	return err
}
