package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonnydry/progger/internal/cache"
	"github.com/jonnydry/progger/internal/config"
	"github.com/jonnydry/progger/internal/handlers"
	"github.com/jonnydry/progger/internal/httpserver"
	"github.com/jonnydry/progger/internal/llm"
	"github.com/jonnydry/progger/internal/metrics"
	"github.com/jonnydry/progger/internal/progression"
	"github.com/jonnydry/progger/internal/ratelimit"
	"github.com/jonnydry/progger/internal/resilience"
	"github.com/jonnydry/progger/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("progger exited with error: %v", err)
	}
}

func run() error {
	// ----- Environment (.env is optional) -----
	_ = godotenv.Load()

	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.String("provider_base_url", cfg.ProviderBaseURL),
		zap.String("provider_model", cfg.ProviderModel),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Int64("max_concurrency", cfg.MaxConcurrency),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Cache store -----
	store := cache.NewStore(cache.Config{
		Backend: cfg.CacheBackend,
		TTL:     cfg.CacheTTL,
		Prefix:  "progger",
	}, redisClient)
	store = cache.NewLoggingStore(store)

	// ----- Rate limiter (cluster-wide when Redis is present) -----
	limiter := ratelimit.New(ratelimit.Config{
		Window: cfg.RateLimitWindow,
		Limit:  cfg.RateLimitMax,
	}, redisClient)
	if redisClient == nil {
		logger.Warn("rate limiter running in-process; limits are per instance, not cluster-wide")
	}

	// ----- Provider client -----
	providerClient, err := llm.NewClient(llm.Config{
		BaseURL:        cfg.ProviderBaseURL,
		APIKey:         cfg.ProviderAPIKey,
		Model:          cfg.ProviderModel,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := providerClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Resilience: one breaker per provider endpoint -----
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		OnStateChange: func(from, to resilience.State) {
			metrics.CircuitBreakerState.Set(float64(to))
			logger.Warn("circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	gate := resilience.NewGate(cfg.MaxConcurrency)

	// ----- Orchestrator -----
	service := progression.NewService(progression.ServiceConfig{
		Cache:         store,
		CacheTTL:      cfg.CacheTTL,
		Provider:      providerClient,
		Breaker:       breaker,
		Gate:          gate,
		RetryPolicy:   resilience.RetryPolicy{},
		AdvancedRatio: cfg.AdvancedChordRatio,
	})

	// ----- Handlers -----
	progressionHandler := handlers.NewProgressionHandler(service)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, limiter, progressionHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting progger",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
