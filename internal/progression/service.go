// Package progression orchestrates one provider call per logical
// operation, composing the fingerprint builder, request coalescer,
// cache store, circuit breaker, retry executor, concurrency gate and
// response validator.
package progression

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonnydry/progger/internal/cache"
	"github.com/jonnydry/progger/internal/coalesce"
	"github.com/jonnydry/progger/internal/llm"
	"github.com/jonnydry/progger/internal/metrics"
	"github.com/jonnydry/progger/internal/music"
	"github.com/jonnydry/progger/internal/resilience"
	"github.com/jonnydry/progger/pkg/logging"
)

// ServiceConfig wires the service's collaborators. Breaker, coalescer
// and gate are per-process; only the cache store is cluster-wide.
type ServiceConfig struct {
	Cache       cache.Store
	CacheTTL    time.Duration // default 24h
	Provider    llm.Client
	Breaker     *resilience.CircuitBreaker
	Gate        *resilience.Gate
	RetryPolicy resilience.RetryPolicy

	// AdvancedRatio tunes the tension-chord floor applied by the
	// validator. Default 0.2.
	AdvancedRatio float64
}

// Service is the orchestrator for the generate and analyze operations.
type Service struct {
	cfg       ServiceConfig
	coalescer *coalesce.Group[*music.Result]
}

// NewService builds the orchestrator. Dependencies are explicit so
// tests construct fresh instances; nothing here is ambient state.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	if cfg.Gate == nil {
		cfg.Gate = resilience.NewGate(0)
	}
	return &Service{
		cfg:       cfg,
		coalescer: coalesce.NewGroup[*music.Result](coalesce.DefaultLinger, coalesce.DefaultMaxAge),
	}
}

// Generate produces a validated chord progression for the request.
// Identical concurrent requests share one provider call; identical
// requests within the TTL window share one cached result.
func (s *Service) Generate(ctx context.Context, req llm.GenerationRequest) (*music.Result, error) {
	fingerprint := cache.Fingerprint(req)
	system, user := llm.GenerationPrompt(req)

	opts := music.Options{
		ExpectedKey:        req.Key,
		ExpectedMode:       req.Mode,
		RequireTensions:    req.TensionsEnabled,
		ExpectedChordCount: req.ChordCount,
		AdvancedRatio:      s.cfg.AdvancedRatio,
	}

	return s.do(ctx, fingerprint, system, user, opts)
}

// AnalyzeCustom analyzes a caller-provided chord list. Same pipeline as
// Generate, under the custom: fingerprint namespace, with no chord
// count or style checks.
func (s *Service) AnalyzeCustom(ctx context.Context, chords []string) (*music.Result, error) {
	fingerprint := cache.CustomFingerprint(chords)
	system, user := llm.AnalysisPrompt(chords)

	return s.do(ctx, fingerprint, system, user, music.Options{})
}

func (s *Service) do(ctx context.Context, fingerprint, system, user string, opts music.Options) (*music.Result, error) {
	// The shared call must outlive any single waiter: other coalesced
	// callers may still need its result after the first client hangs
	// up. Values (request logger) are kept, cancellation is not.
	callCtx := context.WithoutCancel(ctx)

	result, err, shared := s.coalescer.Do(ctx, fingerprint, func() (*music.Result, error) {
		return s.fetch(callCtx, fingerprint, system, user, opts)
	})
	if shared {
		metrics.CoalescedTotal.Inc()
		logging.L(ctx).Debug("request coalesced",
			zap.String("fingerprint", fingerprint),
		)
	}
	return result, err
}

// fetch is the single in-flight computation for a fingerprint: cache
// lookup with staleness check, then a gated, breaker-guarded, retried
// provider call, validated and written back to the cache.
func (s *Service) fetch(ctx context.Context, fingerprint, system, user string, opts music.Options) (*music.Result, error) {
	logger := logging.L(ctx)

	if cached := s.lookupCache(ctx, fingerprint, opts); cached != nil {
		return cached, nil
	}

	if err := s.cfg.Gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.cfg.Gate.Release()

	var result *music.Result

	err := resilience.WithRetry(ctx, s.retryPolicy(logger), func(ctx context.Context) error {
		return s.cfg.Breaker.Execute(ctx, func(ctx context.Context) error {
			raw, err := s.cfg.Provider.Complete(ctx, system, user)
			if err != nil {
				metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
				return err
			}

			validated, err := music.Validate(raw, opts)
			if err != nil {
				metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
				logger.Warn("provider response failed validation",
					zap.String("fingerprint", fingerprint),
					zap.Error(err),
				)
				return err
			}

			metrics.ProviderCallsTotal.WithLabelValues("success").Inc()
			result = validated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.storeCache(ctx, fingerprint, result)
	return result, nil
}

// lookupCache returns a still-valid cached result, or nil. A hit that
// fails the semantic staleness check, or that no longer unmarshals, is
// deleted so the caller regenerates.
func (s *Service) lookupCache(ctx context.Context, fingerprint string, opts music.Options) *music.Result {
	logger := logging.L(ctx)

	raw, hit, err := s.cfg.Cache.Get(ctx, fingerprint)
	if err != nil || !hit {
		// Errors were logged by the cache layer; behave as cold cache.
		return nil
	}

	var result music.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		logger.Warn("cache entry corrupt, invalidating",
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
		_ = s.cfg.Cache.Delete(ctx, fingerprint)
		return nil
	}

	if opts.ExpectedKey != "" && !result.MatchesKeyMode(opts.ExpectedKey, opts.ExpectedMode) {
		logger.Info("cache entry stale, invalidating",
			zap.String("fingerprint", fingerprint),
			zap.String("expected_key", opts.ExpectedKey),
			zap.String("expected_mode", opts.ExpectedMode),
		)
		_ = s.cfg.Cache.Delete(ctx, fingerprint)
		return nil
	}

	return &result
}

func (s *Service) storeCache(ctx context.Context, fingerprint string, result *music.Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		logging.L(ctx).Warn("marshal result for cache", zap.Error(err))
		return
	}
	// Best-effort; a failed write only costs a future regeneration.
	_ = s.cfg.Cache.Set(ctx, fingerprint, raw, s.cfg.CacheTTL)
}

func (s *Service) retryPolicy(logger *zap.Logger) resilience.RetryPolicy {
	policy := s.cfg.RetryPolicy
	policy.RetryIf = retryable
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("provider call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return policy
}

// retryable classifies an error from one pipeline attempt. A breaker
// rejection is pointless to retry while open, and malformed data cannot
// be fixed by retrying; transport-level flakiness can.
func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	if music.IsValidationError(err) {
		return false
	}
	return llm.IsRetryable(err)
}
