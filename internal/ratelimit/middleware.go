package ratelimit

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jonnydry/progger/internal/metrics"
	"github.com/jonnydry/progger/pkg/logging"
)

// Middleware rejects over-limit clients with 429 before the request
// reaches any handler. This is a pre-flight check, not a retryable
// failure: a limited request never invokes the orchestrator.
func Middleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientID := ClientID(r.RemoteAddr)

			res, err := limiter.Allow(ctx, clientID)
			if err != nil {
				// Fail open on store errors; Result already says allowed.
				logging.L(ctx).Warn("rate_limiter_error",
					zap.String("client_id", clientID),
					zap.Error(err),
				)
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				metrics.RateLimitedTotal.Inc()
				logging.L(ctx).Info("rate_limited",
					zap.String("client_id", clientID),
					zap.Int64("limit", res.Limit),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests, please try again later"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
