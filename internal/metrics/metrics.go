package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: how many times we served from the result cache.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progger_cache_hits_total",
			Help: "Total number of result cache hits.",
		},
	)

	// Counter: cache entries explicitly invalidated (stale hits).
	CacheInvalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progger_cache_invalidations_total",
			Help: "Total number of cache entries deleted as stale.",
		},
	)

	// Counter: requests that attached to an already in-flight call.
	CoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progger_coalesced_requests_total",
			Help: "Total number of requests coalesced onto an in-flight call.",
		},
	)

	// Counter: upstream provider calls by outcome.
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progger_provider_calls_total",
			Help: "Total number of upstream provider calls.",
		},
		[]string{"outcome"}, // success | error
	)

	// Gauge: circuit breaker state (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "progger_circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open.",
		},
	)

	// Counter: requests rejected by the rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progger_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "progger_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheInvalidationsTotal,
		CoalescedTotal,
		ProviderCallsTotal,
		CircuitBreakerState,
		RateLimitedTotal,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		HTTPLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
