package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jonnydry/progger/internal/handlers"
	"github.com/jonnydry/progger/internal/metrics"
	"github.com/jonnydry/progger/internal/middleware"
	"github.com/jonnydry/progger/internal/ratelimit"
)

func SetupRouter(
	r *chi.Mux,
	baseLogger *zap.Logger,
	limiter ratelimit.Limiter,
	progressionHandler *handlers.ProgressionHandler,
) {
	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer()) // panic recovery

	// API routes: rate limited pre-flight, then bounded per request.
	// The timeout covers the retried provider pipeline worst case.
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter))
		r.Use(middleware.Timeout(2 * time.Minute))
		r.Use(middleware.MaxBodySize(64 * 1024)) // 64 KB max body

		r.Post("/generate-progression", progressionHandler.Generate)
		r.Post("/analyze-custom-progression", progressionHandler.AnalyzeCustom)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
