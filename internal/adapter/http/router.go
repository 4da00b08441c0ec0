package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/envelopes/internal/adapter/http/handler"
	"github.com/iho/envelopes/internal/adapter/http/middleware"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	BookHandler   *handler.BookHandler
	HealthHandler *handler.HealthHandler
	// RateLimiter throttles /api/v1 per client IP; nil disables it.
	RateLimiter *middleware.RateLimiter
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		r.Route("/books", func(r chi.Router) {
			r.Post("/", cfg.BookHandler.Create)

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", cfg.BookHandler.Get)
				r.Get("/verify", cfg.BookHandler.Verify)
				r.Put("/name", cfg.BookHandler.Rename)

				r.Post("/reconciliations", cfg.BookHandler.Reconcile)
				r.Delete("/reconciliations/{date}", cfg.BookHandler.RemoveLine)
				r.Put("/reconciliations/{date}/remarks", cfg.BookHandler.UpdateRemarks)

				r.Post("/buckets", cfg.BookHandler.TrackBucket)
				r.Put("/buckets/{code}/account", cfg.BookHandler.MoveBucket)
			})
		})
	})

	return r
}
