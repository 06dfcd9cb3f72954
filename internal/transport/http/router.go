package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"appshell/internal/platform/middleware"
	"appshell/pkg/platform/httputil"
)

type routerConfig struct {
	limiter *rate.Limiter
	health  func(context.Context) error
}

type RouterOption func(*routerConfig)

// WithRateLimit throttles the session routes with limiter.
func WithRateLimit(limiter *rate.Limiter) RouterOption {
	return func(c *routerConfig) {
		c.limiter = limiter
	}
}

// WithHealthCheck adds a storage check to /healthz.
func WithHealthCheck(check func(context.Context) error) RouterOption {
	return func(c *routerConfig) {
		c.health = check
	}
}

// NewRouter wires the bridge. Session routes answer 503 until hydration
// completes; /healthz reports the same readiness plus the optional storage
// check, and /metrics is always up.
func NewRouter(h *Handler, logger *slog.Logger, gatherer prometheus.Gatherer, opts ...RouterOption) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	var cfg routerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !h.session.Hydrated() {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "hydrating"})
			return
		}
		if cfg.health != nil {
			if err := cfg.health(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "storage health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "storage_unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.limiter, logger))
		r.Use(middleware.RequireHydrated(h.session))
		h.Register(r)
	})
	return r
}
