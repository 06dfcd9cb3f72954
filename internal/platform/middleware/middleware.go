// Package middleware holds the HTTP middleware shared by the presentation bridge.
package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	dErrors "appshell/pkg/domain-errors"
	"appshell/pkg/platform/httputil"
	"appshell/pkg/requestcontext"
)

// OriginBridge tags actions that arrived over the presentation bridge.
const OriginBridge = "bridge"

// Readiness reports whether a dependency has finished starting up.
type Readiness interface {
	Hydrated() bool
}

// RequestContext copies chi's request ID into requestcontext, pins the
// request time, and tags the origin. Mount it after chimw.RequestID.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithRequestID(ctx, chimw.GetReqID(ctx))
		ctx = requestcontext.WithTime(ctx, time.Now())
		ctx = requestcontext.WithOrigin(ctx, OriginBridge)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireHydrated answers 503 until the session has been restored from storage.
func RequireHydrated(ready Readiness) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ready.Hydrated() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "session not hydrated"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog writes one structured line per request.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "bridge request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
			)
		})
	}
}

// RateLimit rejects requests with 429 once limiter runs dry. Retry-After
// carries the seconds until the next token. A nil limiter disables it.
func RateLimit(limiter *rate.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				retryAfter := 1
				if l := limiter.Limit(); l > 0 && l != rate.Inf {
					retryAfter = max(1, int(math.Ceil(1/float64(l))))
				}
				logger.WarnContext(r.Context(), "bridge rate limit exceeded",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
