package api

import (
	"net"
	"net/http"
	"time"

	"learning-tracker/internal/common/errors"
	"learning-tracker/internal/common/metrics"
)

// withRateLimit enforces the per-caller request cap before any handler
// runs, so a rejected request has no side effects.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := callerIdentifier(r)
		allowed, err := s.limiter.Allow(r.Context(), identifier)
		if err != nil {
			// A broken limiter backend must not take the API down.
			s.log.Warn("rate limiter check failed, allowing request", map[string]interface{}{
				"identifier": identifier,
				"error":      err.Error(),
			})
			allowed = true
		}
		if !allowed {
			metrics.RequestsRateLimited.Inc()
			s.errs.WriteHTTP(w, errors.NewRateLimitExceededError(identifier))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)

		metrics.RequestDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
		s.log.Debug("request handled", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"durationMs": elapsed.Milliseconds(),
		})
	})
}

// callerIdentifier keys the rate limiter by the caller's network address.
func callerIdentifier(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
