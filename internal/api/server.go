// Package api exposes the session lifecycle and aggregation operations over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"learning-tracker/internal/common/errors"
	"learning-tracker/internal/common/logger"
	"learning-tracker/internal/models"
	"learning-tracker/internal/ratelimit"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionService is the lifecycle surface the handlers call into.
type SessionService interface {
	StartSession(ctx context.Context, userID string, timezoneOffset int, metadata map[string]interface{}) (*models.StartResponse, error)
	StopSession(ctx context.Context, sessionID, userID string) (*models.StopResponse, error)
	CancelSession(ctx context.Context, sessionID, reason string) (*models.CancelResponse, error)
	GetActiveSession(ctx context.Context, userID string) (*models.ActiveSession, error)
	IsReady() bool
}

// StatsService is the read-only aggregation surface.
type StatsService interface {
	CalculateTotals(ctx context.Context, userID, rng string) (*models.Totals, error)
	GetCalendarData(ctx context.Context, userID string, monthsBack int) (map[string]models.CalendarDayAggregate, error)
	GetSessionStatistics(ctx context.Context, userID string, startDate, endDate *time.Time) ([]models.DayStatistics, error)
}

type Server struct {
	sessions  SessionService
	stats     StatsService
	limiter   ratelimit.Limiter
	errs      *errors.Handler
	log       logger.Logger
	startedAt time.Time
	mux       *http.ServeMux
}

func NewServer(sessions SessionService, stats StatsService, limiter ratelimit.Limiter, log logger.Logger) *Server {
	s := &Server{
		sessions:  sessions,
		stats:     stats,
		limiter:   limiter,
		errs:      errors.NewHandler(log),
		log:       log.WithFields(map[string]interface{}{"component": "api"}),
		startedAt: time.Now(),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/sessions/start", s.requirePost(s.handleStart))
	s.mux.HandleFunc("/api/v1/sessions/stop", s.requirePost(s.handleStop))
	s.mux.HandleFunc("/api/v1/sessions/cancel", s.requirePost(s.handleCancel))
	s.mux.HandleFunc("/api/v1/sessions/status", s.requireGet(s.handleStatus))
	s.mux.HandleFunc("/api/v1/sessions/totals", s.requireGet(s.handleTotals))
	s.mux.HandleFunc("/api/v1/sessions/calendar", s.requireGet(s.handleCalendar))
	s.mux.HandleFunc("/api/v1/sessions/statistics", s.requireGet(s.handleStatistics))
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the full middleware chain: rate limiting, then request
// logging, then routing.
func (s *Server) Handler() http.Handler {
	return s.withRateLimit(s.withRequestLog(s.mux))
}

func (s *Server) requirePost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) requireGet(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:        "healthy",
		Time:          time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "recovering"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
