// Package store owns the session lifecycle: durable rows in Postgres, the
// in-memory index of active sessions, and recovery of that index at boot.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"learning-tracker/internal/common/errors"
	"learning-tracker/internal/common/logger"
	"learning-tracker/internal/common/metrics"
	"learning-tracker/internal/common/validation"
	"learning-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

// Store coordinates the durable session table with the active-session index.
// The index is a fast-path cache owned by the store and guarded by its
// mutex; the table is the source of truth.
type Store struct {
	db          *sql.DB
	log         logger.Logger
	longSession time.Duration
	now         func() time.Time

	mu     sync.RWMutex
	byID   map[string]models.ActiveSummary
	byUser map[string]string

	readyOnce sync.Once
	ready     chan struct{}
}

func New(db *sql.DB, log logger.Logger, longSessionHours int) *Store {
	if longSessionHours <= 0 {
		longSessionHours = 24
	}
	return &Store{
		db:          db,
		log:         log.WithFields(map[string]interface{}{"component": "session-store"}),
		longSession: time.Duration(longSessionHours) * time.Hour,
		now:         time.Now,
		byID:        make(map[string]models.ActiveSummary),
		byUser:      make(map[string]string),
		ready:       make(chan struct{}),
	}
}

// Ready is closed once boot recovery has completed. The API readiness probe
// and every store operation gate on it.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// IsReady reports readiness without blocking.
func (s *Store) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Initialize creates the schema and rebuilds the active index from durable
// state, then opens the readiness gate. It must complete before the server
// accepts its first request.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewPersistenceError("ensure schema", err)
	}
	if err := s.recover(ctx); err != nil {
		return err
	}
	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

func (s *Store) recover(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, start_time FROM learning_sessions WHERE status = 'active'`)
	if err != nil {
		return errors.NewPersistenceError("recovery scan", err)
	}
	defer rows.Close()

	byID := make(map[string]models.ActiveSummary)
	byUser := make(map[string]string)
	for rows.Next() {
		var summary models.ActiveSummary
		if err := rows.Scan(&summary.SessionID, &summary.UserID, &summary.StartTime); err != nil {
			return errors.NewPersistenceError("recovery scan", err)
		}
		summary.Status = models.StatusActive
		byID[summary.SessionID] = summary
		byUser[summary.UserID] = summary.SessionID
	}
	if err := rows.Err(); err != nil {
		return errors.NewPersistenceError("recovery scan", err)
	}

	s.mu.Lock()
	s.byID = byID
	s.byUser = byUser
	s.mu.Unlock()

	metrics.SessionsRecovered.Add(float64(len(byID)))
	metrics.SessionsActive.Set(float64(len(byID)))
	s.log.Info("active session index rebuilt", map[string]interface{}{
		"activeSessions": len(byID),
	})
	return nil
}

// awaitReady blocks until recovery finishes or the caller's context expires.
func (s *Store) awaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return errors.NewServiceUnavailableError("session store recovery in progress")
	}
}

// StartSession creates a new active session for userID. The check-and-create
// is a single INSERT; the partial unique index rejects a second active row.
func (s *Store) StartSession(ctx context.Context, userID string, timezoneOffset int, metadata map[string]interface{}) (*models.StartResponse, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	if err := validation.Metadata(metadata); err != nil {
		return nil, err
	}
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	startTime := s.now().UTC()

	var metadataJSON interface{}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, errors.NewInvalidMetadataError(err.Error())
		}
		metadataJSON = raw
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learning_sessions (id, user_id, start_time, status, timezone_offset, metadata)
		 VALUES ($1, $2, $3, 'active', $4, $5)`,
		sessionID, userID, startTime, timezoneOffset, metadataJSON)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			metrics.SessionsStarted.WithLabelValues("conflict").Inc()
			return nil, errors.NewSessionAlreadyActiveError(userID)
		}
		metrics.SessionsStarted.WithLabelValues("error").Inc()
		return nil, errors.NewPersistenceError("start session", err)
	}

	s.mu.Lock()
	s.byID[sessionID] = models.ActiveSummary{
		SessionID: sessionID,
		UserID:    userID,
		StartTime: startTime,
		Status:    models.StatusActive,
	}
	s.byUser[userID] = sessionID
	active := len(s.byID)
	s.mu.Unlock()

	metrics.SessionsStarted.WithLabelValues("success").Inc()
	metrics.SessionsActive.Set(float64(active))
	s.log.Info("session started", map[string]interface{}{
		"sessionId": sessionID,
		"userId":    userID,
	})

	return &models.StartResponse{SessionID: sessionID, StartTime: startTime}, nil
}

// StopSession completes an active session and returns its duration. The
// update is guarded on status='active' so a second stop of the same id
// reports SESSION_NOT_FOUND, per contract. Stop is not idempotent.
func (s *Store) StopSession(ctx context.Context, sessionID, userID string) (*models.StopResponse, error) {
	if err := validation.SessionID(sessionID); err != nil {
		return nil, err
	}
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}

	endTime := s.now().UTC()

	var durationSeconds int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE learning_sessions
		 SET status = 'completed', end_time = $1,
		     duration_seconds = CAST(EXTRACT(EPOCH FROM ($1::timestamptz - start_time)) AS BIGINT)
		 WHERE id = $2 AND user_id = $3 AND status = 'active' AND start_time <= $1
		 RETURNING duration_seconds`,
		endTime, sessionID, userID).Scan(&durationSeconds)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			stopErr := s.classifyStopFailure(ctx, sessionID, userID, endTime)
			metrics.SessionsStopped.WithLabelValues("rejected").Inc()
			return nil, stopErr
		}
		metrics.SessionsStopped.WithLabelValues("error").Inc()
		return nil, errors.NewPersistenceError("stop session", err)
	}

	s.removeFromIndex(sessionID)
	metrics.SessionsStopped.WithLabelValues("success").Inc()

	if time.Duration(durationSeconds)*time.Second > s.longSession {
		metrics.SessionsLong.Inc()
		s.log.Warn("long session completed", map[string]interface{}{
			"sessionId":       sessionID,
			"userId":          userID,
			"durationSeconds": durationSeconds,
		})
	}

	s.log.Info("session stopped", map[string]interface{}{
		"sessionId":       sessionID,
		"userId":          userID,
		"durationSeconds": durationSeconds,
	})

	return &models.StopResponse{EndTime: endTime, DurationSeconds: durationSeconds}, nil
}

// classifyStopFailure distinguishes not-found, ownership mismatch and broken
// start-time invariants after the guarded update matched no rows.
func (s *Store) classifyStopFailure(ctx context.Context, sessionID, userID string, endTime time.Time) error {
	var owner string
	var status models.SessionStatus
	var startTime time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, status, start_time FROM learning_sessions WHERE id = $1`,
		sessionID).Scan(&owner, &status, &startTime)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NewSessionNotFoundError(sessionID)
		}
		return errors.NewPersistenceError("stop session probe", err)
	}

	if owner != userID {
		return errors.NewSessionOwnershipMismatchError(sessionID)
	}
	if status != models.StatusActive {
		return errors.NewSessionNotFoundError(sessionID)
	}
	if startTime.After(endTime) {
		return errors.NewInvalidSessionStateError(
			fmt.Sprintf("sessionId: %s, start_time is in the future", sessionID))
	}
	return errors.NewSessionNotFoundError(sessionID)
}

// CancelSession marks an active session cancelled without computing a
// duration. The reason, when given, is merged into the metadata bag.
func (s *Store) CancelSession(ctx context.Context, sessionID, reason string) (*models.CancelResponse, error) {
	if err := validation.SessionID(sessionID); err != nil {
		return nil, err
	}
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}

	patch := "{}"
	if reason != "" {
		raw, err := json.Marshal(map[string]string{"cancelReason": reason})
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		patch = string(raw)
	}

	var owner string
	err := s.db.QueryRowContext(ctx,
		`UPDATE learning_sessions
		 SET status = 'cancelled', end_time = $1,
		     metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb
		 WHERE id = $3 AND status = 'active'
		 RETURNING user_id`,
		s.now().UTC(), patch, sessionID).Scan(&owner)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			metrics.SessionsCancelled.WithLabelValues("rejected").Inc()
			return nil, errors.NewSessionNotFoundError(sessionID)
		}
		metrics.SessionsCancelled.WithLabelValues("error").Inc()
		return nil, errors.NewPersistenceError("cancel session", err)
	}

	s.removeFromIndex(sessionID)
	metrics.SessionsCancelled.WithLabelValues("success").Inc()
	s.log.Info("session cancelled", map[string]interface{}{
		"sessionId": sessionID,
		"userId":    owner,
	})

	return &models.CancelResponse{Status: models.StatusCancelled}, nil
}

// GetActiveSession returns the user's running session with a freshly
// computed elapsed time, or nil when none is active.
func (s *Store) GetActiveSession(ctx context.Context, userID string) (*models.ActiveSession, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}

	var (
		sessionID      string
		startTime      time.Time
		timezoneOffset int
		metadataRaw    []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, start_time, timezone_offset, metadata
		 FROM learning_sessions WHERE user_id = $1 AND status = 'active'`,
		userID).Scan(&sessionID, &startTime, &timezoneOffset, &metadataRaw)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			s.dropStaleIndexEntry(userID)
			return nil, nil
		}
		return nil, errors.NewPersistenceError("get active session", err)
	}

	s.repairIndexEntry(sessionID, userID, startTime)

	var metadata map[string]interface{}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &metadata)
	}

	elapsed := int64(s.now().UTC().Sub(startTime).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	return &models.ActiveSession{
		SessionID:      sessionID,
		UserID:         userID,
		StartTime:      startTime,
		ElapsedSeconds: elapsed,
		TimezoneOffset: timezoneOffset,
		Metadata:       metadata,
	}, nil
}

// ActiveCount returns the size of the in-memory index.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ActiveSummaryFor returns the index entry for a user, if present.
func (s *Store) ActiveSummaryFor(userID string) (models.ActiveSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byUser[userID]
	if !ok {
		return models.ActiveSummary{}, false
	}
	summary, ok := s.byID[sessionID]
	return summary, ok
}

func (s *Store) removeFromIndex(sessionID string) {
	s.mu.Lock()
	if summary, ok := s.byID[sessionID]; ok {
		delete(s.byID, sessionID)
		delete(s.byUser, summary.UserID)
	}
	active := len(s.byID)
	s.mu.Unlock()
	metrics.SessionsActive.Set(float64(active))
}

// dropStaleIndexEntry removes an index entry the durable table no longer
// backs. The table wins every disagreement.
func (s *Store) dropStaleIndexEntry(userID string) {
	s.mu.Lock()
	sessionID, stale := s.byUser[userID]
	if stale {
		delete(s.byID, sessionID)
		delete(s.byUser, userID)
	}
	active := len(s.byID)
	s.mu.Unlock()
	if stale {
		metrics.SessionsActive.Set(float64(active))
		s.log.Warn("dropped stale active index entry", map[string]interface{}{
			"sessionId": sessionID,
			"userId":    userID,
		})
	}
}

func (s *Store) repairIndexEntry(sessionID, userID string, startTime time.Time) {
	s.mu.Lock()
	_, ok := s.byID[sessionID]
	if !ok {
		s.byID[sessionID] = models.ActiveSummary{
			SessionID: sessionID,
			UserID:    userID,
			StartTime: startTime,
			Status:    models.StatusActive,
		}
		s.byUser[userID] = sessionID
	}
	active := len(s.byID)
	s.mu.Unlock()
	if !ok {
		metrics.SessionsActive.Set(float64(active))
		s.log.Warn("repaired missing active index entry", map[string]interface{}{
			"sessionId": sessionID,
			"userId":    userID,
		})
	}
}
