package models

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a learning session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// LearningSession is one durable row of tracked activity.
type LearningSession struct {
	ID              string                 `json:"id" db:"id"`
	UserID          string                 `json:"userId" db:"user_id"`
	StartTime       time.Time              `json:"startTime" db:"start_time"`
	EndTime         *time.Time             `json:"endTime,omitempty" db:"end_time"`
	DurationSeconds *int64                 `json:"durationSeconds,omitempty" db:"duration_seconds"`
	Status          SessionStatus          `json:"status" db:"status"`
	TimezoneOffset  int                    `json:"timezoneOffset" db:"timezone_offset"`
	Metadata        map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// IsTerminal reports whether the session can no longer transition.
func (s *LearningSession) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusCancelled
}

// ActiveSummary is the lightweight in-memory index entry for an active
// session. The durable table remains the source of truth.
type ActiveSummary struct {
	SessionID string        `json:"sessionId"`
	UserID    string        `json:"userId"`
	StartTime time.Time     `json:"startTime"`
	Status    SessionStatus `json:"status"`
}

// ActiveSession is the status-query view of a running session.
// ElapsedSeconds is computed at read time and never stored.
type ActiveSession struct {
	SessionID      string                 `json:"sessionId"`
	UserID         string                 `json:"userId"`
	StartTime      time.Time              `json:"startTime"`
	ElapsedSeconds int64                  `json:"elapsedSeconds"`
	TimezoneOffset int                    `json:"timezoneOffset"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// FormatDuration renders a second count as floor-minutes plus seconds,
// e.g. 125 -> "2m 5s".
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
