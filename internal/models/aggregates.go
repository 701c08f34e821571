package models

import "time"

// Totals summarizes a user's sessions over a named window.
type Totals struct {
	Range             string     `json:"range"`
	TotalSessions     int64      `json:"totalSessions"`
	CompletedSessions int64      `json:"completedSessions"`
	ActiveSessions    int64      `json:"activeSessions"`
	TotalSeconds      int64      `json:"totalSeconds"`
	AverageSeconds    float64    `json:"averageSeconds"`
	FirstSession      *time.Time `json:"firstSession,omitempty"`
	LastSession       *time.Time `json:"lastSession,omitempty"`
}

// CalendarDayAggregate is the per-day bucket for calendar views.
type CalendarDayAggregate struct {
	Date                  string `json:"date"`
	SessionCount          int64  `json:"sessionCount"`
	CompletedSessionCount int64  `json:"completedSessionCount"`
	TotalSeconds          int64  `json:"totalSeconds"`
	TotalMinutes          int64  `json:"totalMinutes"`
	Intensity             int    `json:"intensity"`
}

// DayStatistics is one row of the per-day statistics report.
type DayStatistics struct {
	Date                   string  `json:"date"`
	SessionCount           int64   `json:"sessionCount"`
	MinDurationSeconds     int64   `json:"minDurationSeconds"`
	MaxDurationSeconds     int64   `json:"maxDurationSeconds"`
	AverageDurationSeconds float64 `json:"averageDurationSeconds"`
}

// IntensityBucket maps logged minutes on a day to the 0-4 visual bucket.
func IntensityBucket(minutes int64) int {
	switch {
	case minutes <= 0:
		return 0
	case minutes < 30:
		return 1
	case minutes < 60:
		return 2
	case minutes < 120:
		return 3
	default:
		return 4
	}
}
