package models

import "time"

// Request/response payloads for the session API.

type StartRequest struct {
	UserID         string                 `json:"userId"`
	TimezoneOffset int                    `json:"timezoneOffset,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type StartResponse struct {
	SessionID string    `json:"sessionId"`
	StartTime time.Time `json:"startTime"`
}

type StopRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type StopResponse struct {
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int64     `json:"durationSeconds"`
}

type CancelRequest struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

type CancelResponse struct {
	Status SessionStatus `json:"status"`
}

type StatusResponse struct {
	ActiveSession *ActiveSession `json:"activeSession"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Time          string `json:"time"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}
