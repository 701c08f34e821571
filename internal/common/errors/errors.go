// Package errors provides the standardized error taxonomy for the session service.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// Kind classifies an error for retry and transport decisions.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindPersistence Kind = "persistence_failure"
	KindTimeout     Kind = "timeout"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// ErrorCode represents standardized machine-readable error codes.
type ErrorCode string

const (
	ErrCodeInvalidUserID     ErrorCode = "INVALID_USER_ID"
	ErrCodeInvalidSessionID  ErrorCode = "INVALID_SESSION_ID"
	ErrCodeInvalidDateRange  ErrorCode = "INVALID_DATE_RANGE"
	ErrCodeInvalidMonthsBack ErrorCode = "INVALID_MONTHS_BACK"
	ErrCodeInvalidMetadata   ErrorCode = "INVALID_METADATA"
	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"

	ErrCodeSessionAlreadyActive     ErrorCode = "SESSION_ALREADY_ACTIVE"
	ErrCodeSessionOwnershipMismatch ErrorCode = "SESSION_OWNERSHIP_MISMATCH"
	ErrCodeSessionNotFound          ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidSessionState      ErrorCode = "INVALID_SESSION_STATE"

	ErrCodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeRequestTimeout     ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidUserIDError creates a non-retryable validation error.
func NewInvalidUserIDError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidUserID,
		Kind:      KindValidation,
		Message:   "User identifier is malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidSessionIDError creates a non-retryable validation error.
func NewInvalidSessionIDError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSessionID,
		Kind:      KindValidation,
		Message:   "Session identifier is malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidDateRangeError creates a non-retryable validation error.
func NewInvalidDateRangeError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDateRange,
		Kind:      KindValidation,
		Message:   "Date range is not recognized",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidMonthsBackError creates a non-retryable validation error.
func NewInvalidMonthsBackError(monthsBack int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidMonthsBack,
		Kind:      KindValidation,
		Message:   "monthsBack must be between 1 and 24",
		Details:   fmt.Sprintf("monthsBack: %d", monthsBack),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidMetadataError creates a non-retryable validation error.
func NewInvalidMetadataError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidMetadata,
		Kind:      KindValidation,
		Message:   "Session metadata failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable validation error for
// malformed request envelopes.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Kind:      KindValidation,
		Message:   "Request body is malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionAlreadyActiveError signals the single-active-session invariant.
func NewSessionAlreadyActiveError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionAlreadyActive,
		Kind:      KindConflict,
		Message:   "An active session already exists for this user",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionOwnershipMismatchError signals a session owned by a different user.
func NewSessionOwnershipMismatchError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionOwnershipMismatch,
		Kind:      KindConflict,
		Message:   "Session is owned by a different user",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError signals a missing or already-terminal session.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Kind:      KindNotFound,
		Message:   "Session not found or no longer active",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidSessionStateError signals a broken lifecycle invariant.
func NewInvalidSessionStateError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSessionState,
		Kind:      KindConflict,
		Message:   "Session is in an invalid state",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitExceededError creates a transient rate-limit error.
func NewRateLimitExceededError(identifier string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimitExceeded,
		Kind:      KindRateLimited,
		Message:   "Too many requests, back off and retry later",
		Details:   fmt.Sprintf("identifier: %s", identifier),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewServiceUnavailableError signals the store has not finished recovery.
func NewServiceUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeServiceUnavailable,
		Kind:      KindUnavailable,
		Message:   "Service is not ready to accept requests",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError wraps a durable-store failure. Retryable only for
// read-only queries; mutating callers must never retry it.
func NewPersistenceError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailure,
		Kind:      KindPersistence,
		Message:   "Durable store operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestTimeoutError creates a client-side deadline error.
func NewRequestTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTimeout,
		Kind:      KindTimeout,
		Message:   "Request exceeded its deadline",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError creates a generic internal error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Kind:      KindInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Normalization
// ==========================

// Normalize ensures any error carries a taxonomy assignment. Errors that are
// already StandardError pass through; everything else is categorized
// heuristically from its message text as a legacy compatibility path.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return NewRequestTimeoutError(err.Error())
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no rows"):
		return NewSessionNotFoundError(err.Error())
	case strings.Contains(msg, "already active") || strings.Contains(msg, "duplicate"):
		return &StandardError{
			Code:      ErrCodeSessionAlreadyActive,
			Kind:      KindConflict,
			Message:   "An active session already exists for this user",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "malformed"):
		return &StandardError{
			Code:      ErrCodeInvalidSessionID,
			Kind:      KindValidation,
			Message:   "Request failed validation",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	case strings.Contains(msg, "connection") || strings.Contains(msg, "database") || strings.Contains(msg, "sql"):
		return NewPersistenceError("unknown", err)
	default:
		return NewInternalError(err)
	}
}

// IsRetryable reports whether the error may be retried by read-only callers.
func IsRetryable(err error) bool {
	return Normalize(err).Retryable
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == code
}
