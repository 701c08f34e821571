// internal/common/errors/errors_test.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	errorCount int
	warnCount  int
}

func (l *captureLogger) Error(msg string, fields map[string]interface{}) { l.errorCount++ }
func (l *captureLogger) Warn(msg string, fields map[string]interface{})  { l.warnCount++ }

// ==========================
// Constructor Tests
// ==========================

func TestConstructors_CodeAndKind(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		wantCode  ErrorCode
		wantKind  Kind
		retryable bool
	}{
		{"invalid user id", NewInvalidUserIDError("bad"), ErrCodeInvalidUserID, KindValidation, false},
		{"invalid session id", NewInvalidSessionIDError("bad"), ErrCodeInvalidSessionID, KindValidation, false},
		{"invalid date range", NewInvalidDateRangeError("yesterday"), ErrCodeInvalidDateRange, KindValidation, false},
		{"invalid months back", NewInvalidMonthsBackError(0), ErrCodeInvalidMonthsBack, KindValidation, false},
		{"invalid metadata", NewInvalidMetadataError("nested"), ErrCodeInvalidMetadata, KindValidation, false},
		{"already active", NewSessionAlreadyActiveError("user-1"), ErrCodeSessionAlreadyActive, KindConflict, false},
		{"ownership mismatch", NewSessionOwnershipMismatchError("sess-1"), ErrCodeSessionOwnershipMismatch, KindConflict, false},
		{"not found", NewSessionNotFoundError("sess-1"), ErrCodeSessionNotFound, KindNotFound, false},
		{"invalid state", NewInvalidSessionStateError("terminal"), ErrCodeInvalidSessionState, KindConflict, false},
		{"rate limited", NewRateLimitExceededError("1.2.3.4"), ErrCodeRateLimitExceeded, KindRateLimited, true},
		{"unavailable", NewServiceUnavailableError("recovering"), ErrCodeServiceUnavailable, KindUnavailable, true},
		{"persistence", NewPersistenceError("insert", stderrors.New("boom")), ErrCodePersistenceFailure, KindPersistence, true},
		{"timeout", NewRequestTimeoutError("status"), ErrCodeRequestTimeout, KindTimeout, true},
		{"internal", NewInternalError(stderrors.New("boom")), ErrCodeInternal, KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantKind, tt.err.Kind)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestStandardError_ErrorString(t *testing.T) {
	err := NewSessionNotFoundError("sess-42")
	assert.Contains(t, err.Error(), string(ErrCodeSessionNotFound))
}

// ==========================
// Normalization Tests
// ==========================

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		wantCode ErrorCode
		wantKind Kind
	}{
		{"nil passes through", nil, "", ""},
		{"standard error unchanged", NewSessionAlreadyActiveError("u"), ErrCodeSessionAlreadyActive, KindConflict},
		{"timeout text", stderrors.New("context deadline exceeded"), ErrCodeRequestTimeout, KindTimeout},
		{"no rows text", stderrors.New("sql: no rows in result set"), ErrCodeSessionNotFound, KindNotFound},
		{"duplicate text", stderrors.New("duplicate key value violates unique constraint"), ErrCodeSessionAlreadyActive, KindConflict},
		{"invalid text", stderrors.New("invalid input syntax"), ErrCodeInvalidSessionID, KindValidation},
		{"connection text", stderrors.New("connection refused"), ErrCodePersistenceFailure, KindPersistence},
		{"unknown text", stderrors.New("something odd"), ErrCodeInternal, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if tt.input == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantKind, got.Kind)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewPersistenceError("query", stderrors.New("down"))))
	assert.True(t, IsRetryable(stderrors.New("i/o timeout")))
	assert.False(t, IsRetryable(NewSessionAlreadyActiveError("u")))
}

// ==========================
// HTTP Mapping Tests
// ==========================

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindNotFound, http.StatusNotFound},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindPersistence, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.kind), string(tt.kind))
	}
}

func TestHandler_WriteHTTP(t *testing.T) {
	h := NewHandler(&captureLogger{})

	rec := httptest.NewRecorder()
	h.WriteHTTP(rec, NewSessionAlreadyActiveError("user-7"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeSessionAlreadyActive, resp.Error.Code)
	assert.False(t, resp.Error.Retryable)
	assert.NotEmpty(t, resp.Error.Message)
}

func TestHandler_WriteHTTP_NormalizesPlainErrors(t *testing.T) {
	h := NewHandler(&captureLogger{})

	rec := httptest.NewRecorder()
	h.WriteHTTP(rec, stderrors.New("sql: no rows in result set"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ==========================
// Redaction Tests
// ==========================

func TestRedact(t *testing.T) {
	fields := map[string]interface{}{
		"userId":   "user-1",
		"password": "hunter2",
		"api_key":  "abc123",
		"reason":   "personal note",
		"count":    3,
	}

	redacted := Redact(fields)

	assert.Equal(t, "user-1", redacted["userId"])
	assert.Equal(t, 3, redacted["count"])
	assert.Equal(t, "[REDACTED]", redacted["password"])
	assert.Equal(t, "[REDACTED]", redacted["api_key"])
	assert.Equal(t, "[REDACTED]", redacted["reason"])

	// Original map untouched.
	assert.Equal(t, "hunter2", fields["password"])
}
