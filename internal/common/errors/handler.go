package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler converts errors into HTTP responses with a taxonomy assignment.
type Handler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// ErrorResponse is the wire shape of every error the API returns.
type ErrorResponse struct {
	Error struct {
		Code      ErrorCode `json:"code"`
		Message   string    `json:"message"`
		Details   string    `json:"details,omitempty"`
		Retryable bool      `json:"retryable"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"error"`
}

// HTTPStatus maps an error kind to its HTTP-equivalent status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTP normalizes err, logs it with redacted metadata, and writes the
// JSON error envelope. Every error path in the API terminates here so that
// nothing propagates without a taxonomy assignment.
func (h *Handler) WriteHTTP(w http.ResponseWriter, err error) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Kind)

	fields := map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"kind":      string(stdErr.Kind),
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
		"status":    status,
	}
	if len(stdErr.Metadata) > 0 {
		fields["metadata"] = Redact(stdErr.Metadata)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(stdErr.Message, fields)
	} else {
		h.logger.Warn(stdErr.Message, fields)
	}

	var resp ErrorResponse
	resp.Error.Code = stdErr.Code
	resp.Error.Message = stdErr.Message
	resp.Error.Details = stdErr.Details
	resp.Error.Retryable = stdErr.Retryable
	resp.Error.Timestamp = stdErr.Timestamp

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// sensitiveKeys are never logged with their values.
var sensitiveKeys = map[string]bool{
	"password": true,
	"token":    true,
	"secret":   true,
	"apikey":   true,
	"api_key":  true,
	"reason":   true,
	"metadata": true,
	"notes":    true,
}

// Redact returns a copy of fields with sensitive values masked.
func Redact(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if sensitiveKeys[normalizeKey(k)] {
			out[k] = "[REDACTED]"
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func normalizeKey(k string) string {
	b := make([]byte, 0, len(k))
	for i := 0; i < len(k); i++ {
		c := k[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}
