package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"learning-tracker/internal/common/errors"
	"learning-tracker/internal/common/httpx"
	"learning-tracker/internal/models"
)

const DefaultRequestTimeout = 5 * time.Second

// APIClient calls the session server. Every call carries a bounded timeout;
// deadline expiry surfaces as a timeout-kind error rather than hanging.
type APIClient struct {
	baseURL string
	http    *httpx.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &APIClient{
		baseURL: baseURL,
		http:    httpx.NewClient(timeout),
	}
}

func (c *APIClient) Start(ctx context.Context, userID string, timezoneOffset int, metadata map[string]interface{}) (*models.StartResponse, error) {
	var resp models.StartResponse
	err := c.post(ctx, "/api/v1/sessions/start", models.StartRequest{
		UserID:         userID,
		TimezoneOffset: timezoneOffset,
		Metadata:       metadata,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Stop(ctx context.Context, sessionID, userID string) (*models.StopResponse, error) {
	var resp models.StopResponse
	err := c.post(ctx, "/api/v1/sessions/stop", models.StopRequest{
		SessionID: sessionID,
		UserID:    userID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Cancel(ctx context.Context, sessionID, reason string) error {
	var resp models.CancelResponse
	return c.post(ctx, "/api/v1/sessions/cancel", models.CancelRequest{
		SessionID: sessionID,
		Reason:    reason,
	}, &resp)
}

// Status returns the user's active session, or nil when none is running.
func (c *APIClient) Status(ctx context.Context, userID string) (*models.ActiveSession, error) {
	req, err := http.NewRequest(http.MethodGet,
		fmt.Sprintf("%s/api/v1/sessions/status?userId=%s", c.baseURL, url.QueryEscape(userID)), nil)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	httpResp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, classifyTransportError("status", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, decodeErrorResponse(httpResp)
	}

	var resp models.StatusResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, errors.NewInternalError(err)
	}
	return resp.ActiveSession, nil
}

func (c *APIClient) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.NewInternalError(err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return classifyTransportError(path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= http.StatusBadRequest {
		return decodeErrorResponse(httpResp)
	}
	return json.NewDecoder(httpResp.Body).Decode(out)
}

// decodeErrorResponse reconstructs the server's StandardError from the wire
// envelope so callers can branch on stable codes.
func decodeErrorResponse(resp *http.Response) error {
	var envelope errors.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
		return errors.NewInternalError(fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	return &errors.StandardError{
		Code:      envelope.Error.Code,
		Kind:      kindForStatus(resp.StatusCode),
		Message:   envelope.Error.Message,
		Details:   envelope.Error.Details,
		Retryable: envelope.Error.Retryable,
		Timestamp: envelope.Error.Timestamp,
	}
}

func kindForStatus(status int) errors.Kind {
	switch status {
	case http.StatusBadRequest:
		return errors.KindValidation
	case http.StatusConflict:
		return errors.KindConflict
	case http.StatusNotFound:
		return errors.KindNotFound
	case http.StatusTooManyRequests:
		return errors.KindRateLimited
	case http.StatusServiceUnavailable:
		return errors.KindUnavailable
	case http.StatusGatewayTimeout:
		return errors.KindTimeout
	default:
		return errors.KindInternal
	}
}

func classifyTransportError(operation string, err error) error {
	var urlErr *url.Error
	if stderrors.Is(err, context.DeadlineExceeded) ||
		(stderrors.As(err, &urlErr) && urlErr.Timeout()) {
		return errors.NewRequestTimeoutError(operation)
	}
	return errors.NewInternalError(err)
}
