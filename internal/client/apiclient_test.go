// internal/client/apiclient_test.go
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learning-tracker/internal/common/errors"
	"learning-tracker/internal/models"
)

func TestAPIClient_Start(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sessions/start", r.URL.Path)

		var req models.StartRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.UserID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.StartResponse{SessionID: "sess-1", StartTime: started})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	resp, err := c.Start(context.Background(), "alice", -300, nil)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.True(t, resp.StartTime.Equal(started))
}

func TestAPIClient_Stop_ErrorEnvelopeDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var envelope errors.ErrorResponse
		envelope.Error.Code = errors.ErrCodeSessionNotFound
		envelope.Error.Message = "Session not found or no longer active"
		envelope.Error.Timestamp = time.Now().UTC()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(envelope)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	_, err := c.Stop(context.Background(), "sess-gone", "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSessionNotFound))

	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.KindNotFound, stdErr.Kind)
}

func TestAPIClient_Status_NilWhenNoActiveSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.URL.Query().Get("userId"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.StatusResponse{})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	active, err := c.Status(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestAPIClient_Status_ReturnsActiveSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.StatusResponse{ActiveSession: &models.ActiveSession{
			SessionID: "sess-1", UserID: "alice", StartTime: start, ElapsedSeconds: 120,
		}})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	active, err := c.Status(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "sess-1", active.SessionID)
	assert.Equal(t, int64(120), active.ElapsedSeconds)
}

func TestAPIClient_TimeoutSurfacesAsTimeoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, 50*time.Millisecond)
	_, err := c.Status(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRequestTimeout))
}

func TestAPIClient_UndecodableErrorBecomesInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	err := c.Cancel(context.Background(), "sess-1", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
}
