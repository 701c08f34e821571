// internal/client/statecache_test.go
package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learning-tracker/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestCache(t *testing.T) *StateCache {
	cache, err := NewStateCache(t.TempDir(), logger.NewTestLogger(t))
	require.NoError(t, err)
	return cache
}

func activeState(sessionID string) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		UserID:    "alice",
		StartTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:    StateActive,
	}
}

// ==========================
// Save / Load
// ==========================

func TestStateCache_RoundTrip(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Save(activeState("sess-1")))

	state, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "sess-1", state.SessionID)
	assert.Equal(t, "alice", state.UserID)
	assert.Equal(t, StateActive, state.Status)
	assert.Equal(t, SchemaVersion, state.Version)
	assert.Equal(t, cache.TabID(), state.TabID)
	assert.False(t, state.LastUpdated.IsZero())
}

func TestStateCache_LoadMissingFile(t *testing.T) {
	cache := newTestCache(t)

	state, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateCache_MalformedFileTreatedAsAbsent(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, os.WriteFile(cache.path, []byte("{corrupt"), 0o644))

	state, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateCache_WrongSchemaVersionDiscarded(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, os.WriteFile(cache.path,
		[]byte(`{"version":99,"sessionId":"sess-1","lastUpdated":"2026-03-01T09:00:00Z"}`), 0o644))

	state, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateCache_StaleStateDiscarded(t *testing.T) {
	cache := newTestCache(t)

	saved := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return saved }
	require.NoError(t, cache.Save(activeState("sess-1")))

	cache.now = func() time.Time { return saved.Add(30 * time.Hour) }

	state, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateCache_Clear(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.Save(activeState("sess-1")))

	require.NoError(t, cache.Clear())
	state, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, state)

	// Clearing again is not an error.
	assert.NoError(t, cache.Clear())
}

// ==========================
// Recovery Data
// ==========================

func TestGetRecoveryData(t *testing.T) {
	tests := []struct {
		name          string
		age           time.Duration
		status        string
		wantMinutes   int
		wantRecover   bool
		wantInterrupt bool
	}{
		{"interrupted ten minutes ago", 10 * time.Minute, StateInterrupted, 10, true, true},
		{"active two minutes ago", 2 * time.Minute, StateActive, 2, true, false},
		{"stale thirty hours ago", 30 * time.Hour, StateInterrupted, 1800, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newTestCache(t)

			saved := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			cache.now = func() time.Time { return saved }
			state := activeState("sess-1")
			state.Status = tt.status
			require.NoError(t, cache.Save(state))

			cache.now = func() time.Time { return saved.Add(tt.age) }

			data, err := cache.GetRecoveryData()
			require.NoError(t, err)
			require.NotNil(t, data)
			assert.Equal(t, tt.wantMinutes, data.MinutesAgo)
			assert.Equal(t, tt.wantRecover, data.CanRecover)
			assert.Equal(t, tt.wantInterrupt, data.IsInterrupted)
		})
	}
}

func TestGetRecoveryData_NoState(t *testing.T) {
	cache := newTestCache(t)

	data, err := cache.GetRecoveryData()
	require.NoError(t, err)
	assert.Nil(t, data)
}

// ==========================
// Markers
// ==========================

func TestMarkInterrupted(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.Save(activeState("sess-1")))

	require.NoError(t, cache.MarkInterrupted())

	state, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, StateInterrupted, state.Status)
}

func TestMarkInterrupted_NoStateIsNoOp(t *testing.T) {
	cache := newTestCache(t)
	assert.NoError(t, cache.MarkInterrupted())
}

func TestMarkPendingSync(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.Save(activeState("sess-1")))

	require.NoError(t, cache.MarkPendingSync())

	state, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.PendingSync)
}

// ==========================
// Cross-Tab Watch
// ==========================

func TestWatch_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewTestLogger(t)

	reader, err := NewStateCache(dir, log)
	require.NoError(t, err)
	writer, err := NewStateCache(dir, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := reader.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Save(activeState("sess-other")))

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}

	state, err := reader.loadRaw()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, writer.TabID(), state.TabID)
	assert.NotEqual(t, reader.TabID(), state.TabID)
}

func TestWatch_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewStateCache(dir, logger.NewTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := cache.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	select {
	case <-changes:
		t.Fatal("unrelated file should not notify")
	case <-time.After(200 * time.Millisecond):
	}
}
