// Package client holds the browser-side half of the session subsystem: a
// persistent mirror of "my current session" and the reconciler that keeps it
// honest against the server.
package client

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"learning-tracker/internal/common/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const (
	SchemaVersion = 1

	StateActive      = "active"
	StateInterrupted = "interrupted"

	stateFileName    = "session_state.json"
	DefaultStaleness = 24 * time.Hour
)

// SessionState is the locally persisted snapshot of the current session.
type SessionState struct {
	Version     int       `json:"version"`
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	StartTime   time.Time `json:"startTime"`
	LastUpdated time.Time `json:"lastUpdated"`
	TabID       string    `json:"tabId"`
	Status      string    `json:"status"`
	PendingSync bool      `json:"pendingSync"`
}

// RecoveryData feeds the "resume your session?" prompt.
type RecoveryData struct {
	MinutesAgo    int  `json:"minutesAgo"`
	CanRecover    bool `json:"canRecover"`
	IsInterrupted bool `json:"isInterrupted"`
}

// StateCache persists SessionState as a JSON file in the profile directory,
// standing in for browser local storage. Writes are atomic (temp file plus
// rename) so watchers in other tabs never observe a partial write. Access
// across tabs is last-write-wins with no locking.
type StateCache struct {
	path      string
	tabID     string
	staleness time.Duration
	now       func() time.Time
	log       logger.Logger
}

func NewStateCache(dir string, log logger.Logger) (*StateCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &StateCache{
		path:      filepath.Join(dir, stateFileName),
		tabID:     uuid.NewString(),
		staleness: DefaultStaleness,
		now:       time.Now,
		log:       log.WithFields(map[string]interface{}{"component": "state-cache"}),
	}, nil
}

// TabID is stable for the lifetime of this process, the analog of a
// tab-scoped identifier.
func (c *StateCache) TabID() string {
	return c.tabID
}

// Save overwrites the stored state, stamping version, tab id and the update
// time.
func (c *StateCache) Save(state *SessionState) error {
	snapshot := *state
	snapshot.Version = SchemaVersion
	snapshot.TabID = c.tabID
	snapshot.LastUpdated = c.now().UTC()

	raw, err := json.Marshal(&snapshot)
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Load returns the stored state, or nil when it is missing, malformed,
// from a different schema version, or older than the staleness ceiling.
func (c *StateCache) Load() (*SessionState, error) {
	state, err := c.loadRaw()
	if err != nil || state == nil {
		return nil, err
	}
	if c.now().UTC().Sub(state.LastUpdated) > c.staleness {
		c.log.Info("discarding stale session state", map[string]interface{}{
			"sessionId":   state.SessionID,
			"lastUpdated": state.LastUpdated,
		})
		return nil, nil
	}
	return state, nil
}

// loadRaw reads and validates the stored state without the staleness
// filter. Invalid content is treated as absent, not as an error.
func (c *StateCache) loadRaw() (*SessionState, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var state SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		c.log.Warn("discarding malformed session state", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}
	if state.Version != SchemaVersion || state.SessionID == "" || state.LastUpdated.IsZero() {
		return nil, nil
	}
	return &state, nil
}

// Clear removes the stored state.
func (c *StateCache) Clear() error {
	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetRecoveryData derives the recovery prompt view. A snapshot past the
// staleness ceiling still reports its age, with CanRecover false, so the
// caller can surface the loss instead of silently forgetting it.
func (c *StateCache) GetRecoveryData() (*RecoveryData, error) {
	state, err := c.loadRaw()
	if err != nil || state == nil {
		return nil, err
	}

	age := c.now().UTC().Sub(state.LastUpdated)
	return &RecoveryData{
		MinutesAgo:    int(age.Minutes()),
		CanRecover:    age <= c.staleness,
		IsInterrupted: state.Status == StateInterrupted,
	}, nil
}

// MarkInterrupted flags an active snapshot as interrupted. Called from the
// unload path; best-effort only, the server-side recovery scan is the
// guaranteed mechanism.
func (c *StateCache) MarkInterrupted() error {
	state, err := c.loadRaw()
	if err != nil || state == nil {
		return err
	}
	if state.Status != StateActive {
		return nil
	}
	state.Status = StateInterrupted
	return c.Save(state)
}

// MarkPendingSync flags the snapshot as awaiting a resync after an offline
// period.
func (c *StateCache) MarkPendingSync() error {
	state, err := c.loadRaw()
	if err != nil || state == nil {
		return err
	}
	if state.PendingSync {
		return nil
	}
	state.PendingSync = true
	return c.Save(state)
}

// Watch emits a notification whenever another writer updates the state
// file. This is the cross-tab change channel; consumers must tolerate
// last-write-wins.
func (c *StateCache) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: the atomic rename replaces the file inode, so a
	// watch on the file itself would go stale after the first write.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != c.path {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.log.Warn("state watcher error", map[string]interface{}{
					"error": watchErr.Error(),
				})
			}
		}
	}()
	return changes, nil
}
