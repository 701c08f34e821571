package client

import (
	"context"
	"time"

	"learning-tracker/internal/common/logger"
	"learning-tracker/internal/models"
)

const DefaultHeartbeatInterval = 30 * time.Second

// StatusClient is the slice of the server API the reconciler needs.
type StatusClient interface {
	Status(ctx context.Context, userID string) (*models.ActiveSession, error)
}

// DiscrepancyTag names which side of a disagreement holds the session.
type DiscrepancyTag string

const (
	// TagLocalActiveServerInactive means the cached state claims an active
	// session the server no longer knows about.
	TagLocalActiveServerInactive DiscrepancyTag = "local_active_server_inactive"
	// TagServerActiveLocalInactive means the server reports an active
	// session this process has no cached record of.
	TagServerActiveLocalInactive DiscrepancyTag = "server_active_local_inactive"
)

// SessionDiscrepancy reports a disagreement between the local cache and the
// server found during a resync pass.
type SessionDiscrepancy struct {
	Tag             DiscrepancyTag
	LocalSessionID  string
	ServerSessionID string
	UserID          string
	ObservedAt      time.Time
}

// SessionConflict reports that another process wrote an active session over
// this one's cached state.
type SessionConflict struct {
	SessionID   string
	LocalTabID  string
	RemoteTabID string
	ObservedAt  time.Time
}

// Event is either a SessionDiscrepancy or a SessionConflict.
type Event struct {
	Discrepancy *SessionDiscrepancy
	Conflict    *SessionConflict
}

// Reconciler keeps the local state cache consistent with the server. It runs
// a single goroutine that reacts to a heartbeat tick, visibility changes,
// connectivity changes, and state-file writes from other processes.
type Reconciler struct {
	cache      *StateCache
	api        StatusClient
	log        logger.Logger
	userID     string
	interval   time.Duration
	reqTimeout time.Duration
	now        func() time.Time

	visibility   chan bool
	connectivity chan bool
	changes      <-chan struct{}
	events       chan Event
}

func NewReconciler(cache *StateCache, api StatusClient, userID string, log logger.Logger) *Reconciler {
	return &Reconciler{
		cache:        cache,
		api:          api,
		log:          log,
		userID:       userID,
		interval:     DefaultHeartbeatInterval,
		reqTimeout:   DefaultRequestTimeout,
		now:          time.Now,
		visibility:   make(chan bool, 1),
		connectivity: make(chan bool, 1),
		events:       make(chan Event, 8),
	}
}

// SetHeartbeatInterval overrides the resync cadence. Call before Run.
func (r *Reconciler) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// WatchChanges wires a channel of state-file change notifications, normally
// the one returned by StateCache.Watch. Call before Run.
func (r *Reconciler) WatchChanges(ch <-chan struct{}) {
	r.changes = ch
}

// Events delivers discrepancies and conflicts found while reconciling.
// Events are dropped when the channel is full rather than blocking the loop.
func (r *Reconciler) Events() <-chan Event {
	return r.events
}

// SetVisible reports a foreground/background transition. Going visible
// triggers an immediate resync; hidden pauses the heartbeat.
func (r *Reconciler) SetVisible(visible bool) {
	sendLatest(r.visibility, visible)
}

// SetOnline reports a connectivity transition. Going offline marks cached
// state pending-sync; coming back online resyncs immediately.
func (r *Reconciler) SetOnline(online bool) {
	sendLatest(r.connectivity, online)
}

// sendLatest replaces a pending unconsumed value so the loop always sees the
// most recent transition. Single sender per channel.
func sendLatest(ch chan bool, v bool) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Run drives the reconcile loop until ctx is cancelled. On shutdown any
// cached active session is marked interrupted so the next launch can offer
// recovery.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Reconciler started", map[string]interface{}{
		"userId":            r.userID,
		"heartbeatInterval": r.interval.String(),
	})

	r.resync(ctx)

	hidden := false
	offline := false

	for {
		select {
		case <-ctx.Done():
			if err := r.cache.MarkInterrupted(); err != nil {
				r.log.WithError(err).Warn("Failed to mark session interrupted on shutdown", nil)
			}
			r.log.Info("Reconciler stopped", nil)
			return

		case <-ticker.C:
			if hidden || offline {
				continue
			}
			r.resync(ctx)

		case visible := <-r.visibility:
			hidden = !visible
			if visible {
				ticker.Reset(r.interval)
				if !offline {
					r.resync(ctx)
				}
			}

		case online := <-r.connectivity:
			offline = !online
			if offline {
				if err := r.cache.MarkPendingSync(); err != nil {
					r.log.WithError(err).Warn("Failed to mark state pending sync", nil)
				}
			} else {
				r.resync(ctx)
			}

		case _, ok := <-r.changes:
			if !ok {
				r.changes = nil
				continue
			}
			r.handleStorageChange()
		}
	}
}

// resync compares the cached session against the server's answer and emits a
// discrepancy event for each disagreement. The cache is corrected toward the
// server since the durable store is the source of truth.
func (r *Reconciler) resync(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, r.reqTimeout)
	defer cancel()

	server, err := r.api.Status(reqCtx, r.userID)
	if err != nil {
		r.log.WithError(err).Warn("Resync status check failed", map[string]interface{}{
			"userId": r.userID,
		})
		return
	}

	local, err := r.cache.Load()
	if err != nil {
		r.log.WithError(err).Warn("Resync could not read cached state", nil)
		return
	}

	localActive := local != nil && local.Status == StateActive

	switch {
	case localActive && server == nil:
		r.emit(Event{Discrepancy: &SessionDiscrepancy{
			Tag:            TagLocalActiveServerInactive,
			LocalSessionID: local.SessionID,
			UserID:         r.userID,
			ObservedAt:     r.now(),
		}})
		if err := r.cache.Clear(); err != nil {
			r.log.WithError(err).Warn("Failed to clear stale cached session", nil)
		}

	case !localActive && server != nil:
		r.emit(Event{Discrepancy: &SessionDiscrepancy{
			Tag:             TagServerActiveLocalInactive,
			ServerSessionID: server.SessionID,
			UserID:          r.userID,
			ObservedAt:      r.now(),
		}})
		if err := r.cache.Save(&SessionState{
			SessionID: server.SessionID,
			UserID:    server.UserID,
			StartTime: server.StartTime,
			Status:    StateActive,
		}); err != nil {
			r.log.WithError(err).Warn("Failed to adopt server session into cache", nil)
		}

	case localActive && server != nil && local.SessionID != server.SessionID:
		// Both sides claim a session but not the same one. Treat the local
		// record as the stale side and adopt the server's.
		r.emit(Event{Discrepancy: &SessionDiscrepancy{
			Tag:             TagLocalActiveServerInactive,
			LocalSessionID:  local.SessionID,
			ServerSessionID: server.SessionID,
			UserID:          r.userID,
			ObservedAt:      r.now(),
		}})
		if err := r.cache.Save(&SessionState{
			SessionID: server.SessionID,
			UserID:    server.UserID,
			StartTime: server.StartTime,
			Status:    StateActive,
		}); err != nil {
			r.log.WithError(err).Warn("Failed to adopt server session into cache", nil)
		}

	default:
		// Agreement. A pending-sync flag set while offline can be dropped.
		if local != nil && local.PendingSync {
			local.PendingSync = false
			if err := r.cache.Save(local); err != nil {
				r.log.WithError(err).Warn("Failed to clear pending sync flag", nil)
			}
		}
	}
}

// handleStorageChange reacts to another process rewriting the state file.
// Last write wins; this side only reports the takeover.
func (r *Reconciler) handleStorageChange() {
	state, err := r.cache.loadRaw()
	if err != nil || state == nil {
		return
	}
	if state.TabID == r.cache.TabID() || state.Status != StateActive {
		return
	}

	r.emit(Event{Conflict: &SessionConflict{
		SessionID:   state.SessionID,
		LocalTabID:  r.cache.TabID(),
		RemoteTabID: state.TabID,
		ObservedAt:  r.now(),
	}})
	r.log.Warn("Active session written by another tab", map[string]interface{}{
		"sessionId":   state.SessionID,
		"remoteTabId": state.TabID,
	})
}

func (r *Reconciler) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.log.Warn("Reconciler event dropped, consumer not keeping up", nil)
	}
}
