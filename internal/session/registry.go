package session

import (
	"context"
	"errors"
	"sync"

	"github.com/threadline-ai/threadline/internal/event"
	"github.com/threadline-ai/threadline/internal/logging"
)

// ErrNotFound is returned when a required session lookup fails.
var ErrNotFound = errors.New("session not found")

// Registry is the process-wide session state: one table keyed by
// socket id and one keyed by session id. Both tables live behind a
// single lock so that a reconnection re-keys the socket table
// atomically with respect to every lookup — no window where neither
// the old nor the new socket id resolves, and none where both do.
type Registry struct {
	mu       sync.RWMutex
	bySocket map[string]*WebsocketSession
	byID     map[string]*WebsocketSession
}

func NewRegistry() *Registry {
	return &Registry{
		bySocket: map[string]*WebsocketSession{},
		byID:     map[string]*WebsocketSession{},
	}
}

// ConnectOptions carries the per-connection arguments for Connect.
type ConnectOptions struct {
	Options

	SocketID string
	Emit     EmitFunc
	EmitCall EmitCallFunc
}

// Connect attaches a connection to its session. When no session
// exists for the session id a new one is created; otherwise the
// existing session is re-keyed to the new socket id with all other
// state untouched, its restored flag set, and any pending delayed
// cleanup cancelled. Returns the session and whether it was restored.
func (r *Registry) Connect(opts ConnectOptions) (*WebsocketSession, bool) {
	r.mu.Lock()
	existing := r.byID[opts.ID]
	if existing != nil {
		oldSocketID := existing.rekey(opts.SocketID, opts.Emit, opts.EmitCall)
		delete(r.bySocket, oldSocketID)
		r.bySocket[opts.SocketID] = existing
		r.mu.Unlock()

		event.Publish(event.Event{
			Type: event.SessionResumed,
			Data: event.SessionResumedData{
				SessionID:   existing.ID,
				OldSocketID: oldSocketID,
				NewSocketID: opts.SocketID,
			},
		})
		logging.Debug().
			Str("session_id", existing.ID).
			Str("socket_id", opts.SocketID).
			Msg("session restored")
		return existing, true
	}

	created := newWebsocketSession(opts.Options, opts.SocketID, opts.Emit, opts.EmitCall)
	r.byID[created.ID] = created
	r.bySocket[opts.SocketID] = created
	r.mu.Unlock()

	event.Publish(event.Event{
		Type: event.SessionConnected,
		Data: event.SessionConnectedData{
			SessionID:  created.ID,
			SocketID:   opts.SocketID,
			ThreadID:   created.ThreadID,
			ClientType: created.ClientType,
		},
	})
	logging.Debug().
		Str("session_id", created.ID).
		Str("socket_id", opts.SocketID).
		Msg("session created")
	return created, false
}

// GetBySocket returns the session for a socket id, or nil.
func (r *Registry) GetBySocket(socketID string) *WebsocketSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySocket[socketID]
}

// GetByID returns the session for a session id, or nil.
func (r *Registry) GetByID(sessionID string) *WebsocketSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[sessionID]
}

// RequireBySocket returns the session for a socket id, or ErrNotFound
// where the caller treats absence as a protocol error.
func (r *Registry) RequireBySocket(socketID string) (*WebsocketSession, error) {
	if s := r.GetBySocket(socketID); s != nil {
		return s, nil
	}
	return nil, ErrNotFound
}

// Disconnect marks the session currently owned by a socket for
// delayed deletion. Lookup and mark happen under the registry lock, so
// a reconnect that already re-keyed the session can never be flagged:
// the old socket id no longer resolves and Disconnect returns nil.
func (r *Registry) Disconnect(socketID string) *WebsocketSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.bySocket[socketID]
	if s == nil {
		return nil
	}
	s.markToClear()
	return s
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Delete removes the session from both tables, deletes its file
// directory, and releases its subsessions. File and subsession
// cleanup are best-effort: failures are logged and teardown still
// completes. Safe to call for a session that was already deleted or
// whose resources were never created.
func (r *Registry) Delete(ctx context.Context, s *WebsocketSession) {
	r.mu.Lock()
	socketID := s.SocketID()
	if r.bySocket[socketID] == s {
		delete(r.bySocket, socketID)
	}
	if r.byID[s.ID] == s {
		delete(r.byID, s.ID)
	}
	r.mu.Unlock()

	if err := s.removeFiles(); err != nil {
		logging.Warn().
			Err(err).
			Str("session_id", s.ID).
			Msg("failed to remove session files")
	}

	s.releaseSubsessions(ctx)

	event.Publish(event.Event{
		Type: event.SessionDeleted,
		Data: event.SessionDeletedData{SessionID: s.ID},
	})
	logging.Debug().
		Str("session_id", s.ID).
		Msg("session deleted")
}
