package session

import (
	"context"
	"errors"
	"sync"
)

// EmitFunc sends an event to the client without waiting for a reply.
// Supplied by the transport; the session stores it opaquely.
type EmitFunc func(event string, data any) error

// EmitCallFunc sends an event to the client and waits for its reply.
type EmitCallFunc func(ctx context.Context, event string, data any) (any, error)

// ErrNoConnection is returned by EmitCall when the session has no live
// socket to carry the call.
var ErrNoConnection = errors.New("session has no live connection")

// WebsocketSession is the connection-bound session variant. The socket
// id names the current physical connection and is replaced by the
// Registry on every reconnection; all other state survives.
//
// The connection-bound fields are rewritten on reconnect while other
// goroutines (cleanup timers, handlers emitting to the client) read
// them, so they live behind the session's connection mutex.
type WebsocketSession struct {
	*Session

	connMu   sync.Mutex
	socketID string
	restored bool
	toClear  bool
	emit     EmitFunc
	emitCall EmitCallFunc

	queueMu sync.Mutex
	queues  map[string][]Command

	subMu       sync.Mutex
	subsessions map[string]*Subsession
}

func newWebsocketSession(opts Options, socketID string, emit EmitFunc, emitCall EmitCallFunc) *WebsocketSession {
	return &WebsocketSession{
		Session:     newSession(opts),
		socketID:    socketID,
		emit:        emit,
		emitCall:    emitCall,
		queues:      map[string][]Command{},
		subsessions: map[string]*Subsession{},
	}
}

// SocketID returns the id of the current physical connection.
func (s *WebsocketSession) SocketID() string {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.socketID
}

// Restored reports whether the session survived at least one
// reconnection.
func (s *WebsocketSession) Restored() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.restored
}

// ToClear reports whether the session is marked for delayed deletion.
func (s *WebsocketSession) ToClear() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.toClear
}

// rekey binds the session to a new physical connection, clearing any
// pending deletion mark. Called by the Registry under its lock so the
// table re-key and the field updates form one transition. Returns the
// previous socket id.
func (s *WebsocketSession) rekey(socketID string, emit EmitFunc, emitCall EmitCallFunc) string {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	old := s.socketID
	s.socketID = socketID
	s.restored = true
	s.toClear = false
	if emit != nil {
		s.emit = emit
	}
	if emitCall != nil {
		s.emitCall = emitCall
	}
	return old
}

// markToClear flags the session for delayed deletion. Called by the
// Registry when the session's socket disconnects.
func (s *WebsocketSession) markToClear() {
	s.connMu.Lock()
	s.toClear = true
	s.connMu.Unlock()
}

// Emit sends an event to the client over the current connection. When
// the session has no live socket the event is queued under MethodEmit
// instead and replays, in order, through the next connection.
func (s *WebsocketSession) Emit(event string, data any) error {
	s.connMu.Lock()
	emit := s.emit
	live := emit != nil && !s.toClear
	s.connMu.Unlock()

	if !live {
		s.Defer(MethodEmit, EmitCommand{Event: event, Data: data})
		return nil
	}
	return emit(event, data)
}

// EmitCall sends an event and waits for the client's reply. Unlike
// Emit it is never deferred: the caller wants an answer now.
func (s *WebsocketSession) EmitCall(ctx context.Context, event string, data any) (any, error) {
	s.connMu.Lock()
	emitCall := s.emitCall
	live := emitCall != nil && !s.toClear
	s.connMu.Unlock()

	if !live {
		return nil, ErrNoConnection
	}
	return emitCall(ctx, event, data)
}
