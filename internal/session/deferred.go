package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/threadline-ai/threadline/internal/logging"
)

// Command is a deferred invocation: a method tag plus its serializable
// payload. Commands are queued while the session is mid-transition and
// dispatched later through a HandlerRegistry; no closures cross the
// queue boundary.
type Command struct {
	Method  string
	Payload any
}

// Handler executes one deferred command against its session.
type Handler func(ctx context.Context, s *WebsocketSession, payload any) error

// MethodEmit is the method tag under which client events are queued
// when the session has no live socket. See WebsocketSession.Emit.
const MethodEmit = "emit"

// EmitCommand is the payload queued under MethodEmit.
type EmitCommand struct {
	Event string
	Data  any
}

// RegisterEmitReplay binds MethodEmit so client events queued while
// the session had no live socket are delivered through its current
// connection on flush.
func RegisterEmitReplay(handlers *HandlerRegistry) {
	handlers.Register(MethodEmit, func(ctx context.Context, s *WebsocketSession, payload any) error {
		cmd, ok := payload.(EmitCommand)
		if !ok {
			return fmt.Errorf("emit: unexpected payload type %T", payload)
		}
		return s.Emit(cmd.Event, cmd.Data)
	})
}

// HandlerRegistry maps method tags to handlers. Registration happens
// at startup; dispatch is read-only and safe for concurrent use.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: map[string]Handler{}}
}

// Register binds a handler to a method tag, replacing any previous
// binding.
func (r *HandlerRegistry) Register(method string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = handler
}

// Handler returns the handler bound to a method tag.
func (r *HandlerRegistry) Handler(method string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[method]
	return h, ok
}

// dispatch runs one command, turning an unknown method into an error.
func (r *HandlerRegistry) dispatch(ctx context.Context, s *WebsocketSession, cmd Command) error {
	handler, ok := r.Handler(cmd.Method)
	if !ok {
		return fmt.Errorf("no handler registered for method %q", cmd.Method)
	}
	return handler(ctx, s, cmd.Payload)
}

// Defer queues a command under its method tag for later execution.
// Commands queued under the same method run in insertion order on
// flush; no ordering is promised across different methods.
func (s *WebsocketSession) Defer(method string, payload any) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.queues[method] = append(s.queues[method], Command{Method: method, Payload: payload})
}

// PendingCount returns the number of commands queued under a method.
func (s *WebsocketSession) PendingCount(method string) int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queues[method])
}

// Flush drains one method's queue in FIFO order. A failing entry is
// logged and skipped; it never blocks the entries behind it.
func (s *WebsocketSession) Flush(ctx context.Context, method string, handlers *HandlerRegistry) {
	s.queueMu.Lock()
	pending := s.queues[method]
	delete(s.queues, method)
	s.queueMu.Unlock()

	s.run(ctx, method, pending, handlers)
}

// FlushAll drains every method queue. FIFO order holds within each
// method; the order across methods is unspecified.
func (s *WebsocketSession) FlushAll(ctx context.Context, handlers *HandlerRegistry) {
	s.queueMu.Lock()
	queues := s.queues
	s.queues = map[string][]Command{}
	s.queueMu.Unlock()

	for method, pending := range queues {
		s.run(ctx, method, pending, handlers)
	}
}

func (s *WebsocketSession) run(ctx context.Context, method string, pending []Command, handlers *HandlerRegistry) {
	for _, cmd := range pending {
		if err := handlers.dispatch(ctx, s, cmd); err != nil {
			logging.Error().
				Err(err).
				Str("session_id", s.ID).
				Str("method", method).
				Msg("deferred call failed")
		}
	}
}
