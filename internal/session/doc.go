// Package session implements the conversation lifecycle core: the
// session entities, the process-wide registry, and the per-session
// owned resources.
//
// A Session binds a durable logical conversation (thread id, identity,
// user environment, uploaded files, chat settings) to its callers. It
// comes in two variants: HTTPSession for stateless API requests, and
// WebsocketSession for persistent connections. The websocket variant
// additionally owns its current socket id, transport emit capabilities,
// deferred command queues, and subsession handles.
//
// The Registry holds the two process-wide lookup tables, socket id to
// session and session id to session, behind a single lock. Reconnection
// re-keys the socket table atomically: a lookup racing a reconnect sees
// either the old binding or the new one, never both and never neither.
// Deleting a session removes both entries, the session's file
// directory, and every subsession, with per-resource failures logged
// and suppressed so teardown always completes.
//
// Deferred commands queued while a session is mid-transition are
// closed records (method tag plus payload) dispatched through a
// HandlerRegistry on flush, in FIFO order per method.
package session
