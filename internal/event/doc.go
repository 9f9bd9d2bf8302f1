/*
Package event provides a type-safe pub/sub event system for the
Threadline server.

The event system lets the session registry and file store announce
lifecycle transitions without direct dependencies on their consumers
(the SSE stream, logging hooks, tests).

# Architecture

The package is built on top of watermill's gochannel for
infrastructure while maintaining direct-call semantics to preserve
type information. Both synchronous and asynchronous publishing are
supported.

# Event Types

Session events:
  - session.connected: a websocket session was bound to a socket
  - session.resumed: an existing session was re-keyed to a new socket
  - session.deleted: a session and its owned resources were torn down

Resource events:
  - file.persisted: a file entered a session's file store
  - subsession.opened / subsession.closed: tool subsession lifecycle
  - user.persisted: an ephemeral identity was written to the user store

# Usage

	unsub := event.Subscribe(event.SessionResumed, func(e event.Event) {
		data := e.Data.(event.SessionResumedData)
		// ...
	})
	defer unsub()

	event.Publish(event.Event{
		Type: event.SessionDeleted,
		Data: event.SessionDeletedData{SessionID: id},
	})

Publish delivers asynchronously, one goroutine per subscriber;
PublishSync delivers inline, which tests rely on for determinism.
*/
package event
