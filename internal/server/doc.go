// Package server exposes the Threadline API over HTTP.
//
// The surface has four parts: the auth endpoints (config snapshot,
// password and header login, current user, logout), the session file
// endpoints (multipart upload and listing, both speaking file ids
// only), a websocket transport that attaches connections to sessions
// through the registry, and an SSE stream of lifecycle events.
//
// The websocket protocol exchanges JSON envelopes. Server-to-client
// frames are events, optionally carrying a correlation id when a
// reply is expected; client-to-server frames are method invocations
// dispatched through the session handler registry, or replies. When a
// socket drops, its session is marked for cleanup and deleted after a
// delay unless a reconnect claims it first.
package server
