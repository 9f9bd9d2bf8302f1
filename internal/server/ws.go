package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/threadline-ai/threadline/internal/auth"
	"github.com/threadline-ai/threadline/internal/logging"
	"github.com/threadline-ai/threadline/internal/session"
	"github.com/threadline-ai/threadline/pkg/types"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound messages from the peer.
	maxMessageSize = 1 << 20

	// emitCallTimeout bounds how long EmitCall waits for a reply.
	emitCallTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEnvelope is the JSON frame exchanged over the websocket.
//
// Outbound: {type:"event", event, data} for fire-and-forget emits and
// {type:"call", id, event, data} for emits awaiting a client reply.
// Inbound: {type:"invoke", method, data} for client requests and
// {type:"reply", id, data} answering an earlier call.
type wsEnvelope struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Event  string          `json:"event,omitempty"`
	Method string          `json:"method,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// wsConn owns one physical websocket connection: the write pump, and
// the reply correlation table backing EmitCall.
type wsConn struct {
	conn *websocket.Conn
	send chan wsEnvelope

	mu      sync.Mutex
	pending map[string]chan json.RawMessage
	closed  bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn:    conn,
		send:    make(chan wsEnvelope, 256),
		pending: map[string]chan json.RawMessage{},
	}
}

// emit queues an event frame for the client.
func (c *wsConn) emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	return c.enqueue(wsEnvelope{Type: "event", Event: event, Data: payload})
}

// emitCall sends an event frame carrying a correlation id and waits
// for the client's reply.
func (c *wsConn) emitCall(ctx context.Context, event string, data any) (any, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal call data: %w", err)
	}

	id := ulid.Make().String()
	reply := make(chan json.RawMessage, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("connection closed")
	}
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.enqueue(wsEnvelope{Type: "call", ID: id, Event: event, Data: payload}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, emitCallTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw := <-reply:
		var result any
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to decode reply: %w", err)
		}
		return result, nil
	}
}

func (c *wsConn) enqueue(env wsEnvelope) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- env:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// resolveReply routes an inbound reply frame to its waiting caller.
func (c *wsConn) resolveReply(id string, data json.RawMessage) {
	c.mu.Lock()
	reply, ok := c.pending[id]
	c.mu.Unlock()
	if ok {
		select {
		case reply <- data:
		default:
		}
	}
}

func (c *wsConn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.send)
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// connectParams are the query parameters of a websocket connect.
type connectParams struct {
	SessionID   string
	ThreadID    string
	ClientType  types.ClientType
	ChatProfile string
	UserEnv     map[string]string
}

func parseConnectParams(r *http.Request) (connectParams, error) {
	q := r.URL.Query()
	params := connectParams{
		SessionID:   q.Get("sessionId"),
		ThreadID:    q.Get("threadId"),
		ClientType:  types.ClientType(q.Get("clientType")),
		ChatProfile: q.Get("chatProfile"),
	}
	if params.ClientType == "" {
		params.ClientType = types.ClientWebApp
	}
	if raw := q.Get("userEnv"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params.UserEnv); err != nil {
			return params, fmt.Errorf("invalid userEnv: %w", err)
		}
	}
	return params, nil
}

// handleWebsocket authenticates the request, upgrades it, and attaches
// the connection to its session: a fresh session for a new session id,
// or an atomic re-key of the existing one on reconnect.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.resolver.Authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeUnauthorized(w, "invalid or expired credential")
		return
	}

	params, err := parseConnectParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	ws := newWSConn(conn)
	go ws.writePump()

	socketID := ulid.Make().String()
	sess, restored := s.registry.Connect(session.ConnectOptions{
		Options: session.Options{
			ID:          params.SessionID,
			ThreadID:    params.ThreadID,
			Identity:    identity,
			ClientType:  params.ClientType,
			UserEnv:     params.UserEnv,
			ChatProfile: params.ChatProfile,
			FilesBase:   s.config.FilesBase,
		},
		SocketID: socketID,
		Emit:     ws.emit,
		EmitCall: ws.emitCall,
	})

	if restored {
		s.cancelCleanup(sess.ID)
	}

	ws.emit("connected", map[string]any{
		"sessionId": sess.ID,
		"threadId":  sess.ThreadID,
		"restored":  restored,
	})

	// Commands deferred while the session had no live socket run now,
	// in order, before new inbound traffic is handled.
	sess.FlushAll(r.Context(), s.handlers)

	s.readLoop(ws, sess, socketID)
}

// readLoop consumes inbound frames until the connection drops, then
// marks the session for delayed cleanup.
func (s *Server) readLoop(ws *wsConn, sess *session.WebsocketSession, socketID string) {
	defer func() {
		ws.close()
		ws.conn.Close()

		// Only the connection that currently owns the session tears it
		// down; Disconnect resolves ownership and marks the session in
		// one registry-locked step, so a concurrent reconnect can
		// never leave a live session flagged.
		if current := s.registry.Disconnect(socketID); current != nil {
			s.scheduleCleanup(current.ID)
		}
	}()

	ws.conn.SetReadLimit(maxMessageSize)
	ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("session_id", sess.ID).Msg("websocket read error")
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logging.Warn().Err(err).Str("session_id", sess.ID).Msg("invalid websocket frame")
			continue
		}

		switch env.Type {
		case "reply":
			ws.resolveReply(env.ID, env.Data)
		case "invoke":
			s.dispatch(ws, sess, env)
		default:
			logging.Warn().
				Str("session_id", sess.ID).
				Str("frame_type", env.Type).
				Msg("unknown websocket frame type")
		}
	}
}

// dispatch runs one inbound method invocation through the handler
// registry, guarded so a failing or panicking handler surfaces only a
// generic message to the client.
func (s *Server) dispatch(ws *wsConn, sess *session.WebsocketSession, env wsEnvelope) {
	var payload any
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logging.Warn().Err(err).Str("session_id", sess.ID).Msg("invalid invoke payload")
			return
		}
	}

	handler, ok := s.handlers.Handler(env.Method)
	if !ok {
		logging.Warn().
			Str("session_id", sess.ID).
			Str("method", env.Method).
			Msg("unknown method")
		return
	}

	if msg := session.Guard(context.Background(), sess.ID, env.Method, func(ctx context.Context) error {
		return handler(ctx, sess, payload)
	}); msg != "" {
		ws.emit("error", map[string]string{"message": msg})
	}
}
