package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSEnvelope is the JSON frame exchanged over the websocket
type WSEnvelope struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Event  string          `json:"event,omitempty"`
	Method string          `json:"method,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// WSClient provides a websocket client for testing the session
// transport
type WSClient struct {
	BaseURL string

	conn *websocket.Conn

	mu     sync.Mutex
	frames []WSEnvelope
	framesCh chan WSEnvelope
	errCh  chan error
}

// NewWSClient creates a websocket test client
func NewWSClient(baseURL string) *WSClient {
	return &WSClient{
		BaseURL:   baseURL,
		framesCh: make(chan WSEnvelope, 100),
		errCh:     make(chan error, 1),
	}
}

// ConnectParams are the connect query parameters
type ConnectParams struct {
	SessionID   string
	ThreadID    string
	ClientType  string
	ChatProfile string
	Token       string
}

// Connect dials the websocket endpoint and starts reading frames
func (c *WSClient) Connect(params ConnectParams) error {
	wsURL := strings.Replace(c.BaseURL, "http://", "ws://", 1) + "/ws"

	q := url.Values{}
	if params.SessionID != "" {
		q.Set("sessionId", params.SessionID)
	}
	if params.ThreadID != "" {
		q.Set("threadId", params.ThreadID)
	}
	if params.ClientType != "" {
		q.Set("clientType", params.ClientType)
	}
	if params.ChatProfile != "" {
		q.Set("chatProfile", params.ChatProfile)
	}
	if encoded := q.Encode(); encoded != "" {
		wsURL += "?" + encoded
	}

	header := http.Header{}
	if params.Token != "" {
		header.Set("Authorization", "Bearer "+params.Token)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	c.conn = conn

	go c.readFrames()

	return nil
}

func (c *WSClient) readFrames() {
	defer close(c.framesCh)

	for {
		var env WSEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case c.errCh <- err:
				default:
				}
			}
			return
		}

		c.mu.Lock()
		c.frames = append(c.frames, env)
		c.mu.Unlock()

		select {
		case c.framesCh <- env:
		default:
			// Channel full, drop frame
		}
	}
}

// Invoke sends an invoke frame for a server-side method
func (c *WSClient) Invoke(method string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(WSEnvelope{
		Type:   "invoke",
		Method: method,
		Data:   payload,
	})
}

// Reply answers an earlier server call frame
func (c *WSClient) Reply(id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(WSEnvelope{
		Type: "reply",
		ID:   id,
		Data: payload,
	})
}

// WaitForEvent waits for an event frame with the given name
func (c *WSClient) WaitForEvent(event string, timeout time.Duration) (*WSEnvelope, error) {
	// Check already received frames first
	c.mu.Lock()
	for _, env := range c.frames {
		if env.Type == "event" && env.Event == event {
			c.mu.Unlock()
			return &env, nil
		}
	}
	c.mu.Unlock()

	deadline := time.After(timeout)
	for {
		select {
		case env, ok := <-c.framesCh:
			if !ok {
				return nil, fmt.Errorf("connection closed while waiting for event %q", event)
			}
			if env.Type == "event" && env.Event == event {
				return &env, nil
			}
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for event %q", event)
		}
	}
}

// WaitForCall waits for a call frame with the given event name
func (c *WSClient) WaitForCall(event string, timeout time.Duration) (*WSEnvelope, error) {
	deadline := time.After(timeout)
	for {
		select {
		case env, ok := <-c.framesCh:
			if !ok {
				return nil, fmt.Errorf("connection closed while waiting for call %q", event)
			}
			if env.Type == "call" && env.Event == event {
				return &env, nil
			}
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for call %q", event)
		}
	}
}

// Events returns all event frames with the given name received so far
func (c *WSClient) Events(event string) []WSEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []WSEnvelope
	for _, env := range c.frames {
		if env.Type == "event" && env.Event == event {
			matched = append(matched, env)
		}
	}
	return matched
}

// Close closes the websocket connection
func (c *WSClient) Close() {
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
}
