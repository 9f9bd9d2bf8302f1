package toolconn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/threadline-ai/threadline/pkg/types"
)

const defaultConnectTimeout = 5 * time.Second

// Connector opens connections to external tool servers. One Conn is
// created per session subsession; the Connector itself holds no
// per-connection state.
type Connector struct {
	client *sdkmcp.Client
}

func NewConnector() *Connector {
	return &Connector{
		client: sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    "threadline",
			Version: "1.0.0",
		}, nil),
	}
}

// Conn is a live connection to one tool server, owned by a session as
// a subsession. Release closes it.
type Conn struct {
	Name    string
	session *sdkmcp.ClientSession
	tools   []ToolInfo
}

// ToolInfo describes one tool offered by a connected server.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Connect opens a connection according to the server configuration:
// a local command over stdio, or a remote endpoint trying the
// streamable transport first and falling back to SSE.
func (c *Connector) Connect(ctx context.Context, name string, config types.ToolServerConfig) (*Conn, error) {
	timeout := time.Duration(config.Timeout) * time.Millisecond
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	switch config.Type {
	case "remote":
		return c.connectRemote(ctx, name, config, timeout)
	case "local", "stdio", "":
		return c.connectLocal(ctx, name, config, timeout)
	default:
		return nil, fmt.Errorf("unknown tool server type: %s", config.Type)
	}
}

func (c *Connector) connectLocal(ctx context.Context, name string, config types.ToolServerConfig, timeout time.Duration) (*Conn, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("tool server %s: empty command", name)
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(config.Command, config.Args...)
	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	return c.open(connectCtx, name, &sdkmcp.CommandTransport{Command: cmd}, timeout)
}

func (c *Connector) connectRemote(ctx context.Context, name string, config types.ToolServerConfig, timeout time.Duration) (*Conn, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("tool server %s: empty url", name)
	}

	httpClient := httpClientWithHeaders(nil, config.Headers)
	transports := []struct {
		name      string
		transport sdkmcp.Transport
	}{
		{name: "streamable", transport: &sdkmcp.StreamableClientTransport{Endpoint: config.URL, HTTPClient: httpClient}},
		{name: "sse", transport: &sdkmcp.SSEClientTransport{Endpoint: config.URL, HTTPClient: httpClient}},
	}

	var lastErr error
	for _, candidate := range transports {
		conn, err := c.open(ctx, name, candidate.transport, timeout)
		if err != nil {
			lastErr = fmt.Errorf("%s transport: %w", candidate.name, err)
			continue
		}
		return conn, nil
	}
	return nil, lastErr
}

func (c *Connector) open(ctx context.Context, name string, transport sdkmcp.Transport, timeout time.Duration) (*Conn, error) {
	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	conn := &Conn{Name: name, session: session}

	listCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := conn.listTools(listCtx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	return conn, nil
}

func (conn *Conn) listTools(ctx context.Context) error {
	result, err := conn.session.ListTools(ctx, nil)
	if err != nil {
		return err
	}

	conn.tools = make([]ToolInfo, len(result.Tools))
	for i, t := range result.Tools {
		info := ToolInfo{Name: t.Name, Description: t.Description}
		if t.InputSchema != nil {
			if schema, err := json.Marshal(t.InputSchema); err == nil {
				info.InputSchema = schema
			}
		}
		conn.tools[i] = info
	}
	return nil
}

// Tools returns the tools discovered at connect time.
func (conn *Conn) Tools() []ToolInfo {
	return conn.tools
}

// CallTool invokes one tool and returns its concatenated text output.
func (conn *Conn) CallTool(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	if conn.session == nil {
		return "", fmt.Errorf("tool server %s: connection released", conn.Name)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("failed to parse arguments: %w", err)
		}
	}

	result, err := conn.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      toolName,
		Arguments: argsMap,
	})
	if err != nil {
		return "", err
	}

	if result.IsError {
		for _, content := range result.Content {
			if text, ok := content.(*sdkmcp.TextContent); ok {
				return "", fmt.Errorf("tool error: %s", text.Text)
			}
		}
		return "", fmt.Errorf("tool execution failed")
	}

	var output strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			output.WriteString(text.Text)
		}
	}
	return output.String(), nil
}

// Release closes the connection. It satisfies the subsession release
// contract and is safe to call more than once.
func (conn *Conn) Release(ctx context.Context) error {
	if conn.session == nil {
		return nil
	}
	session := conn.session
	conn.session = nil
	return session.Close()
}

func httpClientWithHeaders(base *http.Client, headers map[string]string) *http.Client {
	if base == nil {
		base = &http.Client{}
	}

	client := *base
	client.Timeout = 0 // rely on per-request contexts

	if len(headers) == 0 {
		return &client
	}

	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	client.Transport = &headerRoundTripper{headers: headers, next: next}
	return &client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}
