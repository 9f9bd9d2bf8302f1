// Package echo provides a small MCP tool server. It is the stock
// local tool server used in examples and integration tests for the
// tool subsession machinery.
package echo

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server exposing the echo and timestamp
// tools.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"echo",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	echoTool := mcp.NewTool("echo",
		mcp.WithDescription("Echoes the given text back to the caller"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to echo"),
		),
		mcp.WithBoolean("upper",
			mcp.Description("Uppercase the echoed text"),
		),
	)
	s.AddTool(echoTool, echoHandler)

	timestampTool := mcp.NewTool("timestamp",
		mcp.WithDescription("Returns the current time in RFC 3339 format"),
	)
	s.AddTool(timestampTool, timestampHandler)

	return s
}

// echoHandler handles the echo tool call.
func echoHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	text, ok := args["text"].(string)
	if !ok || text == "" {
		return mcp.NewToolResultError("text argument is required"), nil
	}

	if upper, _ := args["upper"].(bool); upper {
		text = strings.ToUpper(text)
	}

	return mcp.NewToolResultText(text), nil
}

// timestampHandler handles the timestamp tool call.
func timestampHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(time.Now().Format(time.RFC3339)), nil
}
