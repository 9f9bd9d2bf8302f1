package echo

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoServer_Echo(t *testing.T) {
	server := NewServer()

	echoTool := server.GetTool("echo")
	require.NotNil(t, echoTool, "echo tool should exist")

	tests := []struct {
		name     string
		args     map[string]any
		expected string
	}{
		{
			name:     "plain echo",
			args:     map[string]any{"text": "hello"},
			expected: "hello",
		},
		{
			name:     "uppercase echo",
			args:     map[string]any{"text": "hello", "upper": true},
			expected: "HELLO",
		},
		{
			name:     "upper false leaves text alone",
			args:     map[string]any{"text": "Hello", "upper": false},
			expected: "Hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := mcp.CallToolRequest{}
			request.Params.Name = "echo"
			request.Params.Arguments = tt.args

			result, err := echoTool.Handler(context.Background(), request)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.False(t, result.IsError)

			require.Len(t, result.Content, 1)
			textContent, ok := result.Content[0].(mcp.TextContent)
			require.True(t, ok, "content should be text")
			assert.Equal(t, tt.expected, textContent.Text)
		})
	}
}

func TestEchoServer_EchoRequiresText(t *testing.T) {
	server := NewServer()

	echoTool := server.GetTool("echo")
	require.NotNil(t, echoTool)

	request := mcp.CallToolRequest{}
	request.Params.Name = "echo"
	request.Params.Arguments = map[string]any{}

	result, err := echoTool.Handler(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, result.IsError, "missing text should produce a tool error")
}

func TestEchoServer_HasTools(t *testing.T) {
	server := NewServer()

	echoTool := server.GetTool("echo")
	require.NotNil(t, echoTool, "echo tool should exist")
	assert.Equal(t, "echo", echoTool.Tool.Name)

	timestampTool := server.GetTool("timestamp")
	require.NotNil(t, timestampTool, "timestamp tool should exist")
}
