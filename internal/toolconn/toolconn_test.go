package toolconn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline-ai/threadline/pkg/types"
)

func TestConnect_UnknownType(t *testing.T) {
	c := NewConnector()
	_, err := c.Connect(context.Background(), "bad", types.ToolServerConfig{Type: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool server type")
}

func TestConnect_LocalRequiresCommand(t *testing.T) {
	c := NewConnector()
	_, err := c.Connect(context.Background(), "local", types.ToolServerConfig{Type: "local"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty command")
}

func TestConnect_RemoteRequiresURL(t *testing.T) {
	c := NewConnector()
	_, err := c.Connect(context.Background(), "remote", types.ToolServerConfig{Type: "remote"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty url")
}

func TestRelease_SafeWhenNeverConnected(t *testing.T) {
	conn := &Conn{Name: "x"}
	assert.NoError(t, conn.Release(context.Background()))
	assert.NoError(t, conn.Release(context.Background()))
}

func TestHTTPClientWithHeaders(t *testing.T) {
	var seen http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
	}))
	defer server.Close()

	client := httpClientWithHeaders(nil, map[string]string{"Authorization": "Bearer tok"})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok", seen.Get("Authorization"))
}

func TestHTTPClientWithHeaders_NoHeaders(t *testing.T) {
	client := httpClientWithHeaders(nil, nil)
	assert.Nil(t, client.Transport)
}
