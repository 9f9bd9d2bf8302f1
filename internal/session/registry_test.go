package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry()
}

func connectOpts(t *testing.T, sessionID, socketID string) ConnectOptions {
	t.Helper()
	return ConnectOptions{
		Options: Options{
			ID:        sessionID,
			FilesBase: t.TempDir(),
		},
		SocketID: socketID,
	}
}

func TestRegistry_ConnectCreatesSession(t *testing.T) {
	r := newTestRegistry(t)

	s, restored := r.Connect(connectOpts(t, "s1", "a"))
	require.NotNil(t, s)
	assert.False(t, restored)
	assert.False(t, s.Restored())
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "a", s.SocketID())
	assert.NotEmpty(t, s.ThreadID)

	assert.Same(t, s, r.GetBySocket("a"))
	assert.Same(t, s, r.GetByID("s1"))
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_Reconnect(t *testing.T) {
	r := newTestRegistry(t)

	first, restored := r.Connect(connectOpts(t, "s1", "a"))
	require.False(t, restored)

	second, restored := r.Connect(connectOpts(t, "s1", "b"))
	require.True(t, restored)

	assert.Same(t, first, second, "reconnection must return the existing entity")
	assert.True(t, second.Restored())
	assert.Equal(t, "b", second.SocketID())
	assert.Nil(t, r.GetBySocket("a"), "old socket id must no longer resolve")
	assert.Same(t, first, r.GetBySocket("b"))
	assert.Same(t, first, r.GetByID("s1"))
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_ReconnectPreservesState(t *testing.T) {
	r := newTestRegistry(t)

	opts := connectOpts(t, "s1", "a")
	opts.ThreadID = "thread-1"
	s, _ := r.Connect(opts)

	s.SetChatSettings(map[string]any{"model": "fast"})
	_, err := s.PersistText(context.Background(), "notes.txt", "text/plain", "hello")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		reconnect := connectOpts(t, "s1", fmt.Sprintf("sock-%d", i))
		re, restored := r.Connect(reconnect)
		require.True(t, restored)
		require.Same(t, s, re)
	}

	assert.Equal(t, "thread-1", s.ThreadID)
	assert.Equal(t, map[string]any{"model": "fast"}, s.ChatSettings())
	assert.Len(t, s.Files(), 1)
}

func TestRegistry_ReconnectCancelsPendingClear(t *testing.T) {
	r := newTestRegistry(t)

	s, _ := r.Connect(connectOpts(t, "s1", "a"))
	require.Same(t, s, r.Disconnect("a"))
	require.True(t, s.ToClear())

	re, restored := r.Connect(connectOpts(t, "s1", "b"))
	require.True(t, restored)
	assert.False(t, re.ToClear())
}

func TestRegistry_DisconnectAfterReconnect(t *testing.T) {
	r := newTestRegistry(t)

	s, _ := r.Connect(connectOpts(t, "s1", "a"))
	_, restored := r.Connect(connectOpts(t, "s1", "b"))
	require.True(t, restored)

	// The old connection's teardown runs after the reconnect already
	// re-keyed the session: it must not flag the live session.
	assert.Nil(t, r.Disconnect("a"))
	assert.False(t, s.ToClear())

	assert.Same(t, s, r.Disconnect("b"))
	assert.True(t, s.ToClear())
}

func TestRegistry_RequireBySocket(t *testing.T) {
	r := newTestRegistry(t)
	r.Connect(connectOpts(t, "s1", "a"))

	s, err := r.RequireBySocket("a")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)

	_, err = r.RequireBySocket("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Delete(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Connect(connectOpts(t, "s1", "a"))

	_, err := s.PersistText(context.Background(), "notes.txt", "text/plain", "hello")
	require.NoError(t, err)
	require.DirExists(t, s.FilesDir())

	released := false
	s.AddSubsession(context.Background(), NewSubsession("tool", nil, func(context.Context) error {
		released = true
		return nil
	}))

	r.Delete(context.Background(), s)

	assert.Nil(t, r.GetBySocket("a"))
	assert.Nil(t, r.GetByID("s1"))
	assert.True(t, released, "subsession must be released on delete")
	_, statErr := os.Stat(s.FilesDir())
	assert.True(t, os.IsNotExist(statErr), "file directory must be removed")
}

func TestRegistry_DeleteSurvivesReleaseFailure(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Connect(connectOpts(t, "s1", "a"))

	order := []string{}
	s.AddSubsession(context.Background(), NewSubsession("bad", nil, func(context.Context) error {
		order = append(order, "bad")
		return errors.New("release failed")
	}))
	s.AddSubsession(context.Background(), NewSubsession("good", nil, func(context.Context) error {
		order = append(order, "good")
		return nil
	}))

	r.Delete(context.Background(), s)

	assert.Len(t, order, 2, "every release must run despite failures")
	assert.Nil(t, r.GetByID("s1"))
}

func TestRegistry_DeleteIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.Connect(connectOpts(t, "s1", "a"))

	// Files dir was never created, no subsessions exist.
	r.Delete(context.Background(), s)
	r.Delete(context.Background(), s)

	assert.Equal(t, 0, r.Count())
}

func TestRegistry_ConcurrentReconnects(t *testing.T) {
	r := newTestRegistry(t)
	r.Connect(connectOpts(t, "s1", "sock-0"))

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		opts := connectOpts(t, "s1", fmt.Sprintf("sock-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Connect(opts)
		}()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Lookups racing the re-key must see a consistent registry.
			r.GetByID("s1")
			r.GetBySocket(fmt.Sprintf("sock-%d", i))
		}(i)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Disconnects of superseded sockets race the re-key too.
			if sess := r.Disconnect(fmt.Sprintf("sock-%d", i-1)); sess != nil {
				sess.ToClear()
			}
		}(i)
	}
	wg.Wait()

	s := r.GetByID("s1")
	require.NotNil(t, s)
	assert.Same(t, s, r.GetBySocket(s.SocketID()))
	assert.Equal(t, 1, r.Count())
}
