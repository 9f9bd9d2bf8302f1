package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline-ai/threadline/internal/auth"
	"github.com/threadline-ai/threadline/internal/session"
	"github.com/threadline-ai/threadline/pkg/types"
)

func newTestServer(t *testing.T, appConfig *types.Config, opts auth.ResolverOptions) *Server {
	t.Helper()
	if appConfig == nil {
		appConfig = &types.Config{}
	}
	resolver, err := auth.NewResolver(appConfig, opts)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.FilesBase = t.TempDir()
	cfg.CleanupDelay = 50 * time.Millisecond
	return New(cfg, appConfig, resolver)
}

func passwordStub(_ context.Context, username, password string) (*types.User, error) {
	if username == "alice" && password == "secret" {
		return &types.User{ID: "alice", DisplayName: "Alice"}, nil
	}
	return nil, nil
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, auth.ResolverOptions{})

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetAuthConfig(t *testing.T) {
	appConfig := &types.Config{
		Auth: types.AuthConfig{Secret: "test-secret"},
		UI:   types.UIConfig{DefaultTheme: "dark"},
	}
	s := newTestServer(t, appConfig, auth.ResolverOptions{PasswordAuth: passwordStub})

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/auth/config", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var snap auth.ConfigSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.True(t, snap.RequireLogin)
	assert.True(t, snap.PasswordAuth)
	assert.Equal(t, "dark", snap.DefaultTheme)
}

func TestLogin(t *testing.T) {
	appConfig := &types.Config{Auth: types.AuthConfig{Secret: "test-secret"}}
	s := newTestServer(t, appConfig, auth.ResolverOptions{PasswordAuth: passwordStub})

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "secret"})
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var resp loginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "alice", resp.User["identifier"])

	cookies := w.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == auth.AuthCookieName && c.Value == resp.AccessToken {
			found = true
		}
	}
	assert.True(t, found, "login must set the auth cookie")
}

func TestLogin_BadCredentials(t *testing.T) {
	appConfig := &types.Config{Auth: types.AuthConfig{Secret: "test-secret"}}
	s := newTestServer(t, appConfig, auth.ResolverOptions{PasswordAuth: passwordStub})

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("Clear-Site-Data"))
}

func TestGetUser_WithToken(t *testing.T) {
	appConfig := &types.Config{Auth: types.AuthConfig{Secret: "test-secret"}}
	s := newTestServer(t, appConfig, auth.ResolverOptions{PasswordAuth: passwordStub})

	token, err := s.resolver.Codec().Create(&types.User{ID: "alice"})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/auth/user", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var user map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&user))
	assert.Equal(t, "alice", user["identifier"])
}

func TestGetUser_BadToken(t *testing.T) {
	appConfig := &types.Config{Auth: types.AuthConfig{Secret: "test-secret"}}
	s := newTestServer(t, appConfig, auth.ResolverOptions{PasswordAuth: passwordStub})

	r := httptest.NewRequest("GET", "/auth/user", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("Clear-Site-Data"))
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, nil, auth.ResolverOptions{})

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("POST", "/auth/logout", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var cleared int
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared++
		}
	}
	assert.Equal(t, 2, cleared, "logout must clear both cookies")
}

func TestUploadAndListFiles(t *testing.T) {
	s := newTestServer(t, nil, auth.ResolverOptions{})

	sess, _ := s.registry.Connect(session.ConnectOptions{
		Options:  session.Options{ID: "s1", FilesBase: s.config.FilesBase},
		SocketID: "sock-1",
	})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	part.Write([]byte("hello"))
	require.NoError(t, form.Close())

	r := httptest.NewRequest("POST", "/session/s1/file", &body)
	r.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var ref types.FileReference
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ref))
	require.NotEmpty(t, ref.ID)

	record, ok := sess.File(ref.ID)
	require.True(t, ok)
	assert.Equal(t, int64(5), record.Size)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/session/s1/files", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var files []fileInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&files))
	require.Len(t, files, 1)
	assert.Equal(t, ref.ID, files[0].ID)
	assert.Equal(t, "notes.txt", files[0].Name)
}

func TestUploadFile_UnknownSession(t *testing.T) {
	s := newTestServer(t, nil, auth.ResolverOptions{})

	r := httptest.NewRequest("POST", "/session/missing/file", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleCleanup_DeletesAfterDelay(t *testing.T) {
	s := newTestServer(t, nil, auth.ResolverOptions{})

	s.registry.Connect(session.ConnectOptions{
		Options:  session.Options{ID: "s1", FilesBase: s.config.FilesBase},
		SocketID: "sock-1",
	})
	s.registry.Disconnect("sock-1")
	s.scheduleCleanup("s1")

	assert.Eventually(t, func() bool {
		return s.registry.GetByID("s1") == nil
	}, time.Second, 10*time.Millisecond)
}

func TestScheduleCleanup_CancelledByReconnect(t *testing.T) {
	s := newTestServer(t, nil, auth.ResolverOptions{})

	s.registry.Connect(session.ConnectOptions{
		Options:  session.Options{ID: "s1", FilesBase: s.config.FilesBase},
		SocketID: "sock-1",
	})
	s.registry.Disconnect("sock-1")
	s.scheduleCleanup("s1")

	// Reconnect within the window.
	_, restored := s.registry.Connect(session.ConnectOptions{
		Options:  session.Options{ID: "s1", FilesBase: s.config.FilesBase},
		SocketID: "sock-2",
	})
	require.True(t, restored)
	s.cancelCleanup("s1")

	time.Sleep(150 * time.Millisecond)
	assert.NotNil(t, s.registry.GetByID("s1"), "reconnect must cancel the pending deletion")
}

func TestDeferredEmit_ReplaysThroughHandlerRegistry(t *testing.T) {
	s := newTestServer(t, nil, auth.ResolverOptions{})

	sess, _ := s.registry.Connect(session.ConnectOptions{
		Options:  session.Options{ID: "s1", FilesBase: s.config.FilesBase},
		SocketID: "sock-1",
	})
	s.registry.Disconnect("sock-1")

	// Events sent during the cleanup window queue up instead of being
	// dropped on the floor.
	require.NoError(t, sess.Emit("task_update", "first"))
	require.NoError(t, sess.Emit("task_update", "second"))

	var got []any
	_, restored := s.registry.Connect(session.ConnectOptions{
		Options:  session.Options{ID: "s1", FilesBase: s.config.FilesBase},
		SocketID: "sock-2",
		Emit: func(event string, data any) error {
			got = append(got, data)
			return nil
		},
	})
	require.True(t, restored)

	sess.FlushAll(context.Background(), s.handlers)

	assert.Equal(t, []any{"first", "second"}, got)
}
