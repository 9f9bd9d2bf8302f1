package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/threadline-ai/threadline/internal/auth"
	"github.com/threadline-ai/threadline/pkg/types"
)

// getAuthConfig returns the client-visible auth configuration.
func (s *Server) getAuthConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.resolver.Snapshot())
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string         `json:"accessToken"`
	TokenType   string         `json:"tokenType"`
	User        map[string]any `json:"user"`
}

// login verifies a username/password pair and issues a bearer token,
// also set as a cookie for browser clients.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	identity, token, err := s.resolver.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	s.setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        identityPayload(identity),
	})
}

// headerLogin derives an identity from trusted proxy headers and
// issues a bearer token.
func (s *Server) headerLogin(w http.ResponseWriter, r *http.Request) {
	identity, token, err := s.resolver.LoginFromHeaders(r.Context(), r.Header)
	if err != nil {
		writeUnauthorized(w, "header authentication failed")
		return
	}

	s.setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        identityPayload(identity),
	})
}

// getUser returns the identity for the request's credential.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	identity, err := s.resolver.Authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeUnauthorized(w, "invalid or expired credential")
		return
	}
	if identity == nil {
		// Login not required; there is no identity to return.
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, identityPayload(identity))
}

// getSessionState returns the decoded client-side session state, or
// an empty object when the cookie is absent.
func (s *Server) getSessionState(w http.ResponseWriter, r *http.Request) {
	codec := s.resolver.Codec()
	if codec == nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "session state requires an auth secret")
		return
	}

	encoded := auth.StateFromRequest(r)
	if encoded == "" {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}

	state, err := codec.DecodeState(encoded)
	if err != nil {
		writeUnauthorized(w, "invalid session state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// putSessionState signs the posted state and sets it as the
// client-side session cookie. The state never touches server-side
// storage.
func (s *Server) putSessionState(w http.ResponseWriter, r *http.Request) {
	codec := s.resolver.Codec()
	if codec == nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "session state requires an auth secret")
		return
	}

	var state map[string]any
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	encoded, err := codec.EncodeState(state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to encode state")
		return
	}

	auth.SetStateCookie(w, encoded, s.currentConfig().Auth.CookieSecure)
	writeSuccess(w)
}

// logout clears the auth and client-side session cookies.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearAuthCookie(w)
	auth.ClearStateCookie(w)
	writeSuccess(w)
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string) {
	cfg := s.currentConfig()
	ttl := time.Duration(cfg.Auth.TokenTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 15 * 24 * time.Hour
	}
	auth.SetAuthCookie(w, token, ttl, cfg.Auth.CookieSecure)
}

func identityPayload(identity types.Identity) map[string]any {
	if identity == nil {
		return nil
	}
	payload := map[string]any{
		"identifier":  identity.Identifier(),
		"displayName": identity.Display(),
		"persisted":   identity.Persisted(),
	}
	if user, ok := identity.(*types.PersistedUser); ok {
		payload["id"] = user.RecordID
		payload["provider"] = user.Provider
		payload["metadata"] = user.Metadata
	} else if user, ok := identity.(*types.User); ok {
		payload["provider"] = user.Provider
		payload["metadata"] = user.Metadata
	}
	return payload
}
