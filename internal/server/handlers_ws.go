package server

import (
	"context"
	"fmt"

	"github.com/threadline-ai/threadline/internal/logging"
	"github.com/threadline-ai/threadline/internal/session"
)

// registerHandlers binds the built-in websocket methods. All inbound
// invocations and all deferred commands flow through this registry, so
// a command queued while a session had no live socket replays through
// exactly the same code path as a direct call.
func (s *Server) registerHandlers() {
	s.handlers.Register("update_chat_settings", s.handleUpdateChatSettings)
	s.handlers.Register("open_tool_session", s.handleOpenToolSession)
	s.handlers.Register("close_tool_session", s.handleCloseToolSession)
	session.RegisterEmitReplay(s.handlers)
}

func (s *Server) handleUpdateChatSettings(ctx context.Context, sess *session.WebsocketSession, payload any) error {
	settings, ok := payload.(map[string]any)
	if !ok {
		return fmt.Errorf("update_chat_settings: expected object payload")
	}
	sess.SetChatSettings(settings)
	return nil
}

// handleOpenToolSession connects to a configured tool server and
// registers the connection as a subsession of the session, released
// on teardown.
func (s *Server) handleOpenToolSession(ctx context.Context, sess *session.WebsocketSession, payload any) error {
	params, ok := payload.(map[string]any)
	if !ok {
		return fmt.Errorf("open_tool_session: expected object payload")
	}
	name, _ := params["name"].(string)
	if name == "" {
		return fmt.Errorf("open_tool_session: name required")
	}

	cfg := s.currentConfig()
	serverCfg, ok := cfg.Tools[name]
	if !ok {
		return fmt.Errorf("open_tool_session: unknown tool server %q", name)
	}
	if serverCfg.Enabled != nil && !*serverCfg.Enabled {
		return fmt.Errorf("open_tool_session: tool server %q is disabled", name)
	}

	conn, err := s.connector.Connect(ctx, name, serverCfg)
	if err != nil {
		return fmt.Errorf("open_tool_session: %w", err)
	}

	sess.AddSubsession(ctx, session.NewSubsession(name, conn, conn.Release))

	if err := sess.Emit("tool_session_opened", map[string]any{
		"name":  name,
		"tools": conn.Tools(),
	}); err != nil {
		logging.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Str("tool_server", name).
			Msg("failed to notify client of opened tool session")
	}
	return nil
}

func (s *Server) handleCloseToolSession(ctx context.Context, sess *session.WebsocketSession, payload any) error {
	params, ok := payload.(map[string]any)
	if !ok {
		return fmt.Errorf("close_tool_session: expected object payload")
	}
	name, _ := params["name"].(string)
	if name == "" {
		return fmt.Errorf("close_tool_session: name required")
	}
	return sess.RemoveSubsession(ctx, name)
}
