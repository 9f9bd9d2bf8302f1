package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)

	// Authentication
	r.Route("/auth", func(r chi.Router) {
		r.Get("/config", s.getAuthConfig)
		r.Post("/login", s.login)
		r.Post("/header", s.headerLogin)
		r.Get("/user", s.getUser)
		r.Get("/state", s.getSessionState)
		r.Put("/state", s.putSessionState)
		r.Post("/logout", s.logout)
	})

	// Session-scoped file store
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Post("/file", s.uploadFile)
		r.Get("/files", s.listSessionFiles)
	})

	// Websocket transport
	r.Get("/ws", s.handleWebsocket)

	// Event streaming (SSE)
	r.Get("/event", s.allEvents)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
