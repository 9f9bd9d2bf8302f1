// Package server provides the HTTP and websocket surface of the
// Threadline API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/threadline-ai/threadline/internal/auth"
	"github.com/threadline-ai/threadline/internal/logging"
	"github.com/threadline-ai/threadline/internal/session"
	"github.com/threadline-ai/threadline/internal/toolconn"
	"github.com/threadline-ai/threadline/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CleanupDelay is how long a disconnected websocket session is
	// kept before deletion; a reconnect within the window keeps it.
	CleanupDelay time.Duration

	// FilesBase is the directory holding per-session file stores.
	FilesBase string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE and websockets
		CleanupDelay: 2 * time.Minute,
	}
}

// Server is the HTTP server.
type Server struct {
	config    *Config
	router    *chi.Mux
	httpSrv   *http.Server
	resolver  *auth.Resolver
	registry  *session.Registry
	handlers  *session.HandlerRegistry
	connector *toolconn.Connector

	mu        sync.RWMutex
	appConfig *types.Config

	cleanupMu sync.Mutex
	cleanups  map[string]*time.Timer
}

// New creates a new Server instance.
func New(cfg *Config, appConfig *types.Config, resolver *auth.Resolver) *Server {
	s := &Server{
		config:    cfg,
		router:    chi.NewRouter(),
		resolver:  resolver,
		registry:  session.NewRegistry(),
		handlers:  session.NewHandlerRegistry(),
		connector: toolconn.NewConnector(),
		appConfig: appConfig,
		cleanups:  map[string]*time.Timer{},
	}

	s.registerHandlers()
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// SetConfig swaps the application config snapshot on hot reload. The
// auth resolver applies its own validation; a snapshot it rejects is
// not installed.
func (s *Server) SetConfig(appConfig *types.Config) error {
	if err := s.resolver.SetConfig(appConfig); err != nil {
		return err
	}
	s.mu.Lock()
	s.appConfig = appConfig
	s.mu.Unlock()
	logging.Info().Msg("configuration reloaded")
	return nil
}

func (s *Server) currentConfig() *types.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appConfig
}

// Registry returns the session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server, cancelling pending
// session cleanups and deleting live sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cleanupMu.Lock()
	for id, timer := range s.cleanups {
		timer.Stop()
		delete(s.cleanups, id)
	}
	s.cleanupMu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// scheduleCleanup arms the delayed deletion of a disconnected session.
// A reconnect cancels it through cancelCleanup.
func (s *Server) scheduleCleanup(sessionID string) {
	delay := s.config.CleanupDelay
	if delay <= 0 {
		delay = 2 * time.Minute
	}

	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	if timer, ok := s.cleanups[sessionID]; ok {
		timer.Stop()
	}
	s.cleanups[sessionID] = time.AfterFunc(delay, func() {
		s.cleanupMu.Lock()
		delete(s.cleanups, sessionID)
		s.cleanupMu.Unlock()

		sess := s.registry.GetByID(sessionID)
		if sess == nil || !sess.ToClear() {
			return
		}
		s.registry.Delete(context.Background(), sess)
	})
}

// cancelCleanup stops a pending delayed deletion, if any.
func (s *Server) cancelCleanup(sessionID string) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	if timer, ok := s.cleanups[sessionID]; ok {
		timer.Stop()
		delete(s.cleanups, sessionID)
	}
}
