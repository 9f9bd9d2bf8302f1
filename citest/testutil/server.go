package testutil

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/threadline-ai/threadline/internal/auth"
	"github.com/threadline-ai/threadline/internal/server"
	"github.com/threadline-ai/threadline/internal/storage"
	"github.com/threadline-ai/threadline/pkg/types"
)

// TestServer wraps a server instance for testing
type TestServer struct {
	Server  *server.Server
	BaseURL string
	Config  *types.Config
	Storage *storage.Storage
	TempDir string
	port    int
}

// TestServerOption configures TestServer
type TestServerOption func(*testServerConfig)

type testServerConfig struct {
	envFile      string
	appConfig    *types.Config
	passwordAuth auth.PasswordAuthFunc
	headerAuth   auth.HeaderAuthFunc
}

// WithEnvFile sets the .env file to load
func WithEnvFile(path string) TestServerOption {
	return func(c *testServerConfig) {
		c.envFile = path
	}
}

// WithConfig replaces the default test configuration
func WithConfig(cfg *types.Config) TestServerOption {
	return func(c *testServerConfig) {
		c.appConfig = cfg
	}
}

// WithPasswordAuth installs a password verification callback
func WithPasswordAuth(fn auth.PasswordAuthFunc) TestServerOption {
	return func(c *testServerConfig) {
		c.passwordAuth = fn
	}
}

// WithHeaderAuth installs a trusted-header callback
func WithHeaderAuth(fn auth.HeaderAuthFunc) TestServerOption {
	return func(c *testServerConfig) {
		c.headerAuth = fn
	}
}

// StartTestServer creates and starts a test server
func StartTestServer(opts ...TestServerOption) (*TestServer, error) {
	cfg := &testServerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	// Load environment variables
	if cfg.envFile != "" {
		_ = godotenv.Load(cfg.envFile)
	} else {
		// Try default locations
		_ = godotenv.Load("../../.env")
		_ = godotenv.Load("../.env")
		_ = godotenv.Load(".env")
	}

	// Create temp directory for test data
	tempDir, err := os.MkdirTemp("", "threadline-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	appConfig := cfg.appConfig
	if appConfig == nil {
		appConfig = buildTestConfig()
	}

	// Find available port
	port, err := findAvailablePort()
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	ctx := context.Background()

	// Initialize storage
	storagePath := filepath.Join(tempDir, "storage")
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	store := storage.New(storagePath)

	// Initialize identity resolution
	resolver, err := auth.NewResolver(appConfig, auth.ResolverOptions{
		Store:        auth.NewStorageUserStore(store),
		PasswordAuth: cfg.passwordAuth,
		HeaderAuth:   cfg.headerAuth,
	})
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	// Configure server
	serverConfig := server.DefaultConfig()
	serverConfig.Port = port
	serverConfig.FilesBase = filepath.Join(tempDir, "files")
	serverConfig.CleanupDelay = time.Second

	// Create server
	srv := server.New(serverConfig, appConfig, resolver)

	// Start server in background
	go func() {
		_ = srv.Start()
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	if err := waitForServer(baseURL, 10*time.Second); err != nil {
		srv.Shutdown(ctx)
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("server failed to start: %w", err)
	}

	return &TestServer{
		Server:  srv,
		BaseURL: baseURL,
		Config:  appConfig,
		Storage: store,
		TempDir: tempDir,
		port:    port,
	}, nil
}

// Stop shuts down the test server and cleans up
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if ts.Server != nil {
		if err := ts.Server.Shutdown(ctx); err != nil {
			return err
		}
	}

	if ts.TempDir != "" {
		os.RemoveAll(ts.TempDir)
	}

	return nil
}

// Client returns a new test client for this server
func (ts *TestServer) Client() *TestClient {
	return NewTestClient(ts.BaseURL)
}

// SSEClient returns a new SSE client for this server
func (ts *TestServer) SSEClient() *SSEClient {
	return NewSSEClient(ts.BaseURL)
}

// WSClient returns a new websocket client for this server
func (ts *TestServer) WSClient() *WSClient {
	return NewWSClient(ts.BaseURL)
}

// buildTestConfig creates a test configuration with password auth enabled
func buildTestConfig() *types.Config {
	secret := os.Getenv("THREADLINE_AUTH_SECRET")
	if secret == "" {
		secret = "citest-signing-secret-0123456789abcdef"
	}

	return &types.Config{
		Auth: types.AuthConfig{
			Secret: secret,
		},
		UI: types.UIConfig{
			DefaultTheme: "dark",
		},
	}
}

// findAvailablePort finds an available TCP port
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForServer waits for the server to be ready
func waitForServer(baseURL string, timeout time.Duration) error {
	client := NewTestClient(baseURL)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(context.Background(), "/health")
		if err == nil && resp.IsSuccess() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}
