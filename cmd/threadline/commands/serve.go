package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/threadline-ai/threadline/internal/auth"
	"github.com/threadline-ai/threadline/internal/config"
	"github.com/threadline-ai/threadline/internal/logging"
	"github.com/threadline-ai/threadline/internal/server"
	"github.com/threadline-ai/threadline/internal/storage"
	"github.com/threadline-ai/threadline/pkg/types"
)

var (
	servePort int
	serveDir  string
	watchCfg  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Threadline server",
	Long: `Start the Threadline server: the HTTP API, the websocket transport,
and the session registry.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
	serveCmd.Flags().BoolVar(&watchCfg, "watch-config", false, "Reload configuration on file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	workDir := serveDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		workDir = wd
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(logLevel)
	logCfg.Pretty = true
	logCfg.LogToFile = logToFile
	logging.Init(logCfg)
	defer logging.Close()

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if servePort != 0 {
		appConfig.Server.Port = servePort
	}

	store := storage.New(paths.StoragePath())
	userStore := auth.NewStorageUserStore(store)

	resolver, err := auth.NewResolver(appConfig, auth.ResolverOptions{
		Store: userStore,
	})
	if err != nil {
		return err
	}

	serverConfig := server.DefaultConfig()
	if appConfig.Server.Port != 0 {
		serverConfig.Port = appConfig.Server.Port
	}
	if appConfig.Server.CleanupDelaySeconds != 0 {
		serverConfig.CleanupDelay = time.Duration(appConfig.Server.CleanupDelaySeconds) * time.Second
	}
	serverConfig.FilesBase = appConfig.Files.Directory
	if serverConfig.FilesBase == "" {
		serverConfig.FilesBase = paths.FilesPath()
	}

	srv := server.New(serverConfig, appConfig, resolver)

	if watchCfg {
		watcher, err := config.NewWatcher(workDir, func(next *types.Config) {
			if err := srv.SetConfig(next); err != nil {
				logging.Warn().Err(err).Msg("config reload rejected, keeping previous configuration")
			}
		})
		if err != nil {
			logging.Warn().Err(err).Msg("config watcher unavailable")
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	go func() {
		logging.Info().Int("port", serverConfig.Port).Msg("server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
