package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/ask"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/logging"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/server"
	"github.com/parley-ai/parley/internal/session"
	"github.com/parley-ai/parley/internal/store"
)

var (
	servePort int
	serveCORS bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Parley HTTP server",
	Long: `Start Parley as a server exposing the session API over HTTP.

Sessions, messages, and todos persist in a SQLite database under the
configured data directory. Turn progress streams to clients as
server-sent events.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", true, "Enable CORS headers")
}

func runServe(cmd *cobra.Command, args []string) error {
	appConfig, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The config file's log level applies unless the flag was given.
	if !cmd.Flags().Changed("log-level") && appConfig.LogLevel != "" {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(appConfig.LogLevel),
			Pretty: prettyLogs,
		})
	}

	if err := os.MkdirAll(appConfig.DataDir, 0o755); err != nil {
		return err
	}

	st, err := store.New(filepath.Join(appConfig.DataDir, "parley.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	bus := event.NewBus()
	defer bus.Close()

	ctx := context.Background()
	registry, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		logging.Warn().Err(err).Msg("Some providers failed to initialize")
	}

	broker := ask.NewBroker()
	defer broker.Close()

	// Questions raised in-process surface as pending broker entries for
	// HTTP clients to settle.
	asks := ask.NewService()
	asks.SetHandler(ask.NewBrokerHandler(broker))

	sessions := session.NewService(st, registry, bus, asks)

	// Watch the config file so model and log level changes apply without a
	// restart.
	watchPath := configPath
	if watchPath == "" {
		watchPath = config.FindConfigFile()
	}
	if watchPath != "" {
		watcher, err := config.NewWatcher(watchPath, bus)
		if err != nil {
			logging.Warn().Err(err).Str("path", watchPath).Msg("Config watcher disabled")
		} else {
			defer watcher.Close()
		}
	}

	unsubscribe := bus.Subscribe(event.ConfigLogLevelUpdated, func(ev event.Event) {
		data, ok := ev.Data.(event.ConfigLogLevelUpdatedData)
		if !ok {
			return
		}
		logging.Info().Str("level", data.Level).Msg("Log level updated")
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(data.Level),
			Pretty: prettyLogs,
		})
	})
	defer unsubscribe()

	serverConfig := server.DefaultConfig()
	serverConfig.Port = appConfig.Server.Port
	if cmd.Flags().Changed("port") {
		serverConfig.Port = servePort
	}
	serverConfig.EnableCORS = serveCORS || appConfig.Server.EnableCORS

	srv := server.New(serverConfig, appConfig, sessions, registry, bus, broker)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", serverConfig.Port).Str("version", Version).Msg("Server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Server shutdown error")
	}

	logging.Info().Msg("Server stopped")
	return nil
}
