package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"trivia-service/internal/app"
	"trivia-service/internal/config"
	transport "trivia-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	tasks := newTasks(cfg)
	defer tasks.Close()

	opts := []app.RegistryOption{app.WithRoomBatchSize(cfg.Questions.BatchSize)}
	if b.mirror != nil {
		opts = append(opts, app.WithRoomMirror(b.mirror))
	}
	if b.publisher != nil {
		opts = append(opts, app.WithRoomPublisher(b.publisher))
	}
	registry := app.NewRoomRegistry(b.questions, tasks, opts...)
	defer registry.Close()

	handler := transport.NewRouter(transport.Deps{
		Registry: registry,
		Profiles: app.NewProfileService(b.profiles),
		Tasks:    tasks,
		WS: transport.WSOptions{
			WriteTimeout:   config.Duration(cfg.WebSocket.WriteTimeout, 10*time.Second),
			PongWait:       config.Duration(cfg.WebSocket.PongWait, 60*time.Second),
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", finalPort).Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	case err := <-errCh:
		log.Error().Err(err).Msg("failed to start server")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Closing the registry first ends every websocket session, which Shutdown does not track.
	registry.Close()
	return server.Shutdown(shutdownCtx)
}
