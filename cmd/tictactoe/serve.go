package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaminalder/tictactoe-timetravel/internal/app"
	"github.com/jaminalder/tictactoe-timetravel/internal/config"
	"github.com/jaminalder/tictactoe-timetravel/internal/logging"
	"github.com/jaminalder/tictactoe-timetravel/internal/metrics"
	"github.com/jaminalder/tictactoe-timetravel/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Serves the game page, the htmx intent endpoints, the event stream and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		conf := config.MustLoad(path)
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			conf.HTTPPort = port
		}
		logger := logging.New(os.Stdout, conf.LogLevel, conf.LogFormat)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, logger, conf)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", "config.yml", "Path to the YAML config file")
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides config)")
}

func runServer(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	m := metrics.New()
	svc := app.NewService(app.WithLogger(logger), app.WithMetrics(m))
	handler := web.NewServer(svc,
		web.WithLogger(logger),
		web.WithMetrics(m),
		web.WithHeartbeat(conf.SSEHeartbeat),
	)

	go svc.RunPruner(ctx, conf.PruneInterval, conf.SessionTTL)

	srv := &http.Server{
		Addr:    conf.Addr(),
		Handler: handler,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down", "timeout", conf.ShutdownTimeout)
	}

	// Event streams only end with their request context, so give them a
	// deadline and then force-close.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown did not complete", "error", err)
		if err = srv.Close(); err != nil {
			return fmt.Errorf("could not close server: %w", err)
		}
	}
	log.Info("Server stopped")
	return nil
}
