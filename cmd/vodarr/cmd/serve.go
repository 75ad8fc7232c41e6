package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	internalhttp "github.com/vodarr/vodarr/internal/http"
	"github.com/vodarr/vodarr/internal/http/handlers"
	"github.com/vodarr/vodarr/internal/scheduler"
	"github.com/vodarr/vodarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vodarr server",
	Long: `Start the vodarr HTTP server and background workers.

The server provides:
- REST API for jobs, profiles, health and alerts
- A priority-queued worker pool processing submitted jobs
- A periodic sweep requeueing stalled jobs and picking up pending ones
- Alert rule evaluation with email and webhook notifications
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "vodarr.db", "Database DSN")
	serveCmd.Flags().String("data-dir", "./data", "Base directory for processed output")
	serveCmd.Flags().Int("workers", 2, "Number of processing workers")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
	mustBindPFlag("dispatcher.worker_count", serveCmd.Flags().Lookup("workers"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, logger)
	if err != nil {
		return err
	}
	defer application.close()

	if info, err := application.detector.Detect(ctx); err != nil {
		logger.Warn("ffmpeg tooling not found, jobs will fail validation",
			slog.String("error", err.Error()))
	} else {
		logger.Info("ffmpeg tooling detected",
			slog.String("ffmpeg", info.FFmpegPath),
			slog.String("version", info.Version))
	}

	application.dispatcher.Start(ctx)

	sched := scheduler.New(application.cfg,
		application.jobs, application.metrics,
		application.dispatcher, application.monitor, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	server := internalhttp.NewServer(application.cfg.Server, logger, version.Short())
	handlers.NewJobHandler(application.videoSvc, application.orchestrator).Register(server.API())
	handlers.NewProfileHandler(application.profileSvc).Register(server.API())
	handlers.NewHealthHandler(application.monitor).Register(server.API())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	logger.Info("vodarr started", slog.String("version", version.Short()))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("http shutdown", slog.String("error", err.Error()))
	}
	sched.Stop()
	application.dispatcher.Stop()

	logger.Info("vodarr stopped")
	return nil
}
