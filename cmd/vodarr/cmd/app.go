package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/database"
	"github.com/vodarr/vodarr/internal/dispatcher"
	"github.com/vodarr/vodarr/internal/encoder"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/media"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/monitor"
	"github.com/vodarr/vodarr/internal/packaging"
	"github.com/vodarr/vodarr/internal/pipeline"
	"github.com/vodarr/vodarr/internal/repository"
	"github.com/vodarr/vodarr/internal/service"
	"github.com/vodarr/vodarr/internal/storage"
)

// app holds the wired application components shared by the serve and
// process commands.
type app struct {
	cfg    *config.Config
	db     *database.DB
	logger *slog.Logger

	jobs      repository.VideoJobRepository
	profiles  repository.EncodingProfileRepository
	rules     repository.AlertRuleRepository
	alerts    repository.AlertRepository
	metrics   repository.SystemMetricRepository
	manifests repository.StreamManifestRepository

	detector     *ffmpeg.BinaryDetector
	orchestrator *pipeline.Orchestrator
	videoSvc     *service.VideoService
	profileSvc   *service.ProfileService
	monitor      *monitor.Monitor
	dispatcher   *dispatcher.Dispatcher
}

// buildApp loads configuration, opens the database and wires the full
// processing pipeline.
func buildApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	jobs := repository.NewVideoJobRepository(db.DB)
	profiles := repository.NewEncodingProfileRepository(db.DB)
	rends := repository.NewRenditionRepository(db.DB)
	manifests := repository.NewStreamManifestRepository(db.DB)
	settings := repository.NewMetadataSettingsRepository(db.DB)
	rules := repository.NewAlertRuleRepository(db.DB)
	alerts := repository.NewAlertRepository(db.DB)
	metrics := repository.NewSystemMetricRepository(db.DB)

	detector := ffmpeg.NewBinaryDetector().
		WithPaths(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath)
	runner := ffmpeg.NewRunner(logger)
	layout := storage.NewLayout(cfg.Storage)

	orchestrator := pipeline.NewOrchestrator(cfg,
		jobs, profiles, rends, manifests, settings,
		detector,
		ffmpeg.NewProber(runner, detector, logger),
		media.NewPosterExtractor(runner, detector, logger),
		media.NewPreviewGenerator(runner, detector, cfg.Storage.TempPath(), logger),
		encoder.NewEngine(runner, detector, layout, cfg.Encoding.MaxParallelJobs, logger),
		packaging.NewPackager(runner, detector, layout, logger),
		layout, logger)

	orchestrator.OnComplete(func(job *models.VideoJob) {
		logger.Info("processing complete",
			slog.String("job_id", job.ID.String()),
			slog.String("title", job.Title),
			slog.Int("duration_seconds", job.DurationSeconds),
			slog.Int("renditions", len(job.OutputPaths)))
	})

	disp := dispatcher.NewDispatcher(cfg.Dispatcher, jobs, func(ctx context.Context, jobID models.ULID) error {
		_, err := orchestrator.Process(ctx, jobID)
		return err
	}, logger)

	videoSvc := service.NewVideoService(jobs, disp, logger)
	profileSvc := service.NewProfileService(profiles, logger)
	if err := service.Provision(ctx, profileSvc, rules, settings, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding defaults: %w", err)
	}

	collector := monitor.NewCollector(jobs, detector, cfg.Storage.BaseDir, logger)
	notifier := monitor.NewNotifier(cfg.Monitor, logger)
	mon := monitor.New(rules, alerts, metrics, collector, notifier, logger)

	return &app{
		cfg:          cfg,
		db:           db,
		logger:       logger,
		jobs:         jobs,
		profiles:     profiles,
		rules:        rules,
		alerts:       alerts,
		metrics:      metrics,
		manifests:    manifests,
		detector:     detector,
		orchestrator: orchestrator,
		videoSvc:     videoSvc,
		profileSvc:   profileSvc,
		monitor:      mon,
		dispatcher:   disp,
	}, nil
}

// close releases the app's resources.
func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
