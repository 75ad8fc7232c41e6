// Package scheduler runs the periodic background work: the stuck-job
// sweep, alert rule evaluation and metric retention cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/dispatcher"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
	"github.com/vodarr/vodarr/internal/storage"
)

// sweepNote is recorded on jobs requeued after a stalled run.
const sweepNote = "processing stalled, requeued by sweep"

// Submitter enqueues a job for processing. Implemented by the dispatcher.
type Submitter interface {
	Submit(ctx context.Context, jobID models.ULID, profileIDs []string) (*dispatcher.EnqueueResult, error)
}

// AlertEvaluator runs one evaluation pass over the alert rules.
// Implemented by the health monitor.
type AlertEvaluator interface {
	Evaluate(ctx context.Context)
}

// SweepStats summarizes one sweep pass.
type SweepStats struct {
	Requeued int
	PickedUp int
	Skipped  int
}

// Scheduler owns the cron runner and the sweep logic.
type Scheduler struct {
	cfg       *config.Config
	jobs      repository.VideoJobRepository
	metrics   repository.SystemMetricRepository
	submitter Submitter
	evaluator AlertEvaluator
	cron      *cron.Cron
	logger    *slog.Logger
}

// New creates a scheduler. The evaluator may be nil when monitoring is
// disabled.
func New(cfg *config.Config, jobs repository.VideoJobRepository, metrics repository.SystemMetricRepository, submitter Submitter, evaluator AlertEvaluator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		jobs:      jobs,
		metrics:   metrics,
		submitter: submitter,
		evaluator: evaluator,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers the cron entries and begins ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	sweepSpec := fmt.Sprintf("@every %s", s.cfg.Dispatcher.SweepInterval)
	if _, err := s.cron.AddFunc(sweepSpec, func() {
		stats := s.SweepOnce(ctx)
		if stats.Requeued > 0 || stats.PickedUp > 0 || stats.Skipped > 0 {
			s.logger.Info("sweep completed",
				slog.Int("requeued", stats.Requeued),
				slog.Int("picked_up", stats.PickedUp),
				slog.Int("skipped", stats.Skipped))
		}
	}); err != nil {
		return fmt.Errorf("registering sweep: %w", err)
	}

	if s.evaluator != nil {
		alertSpec := fmt.Sprintf("@every %s", s.cfg.Monitor.CheckInterval)
		if _, err := s.cron.AddFunc(alertSpec, func() {
			s.evaluator.Evaluate(ctx)
		}); err != nil {
			return fmt.Errorf("registering alert evaluation: %w", err)
		}
	}

	if _, err := s.cron.AddFunc("@daily", func() {
		s.pruneMetrics(ctx)
	}); err != nil {
		return fmt.Errorf("registering metric cleanup: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.Duration("sweep_interval", s.cfg.Dispatcher.SweepInterval),
		slog.Duration("alert_interval", s.cfg.Monitor.CheckInterval))
	return nil
}

// Stop halts the cron runner and waits for running entries to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// SweepOnce requeues processing jobs whose records went quiet for longer
// than the configured threshold, then submits a bounded batch of pending
// jobs whose source file still exists. An active run keeps refreshing
// updated_at through progress writes and is left alone however long it
// has been running.
func (s *Scheduler) SweepOnce(ctx context.Context) SweepStats {
	var stats SweepStats

	cutoff := models.Now().Add(-s.cfg.Dispatcher.StuckThreshold)
	stuck, err := s.jobs.GetStuck(ctx, cutoff)
	if err != nil {
		s.logger.Error("loading stuck jobs", slog.String("error", err.Error()))
	}
	for _, job := range stuck {
		job.Status = models.JobStatusPending
		job.LastError = models.TruncateError(sweepNote)
		if err := s.jobs.Update(ctx, job); err != nil {
			s.logger.Error("requeueing stuck job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Warn("requeued stuck job", slog.String("job_id", job.ID.String()))
		stats.Requeued++
	}

	pending, err := s.jobs.GetPendingWithSource(ctx, s.cfg.Dispatcher.SweepBatchSize)
	if err != nil {
		s.logger.Error("loading pending jobs", slog.String("error", err.Error()))
		return stats
	}
	for _, job := range pending {
		// Uploads can disappear between enqueue and pickup. A missing
		// source is skipped, not failed; the upload may still land.
		if !storage.FileExists(job.SourcePath) {
			s.logger.Warn("pending job source missing, skipping",
				slog.String("job_id", job.ID.String()),
				slog.String("source", job.SourcePath))
			stats.Skipped++
			continue
		}
		result, err := s.submitter.Submit(ctx, job.ID, nil)
		if err != nil {
			s.logger.Error("submitting pending job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		if !result.Accepted {
			stats.Skipped++
			continue
		}
		stats.PickedUp++
	}
	return stats
}

// pruneMetrics removes system metric samples older than the retention
// window.
func (s *Scheduler) pruneMetrics(ctx context.Context) {
	cutoff := models.Now().Add(-s.cfg.Monitor.MetricRetention)
	deleted, err := s.metrics.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("pruning metrics", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		s.logger.Info("pruned metric samples", slog.Int64("deleted", deleted))
	}
}
