// Package service exposes the application-facing operations built on the
// repositories, dispatcher and monitor.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vodarr/vodarr/internal/dispatcher"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

// Submitter enqueues a job for processing. Implemented by the dispatcher.
type Submitter interface {
	Submit(ctx context.Context, jobID models.ULID, profileIDs []string) (*dispatcher.EnqueueResult, error)
}

// ProgressInfo is the external view of one job's processing state.
type ProgressInfo struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Error       string `json:"error,omitempty"`
	FailedStage string `json:"failed_stage,omitempty"`
	Completed   bool   `json:"completed"`
	Failed      bool   `json:"failed"`
}

// BulkResult summarizes a bulk submission.
type BulkResult struct {
	Submitted int `json:"submitted"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// CreateJobRequest carries the fields accepted when registering a job.
type CreateJobRequest struct {
	Title            string
	SourcePath       string
	UploaderID       string
	UploaderTier     models.UploaderTier
	UploaderVideos   int
	SelectedProfiles []string
}

// VideoService manages job registration, submission and progress.
type VideoService struct {
	jobs      repository.VideoJobRepository
	submitter Submitter
	logger    *slog.Logger
}

// NewVideoService creates a video service.
func NewVideoService(jobs repository.VideoJobRepository, submitter Submitter, logger *slog.Logger) *VideoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoService{jobs: jobs, submitter: submitter, logger: logger}
}

// CreateJob registers a new pending job.
func (s *VideoService) CreateJob(ctx context.Context, req CreateJobRequest) (*models.VideoJob, error) {
	if req.SourcePath == "" {
		return nil, fmt.Errorf("source path is required")
	}
	tier := req.UploaderTier
	if tier == "" {
		tier = models.TierStandard
	}
	job := &models.VideoJob{
		Title:            req.Title,
		SourcePath:       req.SourcePath,
		Status:           models.JobStatusPending,
		UploaderID:       req.UploaderID,
		UploaderTier:     tier,
		UploaderVideos:   req.UploaderVideos,
		SelectedProfiles: req.SelectedProfiles,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	s.logger.Info("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("title", job.Title))
	return job, nil
}

// Get returns the job, or nil when it does not exist.
func (s *VideoService) Get(ctx context.Context, jobID models.ULID) (*models.VideoJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// List returns every job.
func (s *VideoService) List(ctx context.Context) ([]*models.VideoJob, error) {
	return s.jobs.GetAll(ctx)
}

// Submit enqueues the job for processing.
func (s *VideoService) Submit(ctx context.Context, jobID models.ULID, profileIDs []string) (*dispatcher.EnqueueResult, error) {
	return s.submitter.Submit(ctx, jobID, profileIDs)
}

// Progress returns the processing state of one job.
func (s *VideoService) Progress(ctx context.Context, jobID models.ULID) (*ProgressInfo, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	return &ProgressInfo{
		JobID:       job.ID.String(),
		Status:      string(job.Status),
		Progress:    job.Progress,
		Error:       job.LastError,
		FailedStage: job.FailedStage,
		Completed:   job.IsCompleted(),
		Failed:      job.IsFailed(),
	}, nil
}

// Retry re-enqueues a failed job. Jobs that did not fail, or whose
// source file reference is gone, are rejected.
func (s *VideoService) Retry(ctx context.Context, jobID models.ULID) (*dispatcher.EnqueueResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if !job.IsRetryable() {
		return nil, fmt.Errorf("job %s is not retryable: status %s", jobID, job.Status)
	}
	return s.submitter.Submit(ctx, jobID, nil)
}

// BulkProcess submits the given jobs for processing, or every pending
// job when no ids are given. Jobs already processing or completed are
// skipped; unknown ids and individual submit errors are counted, not
// fatal.
func (s *VideoService) BulkProcess(ctx context.Context, jobIDs []models.ULID) (*BulkResult, error) {
	result := &BulkResult{}

	var targets []*models.VideoJob
	if len(jobIDs) == 0 {
		pending, err := s.jobs.GetByStatus(ctx, models.JobStatusPending)
		if err != nil {
			return nil, fmt.Errorf("loading pending jobs: %w", err)
		}
		targets = pending
	} else {
		for _, id := range jobIDs {
			job, err := s.jobs.GetByID(ctx, id)
			if err != nil {
				s.logger.Warn("bulk load failed",
					slog.String("job_id", id.String()),
					slog.String("error", err.Error()))
				result.Errors++
				continue
			}
			if job == nil {
				s.logger.Warn("bulk target not found", slog.String("job_id", id.String()))
				result.Errors++
				continue
			}
			targets = append(targets, job)
		}
	}

	for _, job := range targets {
		if job.IsProcessing() || job.IsCompleted() {
			result.Skipped++
			continue
		}
		enq, err := s.submitter.Submit(ctx, job.ID, nil)
		if err != nil {
			s.logger.Warn("bulk submit failed",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
			result.Errors++
			continue
		}
		if !enq.Accepted {
			result.Skipped++
			continue
		}
		result.Submitted++
	}
	s.logger.Info("bulk submission finished",
		slog.Int("submitted", result.Submitted),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors))
	return result, nil
}
