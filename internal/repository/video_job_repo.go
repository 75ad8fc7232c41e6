// Package repository provides data access implementations.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vodarr/vodarr/internal/models"
	"gorm.io/gorm"
)

// videoJobRepository implements VideoJobRepository using GORM.
type videoJobRepository struct {
	db *gorm.DB
}

// NewVideoJobRepository creates a new VideoJobRepository.
func NewVideoJobRepository(db *gorm.DB) VideoJobRepository {
	return &videoJobRepository{db: db}
}

// Create creates a new video job.
func (r *videoJobRepository) Create(ctx context.Context, job *models.VideoJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validating video job: %w", err)
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a video job by ID.
func (r *videoJobRepository) GetByID(ctx context.Context, id models.ULID) (*models.VideoJob, error) {
	var job models.VideoJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// GetAll retrieves all video jobs, newest first.
func (r *videoJobRepository) GetAll(ctx context.Context) ([]*models.VideoJob, error) {
	var jobs []*models.VideoJob
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetByStatus retrieves jobs in the given status, oldest first.
func (r *videoJobRepository) GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.VideoJob, error) {
	var jobs []*models.VideoJob
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Update updates an existing video job.
func (r *videoJobRepository) Update(ctx context.Context, job *models.VideoJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validating video job: %w", err)
	}
	return r.db.WithContext(ctx).Save(job).Error
}

// Delete deletes a video job by ID.
func (r *videoJobRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.VideoJob{}, "id = ?", id).Error
}

// UpdateStatusIfCurrent atomically transitions a job between statuses.
// The WHERE guard makes concurrent dispatchers race-safe: only one caller
// observes RowsAffected == 1.
func (r *videoJobRepository) UpdateStatusIfCurrent(ctx context.Context, id models.ULID, from, to models.JobStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.VideoJob{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumn("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetStuck retrieves processing jobs not updated since the cutoff. A live
// run keeps touching the row through progress writes, so a stale
// updated_at means the worker died mid-run.
func (r *videoJobRepository) GetStuck(ctx context.Context, cutoff time.Time) ([]*models.VideoJob, error) {
	var jobs []*models.VideoJob
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, cutoff).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetPendingWithSource retrieves pending jobs that still reference a source
// file, highest priority first.
func (r *videoJobRepository) GetPendingWithSource(ctx context.Context, limit int) ([]*models.VideoJob, error) {
	var jobs []*models.VideoJob
	if err := r.db.WithContext(ctx).
		Where("status = ? AND source_path <> ''", models.JobStatusPending).
		Order("priority DESC, created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs in the given status.
func (r *videoJobRepository) CountByStatus(ctx context.Context, status models.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.VideoJob{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ErrorRateSince returns failed/total counts for jobs whose last run ended
// after the given time.
func (r *videoJobRepository) ErrorRateSince(ctx context.Context, since time.Time) (ErrorRateStats, error) {
	var stats ErrorRateStats
	base := r.db.WithContext(ctx).Model(&models.VideoJob{}).
		Where("processing_ended_at IS NOT NULL AND processing_ended_at > ?", since)

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return ErrorRateStats{}, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status IN ?", []models.JobStatus{models.JobStatusFailed, models.JobStatusError}).
		Count(&stats.Failed).Error; err != nil {
		return ErrorRateStats{}, err
	}
	return stats, nil
}

// AverageProcessingSeconds returns the mean run duration of jobs completed
// after the given time.
func (r *videoJobRepository) AverageProcessingSeconds(ctx context.Context, since time.Time) (float64, error) {
	var jobs []*models.VideoJob
	if err := r.db.WithContext(ctx).
		Where("status = ? AND processing_ended_at IS NOT NULL AND processing_ended_at > ?",
			models.JobStatusCompleted, since).
		Find(&jobs).Error; err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	var total float64
	for _, job := range jobs {
		total += job.ProcessingDuration()
	}
	return total / float64(len(jobs)), nil
}

// Ensure videoJobRepository implements VideoJobRepository.
var _ VideoJobRepository = (*videoJobRepository)(nil)
