// Package repository defines data access interfaces for vodarr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/vodarr/vodarr/internal/models"
)

// ErrorRateStats summarizes job outcomes over a time window.
type ErrorRateStats struct {
	Total  int64 `json:"total"`
	Failed int64 `json:"failed"`
}

// Rate returns the failure percentage, 0 when no jobs were seen.
func (s ErrorRateStats) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total) * 100
}

// VideoJobRepository defines operations for video job persistence.
type VideoJobRepository interface {
	// Create creates a new video job.
	Create(ctx context.Context, job *models.VideoJob) error
	// GetByID retrieves a video job by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.VideoJob, error)
	// GetAll retrieves all video jobs, newest first.
	GetAll(ctx context.Context) ([]*models.VideoJob, error)
	// GetByStatus retrieves jobs in the given status, oldest first.
	GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.VideoJob, error)
	// Update updates an existing video job.
	Update(ctx context.Context, job *models.VideoJob) error
	// Delete deletes a video job by ID.
	Delete(ctx context.Context, id models.ULID) error
	// UpdateStatusIfCurrent atomically transitions a job from one status to
	// another. Returns false without error when the job is no longer in the
	// expected status.
	UpdateStatusIfCurrent(ctx context.Context, id models.ULID, from, to models.JobStatus) (bool, error)
	// GetStuck retrieves processing jobs not updated since the cutoff.
	GetStuck(ctx context.Context, cutoff time.Time) ([]*models.VideoJob, error)
	// GetPendingWithSource retrieves up to limit pending jobs that still
	// reference a source file, highest priority first, then oldest.
	GetPendingWithSource(ctx context.Context, limit int) ([]*models.VideoJob, error)
	// CountByStatus returns the number of jobs in the given status.
	CountByStatus(ctx context.Context, status models.JobStatus) (int64, error)
	// ErrorRateSince returns failed/total counts for jobs whose last run
	// ended after the given time.
	ErrorRateSince(ctx context.Context, since time.Time) (ErrorRateStats, error)
	// AverageProcessingSeconds returns the mean run duration of jobs
	// completed after the given time, 0 when none completed.
	AverageProcessingSeconds(ctx context.Context, since time.Time) (float64, error)
}

// EncodingProfileRepository defines operations for encoding profile persistence.
type EncodingProfileRepository interface {
	// Create creates a new encoding profile.
	Create(ctx context.Context, profile *models.EncodingProfile) error
	// GetByID retrieves an encoding profile by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.EncodingProfile, error)
	// GetByIDs retrieves the profiles matching the given IDs.
	GetByIDs(ctx context.Context, ids []models.ULID) ([]*models.EncodingProfile, error)
	// GetAll retrieves all encoding profiles ordered by sort order.
	GetAll(ctx context.Context) ([]*models.EncodingProfile, error)
	// GetActive retrieves all active encoding profiles ordered by sort order.
	GetActive(ctx context.Context) ([]*models.EncodingProfile, error)
	// GetByName retrieves an encoding profile by name.
	GetByName(ctx context.Context, name string) (*models.EncodingProfile, error)
	// Update updates an existing encoding profile.
	Update(ctx context.Context, profile *models.EncodingProfile) error
	// Delete deletes an encoding profile by ID.
	Delete(ctx context.Context, id models.ULID) error
	// Count returns the total number of encoding profiles.
	Count(ctx context.Context) (int64, error)
}

// RenditionRepository defines operations for encoded rendition persistence.
type RenditionRepository interface {
	// Create creates a new rendition.
	Create(ctx context.Context, rendition *models.Rendition) error
	// GetByJobID retrieves all renditions for a job.
	GetByJobID(ctx context.Context, jobID models.ULID) ([]*models.Rendition, error)
	// DeleteByJobID deletes all renditions for a job.
	DeleteByJobID(ctx context.Context, jobID models.ULID) error
}

// StreamManifestRepository defines operations for stream manifest persistence.
type StreamManifestRepository interface {
	// Upsert creates or replaces the manifest row for (job, protocol, resolution).
	Upsert(ctx context.Context, manifest *models.StreamManifest) error
	// GetByJobID retrieves all manifests for a job.
	GetByJobID(ctx context.Context, jobID models.ULID) ([]*models.StreamManifest, error)
	// GetByJobAndProtocol retrieves a job's manifests for one protocol.
	GetByJobAndProtocol(ctx context.Context, jobID models.ULID, protocol models.StreamProtocol) ([]*models.StreamManifest, error)
	// DeleteByJobID deletes all manifests for a job.
	DeleteByJobID(ctx context.Context, jobID models.ULID) error
}

// MetadataSettingsRepository defines operations for metadata settings persistence.
type MetadataSettingsRepository interface {
	// GetActive retrieves the active settings row, or nil when none exists.
	GetActive(ctx context.Context) (*models.MetadataSettings, error)
	// Save creates or updates a settings row.
	Save(ctx context.Context, settings *models.MetadataSettings) error
}

// AlertRuleRepository defines operations for alert rule persistence.
type AlertRuleRepository interface {
	// Create creates a new alert rule.
	Create(ctx context.Context, rule *models.AlertRule) error
	// GetByID retrieves an alert rule by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.AlertRule, error)
	// GetAll retrieves all alert rules.
	GetAll(ctx context.Context) ([]*models.AlertRule, error)
	// GetActive retrieves all active alert rules.
	GetActive(ctx context.Context) ([]*models.AlertRule, error)
	// Update updates an existing alert rule.
	Update(ctx context.Context, rule *models.AlertRule) error
	// Delete deletes an alert rule by ID.
	Delete(ctx context.Context, id models.ULID) error
	// Count returns the total number of alert rules.
	Count(ctx context.Context) (int64, error)
}

// AlertRepository defines operations for alert instance persistence.
type AlertRepository interface {
	// Create creates a new alert.
	Create(ctx context.Context, alert *models.Alert) error
	// GetByID retrieves an alert by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Alert, error)
	// GetActive retrieves alerts that have not been resolved, newest first.
	GetActive(ctx context.Context) ([]*models.Alert, error)
	// GetActiveByRule retrieves unresolved alerts for one rule, newest first.
	GetActiveByRule(ctx context.Context, ruleID models.ULID) ([]*models.Alert, error)
	// GetLatestByRule retrieves the most recent alert for a rule regardless
	// of status, or nil when the rule never fired.
	GetLatestByRule(ctx context.Context, ruleID models.ULID) (*models.Alert, error)
	// Update updates an existing alert.
	Update(ctx context.Context, alert *models.Alert) error
	// CountActive returns the number of unresolved alerts.
	CountActive(ctx context.Context) (int64, error)
}

// SystemMetricRepository defines operations for metric sample persistence.
type SystemMetricRepository interface {
	// Record stores a metric sample.
	Record(ctx context.Context, metric *models.SystemMetric) error
	// AverageSince returns the mean value of samples of one type recorded
	// after the given time, 0 when no samples exist.
	AverageSince(ctx context.Context, metricType string, since time.Time) (float64, error)
	// LatestByType retrieves the newest sample of one type, or nil.
	LatestByType(ctx context.Context, metricType string) (*models.SystemMetric, error)
	// DeleteOlderThan prunes samples recorded before the given time.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
