package repository

import (
	"context"

	"github.com/vodarr/vodarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// streamManifestRepository implements StreamManifestRepository using GORM.
type streamManifestRepository struct {
	db *gorm.DB
}

// NewStreamManifestRepository creates a new StreamManifestRepository.
func NewStreamManifestRepository(db *gorm.DB) StreamManifestRepository {
	return &streamManifestRepository{db: db}
}

// Upsert creates or replaces the manifest row for (job, protocol, resolution).
func (r *streamManifestRepository) Upsert(ctx context.Context, manifest *models.StreamManifest) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "job_id"}, {Name: "protocol"}, {Name: "resolution"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"manifest_path", "segment_count", "total_bytes", "ready", "updated_at",
		}),
	}).Create(manifest).Error
}

// GetByJobID retrieves all manifests for a job.
func (r *streamManifestRepository) GetByJobID(ctx context.Context, jobID models.ULID) ([]*models.StreamManifest, error) {
	var manifests []*models.StreamManifest
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("protocol ASC, resolution ASC").
		Find(&manifests).Error; err != nil {
		return nil, err
	}
	return manifests, nil
}

// GetByJobAndProtocol retrieves a job's manifests for one protocol.
func (r *streamManifestRepository) GetByJobAndProtocol(ctx context.Context, jobID models.ULID, protocol models.StreamProtocol) ([]*models.StreamManifest, error) {
	var manifests []*models.StreamManifest
	if err := r.db.WithContext(ctx).
		Where("job_id = ? AND protocol = ?", jobID, protocol).
		Order("resolution ASC").
		Find(&manifests).Error; err != nil {
		return nil, err
	}
	return manifests, nil
}

// DeleteByJobID deletes all manifests for a job.
func (r *streamManifestRepository) DeleteByJobID(ctx context.Context, jobID models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.StreamManifest{}, "job_id = ?", jobID).Error
}

// Ensure streamManifestRepository implements StreamManifestRepository.
var _ StreamManifestRepository = (*streamManifestRepository)(nil)
