package repository

import (
	"context"

	"github.com/vodarr/vodarr/internal/models"
	"gorm.io/gorm"
)

// renditionRepository implements RenditionRepository using GORM.
type renditionRepository struct {
	db *gorm.DB
}

// NewRenditionRepository creates a new RenditionRepository.
func NewRenditionRepository(db *gorm.DB) RenditionRepository {
	return &renditionRepository{db: db}
}

// Create creates a new rendition.
func (r *renditionRepository) Create(ctx context.Context, rendition *models.Rendition) error {
	return r.db.WithContext(ctx).Create(rendition).Error
}

// GetByJobID retrieves all renditions for a job, lowest bitrate first.
func (r *renditionRepository) GetByJobID(ctx context.Context, jobID models.ULID) ([]*models.Rendition, error) {
	var renditions []*models.Rendition
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&renditions).Error; err != nil {
		return nil, err
	}
	return renditions, nil
}

// DeleteByJobID deletes all renditions for a job.
func (r *renditionRepository) DeleteByJobID(ctx context.Context, jobID models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.Rendition{}, "job_id = ?", jobID).Error
}

// Ensure renditionRepository implements RenditionRepository.
var _ RenditionRepository = (*renditionRepository)(nil)
