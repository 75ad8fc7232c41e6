package repository

import (
	"context"

	"github.com/vodarr/vodarr/internal/models"
	"gorm.io/gorm"
)

// metadataSettingsRepository implements MetadataSettingsRepository using GORM.
type metadataSettingsRepository struct {
	db *gorm.DB
}

// NewMetadataSettingsRepository creates a new MetadataSettingsRepository.
func NewMetadataSettingsRepository(db *gorm.DB) MetadataSettingsRepository {
	return &metadataSettingsRepository{db: db}
}

// GetActive retrieves the active settings row, or nil when none exists.
func (r *metadataSettingsRepository) GetActive(ctx context.Context) (*models.MetadataSettings, error) {
	var settings models.MetadataSettings
	if err := r.db.WithContext(ctx).First(&settings, "is_active = ?", true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// Save creates or updates a settings row.
func (r *metadataSettingsRepository) Save(ctx context.Context, settings *models.MetadataSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

// Ensure metadataSettingsRepository implements MetadataSettingsRepository.
var _ MetadataSettingsRepository = (*metadataSettingsRepository)(nil)
