package repository

import (
	"context"
	"fmt"

	"github.com/vodarr/vodarr/internal/models"
	"gorm.io/gorm"
)

// encodingProfileRepository implements EncodingProfileRepository using GORM.
type encodingProfileRepository struct {
	db *gorm.DB
}

// NewEncodingProfileRepository creates a new EncodingProfileRepository.
func NewEncodingProfileRepository(db *gorm.DB) EncodingProfileRepository {
	return &encodingProfileRepository{db: db}
}

// Create creates a new encoding profile.
func (r *encodingProfileRepository) Create(ctx context.Context, profile *models.EncodingProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating encoding profile: %w", err)
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByID retrieves an encoding profile by ID.
func (r *encodingProfileRepository) GetByID(ctx context.Context, id models.ULID) (*models.EncodingProfile, error) {
	var profile models.EncodingProfile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByIDs retrieves the profiles matching the given IDs.
func (r *encodingProfileRepository) GetByIDs(ctx context.Context, ids []models.ULID) ([]*models.EncodingProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []*models.EncodingProfile
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("sort_order ASC, bitrate ASC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetAll retrieves all encoding profiles ordered by sort order.
func (r *encodingProfileRepository) GetAll(ctx context.Context) ([]*models.EncodingProfile, error) {
	var profiles []*models.EncodingProfile
	if err := r.db.WithContext(ctx).
		Order("sort_order ASC, bitrate ASC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetActive retrieves all active encoding profiles ordered by sort order.
func (r *encodingProfileRepository) GetActive(ctx context.Context) ([]*models.EncodingProfile, error) {
	var profiles []*models.EncodingProfile
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, bitrate ASC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetByName retrieves an encoding profile by name.
func (r *encodingProfileRepository) GetByName(ctx context.Context, name string) (*models.EncodingProfile, error) {
	var profile models.EncodingProfile
	if err := r.db.WithContext(ctx).First(&profile, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Update updates an existing encoding profile.
func (r *encodingProfileRepository) Update(ctx context.Context, profile *models.EncodingProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating encoding profile: %w", err)
	}
	return r.db.WithContext(ctx).Save(profile).Error
}

// Delete deletes an encoding profile by ID.
func (r *encodingProfileRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.EncodingProfile{}, "id = ?", id).Error
}

// Count returns the total number of encoding profiles.
func (r *encodingProfileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EncodingProfile{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure encodingProfileRepository implements EncodingProfileRepository.
var _ EncodingProfileRepository = (*encodingProfileRepository)(nil)
