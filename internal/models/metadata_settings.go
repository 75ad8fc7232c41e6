package models

import "gorm.io/gorm"

// MetadataSettings configures poster and preview extraction. Only one
// instance may be active at a time; activating one deactivates the rest.
type MetadataSettings struct {
	BaseModel

	// Poster settings.
	PosterWidth   int    `gorm:"default:250" json:"poster_width"`
	PosterHeight  int    `gorm:"default:150" json:"poster_height"`
	PosterFormat  string `gorm:"size:10;default:'jpg'" json:"poster_format"`
	PosterQuality int    `gorm:"default:2" json:"poster_quality"`

	// Preview settings.
	PreviewWidth           int    `gorm:"default:250" json:"preview_width"`
	PreviewHeight          int    `gorm:"default:150" json:"preview_height"`
	PreviewDuration        int    `gorm:"default:12" json:"preview_duration"`
	PreviewSegmentDuration int    `gorm:"default:2" json:"preview_segment_duration"`
	PreviewFormat          string `gorm:"size:10;default:'mp4'" json:"preview_format"`
	PreviewQuality         int    `gorm:"default:18" json:"preview_quality"`

	// IsActive marks the settings row in use.
	IsActive bool `gorm:"default:true;index" json:"is_active"`
}

// TableName returns the table name for MetadataSettings.
func (MetadataSettings) TableName() string {
	return "metadata_settings"
}

// BeforeSave enforces the single-active invariant by deactivating every
// other settings row when this one is active.
func (s *MetadataSettings) BeforeSave(tx *gorm.DB) error {
	if !s.IsActive {
		return nil
	}
	return tx.Model(&MetadataSettings{}).
		Where("id <> ? AND is_active = ?", s.ID, true).
		UpdateColumn("is_active", false).Error
}

// DefaultMetadataSettings returns the built-in extraction parameters.
func DefaultMetadataSettings() *MetadataSettings {
	return &MetadataSettings{
		PosterWidth:            250,
		PosterHeight:           150,
		PosterFormat:           "jpg",
		PosterQuality:          2,
		PreviewWidth:           250,
		PreviewHeight:          150,
		PreviewDuration:        12,
		PreviewSegmentDuration: 2,
		PreviewFormat:          "mp4",
		PreviewQuality:         18,
		IsActive:               true,
	}
}
