package models

import "gorm.io/gorm"

// EncodingProfile is a named target quality the encoder produces, e.g. "720p".
// Profiles are created by configuration and read-only to the pipeline.
type EncodingProfile struct {
	BaseModel

	// Name is the unique human-readable profile name.
	Name string `gorm:"not null;uniqueIndex;size:50" json:"name"`

	// Resolution is the short label used for output paths, e.g. "720p".
	Resolution string `gorm:"not null;size:20" json:"resolution"`

	Width  int `gorm:"not null" json:"width"`
	Height int `gorm:"not null" json:"height"`

	// Bitrate is the target video bitrate in kbps.
	Bitrate int `gorm:"not null" json:"bitrate"`

	// IsActive controls whether the profile participates in encoding.
	IsActive bool `gorm:"default:true;index" json:"is_active"`

	// SortOrder orders profiles for display and primary-rendition selection.
	SortOrder int `gorm:"default:0" json:"sort_order"`
}

// TableName returns the table name for EncodingProfile.
func (EncodingProfile) TableName() string {
	return "encoding_profiles"
}

// Validate performs basic validation on the profile.
func (p *EncodingProfile) Validate() error {
	if p.Name == "" {
		return ErrProfileNameRequired
	}
	if p.Width <= 0 || p.Height <= 0 || p.Bitrate <= 0 {
		return ErrProfileDimensions
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the profile and generates a ULID.
func (p *EncodingProfile) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates the profile before update.
func (p *EncodingProfile) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}

// DefaultProfiles returns the built-in profile catalog used to seed new
// installations. Bitrates follow common ladder values for H.264 VOD.
func DefaultProfiles() []*EncodingProfile {
	return []*EncodingProfile{
		{Name: "240p", Resolution: "240p", Width: 426, Height: 240, Bitrate: 300, IsActive: true, SortOrder: 1},
		{Name: "360p", Resolution: "360p", Width: 640, Height: 360, Bitrate: 500, IsActive: true, SortOrder: 2},
		{Name: "480p", Resolution: "480p", Width: 854, Height: 480, Bitrate: 1000, IsActive: true, SortOrder: 3},
		{Name: "720p", Resolution: "720p", Width: 1280, Height: 720, Bitrate: 2500, IsActive: true, SortOrder: 4},
		{Name: "1080p", Resolution: "1080p", Width: 1920, Height: 1080, Bitrate: 5000, IsActive: true, SortOrder: 5},
	}
}
