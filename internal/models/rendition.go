package models

// Rendition is one profile's encoded output for one job.
type Rendition struct {
	BaseModel

	// JobID references the owning video job.
	JobID ULID `gorm:"not null;index;type:varchar(26)" json:"job_id"`

	// ProfileID references the encoding profile that produced this file.
	ProfileID ULID `gorm:"not null;index;type:varchar(26)" json:"profile_id"`

	// Resolution is the profile's short label, denormalized for path lookups.
	Resolution string `gorm:"not null;size:20" json:"resolution"`

	// OutputPath is the encoded file location.
	OutputPath string `gorm:"not null;size:1024" json:"output_path"`

	// SizeBytes is the encoded file size.
	SizeBytes int64 `json:"size_bytes"`

	// EncodeSeconds is the wall-clock encode duration.
	EncodeSeconds float64 `json:"encode_seconds"`

	// IsPrimary marks the rendition served by default. Exactly one
	// rendition per job may be primary.
	IsPrimary bool `gorm:"default:false" json:"is_primary"`
}

// TableName returns the table name for Rendition.
func (Rendition) TableName() string {
	return "renditions"
}
