package models

// StreamProtocol identifies an adaptive streaming protocol.
type StreamProtocol string

const (
	// ProtocolHLS is HTTP Live Streaming.
	ProtocolHLS StreamProtocol = "hls"
	// ProtocolDASH is MPEG-DASH.
	ProtocolDASH StreamProtocol = "dash"
)

// StreamManifest records packaged streaming output for one
// (job, protocol, profile) triple.
type StreamManifest struct {
	BaseModel

	// JobID references the owning video job.
	JobID ULID `gorm:"not null;index:idx_manifest_unique,unique;type:varchar(26)" json:"job_id"`

	// Protocol is hls or dash.
	Protocol StreamProtocol `gorm:"not null;size:10;index:idx_manifest_unique,unique" json:"protocol"`

	// Resolution is the profile label this manifest covers.
	Resolution string `gorm:"not null;size:20;index:idx_manifest_unique,unique" json:"resolution"`

	// ManifestPath is the variant playlist/manifest location.
	ManifestPath string `gorm:"not null;size:1024" json:"manifest_path"`

	// SegmentCount is the number of media segments written.
	SegmentCount int `json:"segment_count"`

	// TotalBytes is the combined size of manifest plus segments.
	TotalBytes int64 `json:"total_bytes"`

	// Ready flips true once the manifest is complete and servable.
	Ready bool `gorm:"default:false" json:"ready"`
}

// TableName returns the table name for StreamManifest.
func (StreamManifest) TableName() string {
	return "stream_manifests"
}
