package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// JobStatus represents the processing state of a video job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be scheduled.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a pipeline run is in flight for the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the job produced publishable outputs.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the pipeline run failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusError indicates an unexpected failure outside normal stage handling.
	JobStatusError JobStatus = "error"
)

// UploaderTier classifies the uploading account for priority computation.
type UploaderTier string

const (
	// TierStaff marks staff/admin uploads.
	TierStaff UploaderTier = "staff"
	// TierPremium marks premium accounts.
	TierPremium UploaderTier = "premium"
	// TierStandard marks everyone else.
	TierStandard UploaderTier = "standard"
)

// maxErrorLength bounds the stored error text so progress queries stay cheap.
const maxErrorLength = 500

// StringList stores a JSON-encoded list of strings in a single column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshaling string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// GormDataType returns the GORM data type for StringList.
func (StringList) GormDataType() string {
	return "text"
}

// VideoJob represents one uploaded video awaiting or undergoing processing.
type VideoJob struct {
	BaseModel

	// Title is a human-readable name used in notifications and logs.
	Title string `gorm:"size:255" json:"title"`

	// SourcePath is the uploaded source file. Cleared after successful
	// encoding once the source is deleted.
	SourcePath string `gorm:"size:1024" json:"source_path,omitempty"`

	// OutputPaths lists per-profile encoded files produced by the last run.
	OutputPaths StringList `gorm:"type:text" json:"output_paths,omitempty"`

	// PosterPath is the extracted poster image.
	PosterPath string `gorm:"size:1024" json:"poster_path,omitempty"`

	// PreviewPath is the generated preview clip.
	PreviewPath string `gorm:"size:1024" json:"preview_path,omitempty"`

	// DurationSeconds is populated after probing.
	DurationSeconds int `json:"duration_seconds"`

	// Resolution is the probed source resolution, e.g. "1920x1080".
	Resolution string `gorm:"size:20" json:"resolution,omitempty"`

	// Status tracks the job through the pipeline state machine.
	Status JobStatus `gorm:"not null;default:'pending';size:20;index" json:"status"`

	// Progress is a 0-100 integer, monotonically non-decreasing while processing.
	Progress int `gorm:"default:0" json:"progress"`

	// LastError holds the truncated error text from the last failed run.
	LastError string `gorm:"size:500" json:"last_error,omitempty"`

	// FailedStage names the pipeline stage that aborted the last run.
	FailedStage string `gorm:"size:50" json:"failed_stage,omitempty"`

	// Uploader identity and denormalized tier data for priority computation.
	UploaderID    string       `gorm:"size:64;index" json:"uploader_id,omitempty"`
	UploaderTier  UploaderTier `gorm:"size:20;default:'standard'" json:"uploader_tier"`
	UploaderVideos int         `gorm:"default:0" json:"uploader_videos"`

	// Priority is the 0-10 scheduling hint computed at enqueue time.
	Priority int `gorm:"default:5;index" json:"priority"`

	// SelectedProfiles restricts encoding to the named profile IDs.
	// Empty means "use all active profiles".
	SelectedProfiles StringList `gorm:"type:text" json:"selected_profiles,omitempty"`

	// ProcessingStartedAt is set when a pipeline run picks up the job.
	ProcessingStartedAt *Time `json:"processing_started_at,omitempty"`

	// ProcessingEndedAt is set when a pipeline run finishes, success or not.
	ProcessingEndedAt *Time `json:"processing_ended_at,omitempty"`
}

// TableName returns the table name for VideoJob.
func (VideoJob) TableName() string {
	return "video_jobs"
}

// HasSource returns true if the job still references a source file.
func (j *VideoJob) HasSource() bool {
	return j.SourcePath != ""
}

// IsProcessing returns true if a pipeline run is in flight.
func (j *VideoJob) IsProcessing() bool {
	return j.Status == JobStatusProcessing
}

// IsCompleted returns true if the job reached the completed state.
func (j *VideoJob) IsCompleted() bool {
	return j.Status == JobStatusCompleted
}

// IsFailed returns true if the last run ended in failure.
func (j *VideoJob) IsFailed() bool {
	return j.Status == JobStatusFailed || j.Status == JobStatusError
}

// IsRetryable returns true if the job can be re-enqueued: the last run
// failed and the source file reference is still present.
func (j *VideoJob) IsRetryable() bool {
	return j.IsFailed() && j.HasSource()
}

// MarkProcessing flips the job into the processing state. It resets
// progress and error state from any previous run.
func (j *VideoJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Progress = 0
	j.LastError = ""
	j.FailedStage = ""
	now := Now()
	j.ProcessingStartedAt = &now
	j.ProcessingEndedAt = nil
}

// MarkCompleted records a successful run.
func (j *VideoJob) MarkCompleted(outputs []string) {
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.OutputPaths = outputs
	j.LastError = ""
	j.FailedStage = ""
	now := Now()
	j.ProcessingEndedAt = &now
}

// MarkFailed records a failed run with the stage that aborted it.
func (j *VideoJob) MarkFailed(stage, message string) {
	j.Status = JobStatusFailed
	j.FailedStage = stage
	j.LastError = TruncateError(message)
	now := Now()
	j.ProcessingEndedAt = &now
}

// SetProgress advances progress, never moving backwards while processing.
func (j *VideoJob) SetProgress(pct int) {
	if pct > 100 {
		pct = 100
	}
	if pct > j.Progress {
		j.Progress = pct
	}
}

// ProcessingDuration returns the wall-clock duration of the last run, or 0.
func (j *VideoJob) ProcessingDuration() float64 {
	if j.ProcessingStartedAt == nil || j.ProcessingEndedAt == nil {
		return 0
	}
	return j.ProcessingEndedAt.Sub(*j.ProcessingStartedAt).Seconds()
}

// TruncateError bounds for display an error message stored on the job.
func TruncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	return msg[:maxErrorLength-3] + "..."
}

// Validate performs basic validation on the job.
func (j *VideoJob) Validate() error {
	// A job with no source file must never enter processing.
	if j.Status == JobStatusProcessing && !j.HasSource() {
		return ErrSourcePathRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the job and generates a ULID.
func (j *VideoJob) BeforeCreate(tx *gorm.DB) error {
	if err := j.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return j.Validate()
}

// BeforeUpdate is a GORM hook that validates the job before update.
func (j *VideoJob) BeforeUpdate(tx *gorm.DB) error {
	return j.Validate()
}
