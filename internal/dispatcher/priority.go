// Package dispatcher schedules pending video jobs onto a bounded worker
// pool, ordered by uploader-derived priority.
package dispatcher

import "github.com/vodarr/vodarr/internal/models"

// Priority levels on the 0-10 scale. Higher runs first.
const (
	PriorityCritical = 10
	PriorityHigh     = 7
	PriorityElevated = 6
	PriorityNormal   = 5
	PriorityLow      = 3
	PriorityBulk     = 1
)

// Upload-count boundaries for the standard tier.
const (
	highVolumeUploads = 50
	newAccountUploads = 5
)

// ComputePriority maps an uploader's tier and history onto a queue
// priority. Tier outranks volume: staff and premium uploads keep their
// level regardless of upload count.
func ComputePriority(tier models.UploaderTier, uploadedVideos int) int {
	switch tier {
	case models.TierStaff:
		return PriorityCritical
	case models.TierPremium:
		return PriorityHigh
	}
	if uploadedVideos > highVolumeUploads {
		return PriorityElevated
	}
	if uploadedVideos < newAccountUploads {
		return PriorityLow
	}
	return PriorityNormal
}

// CanEnqueue reports whether a job in the given status may be submitted
// for processing. Only an in-flight run blocks submission.
func CanEnqueue(status models.JobStatus) bool {
	return status != models.JobStatusProcessing
}
