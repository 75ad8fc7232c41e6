// Package encoder selects encoding profiles and runs per-profile encodes.
package encoder

import (
	"github.com/vodarr/vodarr/internal/models"
)

// SelectProfiles returns the candidates whose target height does not
// exceed sourceHeight, so a job never upscales. A zero sourceHeight means
// the source resolution is unknown and every candidate qualifies. When no
// candidate qualifies the single lowest-resolution profile is returned so
// a configured job always produces at least one rendition.
func SelectProfiles(sourceHeight int, candidates []*models.EncodingProfile) []*models.EncodingProfile {
	if len(candidates) == 0 {
		return nil
	}
	if sourceHeight <= 0 {
		return candidates
	}

	var suitable []*models.EncodingProfile
	lowest := candidates[0]
	for _, p := range candidates {
		if p.Height <= sourceHeight {
			suitable = append(suitable, p)
		}
		if p.Height < lowest.Height {
			lowest = p
		}
	}
	if len(suitable) == 0 {
		return []*models.EncodingProfile{lowest}
	}
	return suitable
}
