package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

// ProfileService manages the encoding profile catalog.
type ProfileService struct {
	profiles repository.EncodingProfileRepository
	logger   *slog.Logger
}

// NewProfileService creates a profile service.
func NewProfileService(profiles repository.EncodingProfileRepository, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{profiles: profiles, logger: logger}
}

// EnsureDefaults seeds the built-in profile ladder when the catalog is
// empty. Idempotent across restarts.
func (s *ProfileService) EnsureDefaults(ctx context.Context) error {
	count, err := s.profiles.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting profiles: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range models.DefaultProfiles() {
		if err := s.profiles.Create(ctx, p); err != nil {
			return fmt.Errorf("seeding profile %s: %w", p.Resolution, err)
		}
	}
	s.logger.Info("seeded default encoding profiles",
		slog.Int("count", len(models.DefaultProfiles())))
	return nil
}

// Active returns the active profiles.
func (s *ProfileService) Active(ctx context.Context) ([]*models.EncodingProfile, error) {
	return s.profiles.GetActive(ctx)
}

// All returns every profile.
func (s *ProfileService) All(ctx context.Context) ([]*models.EncodingProfile, error) {
	return s.profiles.GetAll(ctx)
}

// Get returns one profile, or nil when it does not exist.
func (s *ProfileService) Get(ctx context.Context, id models.ULID) (*models.EncodingProfile, error) {
	return s.profiles.GetByID(ctx, id)
}
