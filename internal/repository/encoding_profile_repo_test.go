package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vodarr/vodarr/internal/models"
)

func setupEncodingProfileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.EncodingProfile{}))
	return db
}

func TestEncodingProfileRepositoryCRUD(t *testing.T) {
	db := setupEncodingProfileTestDB(t)
	repo := NewEncodingProfileRepository(db)
	ctx := context.Background()

	profile := &models.EncodingProfile{
		Name: "720p", Resolution: "720p", Width: 1280, Height: 720,
		Bitrate: 2500, IsActive: true, SortOrder: 4,
	}
	require.NoError(t, repo.Create(ctx, profile))

	got, err := repo.GetByName(ctx, "720p")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2500, got.Bitrate)

	got.Bitrate = 3000
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, 3000, got.Bitrate)

	require.NoError(t, repo.Delete(ctx, profile.ID))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEncodingProfileRepositoryCreateInvalid(t *testing.T) {
	db := setupEncodingProfileTestDB(t)
	repo := NewEncodingProfileRepository(db)

	err := repo.Create(context.Background(), &models.EncodingProfile{Name: "bad"})
	assert.Error(t, err)
}

func TestEncodingProfileRepositoryGetActiveOrder(t *testing.T) {
	db := setupEncodingProfileTestDB(t)
	repo := NewEncodingProfileRepository(db)
	ctx := context.Background()

	for _, p := range models.DefaultProfiles() {
		require.NoError(t, repo.Create(ctx, p))
	}

	inactive := &models.EncodingProfile{
		Name: "4k", Resolution: "2160p", Width: 3840, Height: 2160,
		Bitrate: 12000, IsActive: false, SortOrder: 6,
	}
	require.NoError(t, repo.Create(ctx, inactive))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 5)
	assert.Equal(t, "240p", active[0].Resolution)
	assert.Equal(t, "1080p", active[4].Resolution)
}

func TestEncodingProfileRepositoryGetByIDs(t *testing.T) {
	db := setupEncodingProfileTestDB(t)
	repo := NewEncodingProfileRepository(db)
	ctx := context.Background()

	profiles := models.DefaultProfiles()
	for _, p := range profiles {
		require.NoError(t, repo.Create(ctx, p))
	}

	got, err := repo.GetByIDs(ctx, []models.ULID{profiles[0].ID, profiles[2].ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
