package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vodarr/vodarr/internal/models"
)

func setupVideoJobTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.VideoJob{}))
	return db
}

func newTestJob(title string) *models.VideoJob {
	return &models.VideoJob{
		Title:      title,
		SourcePath: "/videos/source/" + title + ".mp4",
		Status:     models.JobStatusPending,
		Priority:   5,
	}
}

func TestVideoJobRepositoryCRUD(t *testing.T) {
	db := setupVideoJobTestDB(t)
	repo := NewVideoJobRepository(db)
	ctx := context.Background()

	job := newTestJob("clip")
	require.NoError(t, repo.Create(ctx, job))
	require.False(t, job.ID.IsZero())

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "clip", got.Title)

	got.Title = "renamed"
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	require.NoError(t, repo.Delete(ctx, job.ID))
	got, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVideoJobRepositoryGetByIDNotFound(t *testing.T) {
	db := setupVideoJobTestDB(t)
	repo := NewVideoJobRepository(db)

	got, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVideoJobRepositoryUpdateStatusIfCurrent(t *testing.T) {
	db := setupVideoJobTestDB(t)
	repo := NewVideoJobRepository(db)
	ctx := context.Background()

	job := newTestJob("clip")
	require.NoError(t, repo.Create(ctx, job))

	ok, err := repo.UpdateStatusIfCurrent(ctx, job.ID, models.JobStatusPending, models.JobStatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second transition from pending must lose the race.
	ok, err = repo.UpdateStatusIfCurrent(ctx, job.ID, models.JobStatusPending, models.JobStatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
}

func TestVideoJobRepositoryGetStuck(t *testing.T) {
	db := setupVideoJobTestDB(t)
	repo := NewVideoJobRepository(db)
	ctx := context.Background()

	stale := newTestJob("stale")
	stale.Status = models.JobStatusProcessing
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, db.Model(&models.VideoJob{}).
		Where("id = ?", stale.ID).
		UpdateColumn("updated_at", time.Now().Add(-3*time.Hour)).Error)

	// An old start time alone is not enough; a recently touched row
	// belongs to a live run.
	active := newTestJob("active")
	active.Status = models.JobStatusProcessing
	started := time.Now().Add(-3 * time.Hour)
	active.ProcessingStartedAt = &started
	require.NoError(t, repo.Create(ctx, active))

	stuck, err := repo.GetStuck(ctx, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "stale", stuck[0].Title)
}

func TestVideoJobRepositoryGetPendingWithSource(t *testing.T) {
	db := setupVideoJobTestDB(t)
	repo := NewVideoJobRepository(db)
	ctx := context.Background()

	low := newTestJob("low")
	low.Priority = 3
	require.NoError(t, repo.Create(ctx, low))

	high := newTestJob("high")
	high.Priority = 10
	require.NoError(t, repo.Create(ctx, high))

	noSource := &models.VideoJob{Title: "orphan", Status: models.JobStatusPending}
	require.NoError(t, repo.Create(ctx, noSource))

	jobs, err := repo.GetPendingWithSource(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "high", jobs[0].Title)
	assert.Equal(t, "low", jobs[1].Title)

	jobs, err = repo.GetPendingWithSource(ctx, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "high", jobs[0].Title)
}

func TestVideoJobRepositoryErrorRateSince(t *testing.T) {
	db := setupVideoJobTestDB(t)
	repo := NewVideoJobRepository(db)
	ctx := context.Background()

	ended := time.Now().Add(-5 * time.Minute)
	for i, status := range []models.JobStatus{
		models.JobStatusCompleted, models.JobStatusCompleted,
		models.JobStatusCompleted, models.JobStatusFailed,
	} {
		job := newTestJob(string(rune('a' + i)))
		job.Status = status
		job.ProcessingEndedAt = &ended
		require.NoError(t, repo.Create(ctx, job))
	}

	// Outside the window.
	old := newTestJob("old")
	old.Status = models.JobStatusFailed
	oldEnd := time.Now().Add(-2 * time.Hour)
	old.ProcessingEndedAt = &oldEnd
	require.NoError(t, repo.Create(ctx, old))

	stats, err := repo.ErrorRateSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.Failed)
	assert.InDelta(t, 25.0, stats.Rate(), 0.01)
}

func TestVideoJobRepositoryAverageProcessingSeconds(t *testing.T) {
	db := setupVideoJobTestDB(t)
	repo := NewVideoJobRepository(db)
	ctx := context.Background()

	for i, secs := range []int{60, 120} {
		job := newTestJob(string(rune('a' + i)))
		job.Status = models.JobStatusCompleted
		start := time.Now().Add(-time.Duration(secs) * time.Second)
		end := time.Now()
		job.ProcessingStartedAt = &start
		job.ProcessingEndedAt = &end
		require.NoError(t, repo.Create(ctx, job))
	}

	avg, err := repo.AverageProcessingSeconds(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 90, avg, 2)

	avg, err = repo.AverageProcessingSeconds(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestVideoJobRepositoryCountByStatus(t *testing.T) {
	db := setupVideoJobTestDB(t)
	repo := NewVideoJobRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestJob("a")))
	require.NoError(t, repo.Create(ctx, newTestJob("b")))

	done := newTestJob("c")
	done.Status = models.JobStatusCompleted
	require.NoError(t, repo.Create(ctx, done))

	count, err := repo.CountByStatus(ctx, models.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
