package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

func setupDispatcherTestDB(t *testing.T) repository.VideoJobRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.VideoJob{}))
	return repository.NewVideoJobRepository(db)
}

func createJob(t *testing.T, jobs repository.VideoJobRepository, tier models.UploaderTier, videos int) *models.VideoJob {
	t.Helper()
	source := filepath.Join(t.TempDir(), "source.mp4")
	require.NoError(t, os.WriteFile(source, []byte("x"), 0o644))

	job := &models.VideoJob{
		Title:          "clip",
		SourcePath:     source,
		Status:         models.JobStatusPending,
		UploaderTier:   tier,
		UploaderVideos: videos,
	}
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

func TestComputePriority(t *testing.T) {
	tests := []struct {
		name   string
		tier   models.UploaderTier
		videos int
		want   int
	}{
		{"staff", models.TierStaff, 0, PriorityCritical},
		{"staff outranks volume", models.TierStaff, 200, PriorityCritical},
		{"premium", models.TierPremium, 2, PriorityHigh},
		{"high volume standard", models.TierStandard, 51, PriorityElevated},
		{"new account", models.TierStandard, 4, PriorityLow},
		{"boundary fifty uploads", models.TierStandard, 50, PriorityNormal},
		{"boundary five uploads", models.TierStandard, 5, PriorityNormal},
		{"default", models.TierStandard, 20, PriorityNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePriority(tt.tier, tt.videos))
		})
	}
}

func TestCanEnqueue(t *testing.T) {
	assert.True(t, CanEnqueue(models.JobStatusPending))
	assert.True(t, CanEnqueue(models.JobStatusFailed))
	assert.True(t, CanEnqueue(models.JobStatusError))
	assert.True(t, CanEnqueue(models.JobStatusCompleted))
	assert.False(t, CanEnqueue(models.JobStatusProcessing))
}

func TestPriorityQueueOrdering(t *testing.T) {
	q := NewPriorityQueue(10)

	low := models.NewULID()
	high := models.NewULID()
	normal := models.NewULID()

	require.NoError(t, q.Push(low, PriorityLow))
	require.NoError(t, q.Push(normal, PriorityNormal))
	require.NoError(t, q.Push(high, PriorityCritical))

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, high, got)
	got, _ = q.Pop()
	assert.Equal(t, normal, got)
	got, _ = q.Pop()
	assert.Equal(t, low, got)
}

func TestPriorityQueueFIFOWithinPriority(t *testing.T) {
	q := NewPriorityQueue(10)
	first := models.NewULID()
	second := models.NewULID()

	require.NoError(t, q.Push(first, PriorityNormal))
	require.NoError(t, q.Push(second, PriorityNormal))

	got, _ := q.Pop()
	assert.Equal(t, first, got)
	got, _ = q.Pop()
	assert.Equal(t, second, got)
}

func TestPriorityQueueCapacity(t *testing.T) {
	q := NewPriorityQueue(1)
	require.NoError(t, q.Push(models.NewULID(), PriorityNormal))
	err := q.Push(models.NewULID(), PriorityNormal)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPriorityQueueClose(t *testing.T) {
	q := NewPriorityQueue(10)
	queued := models.NewULID()
	require.NoError(t, q.Push(queued, PriorityNormal))
	q.Close()

	assert.ErrorIs(t, q.Push(models.NewULID(), PriorityNormal), ErrQueueClosed)

	// Existing items drain, then Pop reports closed.
	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, queued, got)
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestSubmitClaimsJob(t *testing.T) {
	jobs := setupDispatcherTestDB(t)
	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 1}, jobs, nil, nil)
	ctx := context.Background()

	job := createJob(t, jobs, models.TierPremium, 0)
	result, err := d.Submit(ctx, job.ID, nil)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, PriorityHigh, result.Priority)
	assert.Equal(t, 1, d.QueueLen())

	got, _ := jobs.GetByID(ctx, job.ID)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, PriorityHigh, got.Priority)
}

func TestSubmitRejectsProcessingJob(t *testing.T) {
	jobs := setupDispatcherTestDB(t)
	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 1}, jobs, nil, nil)
	ctx := context.Background()

	job := createJob(t, jobs, models.TierStandard, 10)
	_, err := d.Submit(ctx, job.ID, nil)
	require.NoError(t, err)

	result, err := d.Submit(ctx, job.ID, nil)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Contains(t, result.Reason, "already processing")
	assert.Equal(t, 1, d.QueueLen())
}

func TestSubmitRejectsMissingSource(t *testing.T) {
	jobs := setupDispatcherTestDB(t)
	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 1}, jobs, nil, nil)
	ctx := context.Background()

	job := &models.VideoJob{Title: "no source", Status: models.JobStatusPending}
	require.NoError(t, jobs.Create(ctx, job))

	result, err := d.Submit(ctx, job.ID, nil)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Contains(t, result.Reason, "no source file")
}

func TestSubmitUnknownJob(t *testing.T) {
	jobs := setupDispatcherTestDB(t)
	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 1}, jobs, nil, nil)

	_, err := d.Submit(context.Background(), models.NewULID(), nil)
	assert.Error(t, err)
}

func TestSubmitRevertsToPendingOnFullQueue(t *testing.T) {
	jobs := setupDispatcherTestDB(t)
	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 1}, jobs, nil, nil)
	d.queue = NewPriorityQueue(1)
	ctx := context.Background()

	first := createJob(t, jobs, models.TierStandard, 10)
	second := createJob(t, jobs, models.TierStandard, 10)

	result, err := d.Submit(ctx, first.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Accepted)

	result, err = d.Submit(ctx, second.ID, nil)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Contains(t, result.Reason, "full")

	got, _ := jobs.GetByID(ctx, second.ID)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestSubmitResetsPreviousRunState(t *testing.T) {
	jobs := setupDispatcherTestDB(t)
	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 1}, jobs, nil, nil)
	ctx := context.Background()

	job := createJob(t, jobs, models.TierStandard, 10)
	job.Status = models.JobStatusFailed
	job.Progress = 60
	job.LastError = "profile encode failures: 720p: boom"
	job.FailedStage = "encoding"
	require.NoError(t, jobs.Update(ctx, job))

	result, err := d.Submit(ctx, job.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Accepted)

	got, _ := jobs.GetByID(ctx, job.ID)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Zero(t, got.Progress)
	assert.Empty(t, got.LastError)
	assert.Empty(t, got.FailedStage)
}

func TestSubmitStoresSelectedProfiles(t *testing.T) {
	jobs := setupDispatcherTestDB(t)
	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 1}, jobs, nil, nil)
	ctx := context.Background()

	job := createJob(t, jobs, models.TierStandard, 10)
	ids := []string{models.NewULID().String(), models.NewULID().String()}

	result, err := d.Submit(ctx, job.ID, ids)
	require.NoError(t, err)
	require.True(t, result.Accepted)

	got, _ := jobs.GetByID(ctx, job.ID)
	assert.Equal(t, models.StringList(ids), got.SelectedProfiles)
}

func TestWorkersProcessByPriority(t *testing.T) {
	jobs := setupDispatcherTestDB(t)

	var mu sync.Mutex
	var processed []models.ULID
	process := func(ctx context.Context, jobID models.ULID) error {
		mu.Lock()
		processed = append(processed, jobID)
		mu.Unlock()
		return nil
	}

	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 1}, jobs, process, nil)
	ctx := context.Background()

	bulk := createJob(t, jobs, models.TierStandard, 2)
	staff := createJob(t, jobs, models.TierStaff, 0)

	_, err := d.Submit(ctx, bulk.ID, nil)
	require.NoError(t, err)
	_, err = d.Submit(ctx, staff.ID, nil)
	require.NoError(t, err)

	d.Start(ctx)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 2
	}, 2*time.Second, 10*time.Millisecond)
	d.Stop()

	assert.Equal(t, staff.ID, processed[0])
	assert.Equal(t, bulk.ID, processed[1])
}

func TestStopDrainsWorkers(t *testing.T) {
	jobs := setupDispatcherTestDB(t)
	done := make(chan models.ULID, 4)
	process := func(ctx context.Context, jobID models.ULID) error {
		done <- jobID
		return nil
	}

	d := NewDispatcher(config.DispatcherConfig{WorkerCount: 2}, jobs, process, nil)
	ctx := context.Background()
	d.Start(ctx)

	job := createJob(t, jobs, models.TierStandard, 10)
	_, err := d.Submit(ctx, job.ID, nil)
	require.NoError(t, err)

	select {
	case got := <-done:
		assert.Equal(t, job.ID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed before timeout")
	}
	d.Stop()
}
