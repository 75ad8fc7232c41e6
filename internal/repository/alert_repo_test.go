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

func setupAlertTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AlertRule{}, &models.Alert{}, &models.SystemMetric{}))
	return db
}

func TestAlertRuleRepositoryCRUD(t *testing.T) {
	db := setupAlertTestDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := context.Background()

	rule := &models.AlertRule{
		Name: "queue depth", Type: models.AlertQueueSize,
		Threshold: 50, Severity: models.SeverityWarning, IsActive: true,
	}
	require.NoError(t, repo.Create(ctx, rule))

	got, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.AlertQueueSize, got.Type)

	got.Threshold = 75
	require.NoError(t, repo.Update(ctx, got))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.Delete(ctx, rule.ID))
	got, err = repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAlertRuleRepositoryGetActive(t *testing.T) {
	db := setupAlertTestDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := context.Background()

	for _, rule := range models.DefaultAlertRules() {
		require.NoError(t, repo.Create(ctx, rule))
	}

	disabled := &models.AlertRule{
		Name: "disabled", Type: models.AlertQueueSize, Threshold: 1, IsActive: false,
	}
	require.NoError(t, repo.Create(ctx, disabled))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 5)
}

func TestAlertRepositoryLifecycle(t *testing.T) {
	db := setupAlertTestDB(t)
	rules := NewAlertRuleRepository(db)
	alerts := NewAlertRepository(db)
	ctx := context.Background()

	rule := &models.AlertRule{Name: "queue depth", Type: models.AlertQueueSize, Threshold: 50, IsActive: true}
	require.NoError(t, rules.Create(ctx, rule))

	alert := &models.Alert{
		RuleID: rule.ID, Status: models.AlertActive,
		Message: "queue size is 75", ObservedValue: 75,
	}
	require.NoError(t, alerts.Create(ctx, alert))

	active, err := alerts.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	latest, err := alerts.GetLatestByRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, alert.ID, latest.ID)

	alert.Resolve()
	require.NoError(t, alerts.Update(ctx, alert))

	count, err := alerts.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Latest is still found after resolution.
	latest, err = alerts.GetLatestByRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.AlertResolved, latest.Status)
}

func TestAlertRepositoryGetLatestByRuleNone(t *testing.T) {
	db := setupAlertTestDB(t)
	alerts := NewAlertRepository(db)

	latest, err := alerts.GetLatestByRule(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSystemMetricRepositoryAverageSince(t *testing.T) {
	db := setupAlertTestDB(t)
	repo := NewSystemMetricRepository(db)
	ctx := context.Background()

	for _, v := range []float64{10, 20, 30} {
		require.NoError(t, repo.Record(ctx, &models.SystemMetric{Type: "queue_size", Value: v}))
	}
	require.NoError(t, repo.Record(ctx, &models.SystemMetric{Type: "error_rate", Value: 99}))

	avg, err := repo.AverageSince(ctx, "queue_size", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 20, avg, 0.01)

	avg, err = repo.AverageSince(ctx, "missing", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestSystemMetricRepositoryLatestAndPrune(t *testing.T) {
	db := setupAlertTestDB(t)
	repo := NewSystemMetricRepository(db)
	ctx := context.Background()

	old := &models.SystemMetric{Type: "queue_size", Value: 5}
	require.NoError(t, repo.Record(ctx, old))
	require.NoError(t, db.Model(old).UpdateColumn("created_at", time.Now().Add(-48*time.Hour)).Error)

	recent := &models.SystemMetric{Type: "queue_size", Value: 12}
	require.NoError(t, repo.Record(ctx, recent))

	latest, err := repo.LatestByType(ctx, "queue_size")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, float64(12), latest.Value)

	pruned, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}
