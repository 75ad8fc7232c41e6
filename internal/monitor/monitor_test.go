package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

type fakeDetector struct {
	err error
}

func (f *fakeDetector) Detect(ctx context.Context) (*ffmpeg.BinaryInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ffmpeg.BinaryInfo{FFmpegPath: "/usr/bin/ffmpeg", FFprobePath: "/usr/bin/ffprobe"}, nil
}

type monitorEnv struct {
	monitor  *Monitor
	detector *fakeDetector
	jobs     repository.VideoJobRepository
	rules    repository.AlertRuleRepository
	alerts   repository.AlertRepository
	metrics  repository.SystemMetricRepository
	db       *gorm.DB
}

func setupMonitor(t *testing.T) *monitorEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.VideoJob{}, &models.AlertRule{}, &models.Alert{}, &models.SystemMetric{},
	))

	jobs := repository.NewVideoJobRepository(db)
	rules := repository.NewAlertRuleRepository(db)
	alerts := repository.NewAlertRepository(db)
	metrics := repository.NewSystemMetricRepository(db)

	detector := &fakeDetector{}
	collector := NewCollector(jobs, detector, t.TempDir(), nil)
	notifier := NewNotifier(config.MonitorConfig{NotifyTimeout: time.Second}, nil)

	return &monitorEnv{
		monitor:  New(rules, alerts, metrics, collector, notifier, nil),
		detector: detector,
		jobs:     jobs,
		rules:    rules,
		alerts:   alerts,
		metrics:  metrics,
		db:       db,
	}
}

func (e *monitorEnv) createRule(t *testing.T, ruleType models.AlertType, threshold float64) *models.AlertRule {
	t.Helper()
	rule := &models.AlertRule{
		Name:            "test " + string(ruleType),
		Type:            ruleType,
		Threshold:       threshold,
		Severity:        models.SeverityWarning,
		IsActive:        true,
		CooldownMinutes: 30,
	}
	require.NoError(t, e.rules.Create(context.Background(), rule))
	return rule
}

func (e *monitorEnv) createPendingJobs(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		job := &models.VideoJob{Title: "clip", SourcePath: "/tmp/clip.mp4", Status: models.JobStatusPending}
		require.NoError(t, e.jobs.Create(context.Background(), job))
	}
}

func TestEvaluateFiresQueueAlert(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	rule := env.createRule(t, models.AlertQueueSize, 2)
	env.createPendingJobs(t, 3)

	env.monitor.Evaluate(ctx)

	active, err := env.alerts.GetActiveByRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Contains(t, active[0].Message, "queue depth is 3")
	assert.Equal(t, float64(3), active[0].ObservedValue)

	// The reading was also stored as a metric sample.
	sample, err := env.metrics.LatestByType(ctx, string(models.AlertQueueSize))
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, float64(3), sample.Value)
}

func TestEvaluateThresholdIsExclusive(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	rule := env.createRule(t, models.AlertQueueSize, 3)
	env.createPendingJobs(t, 3)

	env.monitor.Evaluate(ctx)

	active, err := env.alerts.GetActiveByRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestEvaluateCooldownSuppressesRepeat(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	rule := env.createRule(t, models.AlertQueueSize, 1)
	env.createPendingJobs(t, 5)

	env.monitor.Evaluate(ctx)
	env.monitor.Evaluate(ctx)

	active, err := env.alerts.GetActiveByRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEvaluateFiresAgainAfterCooldown(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	rule := env.createRule(t, models.AlertQueueSize, 1)
	env.createPendingJobs(t, 5)

	env.monitor.Evaluate(ctx)

	latest, err := env.alerts.GetLatestByRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.NoError(t, env.db.Model(&models.Alert{}).
		Where("id = ?", latest.ID).
		UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)

	env.monitor.Evaluate(ctx)

	active, err := env.alerts.GetActiveByRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestEvaluateAutoResolves(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	rule := env.createRule(t, models.AlertQueueSize, 1)
	env.createPendingJobs(t, 5)
	env.monitor.Evaluate(ctx)

	require.NoError(t, env.db.Model(&models.VideoJob{}).
		Where("status = ?", models.JobStatusPending).
		UpdateColumn("status", models.JobStatusCompleted).Error)

	env.monitor.Evaluate(ctx)

	active, err := env.alerts.GetActiveByRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	latest, err := env.alerts.GetLatestByRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertResolved, latest.Status)
	assert.NotNil(t, latest.ResolvedAt)
}

func TestEvaluateFFmpegUnavailable(t *testing.T) {
	env := setupMonitor(t)
	env.detector.err = errors.New("not installed")
	ctx := context.Background()

	rule := env.createRule(t, models.AlertFFmpegUnavailable, 0)

	env.monitor.Evaluate(ctx)

	active, err := env.alerts.GetActiveByRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Contains(t, active[0].Message, "not available")
}

func TestEvaluateSendsWebhook(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	var mu sync.Mutex
	var payload webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rule := env.createRule(t, models.AlertQueueSize, 1)
	rule.WebhookURL = server.URL
	require.NoError(t, env.rules.Update(ctx, rule))
	env.createPendingJobs(t, 5)

	env.monitor.Evaluate(ctx)

	active, err := env.alerts.GetActiveByRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].WebhookSent)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, string(models.AlertQueueSize), payload.Type)
	assert.Equal(t, float64(5), payload.ObservedValue)
	assert.NotEmpty(t, payload.EventID)
}

func TestWebhookFailureLeavesFlagUnset(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	rule := env.createRule(t, models.AlertQueueSize, 1)
	rule.WebhookURL = server.URL
	require.NoError(t, env.rules.Update(ctx, rule))
	env.createPendingJobs(t, 5)

	env.monitor.Evaluate(ctx)

	active, err := env.alerts.GetActiveByRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].WebhookSent)
}

func TestSendEmailWithoutSMTPHost(t *testing.T) {
	notifier := NewNotifier(config.MonitorConfig{}, nil)
	rule := &models.AlertRule{Name: "r", Type: models.AlertQueueSize, EmailRecipients: "ops@example.com"}
	alert := &models.Alert{Message: "m"}
	assert.False(t, notifier.SendEmail(alert, rule))
}

func TestAcknowledge(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	rule := env.createRule(t, models.AlertQueueSize, 1)
	env.createPendingJobs(t, 5)
	env.monitor.Evaluate(ctx)

	latest, err := env.alerts.GetLatestByRule(ctx, rule.ID)
	require.NoError(t, err)

	acked, err := env.monitor.Acknowledge(ctx, latest.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, models.AlertAcknowledged, acked.Status)
	assert.Equal(t, "ops", acked.AcknowledgedBy)
	assert.NotNil(t, acked.AcknowledgedAt)
}

func TestAcknowledgeResolvedAlert(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	rule := env.createRule(t, models.AlertQueueSize, 1)
	alert := &models.Alert{RuleID: rule.ID, Status: models.AlertActive, Message: "m"}
	require.NoError(t, env.alerts.Create(ctx, alert))
	alert.Resolve()
	require.NoError(t, env.alerts.Update(ctx, alert))

	_, err := env.monitor.Acknowledge(ctx, alert.ID, "ops")
	assert.Error(t, err)
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	env := setupMonitor(t)
	_, err := env.monitor.Acknowledge(context.Background(), models.NewULID(), "ops")
	assert.Error(t, err)
}

func TestHealthSnapshot(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	env.createPendingJobs(t, 2)

	snap := env.monitor.Health(ctx)
	assert.Equal(t, HealthOK, snap.Status)
	assert.EqualValues(t, 2, snap.QueueSize)
	assert.True(t, snap.FFmpegAvailable)
	assert.Zero(t, snap.ActiveAlerts)
	assert.False(t, snap.CheckedAt.IsZero())
}

func TestHealthDegradedWithoutFFmpeg(t *testing.T) {
	env := setupMonitor(t)
	env.detector.err = errors.New("not installed")

	snap := env.monitor.Health(context.Background())
	assert.Equal(t, HealthDegraded, snap.Status)
	assert.False(t, snap.FFmpegAvailable)
}

func TestHealthDegradedWithActiveAlerts(t *testing.T) {
	env := setupMonitor(t)
	ctx := context.Background()

	env.createRule(t, models.AlertQueueSize, 1)
	env.createPendingJobs(t, 5)
	env.monitor.Evaluate(ctx)

	snap := env.monitor.Health(ctx)
	assert.Equal(t, HealthDegraded, snap.Status)
	assert.EqualValues(t, 1, snap.ActiveAlerts)
}
