package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/dispatcher"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/http/handlers"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/monitor"
	"github.com/vodarr/vodarr/internal/repository"
	"github.com/vodarr/vodarr/internal/service"
)

type fakeSubmitter struct {
	accept bool
}

func (f *fakeSubmitter) Submit(ctx context.Context, jobID models.ULID, profileIDs []string) (*dispatcher.EnqueueResult, error) {
	return &dispatcher.EnqueueResult{Accepted: f.accept, Priority: dispatcher.PriorityNormal}, nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(ctx context.Context) (*ffmpeg.BinaryInfo, error) {
	return &ffmpeg.BinaryInfo{FFmpegPath: "/usr/bin/ffmpeg", FFprobePath: "/usr/bin/ffprobe"}, nil
}

type fakeStreamGenerator struct {
	called []models.StreamProtocol
}

func (f *fakeStreamGenerator) GenerateStreams(ctx context.Context, jobID models.ULID, protocols ...models.StreamProtocol) error {
	f.called = append(f.called, protocols...)
	return nil
}

type apiEnv struct {
	router  *chi.Mux
	jobs    repository.VideoJobRepository
	streams *fakeStreamGenerator
	rules   repository.AlertRuleRepository
	alerts  repository.AlertRepository
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.VideoJob{}, &models.EncodingProfile{},
		&models.AlertRule{}, &models.Alert{}, &models.SystemMetric{},
	))

	jobs := repository.NewVideoJobRepository(db)
	profiles := repository.NewEncodingProfileRepository(db)
	rules := repository.NewAlertRuleRepository(db)
	alerts := repository.NewAlertRepository(db)
	metrics := repository.NewSystemMetricRepository(db)

	videoSvc := service.NewVideoService(jobs, &fakeSubmitter{accept: true}, nil)
	profileSvc := service.NewProfileService(profiles, nil)
	require.NoError(t, profileSvc.EnsureDefaults(context.Background()))

	collector := monitor.NewCollector(jobs, fakeDetector{}, t.TempDir(), nil)
	notifier := monitor.NewNotifier(config.MonitorConfig{}, nil)
	mon := monitor.New(rules, alerts, metrics, collector, notifier, nil)

	streams := &fakeStreamGenerator{}

	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("Test API", "1.0.0"))
	handlers.NewJobHandler(videoSvc, streams).Register(api)
	handlers.NewProfileHandler(profileSvc).Register(api)
	handlers.NewHealthHandler(mon).Register(api)

	return &apiEnv{router: router, jobs: jobs, streams: streams, rules: rules, alerts: alerts}
}

func (e *apiEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) createJob(t *testing.T, status models.JobStatus) *models.VideoJob {
	t.Helper()
	job := &models.VideoJob{Title: "clip", SourcePath: "/uploads/clip.mp4", Status: status}
	require.NoError(t, e.jobs.Create(context.Background(), job))
	return job
}

func TestCreateJobEndpoint(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, "POST", "/api/v1/jobs",
		`{"title":"my clip","source_path":"/uploads/clip.mp4","uploader_tier":"premium"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.CreateJobOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp.Body))
	assert.Equal(t, "my clip", resp.Body.Job.Title)
	assert.Equal(t, "pending", resp.Body.Job.Status)
	assert.NotEmpty(t, resp.Body.Job.ID)
}

func TestCreateJobRejectsMissingSource(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, "POST", "/api/v1/jobs", `{"title":"no source"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetJobEndpoint(t *testing.T) {
	env := setupAPI(t)
	job := env.createJob(t, models.JobStatusPending)

	rec := env.do(t, "GET", "/api/v1/jobs/"+job.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.GetJobOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp.Body))
	assert.Equal(t, job.ID.String(), resp.Body.Job.ID)
}

func TestGetJobNotFound(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, "GET", "/api/v1/jobs/"+models.NewULID().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobInvalidID(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, "GET", "/api/v1/jobs/not-a-ulid", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProcessJobEndpoint(t *testing.T) {
	env := setupAPI(t)
	job := env.createJob(t, models.JobStatusPending)

	rec := env.do(t, "POST", "/api/v1/jobs/"+job.ID.String()+"/process", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.EnqueueOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp.Body))
	assert.True(t, resp.Body.Accepted)
}

func TestProgressEndpoint(t *testing.T) {
	env := setupAPI(t)
	job := env.createJob(t, models.JobStatusPending)
	job.MarkProcessing()
	job.SetProgress(55)
	require.NoError(t, env.jobs.Update(context.Background(), job))

	rec := env.do(t, "GET", "/api/v1/jobs/"+job.ID.String()+"/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info service.ProgressInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, 55, info.Progress)
	assert.Equal(t, "processing", info.Status)
}

func TestRetryEndpointRejectsCompletedJob(t *testing.T) {
	env := setupAPI(t)
	job := env.createJob(t, models.JobStatusPending)
	job.MarkCompleted([]string{"/out/clip.mp4"})
	require.NoError(t, env.jobs.Update(context.Background(), job))

	rec := env.do(t, "POST", "/api/v1/jobs/"+job.ID.String()+"/retry", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetryEndpointAcceptsFailedJob(t *testing.T) {
	env := setupAPI(t)
	job := env.createJob(t, models.JobStatusPending)
	job.MarkFailed("encoding", "boom")
	require.NoError(t, env.jobs.Update(context.Background(), job))

	rec := env.do(t, "POST", "/api/v1/jobs/"+job.ID.String()+"/retry", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.EnqueueOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp.Body))
	assert.True(t, resp.Body.Accepted)
}

func TestBulkProcessEndpoint(t *testing.T) {
	env := setupAPI(t)
	env.createJob(t, models.JobStatusPending)
	env.createJob(t, models.JobStatusPending)
	env.createJob(t, models.JobStatusCompleted)

	rec := env.do(t, "POST", "/api/v1/jobs/bulk-process", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.BulkResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 2, result.Submitted)
}

func TestBulkProcessEndpointByIDs(t *testing.T) {
	env := setupAPI(t)
	failed := env.createJob(t, models.JobStatusFailed)
	done := env.createJob(t, models.JobStatusCompleted)
	env.createJob(t, models.JobStatusPending)

	rec := env.do(t, "POST", "/api/v1/jobs/bulk-process",
		`{"job_ids":["`+failed.ID.String()+`","`+done.ID.String()+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.BulkResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Errors)
}

func TestGenerateStreamsEndpoint(t *testing.T) {
	env := setupAPI(t)
	job := env.createJob(t, models.JobStatusCompleted)

	rec := env.do(t, "POST", "/api/v1/jobs/"+job.ID.String()+"/streams",
		`{"protocols":["hls","dash"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []models.StreamProtocol{models.ProtocolHLS, models.ProtocolDASH}, env.streams.called)
}

func TestGenerateStreamsRejectsUnknownProtocol(t *testing.T) {
	env := setupAPI(t)
	job := env.createJob(t, models.JobStatusCompleted)

	rec := env.do(t, "POST", "/api/v1/jobs/"+job.ID.String()+"/streams",
		`{"protocols":["rtmp"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListProfilesEndpoint(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, "GET", "/api/v1/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ListProfilesOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp.Body))
	assert.Len(t, resp.Body.Profiles, 5)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupAPI(t)
	env.createJob(t, models.JobStatusPending)

	rec := env.do(t, "GET", "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap monitor.HealthSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, monitor.HealthOK, snap.Status)
	assert.EqualValues(t, 1, snap.QueueSize)
	assert.True(t, snap.FFmpegAvailable)
}

func TestAcknowledgeAlertEndpoint(t *testing.T) {
	env := setupAPI(t)
	ctx := context.Background()

	rule := &models.AlertRule{Name: "Queue backlog", Type: models.AlertQueueSize, Threshold: 1, IsActive: true}
	require.NoError(t, env.rules.Create(ctx, rule))
	alert := &models.Alert{RuleID: rule.ID, Status: models.AlertActive, Message: "queue deep"}
	require.NoError(t, env.alerts.Create(ctx, alert))

	rec := env.do(t, "POST", "/api/v1/alerts/"+alert.ID.String()+"/acknowledge",
		`{"acknowledged_by":"ops"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.AcknowledgeOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp.Body))
	assert.Equal(t, "acknowledged", resp.Body.Alert.Status)
	assert.Equal(t, "ops", resp.Body.Alert.AcknowledgedBy)
}

func TestListAlertsEndpoint(t *testing.T) {
	env := setupAPI(t)
	ctx := context.Background()

	rule := &models.AlertRule{Name: "Queue backlog", Type: models.AlertQueueSize, Threshold: 1, IsActive: true}
	require.NoError(t, env.rules.Create(ctx, rule))
	alert := &models.Alert{RuleID: rule.ID, Status: models.AlertActive, Message: "queue deep"}
	require.NoError(t, env.alerts.Create(ctx, alert))

	rec := env.do(t, "GET", "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ListAlertsOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp.Body))
	require.Len(t, resp.Body.Alerts, 1)
	assert.Equal(t, "queue deep", resp.Body.Alerts[0].Message)
}
