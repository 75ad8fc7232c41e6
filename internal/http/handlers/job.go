// Package handlers implements the vodarr API operations.
package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/service"
)

// StreamGenerator packages existing renditions into streaming formats.
// Implemented by the pipeline orchestrator.
type StreamGenerator interface {
	GenerateStreams(ctx context.Context, jobID models.ULID, protocols ...models.StreamProtocol) error
}

// JobHandler handles video job API endpoints.
type JobHandler struct {
	service *service.VideoService
	streams StreamGenerator
}

// NewJobHandler creates a new job handler.
func NewJobHandler(svc *service.VideoService, streams StreamGenerator) *JobHandler {
	return &JobHandler{service: svc, streams: streams}
}

// Register registers the job routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createJob",
		Method:      "POST",
		Path:        "/api/v1/jobs",
		Summary:     "Create job",
		Description: "Registers a new video job in the pending state",
		Tags:        []string{"Jobs"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listJobs",
		Method:      "GET",
		Path:        "/api/v1/jobs",
		Summary:     "List jobs",
		Tags:        []string{"Jobs"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get job",
		Tags:        []string{"Jobs"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "processJob",
		Method:      "POST",
		Path:        "/api/v1/jobs/{id}/process",
		Summary:     "Process job",
		Description: "Enqueues the job for pipeline processing",
		Tags:        []string{"Jobs"},
	}, h.Process)

	huma.Register(api, huma.Operation{
		OperationID: "getJobProgress",
		Method:      "GET",
		Path:        "/api/v1/jobs/{id}/progress",
		Summary:     "Get job progress",
		Tags:        []string{"Jobs"},
	}, h.Progress)

	huma.Register(api, huma.Operation{
		OperationID: "retryJob",
		Method:      "POST",
		Path:        "/api/v1/jobs/{id}/retry",
		Summary:     "Retry job",
		Description: "Re-enqueues a failed job that still has its source file",
		Tags:        []string{"Jobs"},
	}, h.Retry)

	huma.Register(api, huma.Operation{
		OperationID: "bulkProcessJobs",
		Method:      "POST",
		Path:        "/api/v1/jobs/bulk-process",
		Summary:     "Bulk process jobs",
		Description: "Enqueues the given jobs, or every pending job when no ids are given",
		Tags:        []string{"Jobs"},
	}, h.BulkProcess)

	huma.Register(api, huma.Operation{
		OperationID: "generateJobStreams",
		Method:      "POST",
		Path:        "/api/v1/jobs/{id}/streams",
		Summary:     "Generate streaming output",
		Description: "Packages the job's encoded renditions into HLS and/or DASH",
		Tags:        []string{"Jobs"},
	}, h.GenerateStreams)
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID              string   `json:"id" doc:"Job ID (ULID)"`
	Title           string   `json:"title" doc:"Job title"`
	Status          string   `json:"status" doc:"Job status (pending, processing, completed, failed, error)"`
	Progress        int      `json:"progress" doc:"Processing progress (0-100)"`
	SourcePath      string   `json:"source_path,omitempty" doc:"Source file path"`
	OutputPaths     []string `json:"output_paths,omitempty" doc:"Encoded output files"`
	PosterPath      string   `json:"poster_path,omitempty" doc:"Extracted poster image"`
	PreviewPath     string   `json:"preview_path,omitempty" doc:"Generated preview clip"`
	DurationSeconds int      `json:"duration_seconds" doc:"Source duration in seconds"`
	Resolution      string   `json:"resolution,omitempty" doc:"Source resolution, e.g. 1920x1080"`
	Priority        int      `json:"priority" doc:"Queue priority (0-10)"`
	LastError       string   `json:"last_error,omitempty" doc:"Error from the last failed run"`
	FailedStage     string   `json:"failed_stage,omitempty" doc:"Pipeline stage that aborted the last run"`
	CreatedAt       string   `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt       string   `json:"updated_at" doc:"Last update timestamp"`
}

// JobFromModel converts a models.VideoJob to JobResponse.
func JobFromModel(job *models.VideoJob) JobResponse {
	return JobResponse{
		ID:              job.ID.String(),
		Title:           job.Title,
		Status:          string(job.Status),
		Progress:        job.Progress,
		SourcePath:      job.SourcePath,
		OutputPaths:     job.OutputPaths,
		PosterPath:      job.PosterPath,
		PreviewPath:     job.PreviewPath,
		DurationSeconds: job.DurationSeconds,
		Resolution:      job.Resolution,
		Priority:        job.Priority,
		LastError:       job.LastError,
		FailedStage:     job.FailedStage,
		CreatedAt:       job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateJobInput is the input for creating a job.
type CreateJobInput struct {
	Body struct {
		Title            string   `json:"title" doc:"Job title"`
		SourcePath       string   `json:"source_path" doc:"Uploaded source file path"`
		UploaderID       string   `json:"uploader_id,omitempty" doc:"Uploading account identifier"`
		UploaderTier     string   `json:"uploader_tier,omitempty" doc:"Uploader tier (staff, premium, standard)" enum:"staff,premium,standard,"`
		UploaderVideos   int      `json:"uploader_videos,omitempty" doc:"Uploader's historical upload count"`
		SelectedProfiles []string `json:"selected_profiles,omitempty" doc:"Profile IDs to encode with (empty = all active)"`
	}
}

// CreateJobOutput is the output for creating a job.
type CreateJobOutput struct {
	Body struct {
		Job JobResponse `json:"job"`
	}
}

// Create registers a new job.
func (h *JobHandler) Create(ctx context.Context, input *CreateJobInput) (*CreateJobOutput, error) {
	job, err := h.service.CreateJob(ctx, service.CreateJobRequest{
		Title:            input.Body.Title,
		SourcePath:       input.Body.SourcePath,
		UploaderID:       input.Body.UploaderID,
		UploaderTier:     models.UploaderTier(input.Body.UploaderTier),
		UploaderVideos:   input.Body.UploaderVideos,
		SelectedProfiles: input.Body.SelectedProfiles,
	})
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to create job", err)
	}

	resp := &CreateJobOutput{}
	resp.Body.Job = JobFromModel(job)
	return resp, nil
}

// ListJobsOutput is the output for listing jobs.
type ListJobsOutput struct {
	Body struct {
		Jobs []JobResponse `json:"jobs"`
	}
}

// List returns all jobs.
func (h *JobHandler) List(ctx context.Context, _ *struct{}) (*ListJobsOutput, error) {
	jobs, err := h.service.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list jobs", err)
	}

	resp := &ListJobsOutput{}
	resp.Body.Jobs = make([]JobResponse, len(jobs))
	for i, job := range jobs {
		resp.Body.Jobs[i] = JobFromModel(job)
	}
	return resp, nil
}

// GetJobInput is the input for fetching one job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID (ULID)"`
}

// GetJobOutput is the output for fetching one job.
type GetJobOutput struct {
	Body struct {
		Job JobResponse `json:"job"`
	}
}

// GetByID returns one job.
func (h *JobHandler) GetByID(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	job, err := h.loadJob(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	resp := &GetJobOutput{}
	resp.Body.Job = JobFromModel(job)
	return resp, nil
}

// ProcessJobInput is the input for submitting a job.
type ProcessJobInput struct {
	ID   string `path:"id" doc:"Job ID (ULID)"`
	Body struct {
		ProfileIDs []string `json:"profile_ids,omitempty" doc:"Profile IDs to encode with (empty = all active)"`
	}
}

// EnqueueOutput is the output for submit and retry operations.
type EnqueueOutput struct {
	Body struct {
		Accepted bool   `json:"accepted" doc:"Whether the job was enqueued"`
		Reason   string `json:"reason,omitempty" doc:"Why the submission was rejected"`
		Priority int    `json:"priority" doc:"Assigned queue priority"`
	}
}

// Process enqueues the job for processing.
func (h *JobHandler) Process(ctx context.Context, input *ProcessJobInput) (*EnqueueOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}

	result, err := h.service.Submit(ctx, id, input.Body.ProfileIDs)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to enqueue job", err)
	}

	resp := &EnqueueOutput{}
	resp.Body.Accepted = result.Accepted
	resp.Body.Reason = result.Reason
	resp.Body.Priority = result.Priority
	return resp, nil
}

// ProgressInput is the input for the progress query.
type ProgressInput struct {
	ID string `path:"id" doc:"Job ID (ULID)"`
}

// ProgressOutput is the output for the progress query.
type ProgressOutput struct {
	Body service.ProgressInfo
}

// Progress returns the processing state of one job.
func (h *JobHandler) Progress(ctx context.Context, input *ProgressInput) (*ProgressOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}

	info, err := h.service.Progress(ctx, id)
	if err != nil {
		return nil, huma.Error404NotFound("job not found", err)
	}
	return &ProgressOutput{Body: *info}, nil
}

// RetryJobInput is the input for retrying a job.
type RetryJobInput struct {
	ID string `path:"id" doc:"Job ID (ULID)"`
}

// Retry re-enqueues a failed job.
func (h *JobHandler) Retry(ctx context.Context, input *RetryJobInput) (*EnqueueOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}

	result, err := h.service.Retry(ctx, id)
	if err != nil {
		return nil, huma.Error409Conflict("job cannot be retried", err)
	}

	resp := &EnqueueOutput{}
	resp.Body.Accepted = result.Accepted
	resp.Body.Reason = result.Reason
	resp.Body.Priority = result.Priority
	return resp, nil
}

// BulkProcessInput is the input for bulk submission.
type BulkProcessInput struct {
	Body struct {
		JobIDs []string `json:"job_ids,omitempty" doc:"Job IDs to enqueue (empty = every pending job)"`
	}
}

// BulkProcessOutput is the output for bulk submission.
type BulkProcessOutput struct {
	Body service.BulkResult
}

// BulkProcess enqueues the named jobs, or every pending job.
func (h *JobHandler) BulkProcess(ctx context.Context, input *BulkProcessInput) (*BulkProcessOutput, error) {
	ids := make([]models.ULID, 0, len(input.Body.JobIDs))
	for _, raw := range input.Body.JobIDs {
		id, err := parseULID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	result, err := h.service.BulkProcess(ctx, ids)
	if err != nil {
		return nil, huma.Error500InternalServerError("bulk submission failed", err)
	}
	return &BulkProcessOutput{Body: *result}, nil
}

// GenerateStreamsInput is the input for stream generation.
type GenerateStreamsInput struct {
	ID   string `path:"id" doc:"Job ID (ULID)"`
	Body struct {
		Protocols []string `json:"protocols" doc:"Protocols to package (hls, dash)"`
	}
}

// GenerateStreamsOutput is the output for stream generation.
type GenerateStreamsOutput struct {
	Body struct {
		Generated []string `json:"generated" doc:"Protocols that were packaged"`
	}
}

// GenerateStreams packages the job's renditions for streaming.
func (h *JobHandler) GenerateStreams(ctx context.Context, input *GenerateStreamsInput) (*GenerateStreamsOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}

	var protocols []models.StreamProtocol
	for _, p := range input.Body.Protocols {
		switch p {
		case string(models.ProtocolHLS):
			protocols = append(protocols, models.ProtocolHLS)
		case string(models.ProtocolDASH):
			protocols = append(protocols, models.ProtocolDASH)
		default:
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("unknown protocol %q", p))
		}
	}
	if len(protocols) == 0 {
		protocols = []models.StreamProtocol{models.ProtocolHLS}
	}

	if err := h.streams.GenerateStreams(ctx, id, protocols...); err != nil {
		return nil, huma.Error409Conflict("stream generation failed", err)
	}

	resp := &GenerateStreamsOutput{}
	for _, p := range protocols {
		resp.Body.Generated = append(resp.Body.Generated, string(p))
	}
	return resp, nil
}

// loadJob parses the ID and loads the job, translating misses to API errors.
func (h *JobHandler) loadJob(ctx context.Context, raw string) (*models.VideoJob, error) {
	id, err := parseULID(raw)
	if err != nil {
		return nil, err
	}
	job, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load job", err)
	}
	if job == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("job %s not found", raw))
	}
	return job, nil
}

// parseULID converts a path parameter into a ULID.
func parseULID(raw string) (models.ULID, error) {
	id, err := models.ParseULID(raw)
	if err != nil {
		return models.ULID{}, huma.Error422UnprocessableEntity("invalid ID", err)
	}
	return id, nil
}
