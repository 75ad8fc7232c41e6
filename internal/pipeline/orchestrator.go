// Package pipeline orchestrates the per-job processing run: validation,
// poster, preview, encoding, optional stream packaging and finalization.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/encoder"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/media"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/packaging"
	"github.com/vodarr/vodarr/internal/repository"
	"github.com/vodarr/vodarr/internal/storage"
)

// Stage names recorded on failed jobs.
const (
	StageInitialization = "initialization"
	StageValidation     = "validation"
	StagePoster         = "poster"
	StagePreview        = "preview"
	StageEncoding       = "encoding"
	StagePackaging      = "packaging"
	StageFinalization   = "finalization"
)

// Progress checkpoints. Encoding progress is interpolated between
// progressEncodeStart and progressEncodeEnd so the caller sees smooth,
// monotonic movement across stages of very different cost.
const (
	progressValidated   = 5
	progressProbed      = 10
	progressPoster      = 15
	progressPreview     = 25
	progressEncodeStart = 35
	progressEncodeEnd   = 90
	progressPackaged    = 95
	progressDone        = 100
)

// Result is the structured outcome of one pipeline run.
type Result struct {
	Success     bool                    `json:"success"`
	FailedStage string                  `json:"failed_stage,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Outputs     []string                `json:"outputs,omitempty"`
	Profiles    []encoder.ProfileResult `json:"profiles,omitempty"`
	Stats       encoder.Stats           `json:"stats"`
}

// CompletionFunc is invoked once per successfully completed job.
type CompletionFunc func(job *models.VideoJob)

// Orchestrator drives the processing stages for one job at a time.
type Orchestrator struct {
	cfg       *config.Config
	jobs      repository.VideoJobRepository
	profiles  repository.EncodingProfileRepository
	rends     repository.RenditionRepository
	manifests repository.StreamManifestRepository
	settings  repository.MetadataSettingsRepository

	detector ffmpeg.Detector
	prober   *ffmpeg.Prober
	poster   *media.PosterExtractor
	preview  *media.PreviewGenerator
	engine   *encoder.Engine
	packager *packaging.Packager
	layout   *storage.Layout

	onComplete CompletionFunc
	logger     *slog.Logger
}

// NewOrchestrator wires the pipeline from its stage components.
func NewOrchestrator(
	cfg *config.Config,
	jobs repository.VideoJobRepository,
	profiles repository.EncodingProfileRepository,
	rends repository.RenditionRepository,
	manifests repository.StreamManifestRepository,
	settings repository.MetadataSettingsRepository,
	detector ffmpeg.Detector,
	prober *ffmpeg.Prober,
	poster *media.PosterExtractor,
	preview *media.PreviewGenerator,
	engine *encoder.Engine,
	packager *packaging.Packager,
	layout *storage.Layout,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		jobs:      jobs,
		profiles:  profiles,
		rends:     rends,
		manifests: manifests,
		settings:  settings,
		detector:  detector,
		prober:    prober,
		poster:    poster,
		preview:   preview,
		engine:    engine,
		packager:  packager,
		layout:    layout,
		logger:    logger,
	}
}

// OnComplete registers the completion notification hook, fired once per
// successful run.
func (o *Orchestrator) OnComplete(fn CompletionFunc) {
	o.onComplete = fn
}

// Process executes the full pipeline for the given job. The job record is
// always updated with the outcome; Process returns the structured result
// and an error only for persistence-level problems.
func (o *Orchestrator) Process(ctx context.Context, jobID models.ULID) (result *Result, err error) {
	log := o.logger.With(slog.String("job_id", jobID.String()))

	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	// Unexpected panics become a generic failure attributed to
	// initialization so the job record never dangles in processing.
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", slog.Any("panic", r))
			result = o.fail(ctx, job, StageInitialization, fmt.Sprintf("unexpected error: %v", r), nil)
		}
	}()

	job.MarkProcessing()
	if err := o.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("marking job processing: %w", err)
	}
	log.Info("pipeline started", slog.String("source", job.SourcePath))

	var cleanup cleanupSet

	// Validation: tooling, source file, disk headroom.
	if msg := o.validate(ctx, job); msg != "" {
		return o.fail(ctx, job, StageValidation, msg, &cleanup), nil
	}
	o.advance(ctx, job, progressValidated)

	// Probe. A failed probe degrades to unknown rather than aborting.
	probe := o.prober.Probe(ctx, job.SourcePath)
	if probe.Valid() {
		job.DurationSeconds = int(probe.DurationSeconds)
		job.Resolution = probe.Resolution()
	} else {
		log.Warn("probe failed, continuing with unknown media info")
	}
	o.advance(ctx, job, progressProbed)

	settings, err := o.activeSettings(ctx)
	if err != nil {
		return o.fail(ctx, job, StageInitialization, err.Error(), &cleanup), nil
	}

	// Poster.
	posterPath := o.layout.PosterFile(job.ID)
	ok := o.poster.Extract(ctx, media.ExtractRequest{
		SourcePath:      job.SourcePath,
		OutputPath:      posterPath,
		DurationSeconds: probe.DurationSeconds,
		Settings:        settings,
	})
	if !ok {
		return o.fail(ctx, job, StagePoster, "poster extraction failed", &cleanup), nil
	}
	cleanup.add(posterPath)
	job.PosterPath = posterPath
	o.advance(ctx, job, progressPoster)

	// Preview.
	previewPath := o.layout.PreviewFile(job.ID)
	ok = o.preview.Generate(ctx, media.PreviewRequest{
		SourcePath:      job.SourcePath,
		OutputPath:      previewPath,
		DurationSeconds: probe.DurationSeconds,
		Settings:        settings,
	})
	if !ok {
		return o.fail(ctx, job, StagePreview, "preview generation failed", &cleanup), nil
	}
	cleanup.add(previewPath)
	job.PreviewPath = previewPath
	o.advance(ctx, job, progressPreview)

	// Encoding.
	profiles, err := o.jobProfiles(ctx, job)
	if err != nil {
		return o.fail(ctx, job, StageEncoding, err.Error(), &cleanup), nil
	}
	if len(profiles) == 0 {
		return o.fail(ctx, job, StageEncoding, "no active encoding profiles", &cleanup), nil
	}
	selected := encoder.SelectProfiles(probe.Height, profiles)

	// Parallel mode invokes the callback from worker goroutines; the job
	// record is guarded so writes stay serialized.
	var progressMu sync.Mutex
	progressFn := func(pct int, status string) {
		progressMu.Lock()
		defer progressMu.Unlock()
		scaled := progressEncodeStart + pct*(progressEncodeEnd-progressEncodeStart)/100
		o.advance(ctx, job, scaled)
		log.Debug("encoding progress", slog.Int("percent", pct), slog.String("status", status))
	}

	var profileResults []encoder.ProfileResult
	if o.cfg.Encoding.Parallel {
		profileResults = o.engine.EncodeParallel(ctx, job.SourcePath, job.ID, selected, progressFn)
	} else {
		profileResults = o.engine.EncodeSequential(ctx, job.SourcePath, job.ID, selected, progressFn)
	}

	stats := encoder.Aggregate(profileResults)
	if stats.Succeeded == 0 {
		o.engine.CleanupOutputs(profileResults)
		return o.fail(ctx, job, StageEncoding, encodeFailureMessage(profileResults), &cleanup), nil
	}
	o.advance(ctx, job, progressEncodeEnd)

	// Persist renditions. The first successful profile is the primary.
	outputs := o.recordRenditions(ctx, job, selected, profileResults, &cleanup)

	// Optional stream packaging, never fatal.
	if o.cfg.Encoding.GenerateHLS {
		o.packageStreams(ctx, job, selected, profileResults, models.ProtocolHLS)
	}
	if o.cfg.Encoding.GenerateDASH {
		o.packageStreams(ctx, job, selected, profileResults, models.ProtocolDASH)
	}
	o.advance(ctx, job, progressPackaged)

	// Finalization. The upload is redundant once renditions exist.
	if o.cfg.Encoding.DeleteSource {
		if err := os.Remove(job.SourcePath); err != nil {
			log.Warn("removing source file",
				slog.String("source", job.SourcePath),
				slog.String("error", err.Error()))
		} else {
			job.SourcePath = ""
		}
	}
	job.MarkCompleted(outputs)
	if stats.Failed > 0 {
		job.LastError = models.TruncateError(encodeFailureMessage(profileResults))
		log.Warn("job completed with partial encode failures",
			slog.Int("failed_profiles", stats.Failed))
	}
	if err := o.saveJob(ctx, job); err != nil {
		log.Error("persisting completed job", slog.String("error", err.Error()))
		return nil, fmt.Errorf("persisting completed job: %w", err)
	}

	log.Info("pipeline completed",
		slog.Int("profiles_succeeded", stats.Succeeded),
		slog.Int("profiles_failed", stats.Failed),
		slog.Int64("total_size_bytes", stats.TotalSizeBytes),
		slog.Float64("total_encode_seconds", stats.TotalSeconds))

	if o.onComplete != nil {
		o.onComplete(job)
	}

	return &Result{
		Success:  true,
		Outputs:  outputs,
		Profiles: profileResults,
		Stats:    stats,
	}, nil
}

// validate runs the pre-flight checks. Returns "" when the job may
// proceed, else the failure message.
func (o *Orchestrator) validate(ctx context.Context, job *models.VideoJob) string {
	if _, err := o.detector.Detect(ctx); err != nil {
		return "encoding tools unavailable: " + err.Error()
	}
	if !job.HasSource() {
		return "job has no source file"
	}
	if !storage.FileExists(job.SourcePath) {
		return "source file missing: " + job.SourcePath
	}
	if err := os.MkdirAll(o.cfg.Storage.BaseDir, 0o755); err != nil {
		return err.Error()
	}
	if err := ffmpeg.CheckDiskSpace(o.cfg.Storage.BaseDir, o.cfg.Storage.MinFreeBytes); err != nil {
		return err.Error()
	}
	return ""
}

// activeSettings loads the active extraction settings, falling back to
// the built-in defaults.
func (o *Orchestrator) activeSettings(ctx context.Context) (*models.MetadataSettings, error) {
	settings, err := o.settings.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading metadata settings: %w", err)
	}
	if settings == nil {
		settings = models.DefaultMetadataSettings()
	}
	return settings, nil
}

// jobProfiles resolves the job's profile selection: the explicitly
// selected profile IDs when present, else every active profile.
func (o *Orchestrator) jobProfiles(ctx context.Context, job *models.VideoJob) ([]*models.EncodingProfile, error) {
	if len(job.SelectedProfiles) == 0 {
		return o.profiles.GetActive(ctx)
	}
	ids := make([]models.ULID, 0, len(job.SelectedProfiles))
	for _, raw := range job.SelectedProfiles {
		id, err := models.ParseULID(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid selected profile id %q", raw)
		}
		ids = append(ids, id)
	}
	return o.profiles.GetByIDs(ctx, ids)
}

// recordRenditions persists a rendition row per successful profile and
// returns the output paths.
func (o *Orchestrator) recordRenditions(ctx context.Context, job *models.VideoJob, profiles []*models.EncodingProfile, results []encoder.ProfileResult, cleanup *cleanupSet) []string {
	byResolution := make(map[string]*models.EncodingProfile, len(profiles))
	for _, p := range profiles {
		byResolution[p.Resolution] = p
	}

	if err := o.rends.DeleteByJobID(ctx, job.ID); err != nil {
		o.logger.Warn("clearing previous renditions", slog.String("error", err.Error()))
	}

	var outputs []string
	primary := true
	for _, r := range results {
		if !r.Success {
			continue
		}
		outputs = append(outputs, r.OutputPath)
		cleanup.add(r.OutputPath)

		rendition := &models.Rendition{
			JobID:         job.ID,
			Resolution:    r.Resolution,
			OutputPath:    r.OutputPath,
			SizeBytes:     r.SizeBytes,
			EncodeSeconds: r.EncodeSeconds,
			IsPrimary:     primary,
		}
		if p := byResolution[r.Resolution]; p != nil {
			rendition.ProfileID = p.ID
		}
		if err := o.rends.Create(ctx, rendition); err != nil {
			o.logger.Warn("persisting rendition",
				slog.String("resolution", r.Resolution),
				slog.String("error", err.Error()))
		}
		primary = false
	}
	return outputs
}

// packageStreams runs the packager over every successful rendition for
// one protocol and writes the master manifest. Packaging problems are
// logged and skipped; streaming output is an enhancement, not a
// publishing requirement.
func (o *Orchestrator) packageStreams(ctx context.Context, job *models.VideoJob, profiles []*models.EncodingProfile, results []encoder.ProfileResult, protocol models.StreamProtocol) {
	log := o.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("protocol", string(protocol)),
	)

	byResolution := make(map[string]*models.EncodingProfile, len(profiles))
	for _, p := range profiles {
		byResolution[p.Resolution] = p
	}

	var variants []packaging.Variant
	for _, r := range results {
		if !r.Success {
			continue
		}
		profile := byResolution[r.Resolution]
		if profile == nil {
			continue
		}

		var pkg packaging.Result
		if protocol == models.ProtocolHLS {
			pkg = o.packager.PackageHLS(ctx, r.OutputPath, job.ID, profile)
		} else {
			pkg = o.packager.PackageDASH(ctx, r.OutputPath, job.ID, profile)
		}
		if !pkg.Success {
			log.Warn("packaging failed for profile",
				slog.String("resolution", r.Resolution),
				slog.String("error", pkg.ErrorMessage))
			continue
		}

		variants = append(variants, packaging.Variant{Profile: profile, Result: pkg})
		manifest := &models.StreamManifest{
			JobID:        job.ID,
			Protocol:     protocol,
			Resolution:   r.Resolution,
			ManifestPath: pkg.ManifestPath,
			SegmentCount: pkg.SegmentCount,
			TotalBytes:   pkg.TotalBytes,
			Ready:        true,
		}
		if err := o.manifests.Upsert(ctx, manifest); err != nil {
			log.Warn("persisting stream manifest",
				slog.String("resolution", r.Resolution),
				slog.String("error", err.Error()))
		}
	}

	var ok bool
	if protocol == models.ProtocolHLS {
		_, ok = o.packager.WriteHLSMaster(job.ID, variants)
	} else {
		_, ok = o.packager.WriteDASHMaster(job.ID, variants, job.DurationSeconds)
	}
	if !ok {
		log.Warn("master manifest not written")
	}
}

// GenerateStreams packages already-encoded renditions for the given
// protocols without re-running the pipeline. The job must have completed
// an encode.
func (o *Orchestrator) GenerateStreams(ctx context.Context, jobID models.ULID, protocols ...models.StreamProtocol) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}

	rends, err := o.rends.GetByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading renditions: %w", err)
	}
	if len(rends) == 0 {
		return fmt.Errorf("job %s has no encoded renditions", jobID)
	}

	profiles, err := o.profiles.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}

	results := make([]encoder.ProfileResult, 0, len(rends))
	for _, r := range rends {
		if !storage.FileExists(r.OutputPath) {
			o.logger.Warn("rendition file missing, skipping",
				slog.String("job_id", jobID.String()),
				slog.String("path", r.OutputPath))
			continue
		}
		results = append(results, encoder.ProfileResult{
			Resolution: r.Resolution,
			Success:    true,
			OutputPath: r.OutputPath,
			SizeBytes:  r.SizeBytes,
		})
	}
	if len(results) == 0 {
		return fmt.Errorf("job %s has no readable renditions", jobID)
	}

	for _, protocol := range protocols {
		o.packageStreams(ctx, job, profiles, results, protocol)
	}
	return nil
}

// fail records the failed stage on the job, optionally removes files this
// run already produced, and returns a failure result.
func (o *Orchestrator) fail(ctx context.Context, job *models.VideoJob, stage, message string, cleanup *cleanupSet) *Result {
	o.logger.Warn("pipeline stage failed",
		slog.String("job_id", job.ID.String()),
		slog.String("stage", stage),
		slog.String("error", message))

	if o.cfg.Encoding.CleanupOnError && cleanup != nil {
		cleanup.removeAll()
		job.PosterPath = ""
		job.PreviewPath = ""
	}

	job.MarkFailed(stage, message)
	if err := o.saveJob(ctx, job); err != nil {
		o.logger.Error("persisting failed job",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
	}
	return &Result{FailedStage: stage, Error: message}
}

// advance bumps and best-effort persists job progress.
func (o *Orchestrator) advance(ctx context.Context, job *models.VideoJob, pct int) {
	job.SetProgress(pct)
	if err := o.saveJob(ctx, job); err != nil {
		o.logger.Warn("persisting progress",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
	}
}

// saveJob persists the job with bounded retry, since progress writes race
// the sweep's status reads under sqlite.
func (o *Orchestrator) saveJob(ctx context.Context, job *models.VideoJob) error {
	return storage.Retry(ctx, storage.DefaultRetryConfig(), "save job", func() error {
		return o.jobs.Update(ctx, job)
	})
}

// encodeFailureMessage summarizes the failed profiles of a result set.
func encodeFailureMessage(results []encoder.ProfileResult) string {
	var parts []string
	for _, r := range results {
		if !r.Success {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Resolution, r.ErrorMessage))
		}
	}
	if len(parts) == 0 {
		return "encoding failed"
	}
	return "profile encode failures: " + strings.Join(parts, "; ")
}
