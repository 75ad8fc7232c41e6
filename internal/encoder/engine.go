package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/storage"
)

// audioBitrateKbps is the fixed audio bitrate for all renditions.
const audioBitrateKbps = 128

// ProfileResult is the outcome of encoding one profile.
type ProfileResult struct {
	ProfileName   string  `json:"profile_name"`
	Resolution    string  `json:"resolution"`
	Success       bool    `json:"success"`
	OutputPath    string  `json:"output_path,omitempty"`
	SizeBytes     int64   `json:"size_bytes"`
	EncodeSeconds float64 `json:"encode_seconds"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// Stats aggregates a run's per-profile results.
type Stats struct {
	Succeeded      int     `json:"succeeded"`
	Failed         int     `json:"failed"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSeconds   float64 `json:"total_seconds"`
}

// Aggregate computes Stats over a result set.
func Aggregate(results []ProfileResult) Stats {
	var stats Stats
	for _, r := range results {
		if r.Success {
			stats.Succeeded++
			stats.TotalSizeBytes += r.SizeBytes
		} else {
			stats.Failed++
		}
		stats.TotalSeconds += r.EncodeSeconds
	}
	return stats
}

// ProgressFunc receives encoding progress as percent of profiles handled
// plus a short status line.
type ProgressFunc func(percent int, status string)

// Engine encodes a source file into one rendition per profile.
type Engine struct {
	runner      ffmpeg.Runner
	detector    ffmpeg.Detector
	layout      *storage.Layout
	maxParallel int
	logger      *slog.Logger
}

// NewEngine creates an encoding Engine. maxParallel caps concurrent
// encodes in parallel mode and is clamped to at least 1.
func NewEngine(runner ffmpeg.Runner, detector ffmpeg.Detector, layout *storage.Layout, maxParallel int, logger *slog.Logger) *Engine {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		runner:      runner,
		detector:    detector,
		layout:      layout,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// EncodeSingle encodes the source into one profile's rendition.
func (e *Engine) EncodeSingle(ctx context.Context, sourcePath string, jobID models.ULID, profile *models.EncodingProfile) ProfileResult {
	result := ProfileResult{
		ProfileName: profile.Name,
		Resolution:  profile.Resolution,
	}

	info, err := e.detector.Detect(ctx)
	if err != nil {
		result.ErrorMessage = "ffmpeg unavailable: " + err.Error()
		return result
	}

	outputPath := e.layout.EncodedFile(jobID, profile.Resolution)
	if err := storage.EnsureDir(outputPath); err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	args := ffmpeg.NewCommandBuilder().
		Input(sourcePath).
		VideoCodec("libx264").
		Preset("medium").
		VideoBitrate(profile.Bitrate).
		Scale(profile.Width, profile.Height).
		AudioCodec("aac").
		AudioBitrate(audioBitrateKbps).
		MovFlags("+faststart").
		Output(outputPath).
		Args()

	start := time.Now()
	run := e.runner.Run(ctx, ffmpeg.RunSpec{
		Binary:    info.FFmpegPath,
		Args:      args,
		Timeout:   ffmpeg.EncodeTimeout,
		Operation: "encode-" + profile.Resolution,
	})
	result.EncodeSeconds = time.Since(start).Seconds()

	if !run.Success {
		result.ErrorMessage = run.ErrorMessage
		storage.RemoveQuietly(outputPath)
		return result
	}

	size := storage.FileSize(outputPath)
	if size == 0 {
		result.ErrorMessage = "encode produced empty output"
		storage.RemoveQuietly(outputPath)
		return result
	}

	result.Success = true
	result.OutputPath = outputPath
	result.SizeBytes = size
	return result
}

// EncodeSequential encodes profiles one at a time and stops on the first
// failure. The failed profile's result is included; profiles after it are
// not attempted. Progress is reported before each profile starts.
func (e *Engine) EncodeSequential(ctx context.Context, sourcePath string, jobID models.ULID, profiles []*models.EncodingProfile, progress ProgressFunc) []ProfileResult {
	results := make([]ProfileResult, 0, len(profiles))

	for i, profile := range profiles {
		if progress != nil {
			progress(i*100/len(profiles), fmt.Sprintf("encoding %s", profile.Resolution))
		}

		result := e.EncodeSingle(ctx, sourcePath, jobID, profile)
		results = append(results, result)
		e.logResult(jobID, result)

		if !result.Success {
			break
		}
	}

	if progress != nil && len(results) == len(profiles) {
		progress(100, "encoding complete")
	}
	return results
}

// EncodeParallel encodes profiles with bounded concurrency. Unlike the
// sequential mode every profile is attempted regardless of individual
// failures. Progress is reported as each profile completes; results come
// back in the input profile order.
func (e *Engine) EncodeParallel(ctx context.Context, sourcePath string, jobID models.ULID, profiles []*models.EncodingProfile, progress ProgressFunc) []ProfileResult {
	results := make([]ProfileResult, len(profiles))
	sem := make(chan struct{}, e.maxParallel)

	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i, profile := range profiles {
		wg.Add(1)
		go func(i int, profile *models.EncodingProfile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result := e.EncodeSingle(ctx, sourcePath, jobID, profile)
			e.logResult(jobID, result)

			mu.Lock()
			results[i] = result
			done++
			pct := done * 100 / len(profiles)
			mu.Unlock()

			if progress != nil {
				progress(pct, fmt.Sprintf("encoded %s", profile.Resolution))
			}
		}(i, profile)
	}
	wg.Wait()

	return results
}

// CleanupOutputs removes every output file a result set produced. Used
// when a pipeline run aborts after partial encoding.
func (e *Engine) CleanupOutputs(results []ProfileResult) {
	for _, r := range results {
		if r.OutputPath != "" {
			storage.RemoveQuietly(r.OutputPath)
		}
	}
}

func (e *Engine) logResult(jobID models.ULID, result ProfileResult) {
	log := e.logger.With(
		slog.String("job_id", jobID.String()),
		slog.String("profile", result.ProfileName),
	)
	if result.Success {
		log.Info("profile encoded",
			slog.Int64("size_bytes", result.SizeBytes),
			slog.Float64("encode_seconds", result.EncodeSeconds))
	} else {
		log.Warn("profile encode failed",
			slog.String("error", result.ErrorMessage))
	}
}
