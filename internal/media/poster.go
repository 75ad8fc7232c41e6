// Package media produces poster images and preview clips from source
// video files.
package media

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/storage"
)

// defaultSeekSeconds is used when the source duration is unknown.
const defaultSeekSeconds = 1.0

// PosterExtractor pulls still frames from a source video.
type PosterExtractor struct {
	runner   ffmpeg.Runner
	detector ffmpeg.Detector
	logger   *slog.Logger
}

// NewPosterExtractor creates a PosterExtractor.
func NewPosterExtractor(runner ffmpeg.Runner, detector ffmpeg.Detector, logger *slog.Logger) *PosterExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PosterExtractor{runner: runner, detector: detector, logger: logger}
}

// ExtractRequest describes one poster extraction.
type ExtractRequest struct {
	SourcePath string
	OutputPath string
	// DurationSeconds of the source, 0 when unknown.
	DurationSeconds float64
	// SeekSeconds overrides the computed seek position when > 0.
	SeekSeconds float64
	Settings    *models.MetadataSettings
}

// seekPosition picks the frame time: explicit seek, else the midpoint of
// the duration, else one second in.
func (r *ExtractRequest) seekPosition() float64 {
	if r.SeekSeconds > 0 {
		return r.SeekSeconds
	}
	if r.DurationSeconds > 0 {
		return r.DurationSeconds / 2
	}
	return defaultSeekSeconds
}

// Extract produces one still image. It reports success via the returned
// bool; on success the output file exists and is non-empty.
func (p *PosterExtractor) Extract(ctx context.Context, req ExtractRequest) bool {
	log := p.logger.With(
		slog.String("source", req.SourcePath),
		slog.String("output", req.OutputPath),
	)

	info, err := p.detector.Detect(ctx)
	if err != nil {
		log.Warn("poster extraction skipped, ffmpeg unavailable", slog.String("error", err.Error()))
		return false
	}

	if err := storage.EnsureDir(req.OutputPath); err != nil {
		log.Warn("poster output directory", slog.String("error", err.Error()))
		return false
	}

	settings := req.Settings
	if settings == nil {
		settings = models.DefaultMetadataSettings()
	}

	seek := req.seekPosition()
	args := ffmpeg.NewCommandBuilder().
		SeekBefore(formatSeconds(seek)).
		Input(req.SourcePath).
		Frames(1).
		Scale(settings.PosterWidth, settings.PosterHeight).
		Quality(settings.PosterQuality).
		Output(req.OutputPath).
		Args()

	result := p.runner.Run(ctx, ffmpeg.RunSpec{
		Binary:    info.FFmpegPath,
		Args:      args,
		Timeout:   ffmpeg.PosterTimeout,
		Operation: "poster",
	})
	if !result.Success {
		log.Warn("poster extraction failed", slog.String("error", result.ErrorMessage))
		return false
	}

	if storage.FileSize(req.OutputPath) == 0 {
		log.Warn("poster extraction produced empty file")
		storage.RemoveQuietly(req.OutputPath)
		return false
	}

	log.Debug("poster extracted", slog.Float64("seek_seconds", seek))
	return true
}

// ExtractMultiple produces count thumbnails evenly spaced across the
// source duration, writing each with outputFor(index). It returns the
// paths that were successfully written.
func (p *PosterExtractor) ExtractMultiple(ctx context.Context, req ExtractRequest, count int, outputFor func(index int) string) []string {
	if count <= 0 || req.DurationSeconds <= 0 {
		return nil
	}

	// Sample interior positions so the first and last frames are skipped.
	step := req.DurationSeconds / float64(count+1)
	var written []string
	for i := 0; i < count; i++ {
		thumb := req
		thumb.SeekSeconds = step * float64(i+1)
		thumb.OutputPath = outputFor(i)
		if p.Extract(ctx, thumb) {
			written = append(written, thumb.OutputPath)
		}
	}
	return written
}

// formatSeconds renders a seek position for ffmpeg.
func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f", seconds)
}
