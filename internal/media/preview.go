package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/storage"
)

// PreviewGenerator builds short silent preview clips.
type PreviewGenerator struct {
	runner   ffmpeg.Runner
	detector ffmpeg.Detector
	tempRoot string
	logger   *slog.Logger
}

// NewPreviewGenerator creates a PreviewGenerator. Segment scratch files
// are written under tempRoot and always removed.
func NewPreviewGenerator(runner ffmpeg.Runner, detector ffmpeg.Detector, tempRoot string, logger *slog.Logger) *PreviewGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewGenerator{runner: runner, detector: detector, tempRoot: tempRoot, logger: logger}
}

// PreviewRequest describes one preview generation.
type PreviewRequest struct {
	SourcePath string
	OutputPath string
	// DurationSeconds of the source, 0 when unknown.
	DurationSeconds float64
	Settings        *models.MetadataSettings
}

// Generate produces the preview clip. Strategy depends on the source
// duration:
//   - unknown duration: simple first-N-seconds clip
//   - source shorter than the preview target: encode the whole source
//   - otherwise: concatenate short segments sampled evenly across the
//     source, falling back to the simple clip if that fails
//
// Returns success via bool; on success the output exists and is non-empty.
func (g *PreviewGenerator) Generate(ctx context.Context, req PreviewRequest) bool {
	log := g.logger.With(
		slog.String("source", req.SourcePath),
		slog.String("output", req.OutputPath),
	)

	info, err := g.detector.Detect(ctx)
	if err != nil {
		log.Warn("preview generation skipped, ffmpeg unavailable", slog.String("error", err.Error()))
		return false
	}

	if err := storage.EnsureDir(req.OutputPath); err != nil {
		log.Warn("preview output directory", slog.String("error", err.Error()))
		return false
	}

	settings := req.Settings
	if settings == nil {
		settings = models.DefaultMetadataSettings()
	}
	target := float64(settings.PreviewDuration)

	var ok bool
	switch {
	case req.DurationSeconds <= 0:
		log.Debug("source duration unknown, using simple preview")
		ok = g.simpleClip(ctx, info.FFmpegPath, req, settings, target)
	case req.DurationSeconds <= target:
		log.Debug("source shorter than preview target, encoding full source")
		ok = g.fullSource(ctx, info.FFmpegPath, req, settings)
	default:
		ok = g.segmented(ctx, info.FFmpegPath, req, settings)
		if !ok {
			log.Warn("segmented preview failed, falling back to simple clip")
			ok = g.simpleClip(ctx, info.FFmpegPath, req, settings, target)
		}
	}

	if ok && storage.FileSize(req.OutputPath) == 0 {
		log.Warn("preview generation produced empty file")
		storage.RemoveQuietly(req.OutputPath)
		return false
	}
	if !ok {
		storage.RemoveQuietly(req.OutputPath)
	}
	return ok
}

// simpleClip encodes the first target seconds of the source.
func (g *PreviewGenerator) simpleClip(ctx context.Context, binary string, req PreviewRequest, settings *models.MetadataSettings, target float64) bool {
	args := ffmpeg.NewCommandBuilder().
		Input(req.SourcePath).
		Duration(target).
		Scale(settings.PreviewWidth, settings.PreviewHeight).
		VideoCodec("libx264").
		CRF(settings.PreviewQuality).
		Preset("fast").
		NoAudio().
		MovFlags("+faststart").
		Output(req.OutputPath).
		Args()

	result := g.runner.Run(ctx, ffmpeg.RunSpec{
		Binary:    binary,
		Args:      args,
		Timeout:   ffmpeg.PreviewTimeout,
		Operation: "preview-simple",
	})
	return result.Success
}

// fullSource encodes the entire source, scaled, as the preview.
func (g *PreviewGenerator) fullSource(ctx context.Context, binary string, req PreviewRequest, settings *models.MetadataSettings) bool {
	args := ffmpeg.NewCommandBuilder().
		Input(req.SourcePath).
		Scale(settings.PreviewWidth, settings.PreviewHeight).
		VideoCodec("libx264").
		CRF(settings.PreviewQuality).
		Preset("fast").
		NoAudio().
		MovFlags("+faststart").
		Output(req.OutputPath).
		Args()

	result := g.runner.Run(ctx, ffmpeg.RunSpec{
		Binary:    binary,
		Args:      args,
		Timeout:   ffmpeg.PreviewTimeout,
		Operation: "preview-full",
	})
	return result.Success
}

// segmented samples segments evenly across the source, encodes each to a
// temp file and concatenates them losslessly. Temp files are removed on
// every path.
func (g *PreviewGenerator) segmented(ctx context.Context, binary string, req PreviewRequest, settings *models.MetadataSettings) bool {
	segDur := float64(settings.PreviewSegmentDuration)
	if segDur <= 0 {
		segDur = 2
	}
	count := int(float64(settings.PreviewDuration) / segDur)
	if count < 1 {
		count = 1
	}

	if err := os.MkdirAll(g.tempRoot, 0o755); err != nil {
		g.logger.Warn("preview scratch root", slog.String("error", err.Error()))
		return false
	}
	scratch, err := os.MkdirTemp(g.tempRoot, "preview-*")
	if err != nil {
		g.logger.Warn("preview scratch directory", slog.String("error", err.Error()))
		return false
	}
	defer storage.RemoveQuietly(scratch)

	// Evenly distributed interior offsets, clamped so each segment fits.
	step := req.DurationSeconds / float64(count+1)
	var segments []string
	for i := 0; i < count; i++ {
		offset := step * float64(i+1)
		if offset+segDur > req.DurationSeconds {
			offset = req.DurationSeconds - segDur
		}

		segPath := filepath.Join(scratch, fmt.Sprintf("segment_%03d.mp4", i))
		args := ffmpeg.NewCommandBuilder().
			SeekBefore(formatSeconds(offset)).
			Input(req.SourcePath).
			Duration(segDur).
			Scale(settings.PreviewWidth, settings.PreviewHeight).
			VideoCodec("libx264").
			CRF(settings.PreviewQuality).
			Preset("fast").
			NoAudio().
			Output(segPath).
			Args()

		result := g.runner.Run(ctx, ffmpeg.RunSpec{
			Binary:    binary,
			Args:      args,
			Timeout:   ffmpeg.SegmentTimeout,
			Operation: "preview-segment",
		})
		if !result.Success || storage.FileSize(segPath) == 0 {
			return false
		}
		segments = append(segments, segPath)
	}

	return g.concat(ctx, binary, scratch, segments, req.OutputPath)
}

// concat joins the segment files with the concat demuxer, no re-encode.
func (g *PreviewGenerator) concat(ctx context.Context, binary, scratch string, segments []string, output string) bool {
	var list strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&list, "file '%s'\n", seg)
	}
	listPath := filepath.Join(scratch, "concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		g.logger.Warn("writing concat list", slog.String("error", err.Error()))
		return false
	}

	args := ffmpeg.NewCommandBuilder().
		InputFlag("-f", "concat", "-safe", "0").
		Input(listPath).
		Flag("-c", "copy").
		MovFlags("+faststart").
		Output(output).
		Args()

	result := g.runner.Run(ctx, ffmpeg.RunSpec{
		Binary:    binary,
		Args:      args,
		Timeout:   ffmpeg.ConcatTimeout,
		Operation: "preview-concat",
	})
	return result.Success
}
