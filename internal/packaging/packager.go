// Package packaging segments encoded renditions into HLS and DASH
// streaming layouts and writes the per-job master manifests.
package packaging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/storage"
)

// Segmentation parameters.
const (
	hlsSegmentSeconds  = 10
	dashSegmentSeconds = 4
)

// Result is the outcome of packaging one rendition.
type Result struct {
	ProfileName  string `json:"profile_name"`
	Resolution   string `json:"resolution"`
	Success      bool   `json:"success"`
	ManifestPath string `json:"manifest_path,omitempty"`
	SegmentCount int    `json:"segment_count"`
	TotalBytes   int64  `json:"total_bytes"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Variant pairs a packaging result with the profile that produced it,
// for master manifest generation.
type Variant struct {
	Profile *models.EncodingProfile
	Result  Result
}

// Packager drives ffmpeg segmentation for both protocols.
type Packager struct {
	runner   ffmpeg.Runner
	detector ffmpeg.Detector
	layout   *storage.Layout
	logger   *slog.Logger
}

// NewPackager creates a Packager.
func NewPackager(runner ffmpeg.Runner, detector ffmpeg.Detector, layout *storage.Layout, logger *slog.Logger) *Packager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{runner: runner, detector: detector, layout: layout, logger: logger}
}

// PackageHLS segments one encoded rendition into fixed-duration .ts
// segments plus a VOD playlist under the profile's stream directory.
func (p *Packager) PackageHLS(ctx context.Context, encodedPath string, jobID models.ULID, profile *models.EncodingProfile) Result {
	outDir := p.layout.StreamDir(jobID, models.ProtocolHLS, profile.Resolution)
	playlist := filepath.Join(outDir, "playlist.m3u8")

	result := Result{ProfileName: profile.Name, Resolution: profile.Resolution}

	info, err := p.detector.Detect(ctx)
	if err != nil {
		result.ErrorMessage = "ffmpeg unavailable: " + err.Error()
		return result
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	args := ffmpeg.NewCommandBuilder().
		Input(encodedPath).
		Flag("-c", "copy").
		Flag("-hls_time", strconv.Itoa(hlsSegmentSeconds)).
		Flag("-hls_playlist_type", "vod").
		Flag("-hls_segment_filename", filepath.Join(outDir, "segment_%05d.ts")).
		Output(playlist).
		Args()

	run := p.runner.Run(ctx, ffmpeg.RunSpec{
		Binary:    info.FFmpegPath,
		Args:      args,
		Timeout:   ffmpeg.PackagingTimeout,
		Operation: "hls-" + profile.Resolution,
	})
	if !run.Success {
		result.ErrorMessage = run.ErrorMessage
		storage.RemoveQuietly(outDir)
		return result
	}

	result.Success = true
	result.ManifestPath = playlist
	result.SegmentCount, result.TotalBytes = dirStats(outDir, ".ts")
	return result
}

// PackageDASH segments one encoded rendition into .m4s segments with an
// init segment and an MPD manifest under the profile's stream directory.
func (p *Packager) PackageDASH(ctx context.Context, encodedPath string, jobID models.ULID, profile *models.EncodingProfile) Result {
	outDir := p.layout.StreamDir(jobID, models.ProtocolDASH, profile.Resolution)
	manifest := filepath.Join(outDir, "manifest.mpd")

	result := Result{ProfileName: profile.Name, Resolution: profile.Resolution}

	info, err := p.detector.Detect(ctx)
	if err != nil {
		result.ErrorMessage = "ffmpeg unavailable: " + err.Error()
		return result
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	args := ffmpeg.NewCommandBuilder().
		Input(encodedPath).
		Flag("-c", "copy").
		Flag("-f", "dash").
		Flag("-seg_duration", strconv.Itoa(dashSegmentSeconds)).
		Flag("-use_timeline", "1").
		Flag("-use_template", "1").
		Flag("-init_seg_name", "init.mp4").
		Flag("-media_seg_name", "segment_%05d.m4s").
		Output(manifest).
		Args()

	run := p.runner.Run(ctx, ffmpeg.RunSpec{
		Binary:    info.FFmpegPath,
		Args:      args,
		Timeout:   ffmpeg.PackagingTimeout,
		Operation: "dash-" + profile.Resolution,
	})
	if !run.Success {
		result.ErrorMessage = run.ErrorMessage
		storage.RemoveQuietly(outDir)
		return result
	}

	result.Success = true
	result.ManifestPath = manifest
	result.SegmentCount, result.TotalBytes = dirStats(outDir, ".m4s")
	return result
}

// Cleanup removes every packaging artifact for one job and protocol.
func (p *Packager) Cleanup(jobID models.ULID, protocol models.StreamProtocol) {
	storage.RemoveQuietly(filepath.Dir(p.layout.MasterManifest(jobID, protocol)))
}

// dirStats counts segment files with the given suffix and sums the total
// size of everything in dir.
func dirStats(dir, segmentSuffix string) (int, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	count := 0
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		if strings.HasSuffix(entry.Name(), segmentSuffix) {
			count++
		}
	}
	return count, total
}
