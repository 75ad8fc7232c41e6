package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// MediaInfo describes a probed media file. A zero-valued MediaInfo means
// the probe failed; callers check Valid() rather than handling errors.
type MediaInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	BitrateKbps     int     `json:"bitrate_kbps"`
	Codec           string  `json:"codec"`
	FPS             float64 `json:"fps"`
	FileSize        int64   `json:"file_size"`
	HasAudio        bool    `json:"has_audio"`
	AudioCodec      string  `json:"audio_codec,omitempty"`
}

// Valid reports whether the probe produced usable dimensions and duration.
func (m *MediaInfo) Valid() bool {
	return m.DurationSeconds > 0 && m.Width > 0 && m.Height > 0
}

// Resolution returns "WxH", or "" for an invalid probe.
func (m *MediaInfo) Resolution() string {
	if m.Width == 0 || m.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// probeOutput mirrors the ffprobe JSON we consume.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Prober inspects media files with ffprobe.
type Prober struct {
	runner   Runner
	detector Detector
	logger   *slog.Logger
}

// NewProber creates a Prober backed by the given runner and detector.
func NewProber(runner Runner, detector Detector, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{runner: runner, detector: detector, logger: logger}
}

// Probe inspects the file at path. Probe never fails: any error yields a
// zero-valued MediaInfo so the pipeline can continue with defaults.
func (p *Prober) Probe(ctx context.Context, path string) *MediaInfo {
	log := p.logger.With(slog.String("path", path))

	info, err := p.detector.Detect(ctx)
	if err != nil || info.FFprobePath == "" {
		log.Warn("ffprobe unavailable, returning empty media info")
		return &MediaInfo{}
	}

	result := p.runner.Run(ctx, RunSpec{
		Binary:    info.FFprobePath,
		Operation: "probe",
		Timeout:   ProbeTimeout,
		Args: []string{
			"-v", "quiet",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			path,
		},
	})
	if !result.Success {
		log.Warn("probe failed", slog.String("error", result.ErrorMessage))
		return &MediaInfo{}
	}

	media, err := parseProbeOutput(result.Stdout)
	if err != nil {
		log.Warn("probe output unparseable", slog.String("error", err.Error()))
		return &MediaInfo{}
	}

	if media.FileSize == 0 {
		if stat, err := os.Stat(path); err == nil {
			media.FileSize = stat.Size()
		}
	}
	return media
}

// parseProbeOutput decodes ffprobe JSON into a MediaInfo.
func parseProbeOutput(raw string) (*MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding probe output: %w", err)
	}

	media := &MediaInfo{}
	media.DurationSeconds, _ = strconv.ParseFloat(out.Format.Duration, 64)
	if bps, err := strconv.Atoi(out.Format.BitRate); err == nil {
		media.BitrateKbps = bps / 1000
	}
	media.FileSize, _ = strconv.ParseInt(out.Format.Size, 10, 64)

	for _, stream := range out.Streams {
		switch stream.CodecType {
		case "video":
			if media.Width == 0 {
				media.Width = stream.Width
				media.Height = stream.Height
				media.Codec = stream.CodecName
				media.FPS = parseFramerate(stream.RFrameRate)
				if media.FPS == 0 {
					media.FPS = parseFramerate(stream.AvgFrameRate)
				}
			}
		case "audio":
			if !media.HasAudio {
				media.HasAudio = true
				media.AudioCodec = stream.CodecName
			}
		}
	}
	return media, nil
}

// parseFramerate parses an ffprobe rational like "30000/1001" or "25/1".
// A zero denominator yields 0.
func parseFramerate(rate string) float64 {
	if rate == "" || rate == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(rate, "/")
	if !found {
		f, _ := strconv.ParseFloat(rate, 64)
		return f
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
