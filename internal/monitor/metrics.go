// Package monitor evaluates alert rules over live system metrics and
// delivers notifications for breached conditions.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

// Sampling windows for rolling metrics.
const (
	errorRateWindow  = time.Hour
	processingWindow = 24 * time.Hour
)

// Collector reads the current value for each monitored condition.
type Collector struct {
	jobs     repository.VideoJobRepository
	detector ffmpeg.Detector
	diskPath string
	logger   *slog.Logger
}

// NewCollector creates a metric collector. diskPath is the storage
// volume whose usage is monitored.
func NewCollector(jobs repository.VideoJobRepository, detector ffmpeg.Detector, diskPath string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{jobs: jobs, detector: detector, diskPath: diskPath, logger: logger}
}

// Value returns the current reading for one alert type. Units match the
// default rule thresholds: counts, percentages and minutes.
func (c *Collector) Value(ctx context.Context, alertType models.AlertType) (float64, error) {
	switch alertType {
	case models.AlertQueueSize:
		count, err := c.jobs.CountByStatus(ctx, models.JobStatusPending)
		return float64(count), err
	case models.AlertErrorRate:
		stats, err := c.jobs.ErrorRateSince(ctx, time.Now().Add(-errorRateWindow))
		if err != nil {
			return 0, err
		}
		return stats.Rate(), nil
	case models.AlertFFmpegUnavailable:
		if _, err := c.detector.Detect(ctx); err != nil {
			return 1, nil
		}
		return 0, nil
	case models.AlertDiskSpace:
		return ffmpeg.DiskUsagePercent(c.diskPath)
	case models.AlertProcessingTime:
		seconds, err := c.jobs.AverageProcessingSeconds(ctx, time.Now().Add(-processingWindow))
		return seconds / 60, err
	default:
		return 0, fmt.Errorf("unknown alert type %q", alertType)
	}
}

// FFmpegAvailable reports whether the encoder tooling resolves.
func (c *Collector) FFmpegAvailable(ctx context.Context) bool {
	_, err := c.detector.Detect(ctx)
	return err == nil
}
