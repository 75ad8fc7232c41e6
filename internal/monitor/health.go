package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/vodarr/vodarr/internal/models"
)

// Health states reported by the snapshot.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthSnapshot is a point-in-time view of the processing system.
type HealthSnapshot struct {
	Status               string    `json:"status"`
	QueueSize            int64     `json:"queue_size"`
	ErrorRatePercent     float64   `json:"error_rate_percent"`
	FFmpegAvailable      bool      `json:"ffmpeg_available"`
	DiskUsagePercent     float64   `json:"disk_usage_percent"`
	AvgProcessingMinutes float64   `json:"avg_processing_minutes"`
	ActiveAlerts         int64     `json:"active_alerts"`
	CheckedAt            time.Time `json:"checked_at"`
}

// Health assembles the current snapshot. Individual reading failures
// degrade to zero values rather than failing the whole snapshot.
func (m *Monitor) Health(ctx context.Context) *HealthSnapshot {
	snap := &HealthSnapshot{CheckedAt: time.Now()}

	read := func(t models.AlertType) float64 {
		value, err := m.collector.Value(ctx, t)
		if err != nil {
			m.logger.Warn("health reading failed",
				slog.String("type", string(t)),
				slog.String("error", err.Error()))
			return 0
		}
		return value
	}

	snap.QueueSize = int64(read(models.AlertQueueSize))
	snap.ErrorRatePercent = read(models.AlertErrorRate)
	snap.DiskUsagePercent = read(models.AlertDiskSpace)
	snap.AvgProcessingMinutes = read(models.AlertProcessingTime)
	snap.FFmpegAvailable = m.collector.FFmpegAvailable(ctx)

	active, err := m.alerts.CountActive(ctx)
	if err != nil {
		m.logger.Warn("counting active alerts", slog.String("error", err.Error()))
	}
	snap.ActiveAlerts = active

	snap.Status = HealthOK
	if !snap.FFmpegAvailable || snap.ActiveAlerts > 0 {
		snap.Status = HealthDegraded
	}
	return snap
}
