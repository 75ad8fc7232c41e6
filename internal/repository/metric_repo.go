package repository

import (
	"context"
	"time"

	"github.com/vodarr/vodarr/internal/models"
	"gorm.io/gorm"
)

// systemMetricRepository implements SystemMetricRepository using GORM.
type systemMetricRepository struct {
	db *gorm.DB
}

// NewSystemMetricRepository creates a new SystemMetricRepository.
func NewSystemMetricRepository(db *gorm.DB) SystemMetricRepository {
	return &systemMetricRepository{db: db}
}

// Record stores a metric sample.
func (r *systemMetricRepository) Record(ctx context.Context, metric *models.SystemMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

// AverageSince returns the mean value of samples of one type recorded after
// the given time.
func (r *systemMetricRepository) AverageSince(ctx context.Context, metricType string, since time.Time) (float64, error) {
	var avg *float64
	if err := r.db.WithContext(ctx).Model(&models.SystemMetric{}).
		Select("AVG(value)").
		Where("type = ? AND created_at > ?", metricType, since).
		Scan(&avg).Error; err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// LatestByType retrieves the newest sample of one type.
func (r *systemMetricRepository) LatestByType(ctx context.Context, metricType string) (*models.SystemMetric, error) {
	var metric models.SystemMetric
	if err := r.db.WithContext(ctx).
		Where("type = ?", metricType).
		Order("created_at DESC").
		First(&metric).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &metric, nil
}

// DeleteOlderThan prunes samples recorded before the given time.
func (r *systemMetricRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.SystemMetric{})
	return result.RowsAffected, result.Error
}

// Ensure systemMetricRepository implements SystemMetricRepository.
var _ SystemMetricRepository = (*systemMetricRepository)(nil)
