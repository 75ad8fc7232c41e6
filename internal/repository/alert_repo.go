package repository

import (
	"context"
	"fmt"

	"github.com/vodarr/vodarr/internal/models"
	"gorm.io/gorm"
)

// alertRuleRepository implements AlertRuleRepository using GORM.
type alertRuleRepository struct {
	db *gorm.DB
}

// NewAlertRuleRepository creates a new AlertRuleRepository.
func NewAlertRuleRepository(db *gorm.DB) AlertRuleRepository {
	return &alertRuleRepository{db: db}
}

// Create creates a new alert rule.
func (r *alertRuleRepository) Create(ctx context.Context, rule *models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("validating alert rule: %w", err)
	}
	return r.db.WithContext(ctx).Create(rule).Error
}

// GetByID retrieves an alert rule by ID.
func (r *alertRuleRepository) GetByID(ctx context.Context, id models.ULID) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// GetAll retrieves all alert rules.
func (r *alertRuleRepository) GetAll(ctx context.Context) ([]*models.AlertRule, error) {
	var rules []*models.AlertRule
	if err := r.db.WithContext(ctx).Order("type ASC, name ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// GetActive retrieves all active alert rules.
func (r *alertRuleRepository) GetActive(ctx context.Context) ([]*models.AlertRule, error) {
	var rules []*models.AlertRule
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("type ASC, name ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Update updates an existing alert rule.
func (r *alertRuleRepository) Update(ctx context.Context, rule *models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("validating alert rule: %w", err)
	}
	return r.db.WithContext(ctx).Save(rule).Error
}

// Delete deletes an alert rule by ID.
func (r *alertRuleRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.AlertRule{}, "id = ?", id).Error
}

// Count returns the total number of alert rules.
func (r *alertRuleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AlertRule{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure alertRuleRepository implements AlertRuleRepository.
var _ AlertRuleRepository = (*alertRuleRepository)(nil)

// alertRepository implements AlertRepository using GORM.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// Create creates a new alert.
func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// GetByID retrieves an alert by ID.
func (r *alertRepository) GetByID(ctx context.Context, id models.ULID) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// GetActive retrieves alerts that have not been resolved, newest first.
func (r *alertRepository) GetActive(ctx context.Context) ([]*models.Alert, error) {
	var alerts []*models.Alert
	if err := r.db.WithContext(ctx).
		Where("status <> ?", models.AlertResolved).
		Order("created_at DESC").
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetActiveByRule retrieves unresolved alerts for one rule, newest first.
func (r *alertRepository) GetActiveByRule(ctx context.Context, ruleID models.ULID) ([]*models.Alert, error) {
	var alerts []*models.Alert
	if err := r.db.WithContext(ctx).
		Where("rule_id = ? AND status <> ?", ruleID, models.AlertResolved).
		Order("created_at DESC").
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetLatestByRule retrieves the most recent alert for a rule.
func (r *alertRepository) GetLatestByRule(ctx context.Context, ruleID models.ULID) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("created_at DESC").
		First(&alert).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// Update updates an existing alert.
func (r *alertRepository) Update(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

// CountActive returns the number of unresolved alerts.
func (r *alertRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Alert{}).
		Where("status <> ?", models.AlertResolved).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure alertRepository implements AlertRepository.
var _ AlertRepository = (*alertRepository)(nil)
