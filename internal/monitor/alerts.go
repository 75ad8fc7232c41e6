package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

// Monitor evaluates alert rules, records metric samples and keeps alert
// lifecycle state current.
type Monitor struct {
	rules     repository.AlertRuleRepository
	alerts    repository.AlertRepository
	metrics   repository.SystemMetricRepository
	collector *Collector
	notifier  *Notifier
	logger    *slog.Logger
}

// New creates a monitor over the given stores and collector.
func New(rules repository.AlertRuleRepository, alerts repository.AlertRepository, metrics repository.SystemMetricRepository, collector *Collector, notifier *Notifier, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		rules:     rules,
		alerts:    alerts,
		metrics:   metrics,
		collector: collector,
		notifier:  notifier,
		logger:    logger,
	}
}

// Evaluate runs one pass over every active rule: sample the metric,
// fire an alert for breached thresholds past their cooldown, and
// auto-resolve active alerts whose condition has cleared.
func (m *Monitor) Evaluate(ctx context.Context) {
	rules, err := m.rules.GetActive(ctx)
	if err != nil {
		m.logger.Error("loading alert rules", slog.String("error", err.Error()))
		return
	}

	sampled := make(map[models.AlertType]bool, len(rules))
	for _, rule := range rules {
		value, err := m.collector.Value(ctx, rule.Type)
		if err != nil {
			m.logger.Error("collecting metric",
				slog.String("type", string(rule.Type)),
				slog.String("error", err.Error()))
			continue
		}

		// One sample per metric type per pass, even with multiple rules.
		if !sampled[rule.Type] {
			sampled[rule.Type] = true
			sample := &models.SystemMetric{Type: string(rule.Type), Value: value}
			if err := m.metrics.Record(ctx, sample); err != nil {
				m.logger.Warn("recording metric sample",
					slog.String("type", string(rule.Type)),
					slog.String("error", err.Error()))
			}
		}

		if value > rule.Threshold {
			m.fire(ctx, rule, value)
		} else {
			m.resolve(ctx, rule, value)
		}
	}
}

// fire creates and delivers an alert unless the rule is still inside
// its cooldown window.
func (m *Monitor) fire(ctx context.Context, rule *models.AlertRule, value float64) {
	latest, err := m.alerts.GetLatestByRule(ctx, rule.ID)
	if err != nil {
		m.logger.Error("loading latest alert",
			slog.String("rule", rule.Name),
			slog.String("error", err.Error()))
		return
	}
	if latest != nil && latest.AgeMinutes() < rule.CooldownMinutes {
		return
	}

	alert := &models.Alert{
		RuleID:        rule.ID,
		Status:        models.AlertActive,
		Message:       alertMessage(rule, value),
		ObservedValue: value,
	}
	if err := m.alerts.Create(ctx, alert); err != nil {
		m.logger.Error("creating alert",
			slog.String("rule", rule.Name),
			slog.String("error", err.Error()))
		return
	}
	m.logger.Warn("alert fired",
		slog.String("rule", rule.Name),
		slog.String("severity", string(rule.Severity)),
		slog.Float64("value", value),
		slog.Float64("threshold", rule.Threshold))

	if rule.SendEmail {
		alert.EmailSent = m.notifier.SendEmail(alert, rule)
	}
	if rule.WebhookURL != "" {
		alert.WebhookSent = m.notifier.SendWebhook(ctx, alert, rule)
	}
	if alert.EmailSent || alert.WebhookSent {
		if err := m.alerts.Update(ctx, alert); err != nil {
			m.logger.Warn("recording notification state",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()))
		}
	}
}

// resolve closes any open alerts for a rule whose condition cleared.
func (m *Monitor) resolve(ctx context.Context, rule *models.AlertRule, value float64) {
	active, err := m.alerts.GetActiveByRule(ctx, rule.ID)
	if err != nil {
		m.logger.Error("loading active alerts",
			slog.String("rule", rule.Name),
			slog.String("error", err.Error()))
		return
	}
	for _, alert := range active {
		alert.Resolve()
		if err := m.alerts.Update(ctx, alert); err != nil {
			m.logger.Error("resolving alert",
				slog.String("alert_id", alert.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		m.logger.Info("alert resolved",
			slog.String("rule", rule.Name),
			slog.Float64("value", value))
	}
}

// Acknowledge marks an alert as seen by an operator.
func (m *Monitor) Acknowledge(ctx context.Context, alertID models.ULID, who string) (*models.Alert, error) {
	alert, err := m.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("loading alert: %w", err)
	}
	if alert == nil {
		return nil, fmt.Errorf("alert %s not found", alertID)
	}
	if alert.Status == models.AlertResolved {
		return nil, fmt.Errorf("alert %s is already resolved", alertID)
	}
	alert.Acknowledge(who)
	if err := m.alerts.Update(ctx, alert); err != nil {
		return nil, fmt.Errorf("updating alert: %w", err)
	}
	return alert, nil
}

// ActiveAlerts lists unresolved alerts, newest first.
func (m *Monitor) ActiveAlerts(ctx context.Context) ([]*models.Alert, error) {
	return m.alerts.GetActive(ctx)
}

// alertMessage renders the human-readable alert text for one condition.
func alertMessage(rule *models.AlertRule, value float64) string {
	switch rule.Type {
	case models.AlertQueueSize:
		return fmt.Sprintf("work queue depth is %.0f, above the threshold of %.0f", value, rule.Threshold)
	case models.AlertErrorRate:
		return fmt.Sprintf("job error rate is %.1f%% over the last hour, above the threshold of %.1f%%", value, rule.Threshold)
	case models.AlertFFmpegUnavailable:
		return "ffmpeg tooling is not available on this host"
	case models.AlertDiskSpace:
		return fmt.Sprintf("storage volume is %.1f%% full, above the threshold of %.1f%%", value, rule.Threshold)
	case models.AlertProcessingTime:
		return fmt.Sprintf("average processing time is %.1f minutes, above the threshold of %.0f", value, rule.Threshold)
	default:
		return fmt.Sprintf("%s is %.2f, above the threshold of %.2f", rule.Type, value, rule.Threshold)
	}
}
