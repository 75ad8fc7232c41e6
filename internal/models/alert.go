package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// AlertType identifies the condition an alert rule monitors.
type AlertType string

const (
	// AlertQueueSize watches the live work-queue depth.
	AlertQueueSize AlertType = "queue_size"
	// AlertErrorRate watches the rolling failed/total job percentage.
	AlertErrorRate AlertType = "error_rate"
	// AlertFFmpegUnavailable watches the encoder tooling availability.
	AlertFFmpegUnavailable AlertType = "ffmpeg_unavailable"
	// AlertDiskSpace watches disk usage of the storage volume.
	AlertDiskSpace AlertType = "disk_space"
	// AlertProcessingTime watches average processing latency.
	AlertProcessingTime AlertType = "processing_time"
)

// AlertSeverity grades an alert rule.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus tracks an alert instance's lifecycle.
type AlertStatus string

const (
	// AlertActive means the condition is (or was last seen) breached.
	AlertActive AlertStatus = "active"
	// AlertAcknowledged means an operator has seen the alert.
	AlertAcknowledged AlertStatus = "acknowledged"
	// AlertResolved means the condition cleared.
	AlertResolved AlertStatus = "resolved"
)

// validAlertTypes enumerates supported rule conditions.
var validAlertTypes = map[AlertType]bool{
	AlertQueueSize:         true,
	AlertErrorRate:         true,
	AlertFFmpegUnavailable: true,
	AlertDiskSpace:         true,
	AlertProcessingTime:    true,
}

// AlertRule configures one monitored condition.
type AlertRule struct {
	BaseModel

	// Name is a human-readable rule name, unique per alert type.
	Name string `gorm:"not null;size:100;uniqueIndex:idx_rule_type_name" json:"name"`

	// Type is the condition to monitor.
	Type AlertType `gorm:"not null;size:20;uniqueIndex:idx_rule_type_name" json:"type"`

	// Threshold triggers the alert when exceeded.
	Threshold float64 `gorm:"not null" json:"threshold"`

	Severity AlertSeverity `gorm:"size:10;default:'warning'" json:"severity"`

	IsActive bool `gorm:"default:true;index" json:"is_active"`

	// CheckIntervalMinutes is how often the rule is evaluated.
	CheckIntervalMinutes int `gorm:"default:5" json:"check_interval_minutes"`

	// CooldownMinutes is the minimum spacing between alerts for this rule.
	CooldownMinutes int `gorm:"default:30" json:"cooldown_minutes"`

	// Notification settings.
	SendEmail       bool   `gorm:"default:true" json:"send_email"`
	EmailRecipients string `gorm:"size:1024" json:"email_recipients,omitempty"`
	WebhookURL      string `gorm:"size:1024" json:"webhook_url,omitempty"`
}

// TableName returns the table name for AlertRule.
func (AlertRule) TableName() string {
	return "alert_rules"
}

// EmailList returns the parsed recipient addresses.
func (r *AlertRule) EmailList() []string {
	if r.EmailRecipients == "" {
		return nil
	}
	var out []string
	for _, addr := range strings.Split(r.EmailRecipients, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Validate performs basic validation on the rule.
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return ErrRuleNameRequired
	}
	if !validAlertTypes[r.Type] {
		return ErrUnknownAlertType
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the rule and generates a ULID.
func (r *AlertRule) BeforeCreate(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return r.Validate()
}

// BeforeUpdate is a GORM hook that validates the rule before update.
func (r *AlertRule) BeforeUpdate(tx *gorm.DB) error {
	return r.Validate()
}

// Alert is one triggered instance of an alert rule.
type Alert struct {
	BaseModel

	// RuleID references the rule that fired.
	RuleID ULID `gorm:"not null;index;type:varchar(26)" json:"rule_id"`

	Status AlertStatus `gorm:"size:15;default:'active';index" json:"status"`

	// Message is the human-readable alert text.
	Message string `gorm:"not null;size:1024" json:"message"`

	// ObservedValue is the metric value that triggered the alert.
	ObservedValue float64 `json:"observed_value"`

	// Notification tracking.
	EmailSent   bool `gorm:"default:false" json:"email_sent"`
	WebhookSent bool `gorm:"default:false" json:"webhook_sent"`

	// Resolution tracking.
	ResolvedAt     *Time  `json:"resolved_at,omitempty"`
	AcknowledgedAt *Time  `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string `gorm:"size:100" json:"acknowledged_by,omitempty"`
}

// TableName returns the table name for Alert.
func (Alert) TableName() string {
	return "alerts"
}

// Acknowledge marks the alert as acknowledged by the given operator.
func (a *Alert) Acknowledge(who string) {
	a.Status = AlertAcknowledged
	now := Now()
	a.AcknowledgedAt = &now
	a.AcknowledgedBy = who
}

// Resolve marks the alert as resolved.
func (a *Alert) Resolve() {
	a.Status = AlertResolved
	now := Now()
	a.ResolvedAt = &now
}

// AgeMinutes returns the alert age in whole minutes.
func (a *Alert) AgeMinutes() int {
	return int(time.Since(a.CreatedAt).Minutes())
}

// SystemMetric is a point-in-time metric sample used for trend averaging.
type SystemMetric struct {
	BaseModel

	// Type matches the alert type vocabulary plus derived metrics.
	Type string `gorm:"not null;size:30;index:idx_metric_type_created" json:"type"`

	Value float64 `gorm:"not null" json:"value"`
}

// TableName returns the table name for SystemMetric.
func (SystemMetric) TableName() string {
	return "system_metrics"
}

// DefaultAlertRules returns the rule set seeded on first start.
func DefaultAlertRules() []*AlertRule {
	return []*AlertRule{
		{Name: "Queue backlog", Type: AlertQueueSize, Threshold: 50, Severity: SeverityWarning, IsActive: true, CheckIntervalMinutes: 5, CooldownMinutes: 30, SendEmail: true},
		{Name: "High error rate", Type: AlertErrorRate, Threshold: 25, Severity: SeverityError, IsActive: true, CheckIntervalMinutes: 5, CooldownMinutes: 30, SendEmail: true},
		{Name: "FFmpeg missing", Type: AlertFFmpegUnavailable, Threshold: 0, Severity: SeverityCritical, IsActive: true, CheckIntervalMinutes: 5, CooldownMinutes: 30, SendEmail: true},
		{Name: "Disk usage high", Type: AlertDiskSpace, Threshold: 90, Severity: SeverityError, IsActive: true, CheckIntervalMinutes: 5, CooldownMinutes: 60, SendEmail: true},
		{Name: "Slow processing", Type: AlertProcessingTime, Threshold: 60, Severity: SeverityWarning, IsActive: true, CheckIntervalMinutes: 5, CooldownMinutes: 60, SendEmail: true},
	}
}
