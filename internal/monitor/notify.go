package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/models"
)

// Notifier delivers alert notifications over email and webhooks.
// Delivery failures are logged, never propagated; monitoring must not
// take the pipeline down.
type Notifier struct {
	cfg    config.MonitorConfig
	client *http.Client
	logger *slog.Logger
}

// NewNotifier creates a notifier using the monitor configuration.
func NewNotifier(cfg config.MonitorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// SendEmail delivers the alert to the rule's recipients. Returns true
// when the message was accepted by the SMTP server.
func (n *Notifier) SendEmail(alert *models.Alert, rule *models.AlertRule) bool {
	recipients := rule.EmailList()
	if n.cfg.SMTPHost == "" || len(recipients) == 0 {
		return false
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	subject := fmt.Sprintf("[vodarr] %s alert: %s", rule.Severity, rule.Name)
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.SMTPFrom)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\nObserved value: %.2f (threshold %.2f)\r\nSeverity: %s\r\nRule: %s\r\n",
		alert.Message, alert.ObservedValue, rule.Threshold, rule.Severity, rule.Name)

	if err := smtp.SendMail(addr, nil, n.cfg.SMTPFrom, recipients, []byte(msg.String())); err != nil {
		n.logger.Error("sending alert email",
			slog.String("rule", rule.Name),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// webhookPayload is the JSON body posted to the rule's webhook.
type webhookPayload struct {
	EventID       string  `json:"event_id"`
	Type          string  `json:"type"`
	Severity      string  `json:"severity"`
	Rule          string  `json:"rule"`
	Message       string  `json:"message"`
	ObservedValue float64 `json:"observed_value"`
	Threshold     float64 `json:"threshold"`
	CreatedAt     string  `json:"created_at"`
}

// SendWebhook posts the alert to the rule's webhook URL. Returns true on
// a 2xx response.
func (n *Notifier) SendWebhook(ctx context.Context, alert *models.Alert, rule *models.AlertRule) bool {
	if rule.WebhookURL == "" {
		return false
	}

	payload := webhookPayload{
		EventID:       uuid.NewString(),
		Type:          string(rule.Type),
		Severity:      string(rule.Severity),
		Rule:          rule.Name,
		Message:       alert.Message,
		ObservedValue: alert.ObservedValue,
		Threshold:     rule.Threshold,
		CreatedAt:     alert.CreatedAt.Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("marshaling webhook payload", slog.String("error", err.Error()))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rule.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("building webhook request",
			slog.String("rule", rule.Name),
			slog.String("error", err.Error()))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("posting alert webhook",
			slog.String("rule", rule.Name),
			slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warn("alert webhook rejected",
			slog.String("rule", rule.Name),
			slog.Int("status", resp.StatusCode))
		return false
	}
	return true
}
