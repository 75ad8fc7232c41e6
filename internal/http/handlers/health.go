package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/monitor"
)

// HealthHandler handles health and alert API endpoints.
type HealthHandler struct {
	monitor *monitor.Monitor
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(m *monitor.Monitor) *HealthHandler {
	return &HealthHandler{monitor: m}
}

// Register registers the health and alert routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Get system health",
		Description: "Returns a snapshot of queue depth, error rate, tooling and disk state",
		Tags:        []string{"Health"},
	}, h.Health)

	huma.Register(api, huma.Operation{
		OperationID: "listAlerts",
		Method:      "GET",
		Path:        "/api/v1/alerts",
		Summary:     "List active alerts",
		Tags:        []string{"Health"},
	}, h.ListAlerts)

	huma.Register(api, huma.Operation{
		OperationID: "acknowledgeAlert",
		Method:      "POST",
		Path:        "/api/v1/alerts/{id}/acknowledge",
		Summary:     "Acknowledge alert",
		Tags:        []string{"Health"},
	}, h.Acknowledge)
}

// HealthOutput is the output for the health snapshot.
type HealthOutput struct {
	Body monitor.HealthSnapshot
}

// Health returns the current system health snapshot.
func (h *HealthHandler) Health(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	return &HealthOutput{Body: *h.monitor.Health(ctx)}, nil
}

// AlertResponse represents an alert in API responses.
type AlertResponse struct {
	ID             string  `json:"id" doc:"Alert ID (ULID)"`
	RuleID         string  `json:"rule_id" doc:"Rule that fired"`
	Status         string  `json:"status" doc:"Alert status (active, acknowledged, resolved)"`
	Message        string  `json:"message" doc:"Alert text"`
	ObservedValue  float64 `json:"observed_value" doc:"Metric value that triggered the alert"`
	EmailSent      bool    `json:"email_sent" doc:"Whether the email notification was delivered"`
	WebhookSent    bool    `json:"webhook_sent" doc:"Whether the webhook notification was delivered"`
	AcknowledgedBy string  `json:"acknowledged_by,omitempty" doc:"Operator who acknowledged the alert"`
	CreatedAt      string  `json:"created_at" doc:"Creation timestamp"`
}

// AlertFromModel converts a models.Alert to AlertResponse.
func AlertFromModel(a *models.Alert) AlertResponse {
	return AlertResponse{
		ID:             a.ID.String(),
		RuleID:         a.RuleID.String(),
		Status:         string(a.Status),
		Message:        a.Message,
		ObservedValue:  a.ObservedValue,
		EmailSent:      a.EmailSent,
		WebhookSent:    a.WebhookSent,
		AcknowledgedBy: a.AcknowledgedBy,
		CreatedAt:      a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ListAlertsOutput is the output for listing alerts.
type ListAlertsOutput struct {
	Body struct {
		Alerts []AlertResponse `json:"alerts"`
	}
}

// ListAlerts returns the unresolved alerts, newest first.
func (h *HealthHandler) ListAlerts(ctx context.Context, _ *struct{}) (*ListAlertsOutput, error) {
	alerts, err := h.monitor.ActiveAlerts(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list alerts", err)
	}

	resp := &ListAlertsOutput{}
	resp.Body.Alerts = make([]AlertResponse, len(alerts))
	for i, a := range alerts {
		resp.Body.Alerts[i] = AlertFromModel(a)
	}
	return resp, nil
}

// AcknowledgeInput is the input for acknowledging an alert.
type AcknowledgeInput struct {
	ID   string `path:"id" doc:"Alert ID (ULID)"`
	Body struct {
		AcknowledgedBy string `json:"acknowledged_by" doc:"Operator acknowledging the alert"`
	}
}

// AcknowledgeOutput is the output for acknowledging an alert.
type AcknowledgeOutput struct {
	Body struct {
		Alert AlertResponse `json:"alert"`
	}
}

// Acknowledge marks an alert as seen.
func (h *HealthHandler) Acknowledge(ctx context.Context, input *AcknowledgeInput) (*AcknowledgeOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}

	alert, err := h.monitor.Acknowledge(ctx, id, input.Body.AcknowledgedBy)
	if err != nil {
		return nil, huma.Error409Conflict("alert cannot be acknowledged", err)
	}

	resp := &AcknowledgeOutput{}
	resp.Body.Alert = AlertFromModel(alert)
	return resp, nil
}
