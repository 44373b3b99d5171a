// Package notify defines the outbound notification collaborator. Delivery
// (email, SMS, chat) is the host's concern; the engine only hands off.
package notify

import (
	"context"
	"sync"

	"github.com/telhawk-systems/sentinel/internal/models"
)

// Notifier sends best-effort notifications. Failures are logged by the
// engine, never propagated; notification is not on the correctness path.
type Notifier interface {
	SendAlertNotification(ctx context.Context, alert *models.SecurityAlert) error
	SendIncidentNotification(ctx context.Context, incident *models.SecurityIncident) error
	SendEscalationNotification(ctx context.Context, event *models.SecurityEvent) error
}

// Noop is a Notifier that drops everything. Used when no bus is configured.
type Noop struct{}

func (Noop) SendAlertNotification(context.Context, *models.SecurityAlert) error { return nil }
func (Noop) SendIncidentNotification(context.Context, *models.SecurityIncident) error {
	return nil
}
func (Noop) SendEscalationNotification(context.Context, *models.SecurityEvent) error { return nil }

// Recorder is a test double that captures notifications.
type Recorder struct {
	mu          sync.Mutex
	Alerts      []models.SecurityAlert
	Incidents   []models.SecurityIncident
	Escalations []models.SecurityEvent
	Err         error
}

func (r *Recorder) SendAlertNotification(_ context.Context, alert *models.SecurityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Alerts = append(r.Alerts, *alert)
	return r.Err
}

func (r *Recorder) SendIncidentNotification(_ context.Context, incident *models.SecurityIncident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Incidents = append(r.Incidents, *incident)
	return r.Err
}

func (r *Recorder) SendEscalationNotification(_ context.Context, event *models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Escalations = append(r.Escalations, *event)
	return r.Err
}
