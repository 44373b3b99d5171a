package notify

import (
	"context"

	"github.com/telhawk-systems/sentinel/internal/bus"
	"github.com/telhawk-systems/sentinel/internal/models"
)

// Bus publishes notifications as JSON messages for host delivery services to
// consume.
type Bus struct {
	conn *bus.Conn
}

// NewBus creates a Notifier publishing on the given connection.
func NewBus(conn *bus.Conn) *Bus {
	return &Bus{conn: conn}
}

func (b *Bus) SendAlertNotification(ctx context.Context, alert *models.SecurityAlert) error {
	return b.conn.PublishJSON(ctx, bus.SubjectAlertsCreated, alert)
}

func (b *Bus) SendIncidentNotification(ctx context.Context, incident *models.SecurityIncident) error {
	return b.conn.PublishJSON(ctx, bus.SubjectIncidentsCreated, incident)
}

func (b *Bus) SendEscalationNotification(ctx context.Context, event *models.SecurityEvent) error {
	return b.conn.PublishJSON(ctx, bus.SubjectAlertsEscalated, event)
}
