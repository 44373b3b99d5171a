package containment

import (
	"context"
	"time"

	"github.com/telhawk-systems/sentinel/internal/bus"
	"github.com/telhawk-systems/sentinel/internal/models"
)

// Command is the payload published to the enforcement platform for each
// containment action.
type Command struct {
	IncidentID string          `json:"incident_id"`
	Source     string          `json:"source"`
	Severity   models.Severity `json:"severity"`
	Priority   int             `json:"priority"`
	IssuedAt   time.Time       `json:"issued_at"`
}

// BusExecutor delegates containment actions to the hosting platform by
// publishing commands on the message bus. Enforcement is asynchronous; a
// successful publish means the command was handed off, not applied.
type BusExecutor struct {
	conn *bus.Conn
}

// NewBusExecutor creates an executor publishing on the given connection.
func NewBusExecutor(conn *bus.Conn) *BusExecutor {
	return &BusExecutor{conn: conn}
}

func (e *BusExecutor) ApplyRateLimit(ctx context.Context, incident *models.SecurityIncident) error {
	return e.conn.PublishJSON(ctx, bus.SubjectContainRateLimit, commandFor(incident))
}

func (e *BusExecutor) BlockSource(ctx context.Context, incident *models.SecurityIncident) error {
	return e.conn.PublishJSON(ctx, bus.SubjectContainBlock, commandFor(incident))
}

func (e *BusExecutor) TerminateSessions(ctx context.Context, incident *models.SecurityIncident) error {
	return e.conn.PublishJSON(ctx, bus.SubjectContainTerminate, commandFor(incident))
}

func commandFor(incident *models.SecurityIncident) *Command {
	source := ""
	if len(incident.Evidence) > 0 {
		source = incident.Evidence[0].Source
	}
	return &Command{
		IncidentID: incident.ID,
		Source:     source,
		Severity:   incident.Severity,
		Priority:   incident.Priority,
		IssuedAt:   time.Now(),
	}
}
