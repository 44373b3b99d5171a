// Package alerting decides when events warrant standalone alerts and tracks
// their acknowledgment.
package alerting

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/sentinel/internal/models"
)

// ErrNotFound is returned when an alert id is unknown.
var ErrNotFound = errors.New("alert not found")

// ShouldCreate reports whether the event warrants a standalone alert:
// critical or high severity, any detected pattern, or suspicious activity.
func ShouldCreate(ev *models.SecurityEvent, patterns []string) bool {
	if ev.Severity == models.SeverityCritical || ev.Severity == models.SeverityHigh {
		return true
	}
	if len(patterns) > 0 {
		return true
	}
	return ev.Type == models.EventSuspiciousActivity
}

// Manager creates and tracks alerts. Acknowledged alerts are kept for audit;
// archival to durable storage is the engine's concern.
type Manager struct {
	mu     sync.RWMutex
	alerts map[string]*models.SecurityAlert
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow overrides the time source for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates an alert manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		alerts: make(map[string]*models.SecurityAlert),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds an alert from the event and detected patterns. Alerts for
// high or critical events are flagged escalated; the escalation notification
// itself is the engine's side effect.
func (m *Manager) Create(ev *models.SecurityEvent, patterns []string) (*models.SecurityAlert, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]interface{}, len(ev.Metadata)+1)
	for k, v := range ev.Metadata {
		metadata[k] = v
	}
	if len(patterns) > 0 {
		metadata["patterns"] = append([]string(nil), patterns...)
	}

	alert := &models.SecurityAlert{
		ID:          id.String(),
		Type:        ev.Type,
		Severity:    ev.Severity,
		Title:       ev.Title,
		Description: ev.Description,
		Timestamp:   m.now(),
		Source:      ev.Source,
		Metadata:    metadata,
		Escalated:   ev.Severity == models.SeverityHigh || ev.Severity == models.SeverityCritical,
	}

	m.mu.Lock()
	m.alerts[alert.ID] = alert
	m.mu.Unlock()

	out := *alert
	return &out, nil
}

// Acknowledge marks the alert acknowledged. It is idempotent-once: a second
// call on an already-acknowledged alert is a no-op, not an error, so duplicate
// operator clicks are tolerated. The returned bool reports whether this call
// changed state.
func (m *Manager) Acknowledge(id, by string) (models.SecurityAlert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[id]
	if !ok {
		return models.SecurityAlert{}, false, ErrNotFound
	}
	if alert.Acknowledged {
		return *alert, false, nil
	}

	now := m.now()
	alert.Acknowledged = true
	alert.AcknowledgedBy = &by
	alert.AcknowledgedAt = &now
	return *alert, true, nil
}

// Get returns a copy of the alert with the given id.
func (m *Manager) Get(id string) (models.SecurityAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, ok := m.alerts[id]
	if !ok {
		return models.SecurityAlert{}, ErrNotFound
	}
	return *alert, nil
}

// Active returns copies of all unacknowledged alerts, oldest first.
func (m *Manager) Active() []models.SecurityAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]models.SecurityAlert, 0)
	for _, alert := range m.alerts {
		if !alert.Acknowledged {
			active = append(active, *alert)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Timestamp.Before(active[j].Timestamp)
	})
	return active
}
