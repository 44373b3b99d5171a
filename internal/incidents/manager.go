// Package incidents drives stateful security incidents through the
// investigation, containment, and resolution lifecycle.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/sentinel/internal/containment"
	"github.com/telhawk-systems/sentinel/internal/models"
)

var (
	// ErrNotFound is returned when an incident id is unknown.
	ErrNotFound = errors.New("incident not found")

	// ErrInvalidTransition is returned when a status change is not reachable
	// from the incident's current state.
	ErrInvalidTransition = errors.New("invalid incident status transition")
)

// transitions is the incident state machine. Status only moves forward;
// illegal jumps are rejected, never coerced.
var transitions = map[models.IncidentStatus]models.IncidentStatus{
	models.StatusOpen:          models.StatusInvestigating,
	models.StatusInvestigating: models.StatusContained,
	models.StatusContained:     models.StatusResolved,
	models.StatusResolved:      models.StatusClosed,
}

// Event types treated as maximally urgent regardless of reported severity.
var forcedPriorityTypes = map[models.EventType]bool{
	models.EventDataBreach:          true,
	models.EventPrivilegeEscalation: true,
	models.EventMalwareDetection:    true,
}

// ShouldCreate reports whether the event warrants a stateful incident:
// critical severity, high severity with a detected pattern, or an inherently
// incident-grade event type.
func ShouldCreate(ev *models.SecurityEvent, patterns []string) bool {
	if ev.Severity == models.SeverityCritical {
		return true
	}
	if ev.Severity == models.SeverityHigh && len(patterns) > 0 {
		return true
	}
	return ev.Type == models.EventDataBreach || ev.Type == models.EventPrivilegeEscalation
}

// PriorityFor derives incident priority from severity; data breaches,
// privilege escalations, and malware detections are always priority 1.
func PriorityFor(ev *models.SecurityEvent) int {
	if forcedPriorityTypes[ev.Type] {
		return 1
	}
	switch ev.Severity {
	case models.SeverityCritical:
		return 1
	case models.SeverityHigh:
		return 2
	case models.SeverityMedium:
		return 3
	default:
		return 4
	}
}

// Manager creates incidents and enforces the response state machine.
type Manager struct {
	mu        sync.RWMutex
	incidents map[string]*models.SecurityIncident

	executor containment.Executor
	timeout  time.Duration // per containment call
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow overrides the time source for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates an incident manager. Containment calls are bounded by timeout.
func New(executor containment.Executor, timeout time.Duration, logger *slog.Logger, opts ...Option) *Manager {
	if executor == nil {
		executor = containment.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		incidents: make(map[string]*models.SecurityIncident),
		executor:  executor,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens an incident for the event, immediately starts the automated
// investigation (open -> investigating), and for critical severity performs
// automated containment. No incident remains in open past its creation.
func (m *Manager) Create(ctx context.Context, ev *models.SecurityEvent, patterns []string) (models.SecurityIncident, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.SecurityIncident{}, err
	}

	now := m.now()
	incident := &models.SecurityIncident{
		ID:         id.String(),
		Type:       ev.Type,
		Severity:   ev.Severity,
		Status:     models.StatusOpen,
		Title:      ev.Title,
		DetectedAt: now,
		UpdatedAt:  now,
		Evidence:   []models.SecurityEvent{*ev},
		Actions:    []models.IncidentAction{},
		Priority:   PriorityFor(ev),
	}
	incident.Description = describeIncident(ev, patterns)

	m.appendAction(incident, models.ActionInvestigation, "Automated investigation started", "system", models.ActionCompleted, "")
	incident.Status = models.StatusInvestigating
	incident.UpdatedAt = m.now()

	if ev.Severity == models.SeverityCritical {
		m.contain(ctx, incident)
	}

	m.mu.Lock()
	m.incidents[incident.ID] = incident
	m.mu.Unlock()

	return copyIncident(incident), nil
}

// contain invokes the containment executor and logs one action per call.
// The incident only advances to contained if at least one action succeeded;
// a fully failed containment leaves it investigating for manual handling.
func (m *Manager) contain(ctx context.Context, incident *models.SecurityIncident) {
	type step struct {
		name string
		run  func(context.Context, *models.SecurityIncident) error
	}
	steps := []step{
		{"Applied emergency rate limiting", m.executor.ApplyRateLimit},
		{"Terminated active sessions for affected source", m.executor.TerminateSessions},
	}
	if incident.Severity == models.SeverityCritical {
		steps = append(steps, step{"Blocked offending source", m.executor.BlockSource})
	}

	succeeded := 0
	for _, s := range steps {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := s.run(callCtx, incident)
		cancel()

		if err != nil {
			m.logger.Warn("containment action failed",
				"incident_id", incident.ID, "action", s.name, "error", err)
			m.appendAction(incident, models.ActionContainment, s.name, "system", models.ActionFailed, err.Error())
			continue
		}
		m.appendAction(incident, models.ActionContainment, s.name, "system", models.ActionCompleted, "")
		succeeded++
	}

	if succeeded > 0 {
		incident.Status = models.StatusContained
		incident.UpdatedAt = m.now()
	}
}

// UpdateStatus advances the incident to target if reachable from its current
// state, logging the transition as an action. Resolved and closed transitions
// are operator-driven only, which is why this is the sole path to them.
func (m *Manager) UpdateStatus(id string, target models.IncidentStatus, updatedBy string) (models.SecurityIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	incident, ok := m.incidents[id]
	if !ok {
		return models.SecurityIncident{}, ErrNotFound
	}

	if transitions[incident.Status] != target {
		return models.SecurityIncident{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, incident.Status, target)
	}

	actionType, description := transitionAction(target)
	m.appendAction(incident, actionType, description, updatedBy, models.ActionCompleted, "")

	incident.Status = target
	now := m.now()
	incident.UpdatedAt = now
	if target == models.StatusResolved || target == models.StatusClosed {
		if incident.ResolvedAt == nil {
			incident.ResolvedAt = &now
		}
	}

	return copyIncident(incident), nil
}

// Assign sets the incident assignee, recording the change as an action.
func (m *Manager) Assign(id, assignee, updatedBy string) (models.SecurityIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	incident, ok := m.incidents[id]
	if !ok {
		return models.SecurityIncident{}, ErrNotFound
	}

	incident.Assignee = &assignee
	incident.UpdatedAt = m.now()
	m.appendAction(incident, models.ActionInvestigation,
		fmt.Sprintf("Assigned to %s", assignee), updatedBy, models.ActionCompleted, "")

	return copyIncident(incident), nil
}

// Get returns a copy of the incident with the given id.
func (m *Manager) Get(id string) (models.SecurityIncident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	incident, ok := m.incidents[id]
	if !ok {
		return models.SecurityIncident{}, ErrNotFound
	}
	return copyIncident(incident), nil
}

// Active returns copies of all incidents not yet closed, newest first.
func (m *Manager) Active() []models.SecurityIncident {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]models.SecurityIncident, 0)
	for _, incident := range m.incidents {
		if incident.Active() {
			active = append(active, copyIncident(incident))
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].DetectedAt.After(active[j].DetectedAt)
	})
	return active
}

// appendAction logs a step on the incident. Every transition goes through
// here so the action trail stays complete.
func (m *Manager) appendAction(incident *models.SecurityIncident, t models.ActionType, description, by string, status models.ActionStatus, result string) {
	id, err := uuid.NewV7()
	if err != nil {
		// keep the audit entry even if the entropy source fails
		m.logger.Error("generate action id", "error", err)
	}
	incident.Actions = append(incident.Actions, models.IncidentAction{
		ID:          id.String(),
		Type:        t,
		Description: description,
		Timestamp:   m.now(),
		PerformedBy: by,
		Status:      status,
		Result:      result,
	})
}

func transitionAction(target models.IncidentStatus) (models.ActionType, string) {
	switch target {
	case models.StatusContained:
		return models.ActionContainment, "Incident contained"
	case models.StatusResolved:
		return models.ActionRemediation, "Incident resolved"
	case models.StatusClosed:
		return models.ActionRemediation, "Incident closed"
	default:
		return models.ActionInvestigation, fmt.Sprintf("Status changed to %s", target)
	}
}

func describeIncident(ev *models.SecurityEvent, patterns []string) string {
	if len(patterns) == 0 {
		return ev.Description
	}
	return fmt.Sprintf("%s (detected patterns: %v)", ev.Description, patterns)
}

// copyIncident returns a deep-enough copy: slices are duplicated so callers
// never observe partially-updated state.
func copyIncident(incident *models.SecurityIncident) models.SecurityIncident {
	out := *incident
	out.Evidence = append([]models.SecurityEvent(nil), incident.Evidence...)
	out.Actions = append([]models.IncidentAction(nil), incident.Actions...)
	out.AffectedUsers = append([]string(nil), incident.AffectedUsers...)
	out.AffectedSystems = append([]string(nil), incident.AffectedSystems...)
	return out
}
