// Package engine orchestrates the security event pipeline: ingestion,
// pattern detection, threat scoring, and the alert/incident lifecycle.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/sentinel/internal/alerting"
	"github.com/telhawk-systems/sentinel/internal/containment"
	"github.com/telhawk-systems/sentinel/internal/detector"
	"github.com/telhawk-systems/sentinel/internal/eventstore"
	"github.com/telhawk-systems/sentinel/internal/incidents"
	"github.com/telhawk-systems/sentinel/internal/kv"
	"github.com/telhawk-systems/sentinel/internal/metrics"
	"github.com/telhawk-systems/sentinel/internal/models"
	"github.com/telhawk-systems/sentinel/internal/notify"
	"github.com/telhawk-systems/sentinel/internal/scorer"
)

// ErrPersistence wraps failures from the durable store on caller-facing
// operations.
var ErrPersistence = errors.New("persistence failure")

// Config holds engine tunables.
type Config struct {
	// Detector holds pattern rule thresholds and windows.
	Detector detector.Config

	// LookbackWindow bounds event retention. Raised to the longest
	// correlation window if shorter.
	LookbackWindow time.Duration

	// DecayHorizon is the rolling period over which the threat score
	// decays to zero.
	DecayHorizon time.Duration

	// ContainmentTimeout bounds each containment call.
	ContainmentTimeout time.Duration
}

// DefaultConfig returns standard engine settings.
func DefaultConfig() Config {
	return Config{
		Detector:           detector.DefaultConfig(),
		LookbackWindow:     60 * time.Minute,
		DecayHorizon:       24 * time.Hour,
		ContainmentTimeout: 10 * time.Second,
	}
}

// Deps are the injected collaborators. Nil fields fall back to no-ops, except
// KV which falls back to the in-memory store.
type Deps struct {
	Logger      *slog.Logger
	Notifier    notify.Notifier
	KV          kv.Store
	Archive     ArchiveFunc
	Containment containment.Executor
}

// ArchiveFunc persists an acknowledged alert or closed incident for audit.
// Kept as two narrow funcs so the Postgres repository stays optional.
type ArchiveFunc struct {
	Alert    func(ctx context.Context, alert *models.SecurityAlert) error
	Incident func(ctx context.Context, incident *models.SecurityIncident) error
}

// Engine is the security monitoring core. Callers only enqueue; all shared
// state is mutated inside the drain and decay tasks driven by the scheduler.
type Engine struct {
	logger    *slog.Logger
	store     *eventstore.Store
	detector  *detector.Detector
	scorer    *scorer.Scorer
	alerts    *alerting.Manager
	incidents *incidents.Manager
	notifier  notify.Notifier
	kv        kv.Store
	archive   ArchiveFunc
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the time source across all engine components.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine with the given configuration and collaborators.
func New(cfg Config, deps Deps, opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = deps.Logger
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.notifier = deps.Notifier
	if e.notifier == nil {
		e.notifier = notify.Noop{}
	}
	e.kv = deps.KV
	if e.kv == nil {
		e.kv = kv.NewMemory()
	}
	e.archive = deps.Archive

	lookback := cfg.LookbackWindow
	if maxWindow := cfg.Detector.MaxWindow(); lookback < maxWindow {
		lookback = maxWindow
	}

	e.store = eventstore.New(lookback, eventstore.WithNow(e.now))
	e.detector = detector.New(e.store, cfg.Detector)
	e.scorer = scorer.New(cfg.DecayHorizon, scorer.WithNow(e.now))
	e.alerts = alerting.New(alerting.WithNow(e.now))
	e.incidents = incidents.New(deps.Containment, cfg.ContainmentTimeout, e.logger, incidents.WithNow(e.now))

	return e
}

// RecordEvent accepts a security event and enqueues it for asynchronous
// processing. It never blocks and always succeeds from the caller's
// perspective; processing happens on the next drain tick.
func (e *Engine) RecordEvent(t models.EventType, severity models.Severity, title, description, source string, metadata map[string]interface{}) string {
	id, err := uuid.NewV7()
	if err != nil {
		// entropy failure; keep the event with a zero id rather than dropping it
		e.logger.Error("generate event id", "error", err)
	}

	ev := &models.SecurityEvent{
		ID:          id.String(),
		Type:        t,
		Severity:    severity,
		Title:       title,
		Description: description,
		Timestamp:   e.now(),
		Source:      source,
		Metadata:    metadata,
	}

	e.store.Enqueue(ev)
	metrics.EventsRecorded.Inc()
	metrics.QueueDepth.Set(float64(e.store.QueueDepth()))
	return ev.ID
}

// DrainOnce processes all currently queued events in FIFO arrival order and
// returns the number processed. A failure on one event is logged and never
// stops processing of subsequent events.
func (e *Engine) DrainOnce(ctx context.Context) int {
	start := time.Now()
	drained := e.store.DrainQueue()
	for _, ev := range drained {
		if err := e.processEvent(ctx, ev); err != nil {
			e.logger.Error("event processing failed",
				"event_id", ev.ID, "type", ev.Type, "error", err)
		}
		metrics.EventsProcessed.Inc()
	}
	metrics.QueueDepth.Set(float64(e.store.QueueDepth()))
	metrics.DrainDuration.Observe(time.Since(start).Seconds())
	return len(drained)
}

// processEvent runs one event through detection, scoring, and the alert and
// incident decision rules. Pattern detection only sees events already
// committed to the store, including this one.
func (e *Engine) processEvent(ctx context.Context, ev *models.SecurityEvent) error {
	e.store.Commit(ev)
	e.persist(ctx, "event:"+ev.ID, ev)

	patterns := e.detector.Detect(ev)
	for _, p := range patterns {
		metrics.PatternsDetected.WithLabelValues(p).Inc()
		e.logger.Info("pattern detected", "pattern", p, "source", ev.Source, "event_id", ev.ID)
	}

	level := e.scorer.Apply(ev.Severity, patterns)
	metrics.ThreatScore.Set(level.Score)

	if alerting.ShouldCreate(ev, patterns) {
		if err := e.createAlert(ctx, ev, patterns); err != nil {
			return fmt.Errorf("create alert: %w", err)
		}
	}

	if incidents.ShouldCreate(ev, patterns) {
		if err := e.createIncident(ctx, ev, patterns); err != nil {
			return fmt.Errorf("create incident: %w", err)
		}
	}

	return nil
}

func (e *Engine) createAlert(ctx context.Context, ev *models.SecurityEvent, patterns []string) error {
	alert, err := e.alerts.Create(ev, patterns)
	if err != nil {
		return err
	}
	metrics.AlertsCreated.WithLabelValues(string(alert.Severity)).Inc()
	e.persist(ctx, "alert:"+alert.ID, alert)

	if err := e.notifier.SendAlertNotification(ctx, alert); err != nil {
		e.logger.Warn("alert notification failed", "alert_id", alert.ID, "error", err)
	}
	if alert.Escalated {
		if err := e.notifier.SendEscalationNotification(ctx, ev); err != nil {
			e.logger.Warn("escalation notification failed", "alert_id", alert.ID, "error", err)
		}
	}
	return nil
}

func (e *Engine) createIncident(ctx context.Context, ev *models.SecurityEvent, patterns []string) error {
	incident, err := e.incidents.Create(ctx, ev, patterns)
	if err != nil {
		return err
	}
	metrics.IncidentsCreated.WithLabelValues(string(incident.Severity)).Inc()
	for _, a := range incident.Actions {
		if a.Type == models.ActionContainment && a.Status == models.ActionFailed {
			metrics.ContainmentFailures.Inc()
		}
	}
	e.persist(ctx, "incident:"+incident.ID, &incident)

	if err := e.notifier.SendIncidentNotification(ctx, &incident); err != nil {
		e.logger.Warn("incident notification failed", "incident_id", incident.ID, "error", err)
	}
	return nil
}

// DecayOnce applies time-based decay to the threat score and persists the
// snapshot. Driven by the scheduler's decay tick.
func (e *Engine) DecayOnce(ctx context.Context) models.ThreatLevel {
	level := e.scorer.Decay()
	metrics.ThreatScore.Set(level.Score)
	e.persist(ctx, "threat_level", level)
	return level
}

// GetCurrentThreatLevel returns a consistent snapshot of the threat level.
func (e *Engine) GetCurrentThreatLevel() models.ThreatLevel {
	return e.scorer.Current()
}

// GetActiveIncidents returns all incidents with status other than closed.
func (e *Engine) GetActiveIncidents() []models.SecurityIncident {
	return e.incidents.Active()
}

// GetActiveAlerts returns all unacknowledged alerts.
func (e *Engine) GetActiveAlerts() []models.SecurityAlert {
	return e.alerts.Active()
}

// AcknowledgeAlert marks the alert acknowledged and archives it for audit.
// Idempotent-once: re-acknowledging is a no-op. Returns alerting.ErrNotFound
// for an unknown id; durable-store failures propagate as ErrPersistence.
func (e *Engine) AcknowledgeAlert(ctx context.Context, id, by string) (models.SecurityAlert, error) {
	alert, changed, err := e.alerts.Acknowledge(id, by)
	if err != nil {
		return models.SecurityAlert{}, err
	}
	if !changed {
		return alert, nil
	}

	if err := e.persistStrict(ctx, "alert:"+alert.ID, &alert); err != nil {
		return models.SecurityAlert{}, err
	}

	if e.archive.Alert != nil {
		if err := e.archive.Alert(ctx, &alert); err != nil {
			// archive is audit-side; the acknowledgment itself stands
			e.logger.Error("alert archive failed", "alert_id", alert.ID, "error", err)
		}
	}
	return alert, nil
}

// UpdateIncidentStatus advances an incident through the state machine on
// behalf of an operator. Returns incidents.ErrNotFound for an unknown id and
// incidents.ErrInvalidTransition for an unreachable target status.
func (e *Engine) UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus, updatedBy string) (models.SecurityIncident, error) {
	incident, err := e.incidents.UpdateStatus(id, status, updatedBy)
	if err != nil {
		return models.SecurityIncident{}, err
	}

	if err := e.persistStrict(ctx, "incident:"+incident.ID, &incident); err != nil {
		return models.SecurityIncident{}, err
	}

	if incident.Status == models.StatusClosed && e.archive.Incident != nil {
		if err := e.archive.Incident(ctx, &incident); err != nil {
			e.logger.Error("incident archive failed", "incident_id", incident.ID, "error", err)
		}
	}
	return incident, nil
}

// AssignIncident sets the assignee on an active incident.
func (e *Engine) AssignIncident(ctx context.Context, id, assignee, updatedBy string) (models.SecurityIncident, error) {
	incident, err := e.incidents.Assign(id, assignee, updatedBy)
	if err != nil {
		return models.SecurityIncident{}, err
	}
	if err := e.persistStrict(ctx, "incident:"+incident.ID, &incident); err != nil {
		return models.SecurityIncident{}, err
	}
	return incident, nil
}

// Stats returns queue depth and committed event count for operational
// visibility.
func (e *Engine) Stats() (queued, stored int) {
	return e.store.Stats()
}

// persist writes to the durable store on the background path: failures are
// logged and counted, never raised, so one bad write cannot stall the drain
// loop.
func (e *Engine) persist(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		e.logger.Error("marshal for persistence", "key", key, "error", err)
		metrics.PersistenceErrors.Inc()
		return
	}
	if err := e.kv.Put(ctx, key, data); err != nil {
		e.logger.Error("persist failed", "key", key, "error", err)
		metrics.PersistenceErrors.Inc()
	}
}

// persistStrict writes to the durable store on the caller-facing path:
// failures propagate to the caller.
func (e *Engine) persistStrict(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrPersistence, key, err)
	}
	if err := e.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
