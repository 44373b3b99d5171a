package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/sentinel/internal/alerting"
	"github.com/telhawk-systems/sentinel/internal/containment"
	"github.com/telhawk-systems/sentinel/internal/detector"
	"github.com/telhawk-systems/sentinel/internal/incidents"
	"github.com/telhawk-systems/sentinel/internal/kv"
	"github.com/telhawk-systems/sentinel/internal/models"
	"github.com/telhawk-systems/sentinel/internal/notify"
)

// failingStore rejects every write. Used to exercise error propagation on the
// caller-facing persistence path.
type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }
func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk full")
}
func (failingStore) Close() error { return nil }

type testEngine struct {
	*Engine
	notifier *notify.Recorder
	contain  *containment.Recorder
	store    *kv.Memory
	clock    *time.Time
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	current := time.Now()
	notifier := &notify.Recorder{}
	contain := &containment.Recorder{}
	store := kv.NewMemory()

	eng := New(DefaultConfig(), Deps{
		Notifier:    notifier,
		KV:          store,
		Containment: contain,
	}, WithNow(func() time.Time { return current }))

	return &testEngine{
		Engine:   eng,
		notifier: notifier,
		contain:  contain,
		store:    store,
		clock:    &current,
	}
}

func (te *testEngine) advance(d time.Duration) {
	*te.clock = te.clock.Add(d)
}

func recordFailedLogins(eng *Engine, source string, n int) {
	for i := 0; i < n; i++ {
		eng.RecordEvent(models.EventLoginAttempt, models.SeverityMedium,
			"failed login", "", source,
			map[string]interface{}{"outcome": "failure"})
	}
}

func TestRecordEvent_QueuesWithoutProcessing(t *testing.T) {
	te := newTestEngine(t)

	id := te.RecordEvent(models.EventDataAccess, models.SeverityLow, "read", "", "svc-a", nil)
	assert.NotEmpty(t, id)

	queued, stored := te.Stats()
	assert.Equal(t, 1, queued)
	assert.Equal(t, 0, stored)

	// Nothing visible until a drain runs.
	assert.Empty(t, te.GetActiveAlerts())
	assert.Equal(t, float64(0), te.GetCurrentThreatLevel().Score)
}

func TestDrainOnce_FailedLoginBurst(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	recordFailedLogins(te.Engine, "10.0.0.1", 5)
	processed := te.DrainOnce(ctx)
	assert.Equal(t, 5, processed)

	// 5 medium events (2 each) plus the pattern delta on the fifth.
	level := te.GetCurrentThreatLevel()
	assert.Equal(t, float64(13), level.Score)
	assert.Equal(t, models.SeverityMedium, level.Level)
	assert.Equal(t, []string{detector.PatternRepeatedFailedLogins}, level.Factors)

	// Only the pattern-completing event alerts; no incident for medium.
	alerts := te.GetActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, []string{detector.PatternRepeatedFailedLogins}, alerts[0].Metadata["patterns"])
	assert.False(t, alerts[0].Escalated)
	assert.Empty(t, te.GetActiveIncidents())

	require.Len(t, te.notifier.Alerts, 1)
	assert.Empty(t, te.notifier.Escalations)

	// Events and the alert are persisted.
	_, ok, err := te.store.Get(ctx, "alert:"+alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDrainOnce_CriticalEventFullPipeline(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	id := te.RecordEvent(models.EventMalwareDetection, models.SeverityCritical,
		"malware detected", "trojan on host", "host-9", nil)
	te.DrainOnce(ctx)

	level := te.GetCurrentThreatLevel()
	assert.Equal(t, float64(10), level.Score)
	assert.Equal(t, models.SeverityMedium, level.Level)

	alerts := te.GetActiveAlerts()
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Escalated)
	require.Len(t, te.notifier.Escalations, 1)
	assert.Equal(t, id, te.notifier.Escalations[0].ID)

	active := te.GetActiveIncidents()
	require.Len(t, active, 1)
	incident := active[0]
	assert.Equal(t, models.StatusContained, incident.Status)
	assert.Equal(t, 1, incident.Priority)
	assert.Equal(t, []string{"apply_rate_limit", "terminate_sessions", "block_source"}, te.contain.Calls())
	require.Len(t, te.notifier.Incidents, 1)

	// Persisted event round-trips.
	data, ok, err := te.store.Get(ctx, "event:"+id)
	require.NoError(t, err)
	require.True(t, ok)
	var stored models.SecurityEvent
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, models.EventMalwareDetection, stored.Type)
}

func TestDrainOnce_HighSeverityWithoutPatternNoIncident(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.RecordEvent(models.EventNetworkAnomaly, models.SeverityHigh, "odd traffic", "", "fw-1", nil)
	te.DrainOnce(ctx)

	assert.Len(t, te.GetActiveAlerts(), 1)
	assert.Empty(t, te.GetActiveIncidents())
}

func TestDrainOnce_NotificationFailureDoesNotStopProcessing(t *testing.T) {
	te := newTestEngine(t)
	te.notifier.Err = errors.New("smtp down")
	ctx := context.Background()

	te.RecordEvent(models.EventDataAccess, models.SeverityHigh, "export", "", "svc-b", nil)
	te.RecordEvent(models.EventDataAccess, models.SeverityHigh, "export", "", "svc-c", nil)
	processed := te.DrainOnce(ctx)

	assert.Equal(t, 2, processed)
	assert.Len(t, te.GetActiveAlerts(), 2)
}

func TestDecayOnce(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.RecordEvent(models.EventDataBreach, models.SeverityCritical, "breach", "", "db-1", nil)
	te.RecordEvent(models.EventDataBreach, models.SeverityCritical, "breach", "", "db-1", nil)
	te.DrainOnce(ctx)

	require.Equal(t, float64(20), te.GetCurrentThreatLevel().Score)
	require.Equal(t, models.SeverityCritical, te.GetCurrentThreatLevel().Level)

	te.advance(12 * time.Hour)
	level := te.DecayOnce(ctx)
	assert.InDelta(t, 10, level.Score, 1e-9)
	assert.Equal(t, models.SeverityMedium, level.Level)

	// Snapshot persisted under a fixed key.
	_, ok, err := te.store.Get(ctx, "threat_level")
	require.NoError(t, err)
	assert.True(t, ok)

	te.advance(48 * time.Hour)
	level = te.DecayOnce(ctx)
	assert.Equal(t, float64(0), level.Score)
	assert.Equal(t, models.SeverityLow, level.Level)
}

func TestAcknowledgeAlert(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.RecordEvent(models.EventDataAccess, models.SeverityHigh, "export", "", "svc-b", nil)
	te.DrainOnce(ctx)
	alerts := te.GetActiveAlerts()
	require.Len(t, alerts, 1)

	acked, err := te.AcknowledgeAlert(ctx, alerts[0].ID, "analyst-1")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.Empty(t, te.GetActiveAlerts())

	t.Run("idempotent", func(t *testing.T) {
		again, err := te.AcknowledgeAlert(ctx, alerts[0].ID, "analyst-2")
		require.NoError(t, err)
		assert.Equal(t, "analyst-1", *again.AcknowledgedBy)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := te.AcknowledgeAlert(ctx, "missing", "analyst-1")
		assert.ErrorIs(t, err, alerting.ErrNotFound)
	})
}

func TestAcknowledgeAlert_PersistenceFailurePropagates(t *testing.T) {
	notifier := &notify.Recorder{}
	current := time.Now()
	eng := New(DefaultConfig(), Deps{
		Notifier: notifier,
		KV:       failingStore{},
	}, WithNow(func() time.Time { return current }))
	ctx := context.Background()

	eng.RecordEvent(models.EventDataAccess, models.SeverityHigh, "export", "", "svc-b", nil)
	eng.DrainOnce(ctx)
	alerts := eng.GetActiveAlerts()
	require.Len(t, alerts, 1)

	_, err := eng.AcknowledgeAlert(ctx, alerts[0].ID, "analyst-1")
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestUpdateIncidentStatus(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.RecordEvent(models.EventDataBreach, models.SeverityHigh, "breach", "", "db-1", nil)
	te.DrainOnce(ctx)
	active := te.GetActiveIncidents()
	require.Len(t, active, 1)
	id := active[0].ID
	require.Equal(t, models.StatusInvestigating, active[0].Status)

	t.Run("invalid transition", func(t *testing.T) {
		_, err := te.UpdateIncidentStatus(ctx, id, models.StatusClosed, "analyst-1")
		assert.ErrorIs(t, err, incidents.ErrInvalidTransition)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := te.UpdateIncidentStatus(ctx, "missing", models.StatusContained, "analyst-1")
		assert.ErrorIs(t, err, incidents.ErrNotFound)
	})

	t.Run("lifecycle to closed", func(t *testing.T) {
		var incident models.SecurityIncident
		var err error
		for _, target := range []models.IncidentStatus{
			models.StatusContained, models.StatusResolved, models.StatusClosed,
		} {
			incident, err = te.UpdateIncidentStatus(ctx, id, target, "analyst-1")
			require.NoError(t, err)
		}
		assert.Equal(t, models.StatusClosed, incident.Status)
		assert.Empty(t, te.GetActiveIncidents())
	})
}

func TestAssignIncident(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.RecordEvent(models.EventPrivilegeEscalation, models.SeverityHigh, "sudo abuse", "", "host-3", nil)
	te.DrainOnce(ctx)
	active := te.GetActiveIncidents()
	require.Len(t, active, 1)

	incident, err := te.AssignIncident(ctx, active[0].ID, "analyst-3", "lead-1")
	require.NoError(t, err)
	require.NotNil(t, incident.Assignee)
	assert.Equal(t, "analyst-3", *incident.Assignee)
}

func TestLookbackRaisedToLongestWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LookbackWindow = time.Minute
	cfg.Detector.SuspiciousWindow = 2 * time.Hour

	current := time.Now()
	eng := New(cfg, Deps{}, WithNow(func() time.Time { return current }))
	ctx := context.Background()

	// Two suspicious events 90 minutes ago, one now: the pattern still
	// completes because retention covers the correlation window.
	eng.RecordEvent(models.EventSuspiciousActivity, models.SeverityLow, "probe", "", "host-1", nil)
	eng.RecordEvent(models.EventSuspiciousActivity, models.SeverityLow, "probe", "", "host-1", nil)
	eng.DrainOnce(ctx)

	current = current.Add(90 * time.Minute)
	eng.RecordEvent(models.EventSuspiciousActivity, models.SeverityLow, "probe", "", "host-1", nil)
	eng.DrainOnce(ctx)

	level := eng.GetCurrentThreatLevel()
	assert.Contains(t, level.Factors, detector.PatternSuspiciousActivity)
}
