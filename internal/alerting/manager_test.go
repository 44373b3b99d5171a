package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/sentinel/internal/detector"
	"github.com/telhawk-systems/sentinel/internal/models"
)

func event(t models.EventType, severity models.Severity) *models.SecurityEvent {
	return &models.SecurityEvent{
		ID:        "ev-1",
		Type:      t,
		Severity:  severity,
		Title:     "test",
		Timestamp: time.Now(),
		Source:    "10.0.0.1",
		Metadata:  map[string]interface{}{"username": "alice"},
	}
}

func TestShouldCreate(t *testing.T) {
	tests := []struct {
		name     string
		ev       *models.SecurityEvent
		patterns []string
		expected bool
	}{
		{"critical severity", event(models.EventDataAccess, models.SeverityCritical), nil, true},
		{"high severity", event(models.EventDataAccess, models.SeverityHigh), nil, true},
		{"medium with pattern", event(models.EventLoginAttempt, models.SeverityMedium), []string{detector.PatternRepeatedFailedLogins}, true},
		{"suspicious activity type", event(models.EventSuspiciousActivity, models.SeverityLow), nil, true},
		{"low severity plain event", event(models.EventDataAccess, models.SeverityLow), nil, false},
		{"medium severity plain event", event(models.EventLoginAttempt, models.SeverityMedium), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldCreate(tt.ev, tt.patterns))
		})
	}
}

func TestCreate(t *testing.T) {
	m := New()

	t.Run("copies event fields and metadata", func(t *testing.T) {
		ev := event(models.EventLoginAttempt, models.SeverityMedium)
		alert, err := m.Create(ev, []string{detector.PatternRepeatedFailedLogins})
		require.NoError(t, err)

		assert.NotEmpty(t, alert.ID)
		assert.Equal(t, ev.Type, alert.Type)
		assert.Equal(t, ev.Severity, alert.Severity)
		assert.Equal(t, ev.Source, alert.Source)
		assert.Equal(t, "alice", alert.Metadata["username"])
		assert.Equal(t, []string{detector.PatternRepeatedFailedLogins}, alert.Metadata["patterns"])
		assert.False(t, alert.Acknowledged)
		assert.False(t, alert.Escalated)
	})

	t.Run("high severity is escalated", func(t *testing.T) {
		alert, err := m.Create(event(models.EventDataAccess, models.SeverityHigh), nil)
		require.NoError(t, err)
		assert.True(t, alert.Escalated)
		_, ok := alert.Metadata["patterns"]
		assert.False(t, ok)
	})

	t.Run("critical severity is escalated", func(t *testing.T) {
		alert, err := m.Create(event(models.EventDataBreach, models.SeverityCritical), nil)
		require.NoError(t, err)
		assert.True(t, alert.Escalated)
	})
}

func TestAcknowledge(t *testing.T) {
	current := time.Now()
	m := New(WithNow(func() time.Time { return current }))

	alert, err := m.Create(event(models.EventDataAccess, models.SeverityHigh), nil)
	require.NoError(t, err)

	t.Run("first acknowledgment changes state", func(t *testing.T) {
		acked, changed, err := m.Acknowledge(alert.ID, "analyst-1")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, acked.Acknowledged)
		require.NotNil(t, acked.AcknowledgedBy)
		assert.Equal(t, "analyst-1", *acked.AcknowledgedBy)
		require.NotNil(t, acked.AcknowledgedAt)
		assert.Equal(t, current, *acked.AcknowledgedAt)
	})

	t.Run("second acknowledgment is a no-op", func(t *testing.T) {
		current = current.Add(time.Hour)
		acked, changed, err := m.Acknowledge(alert.ID, "analyst-2")
		require.NoError(t, err)
		assert.False(t, changed)
		// Original acknowledgment is preserved.
		assert.Equal(t, "analyst-1", *acked.AcknowledgedBy)
		assert.Equal(t, current.Add(-time.Hour), *acked.AcknowledgedAt)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, err := m.Acknowledge("nope", "analyst-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestActive(t *testing.T) {
	current := time.Now()
	m := New(WithNow(func() time.Time { return current }))

	first, err := m.Create(event(models.EventDataAccess, models.SeverityHigh), nil)
	require.NoError(t, err)

	current = current.Add(time.Minute)
	second, err := m.Create(event(models.EventDataAccess, models.SeverityCritical), nil)
	require.NoError(t, err)

	t.Run("oldest first", func(t *testing.T) {
		active := m.Active()
		require.Len(t, active, 2)
		assert.Equal(t, first.ID, active[0].ID)
		assert.Equal(t, second.ID, active[1].ID)
	})

	t.Run("acknowledged alerts drop out", func(t *testing.T) {
		_, _, err := m.Acknowledge(first.ID, "analyst-1")
		require.NoError(t, err)

		active := m.Active()
		require.Len(t, active, 1)
		assert.Equal(t, second.ID, active[0].ID)
	})
}

func TestGet(t *testing.T) {
	m := New()
	alert, err := m.Create(event(models.EventDataAccess, models.SeverityHigh), nil)
	require.NoError(t, err)

	got, err := m.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, got.ID)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
