// Package scorer maintains the process-wide decaying threat level.
package scorer

import (
	"sync"
	"time"

	"github.com/telhawk-systems/sentinel/internal/detector"
	"github.com/telhawk-systems/sentinel/internal/models"
)

// Score deltas applied per event severity.
var severityDeltas = map[models.Severity]float64{
	models.SeverityCritical: 10,
	models.SeverityHigh:     5,
	models.SeverityMedium:   2,
	models.SeverityLow:      1,
}

// Additional deltas applied per detected pattern. Multiple patterns stack.
var patternDeltas = map[string]float64{
	detector.PatternRepeatedFailedLogins: 3,
	detector.PatternSuspiciousActivity:   4,
	detector.PatternRateLimitViolation:   5,
}

// Level bands. A score at or above a band's floor maps to that level.
const (
	bandCritical = 20
	bandHigh     = 15
	bandMedium   = 10
)

// Scorer owns the singleton ThreatLevel. All mutation happens through Apply
// and Decay; reads return copies.
type Scorer struct {
	mu      sync.Mutex
	level   models.ThreatLevel
	horizon time.Duration // decay-to-zero horizon
	now     func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithNow overrides the time source for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// New creates a scorer whose score decays linearly to zero over horizon.
func New(horizon time.Duration, opts ...Option) *Scorer {
	s := &Scorer{horizon: horizon, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.level = models.ThreatLevel{
		Level:     models.SeverityLow,
		Score:     0,
		Factors:   []string{},
		Timestamp: s.now(),
	}
	return s
}

// Apply adds the score contribution of one processed event and returns the
// updated threat level.
func (s *Scorer) Apply(severity models.Severity, patterns []string) models.ThreatLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := severityDeltas[severity]
	for _, p := range patterns {
		delta += patternDeltas[p]
	}

	s.level.Score += delta
	if s.level.Score < 0 {
		s.level.Score = 0
	}
	s.level.Factors = append(s.level.Factors, patterns...)
	s.level.Timestamp = s.now()
	s.level.Level = bandFor(s.level.Score)
	return s.snapshotLocked()
}

// Decay reduces the score by the fraction of the horizon elapsed since the
// last update and returns the updated threat level. A burst of old events
// self-heals to zero over a rolling horizon without caller intervention.
func (s *Scorer) Decay() models.ThreatLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	elapsed := now.Sub(s.level.Timestamp)
	factor := 1 - elapsed.Seconds()/s.horizon.Seconds()
	if factor < 0 {
		factor = 0
	}
	s.level.Score *= factor
	if s.level.Score < 0 {
		s.level.Score = 0
	}
	s.level.Timestamp = now
	s.level.Level = bandFor(s.level.Score)
	return s.snapshotLocked()
}

// Current returns a snapshot of the threat level.
func (s *Scorer) Current() models.ThreatLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Reset re-initializes the threat level to {low, 0, [], now}.
func (s *Scorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = models.ThreatLevel{
		Level:     models.SeverityLow,
		Score:     0,
		Factors:   []string{},
		Timestamp: s.now(),
	}
}

// snapshotLocked copies the level so callers never share the factors slice.
// Caller must hold s.mu.
func (s *Scorer) snapshotLocked() models.ThreatLevel {
	out := s.level
	out.Factors = append([]string(nil), s.level.Factors...)
	return out
}

func bandFor(score float64) models.Severity {
	switch {
	case score >= bandCritical:
		return models.SeverityCritical
	case score >= bandHigh:
		return models.SeverityHigh
	case score >= bandMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
