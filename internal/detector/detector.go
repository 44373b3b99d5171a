// Package detector recognizes behavioral patterns across recent events.
package detector

import (
	"time"

	"github.com/telhawk-systems/sentinel/internal/eventstore"
	"github.com/telhawk-systems/sentinel/internal/models"
)

// Pattern names emitted by the detector.
const (
	PatternRepeatedFailedLogins = "repeated_failed_logins"
	PatternSuspiciousActivity   = "suspicious_activity_pattern"
	PatternRateLimitViolation   = "rate_limit_violation_pattern"
)

// Config holds per-rule thresholds and correlation windows. Thresholds are
// deployment tunables, not constants.
type Config struct {
	FailedLoginThreshold int           `mapstructure:"failed_login_threshold"`
	FailedLoginWindow    time.Duration `mapstructure:"failed_login_window"`
	SuspiciousThreshold  int           `mapstructure:"suspicious_threshold"`
	SuspiciousWindow     time.Duration `mapstructure:"suspicious_window"`
	RateLimitThreshold   int           `mapstructure:"rate_limit_threshold"`
	RateLimitWindow      time.Duration `mapstructure:"rate_limit_window"`
}

// DefaultConfig returns the standard rule thresholds.
func DefaultConfig() Config {
	return Config{
		FailedLoginThreshold: 5,
		FailedLoginWindow:    15 * time.Minute,
		SuspiciousThreshold:  3,
		SuspiciousWindow:     60 * time.Minute,
		RateLimitThreshold:   10,
		RateLimitWindow:      5 * time.Minute,
	}
}

// MaxWindow returns the longest correlation window across all rules. The event
// store lookback must be at least this long.
func (c Config) MaxWindow() time.Duration {
	max := c.FailedLoginWindow
	if c.SuspiciousWindow > max {
		max = c.SuspiciousWindow
	}
	if c.RateLimitWindow > max {
		max = c.RateLimitWindow
	}
	return max
}

// Detector evaluates a newly committed event against the event store.
type Detector struct {
	store *eventstore.Store
	cfg   Config
}

// New creates a detector backed by the given event store.
func New(store *eventstore.Store, cfg Config) *Detector {
	return &Detector{store: store, cfg: cfg}
}

// Detect returns the names of all patterns the event completes. Rules are
// independent; multiple patterns may fire for a single event. Detection only
// considers events already committed to the store, which includes the event
// under evaluation.
func (d *Detector) Detect(ev *models.SecurityEvent) []string {
	var patterns []string

	if ev.Type == models.EventLoginAttempt && ev.Failed() {
		recent := d.store.Recent(models.EventLoginAttempt, ev.Source, d.cfg.FailedLoginWindow)
		failed := 0
		for i := range recent {
			if recent[i].Failed() {
				failed++
			}
		}
		if failed >= d.cfg.FailedLoginThreshold {
			patterns = append(patterns, PatternRepeatedFailedLogins)
		}
	}

	if ev.Type == models.EventSuspiciousActivity {
		recent := d.store.Recent(models.EventSuspiciousActivity, ev.Source, d.cfg.SuspiciousWindow)
		if len(recent) >= d.cfg.SuspiciousThreshold {
			patterns = append(patterns, PatternSuspiciousActivity)
		}
	}

	if ev.Type == models.EventRateLimitViolation {
		recent := d.store.Recent(models.EventRateLimitViolation, ev.Source, d.cfg.RateLimitWindow)
		if len(recent) >= d.cfg.RateLimitThreshold {
			patterns = append(patterns, PatternRateLimitViolation)
		}
	}

	return patterns
}
