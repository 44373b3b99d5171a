// Package containment defines the interface for automated mitigation actions.
// Actual enforcement (firewall rules, session store mutation) belongs to the
// hosting platform; the engine's responsibility ends at invoking these.
package containment

import (
	"context"
	"sync"

	"github.com/telhawk-systems/sentinel/internal/models"
)

// Executor applies mitigation actions for an incident. Implementations are
// injected by the host; calls are bounded by a timeout at the call site and
// a failure is recorded as a failed incident action, never re-raised.
type Executor interface {
	ApplyRateLimit(ctx context.Context, incident *models.SecurityIncident) error
	BlockSource(ctx context.Context, incident *models.SecurityIncident) error
	TerminateSessions(ctx context.Context, incident *models.SecurityIncident) error
}

// Noop is an Executor that does nothing. Used when no enforcement backend is
// configured.
type Noop struct{}

func (Noop) ApplyRateLimit(context.Context, *models.SecurityIncident) error    { return nil }
func (Noop) BlockSource(context.Context, *models.SecurityIncident) error       { return nil }
func (Noop) TerminateSessions(context.Context, *models.SecurityIncident) error { return nil }

// Recorder is a test double that records calls and returns a configurable
// error.
type Recorder struct {
	mu    sync.Mutex
	calls []string
	Err   error
}

func (r *Recorder) ApplyRateLimit(_ context.Context, _ *models.SecurityIncident) error {
	return r.record("apply_rate_limit")
}

func (r *Recorder) BlockSource(_ context.Context, _ *models.SecurityIncident) error {
	return r.record("block_source")
}

func (r *Recorder) TerminateSessions(_ context.Context, _ *models.SecurityIncident) error {
	return r.record("terminate_sessions")
}

// Calls returns the actions invoked so far, in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Recorder) record(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	return r.Err
}
