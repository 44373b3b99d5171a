// Package scheduler provides periodic execution of the engine's drain and
// decay tasks.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/telhawk-systems/sentinel/internal/metrics"
)

// Tasks are the periodic operations to run. Each tick is guarded so a slow
// run never overlaps with the next one for the same task.
type Tasks struct {
	Drain func(ctx context.Context)
	Decay func(ctx context.Context)
}

// Scheduler drives the drain and decay loops on independent intervals.
type Scheduler struct {
	tasks         Tasks
	drainInterval time.Duration
	decayInterval time.Duration
	logger        *slog.Logger

	drainRunning atomic.Bool
	decayRunning atomic.Bool

	stop    chan struct{}
	stopped chan struct{}
}

// New creates a scheduler for the given tasks and intervals.
func New(tasks Tasks, drainInterval, decayInterval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:         tasks,
		drainInterval: drainInterval,
		decayInterval: decayInterval,
		logger:        logger,
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Start begins the scheduler loop. This should be called in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.stopped)

	s.logger.Info("scheduler started",
		"drain_interval", s.drainInterval, "decay_interval", s.decayInterval)

	drainTicker := time.NewTicker(s.drainInterval)
	defer drainTicker.Stop()
	decayTicker := time.NewTicker(s.decayInterval)
	defer decayTicker.Stop()

	for {
		select {
		case <-drainTicker.C:
			s.runGuarded(ctx, "drain", &s.drainRunning, s.tasks.Drain)
		case <-decayTicker.C:
			s.runGuarded(ctx, "decay", &s.decayRunning, s.tasks.Decay)
		case <-s.stop:
			s.logger.Info("scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		}
	}
}

// Stop signals the scheduler to stop and waits for it to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.stopped
}

// TriggerDrain runs the drain task once outside the ticker, subject to the
// same re-entrancy guard. Returns false if a drain was already running.
func (s *Scheduler) TriggerDrain(ctx context.Context) bool {
	if s.tasks.Drain == nil {
		return false
	}
	if !s.drainRunning.CompareAndSwap(false, true) {
		return false
	}
	defer s.drainRunning.Store(false)
	s.tasks.Drain(ctx)
	return true
}

// runGuarded starts fn unless a previous run of the same task is still in
// flight, in which case the tick is skipped and counted. Tasks run off the
// scheduler loop so a slow drain never delays decay ticks.
func (s *Scheduler) runGuarded(ctx context.Context, name string, running *atomic.Bool, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	if !running.CompareAndSwap(false, true) {
		metrics.TicksSkipped.WithLabelValues(name).Inc()
		s.logger.Warn("tick skipped, previous run still in flight", "task", name)
		return
	}
	go func() {
		defer running.Store(false)
		fn(ctx)
	}()
}
