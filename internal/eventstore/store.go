// Package eventstore provides the in-memory event buffer and ingestion queue.
package eventstore

import (
	"sync"
	"time"

	"github.com/telhawk-systems/sentinel/internal/models"
)

// Store holds recently observed events for correlation plus a FIFO queue of
// events awaiting processing. Committed events are retained for the lookback
// window and evicted lazily on each queue drain.
type Store struct {
	mu       sync.Mutex
	queue    []*models.SecurityEvent
	events   []*models.SecurityEvent // committed, in arrival order
	lookback time.Duration
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the time source. Used by tests to advance virtual time.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store retaining committed events for the given lookback window.
// The window must cover the longest correlation window in use.
func New(lookback time.Duration, opts ...Option) *Store {
	s := &Store{
		lookback: lookback,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue appends an event to the ingestion queue. It never blocks.
func (s *Store) Enqueue(ev *models.SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, ev)
}

// QueueDepth returns the number of events awaiting processing.
func (s *Store) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// DrainQueue removes and returns all queued events in arrival order.
// Expired committed events are garbage-collected as part of the same pass.
func (s *Store) DrainQueue() []*models.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := s.queue
	s.queue = nil
	s.evictLocked(s.now())
	return drained
}

// Commit adds a processed event to the correlation buffer.
func (s *Store) Commit(ev *models.SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Recent returns copies of all committed events of the given type and source
// observed within the window ending now. Used by the pattern detector.
func (s *Store) Recent(t models.EventType, source string, window time.Duration) []models.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	var result []models.SecurityEvent
	for _, ev := range s.events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		if ev.Type == t && ev.Source == source {
			result = append(result, *ev)
		}
	}
	return result
}

// Stats returns the current queue depth and committed event count.
func (s *Store) Stats() (queued, stored int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), len(s.events)
}

// evictLocked drops committed events older than the lookback window.
// Caller must hold s.mu.
func (s *Store) evictLocked(now time.Time) {
	cutoff := now.Add(-s.lookback)
	i := 0
	for i < len(s.events) && s.events[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.events = append([]*models.SecurityEvent(nil), s.events[i:]...)
	}
}
