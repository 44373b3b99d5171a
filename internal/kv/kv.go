// Package kv defines the persistent store collaborator used to durably record
// events, alerts, incidents, and the threat-level snapshot.
package kv

import (
	"context"
	"sync"
)

// Store is the host-provided persistence port. Failures from caller-facing
// operations propagate as explicit errors; background write failures are
// logged by the engine, not swallowed silently.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	Close() error
}

// Memory is an in-process Store used when no durable backend is configured
// and in tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
