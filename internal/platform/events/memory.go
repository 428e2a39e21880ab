// Package events provides EventPublisher implementations: an in-process
// publisher for single-node deployments and tests, and a Kafka publisher for
// production.
package events

import (
	"context"
	"slices"
	"sync"

	"attest/internal/review"
)

// MemoryPublisher buffers events in memory. Useful for deployments without a
// broker and for inspecting emitted events in tests.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []review.Event
}

// NewMemory creates an empty in-memory publisher.
func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, event review.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (p *MemoryPublisher) Events() []review.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.events)
}

// Close is a no-op for the in-memory publisher.
func (p *MemoryPublisher) Close() error { return nil }
