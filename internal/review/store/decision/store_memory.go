// Package decision persists immutable review decisions.
package decision

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"attest/internal/review"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// MemoryStore keeps decisions in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[id.RequestID]review.Decision
	order     []id.RequestID
}

// NewMemory creates an empty in-memory decision store.
func NewMemory() *MemoryStore {
	return &MemoryStore{decisions: make(map[id.RequestID]review.Decision)}
}

func (s *MemoryStore) Create(ctx context.Context, decision review.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[decision.RequestID]; exists {
		// One decision per request, ever.
		return fmt.Errorf("decision for %s: %w", decision.RequestID, sentinel.ErrConflict)
	}
	decision.EvidenceReviewed = slices.Clone(decision.EvidenceReviewed)
	s.decisions[decision.RequestID] = decision
	s.order = append(s.order, decision.RequestID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, requestID id.RequestID) (*review.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	decision, ok := s.decisions[requestID]
	if !ok {
		return nil, fmt.Errorf("decision for %s: %w", requestID, sentinel.ErrNotFound)
	}
	decision.EvidenceReviewed = slices.Clone(decision.EvidenceReviewed)
	return &decision, nil
}

func (s *MemoryStore) ListRange(ctx context.Context, from, to time.Time) ([]review.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]review.Decision, 0)
	for _, reqID := range s.order {
		decision := s.decisions[reqID]
		if decision.DecidedAt.Before(from) || !decision.DecidedAt.Before(to) {
			continue
		}
		decision.EvidenceReviewed = slices.Clone(decision.EvidenceReviewed)
		out = append(out, decision)
	}
	return slices.Clip(out), nil
}
