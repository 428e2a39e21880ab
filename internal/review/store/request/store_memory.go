// Package request persists review requests and their lifecycle state.
package request

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"attest/internal/review"
	"attest/internal/review/store"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// MemoryStore keeps review requests in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*store.StoredRequest
	order    []id.RequestID
}

// NewMemory creates an empty in-memory request store.
func NewMemory() *MemoryStore {
	return &MemoryStore{requests: make(map[id.RequestID]*store.StoredRequest)}
}

func (s *MemoryStore) Create(ctx context.Context, req review.Request, status review.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("request %s: %w", req.ID, sentinel.ErrConflict)
	}
	req.EvidenceRefs = slices.Clone(req.EvidenceRefs)
	s.requests[req.ID] = &store.StoredRequest{Request: req, Status: status}
	s.order = append(s.order, req.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, requestID id.RequestID) (*store.StoredRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	out := *stored
	out.Request.EvidenceRefs = slices.Clone(stored.Request.EvidenceRefs)
	return &out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, requestID id.RequestID, status review.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	stored.Status = status
	return nil
}

func (s *MemoryStore) Assign(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	stored.AssignedTo = reviewerID
	return nil
}

func (s *MemoryStore) CountAssigned(ctx context.Context, reviewerID id.ReviewerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, stored := range s.requests {
		if stored.AssignedTo == reviewerID && !stored.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]store.StoredRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.StoredRequest, 0)
	for _, reqID := range s.order {
		stored := s.requests[reqID]
		if stored.Status.Terminal() {
			continue
		}
		cloned := *stored
		cloned.Request.EvidenceRefs = slices.Clone(stored.Request.EvidenceRefs)
		out = append(out, cloned)
	}
	return slices.Clip(out), nil
}

func (s *MemoryStore) ListRange(ctx context.Context, from, to time.Time) ([]store.StoredRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.StoredRequest, 0)
	for _, reqID := range s.order {
		stored := s.requests[reqID]
		submitted := stored.Request.SubmittedAt
		if submitted.Before(from) || !submitted.Before(to) {
			continue
		}
		cloned := *stored
		cloned.Request.EvidenceRefs = slices.Clone(stored.Request.EvidenceRefs)
		out = append(out, cloned)
	}
	return slices.Clip(out), nil
}
