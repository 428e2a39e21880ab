// Package lock implements the exclusive review lease store.
package lock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"attest/internal/review"
	"attest/internal/review/ports"
	id "attest/pkg/domain"
)

// MemoryStore keeps review leases in process memory. The mutex makes every
// acquire a compare-and-swap: exactly one of N concurrent acquirers for a
// free target wins.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[id.TargetID]review.Lock
	clock ports.Clock
}

// NewMemory creates an empty in-memory lock store.
func NewMemory(clock ports.Clock) *MemoryStore {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &MemoryStore{locks: make(map[id.TargetID]review.Lock), clock: clock}
}

func (s *MemoryStore) Acquire(ctx context.Context, targetID id.TargetID, holder id.ReviewerID, ttl time.Duration) (*review.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	existing, held := s.locks[targetID]
	if held && !existing.Active(now) {
		// Lazy reclamation: the lapsed lease is gone the moment anyone asks.
		delete(s.locks, targetID)
		held = false
	}

	if held {
		if existing.Holder != holder {
			return nil, &review.LockHeldError{TargetID: targetID, Holder: existing.Holder}
		}
		// Idempotent renewal: same lease, extended expiry.
		existing.ExpiresAt = now.Add(ttl)
		s.locks[targetID] = existing
		out := existing
		return &out, nil
	}

	lock := review.Lock{
		TargetID:   targetID,
		Holder:     holder,
		LockID:     uuid.New(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	s.locks[targetID] = lock
	out := lock
	return &out, nil
}

func (s *MemoryStore) Release(ctx context.Context, targetID id.TargetID, holder id.ReviewerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	existing, held := s.locks[targetID]
	if !held || !existing.Active(now) {
		// Already released: a free or lapsed lease makes release a no-op.
		delete(s.locks, targetID)
		return nil
	}
	if existing.Holder != holder {
		return fmt.Errorf("release lock on %s held by %s: %w", targetID, existing.Holder, review.ErrLockOwnership)
	}
	delete(s.locks, targetID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, targetID id.TargetID) (*review.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, held := s.locks[targetID]
	if !held {
		return nil, nil
	}
	if !existing.Active(s.clock.Now()) {
		delete(s.locks, targetID)
		return nil, nil
	}
	out := existing
	return &out, nil
}

func (s *MemoryStore) ActiveLocks(ctx context.Context) ([]review.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	out := make([]review.Lock, 0, len(s.locks))
	for targetID, lock := range s.locks {
		if !lock.Active(now) {
			delete(s.locks, targetID)
			continue
		}
		out = append(out, lock)
	}
	slices.SortFunc(out, func(a, b review.Lock) int {
		return a.AcquiredAt.Compare(b.AcquiredAt)
	})
	return out, nil
}
