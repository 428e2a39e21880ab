// Package chain persists the tamper-evident audit chain.
package chain

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"attest/internal/review"
)

// MemoryStore keeps the chain in process memory. The store mutex is the
// chain's serialization point: appends hold it across the read-tip /
// compute-hash / insert window.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []review.AuditEntry
}

// NewMemory creates an empty in-memory chain store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, action review.Action, actor string, payload review.Payload, ts time.Time) (*review.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previousHash := review.GenesisHash
	var sequence int64 = 1
	if n := len(s.entries); n > 0 {
		tip := s.entries[n-1]
		previousHash = tip.ChainHash
		sequence = tip.Sequence + 1
	}

	hash, err := review.ComputeChainHash(previousHash, payload, ts, actor)
	if err != nil {
		return nil, err
	}

	entry := review.AuditEntry{
		Sequence:     sequence,
		ID:           uuid.New(),
		Action:       action,
		Actor:        actor,
		Payload:      clonePayload(payload),
		PreviousHash: previousHash,
		ChainHash:    hash,
		Timestamp:    ts.UTC(),
	}
	s.entries = append(s.entries, entry)

	out := entry
	out.Payload = clonePayload(entry.Payload)
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]review.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]review.AuditEntry, len(s.entries))
	for i, entry := range s.entries {
		out[i] = entry
		out[i].Payload = clonePayload(entry.Payload)
	}
	return out, nil
}

func (s *MemoryStore) ListRange(ctx context.Context, from, to time.Time) ([]review.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]review.AuditEntry, 0)
	for _, entry := range s.entries {
		if entry.Timestamp.Before(from) || !entry.Timestamp.Before(to) {
			continue
		}
		cloned := entry
		cloned.Payload = clonePayload(entry.Payload)
		out = append(out, cloned)
	}
	return slices.Clip(out), nil
}

func clonePayload(payload review.Payload) review.Payload {
	if payload == nil {
		return nil
	}
	return maps.Clone(payload)
}
