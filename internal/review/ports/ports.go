// Package ports defines the ledger's external collaborators. Persistence,
// identity, notification delivery, and event transport are consumed through
// these narrow interfaces so any backing technology can implement them.
package ports

import (
	"context"
	"time"

	"attest/internal/review"
	id "attest/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks

// TargetRepository loads review target snapshots for fingerprinting. The
// ledger never touches target content beyond the snapshot's enumerated
// fields. Load returns sentinel.ErrNotFound (wrapped) for unknown targets.
type TargetRepository interface {
	Load(ctx context.Context, targetID id.TargetID) (*review.TargetSnapshot, error)
}

// ReviewerDirectory resolves reviewer records. Role and session management
// live in the external identity system.
type ReviewerDirectory interface {
	Load(ctx context.Context, reviewerID id.ReviewerID) (*review.Reviewer, error)
}

// EventPublisher delivers domain events. Fire-and-forget: the ledger logs
// delivery failures but never rolls back committed state because of them.
type EventPublisher interface {
	Publish(ctx context.Context, event review.Event) error
}

// Clock supplies time so lease math and audit timestamps are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
