// Package store defines the persistence contracts for the review ledger.
// Each contract has an in-memory implementation for tests and single-node
// deployments and a production implementation (PostgreSQL, Redis) in its
// subpackage.
package store

import (
	"context"
	"time"

	"attest/internal/review"
	id "attest/pkg/domain"
)

// EntryStore persists the audit hash chain. Append is the chain's single
// serialization point: it assigns the next sequence, derives the chain hash
// from the current tip, and persists atomically. Concurrent appends must
// never produce duplicate or gapped sequences.
type EntryStore interface {
	// Append persists a new entry from the given action, actor, payload and
	// timestamp, returning the stored entry with Sequence, PreviousHash and
	// ChainHash populated.
	Append(ctx context.Context, action review.Action, actor string, payload review.Payload, ts time.Time) (*review.AuditEntry, error)

	// List returns every entry ordered by sequence.
	List(ctx context.Context) ([]review.AuditEntry, error)

	// ListRange returns entries with from <= timestamp < to, ordered by
	// sequence.
	ListRange(ctx context.Context, from, to time.Time) ([]review.AuditEntry, error)
}

// StoredRequest pairs an immutable review request with its mutable lifecycle
// state. The request row is written once; only Status and AssignedTo change.
type StoredRequest struct {
	Request    review.Request
	Status     review.Status
	AssignedTo id.ReviewerID
}

// RequestStore persists review requests and their lifecycle state.
type RequestStore interface {
	Create(ctx context.Context, req review.Request, status review.Status) error
	Get(ctx context.Context, requestID id.RequestID) (*StoredRequest, error)
	// UpdateStatus sets the request's status. Transition legality is the
	// service's concern, not the store's.
	UpdateStatus(ctx context.Context, requestID id.RequestID, status review.Status) error
	Assign(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID) error
	// CountAssigned counts non-terminal requests assigned to the reviewer.
	CountAssigned(ctx context.Context, reviewerID id.ReviewerID) (int, error)
	// ListActive returns requests whose status still has outgoing transitions.
	ListActive(ctx context.Context) ([]StoredRequest, error)
	// ListRange returns requests submitted with from <= submitted_at < to.
	ListRange(ctx context.Context, from, to time.Time) ([]StoredRequest, error)
}

// DecisionStore persists immutable review decisions, one per request.
type DecisionStore interface {
	Create(ctx context.Context, decision review.Decision) error
	Get(ctx context.Context, requestID id.RequestID) (*review.Decision, error)
	// ListRange returns decisions with from <= decided_at < to.
	ListRange(ctx context.Context, from, to time.Time) ([]review.Decision, error)
}

// LockStore manages exclusive review leases. Acquire is compare-and-swap:
// exactly one of N concurrent acquirers for a free target wins; the same
// holder re-acquiring renews the lease without changing its lock ID. Expired
// leases are reclaimed lazily by the next Acquire, never by a background
// process.
type LockStore interface {
	// Acquire takes or renews the lease on targetID. Contention returns a
	// *review.LockHeldError carrying the current holder.
	Acquire(ctx context.Context, targetID id.TargetID, holder id.ReviewerID, ttl time.Duration) (*review.Lock, error)

	// Release removes holder's lease. Releasing a lock held by someone else
	// returns review.ErrLockOwnership; releasing a free or expired lock is a
	// no-op, the lease is treated as already released.
	Release(ctx context.Context, targetID id.TargetID, holder id.ReviewerID) error

	// Get returns the active lease on targetID, or nil when the target is
	// free or the lease has lapsed.
	Get(ctx context.Context, targetID id.TargetID) (*review.Lock, error)

	// ActiveLocks returns all unexpired leases.
	ActiveLocks(ctx context.Context) ([]review.Lock, error)
}

// TxRunner runs fn atomically. Store implementations that share a database
// observe the transaction through the context; the in-memory stores use the
// passthrough runner since their individual operations are already atomic.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughTx is a TxRunner without transactional semantics.
type PassthroughTx struct{}

func (PassthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
