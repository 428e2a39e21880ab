// Package review implements the obligation review ledger: a tamper-evident
// audit chain, a content-fingerprint staleness detector, a lease-based review
// lock, and the state machine governing review lifecycle.
package review

import (
	"time"

	"github.com/google/uuid"

	id "attest/pkg/domain"
)

// Status is a review lifecycle state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInReview      Status = "in_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusNeedsRevision Status = "needs_revision"
	// StatusStale marks a review whose target changed after the review began.
	StatusStale Status = "stale"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInReview, StatusApproved, StatusRejected, StatusNeedsRevision, StatusStale:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Priority is a review priority level with SLA implications.
type Priority string

const (
	PriorityUrgent Priority = "urgent" // <4 hours response
	PriorityHigh   Priority = "high"   // <24 hours response
	PriorityNormal Priority = "normal" // <72 hours response
	PriorityLow    Priority = "low"    // <1 week response
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Action identifies an auditable ledger action.
type Action string

const (
	ActionReviewSubmitted    Action = "review_submitted"
	ActionReviewAssigned     Action = "review_assigned"
	ActionReviewStarted      Action = "review_started"
	ActionDecisionRecorded   Action = "decision_recorded"
	ActionMappingMarkedStale Action = "mapping_marked_stale"
	// ActionReviewLeaseExpired records an abandoned IN_REVIEW request being
	// reconciled back to PENDING after its lease lapsed.
	ActionReviewLeaseExpired Action = "review_lease_expired"
)

// TargetSnapshot is the ledger's view of an external review target at one
// point in time. The fingerprint covers only the review-relevant fields;
// UpdatedAt and Annotations are metadata and never influence staleness.
type TargetSnapshot struct {
	TargetID        id.TargetID       `json:"target_id"`
	ObligationID    string            `json:"obligation_id"`
	ControlID       string            `json:"control_id"`
	Rationale       string            `json:"rationale"`
	EvidenceURLs    []string          `json:"evidence_urls"`
	ConfidenceScore float64           `json:"confidence_score"`
	UpdatedAt       time.Time         `json:"updated_at,omitempty"`
	Annotations     map[string]string `json:"annotations,omitempty"`
}

// Request is an immutable review request. Status lives with the service's
// request store, not on the request itself; the request row is never rewritten
// after creation.
type Request struct {
	ID                id.RequestID  `json:"id"`
	TargetID          id.TargetID   `json:"target_id"`
	TargetFingerprint string        `json:"target_fingerprint"`
	Priority          Priority      `json:"priority"`
	SubmittedAt       time.Time     `json:"submitted_at"`
	SubmittedBy       id.ReviewerID `json:"submitted_by"`
	EvidenceRefs      []string      `json:"evidence_refs"`
	Rationale         string        `json:"rationale"`
}

// Decision is an immutable review decision, created exactly once per
// successful RecordDecision call.
type Decision struct {
	RequestID           id.RequestID  `json:"request_id"`
	ReviewerID          id.ReviewerID `json:"reviewer_id"`
	Decision            Status        `json:"decision"`
	Comments            string        `json:"comments"`
	EvidenceReviewed    []string      `json:"evidence_reviewed"`
	DecidedAt           time.Time     `json:"decided_at"`
	DurationMinutes     int           `json:"duration_minutes"`
	FingerprintVerified bool          `json:"fingerprint_verified"`
}

// Payload is the canonical context map hashed into an audit entry.
type Payload map[string]any

// AuditEntry is one immutable link of the hash chain. Sequence is assigned by
// the ledger under the persistence serialization point; ChainHash and
// PreviousHash are first-class fields and excluded from the hashed payload.
type AuditEntry struct {
	Sequence     int64     `json:"sequence"`
	ID           uuid.UUID `json:"id"`
	Action       Action    `json:"action"`
	Actor        string    `json:"actor"`
	Payload      Payload   `json:"payload"`
	PreviousHash string    `json:"previous_hash"`
	ChainHash    string    `json:"chain_hash"`
	Timestamp    time.Time `json:"timestamp"`
}

// ChainVerificationResult reports the outcome of a hash chain walk. A broken
// chain is a normal, reportable result, not an error.
type ChainVerificationResult struct {
	Valid           bool      `json:"valid"`
	TotalEntries    int       `json:"total_entries"`
	VerifiedEntries int       `json:"verified_entries"`
	// BreakSequence, ExpectedHash, and ActualHash describe the earliest
	// broken entry. Meaningful only when Valid is false.
	BreakSequence int64     `json:"break_sequence,omitempty"`
	ExpectedHash  string    `json:"expected_hash,omitempty"`
	ActualHash    string    `json:"actual_hash,omitempty"`
	VerifiedAt    time.Time `json:"verified_at"`
}

// Lock is an exclusive review lease on a target. At most one active lock
// exists per target; expired locks are reclaimed lazily on the next access.
type Lock struct {
	TargetID   id.TargetID   `json:"target_id"`
	Holder     id.ReviewerID `json:"holder"`
	LockID     uuid.UUID     `json:"lock_id"`
	AcquiredAt time.Time     `json:"acquired_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// Active reports whether the lease is unexpired at the given instant.
func (l Lock) Active(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

// Reviewer is the directory record for a reviewer. Identity and role
// management are external; the ledger only checks workload capacity on
// assignment.
type Reviewer struct {
	ID               id.ReviewerID `json:"id"`
	Email            string        `json:"email"`
	Role             string        `json:"role"`
	Certifications   []string      `json:"certifications"`
	WorkloadCapacity int           `json:"workload_capacity"`
}

// Report aggregates finalized, chain-verified review activity over a time
// range for regulators.
type Report struct {
	ID                 id.ReportID    `json:"id"`
	GeneratedAt        time.Time      `json:"generated_at"`
	GeneratedBy        string         `json:"generated_by"`
	From               time.Time      `json:"from"`
	To                 time.Time      `json:"to"`
	TotalReviews       int            `json:"total_reviews"`
	ReviewsByStatus    map[Status]int `json:"reviews_by_status"`
	CompletionRate     float64        `json:"completion_rate"`
	AvgDurationMinutes float64        `json:"avg_duration_minutes"`
	SLABreachCount     int            `json:"sla_breach_count"`
	ChainEntriesInRange int           `json:"chain_entries_in_range"`
}
