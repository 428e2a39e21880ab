package review

import (
	"time"

	id "attest/pkg/domain"
)

// Event is a domain event emitted by the ledger service. Every status-changing
// operation publishes exactly one event, after (or atomically with) its audit
// entry, so consumers never see an event unbacked by ledger evidence.
type Event interface {
	// EventName returns the stable wire name of the event.
	EventName() string
}

// ReviewRequested is published when a target is submitted for review.
type ReviewRequested struct {
	RequestID         id.RequestID  `json:"request_id"`
	TargetID          id.TargetID   `json:"target_id"`
	TargetFingerprint string        `json:"target_fingerprint"`
	Priority          Priority      `json:"priority"`
	SubmittedBy       id.ReviewerID `json:"submitted_by"`
	SubmittedAt       time.Time     `json:"submitted_at"`
	SLADeadline       time.Time     `json:"sla_deadline"`
}

func (ReviewRequested) EventName() string { return "review_requested" }

// ReviewAssigned is published when a reviewer is assigned to a request.
type ReviewAssigned struct {
	RequestID        id.RequestID  `json:"request_id"`
	ReviewerID       id.ReviewerID `json:"reviewer_id"`
	AssignedBy       id.ReviewerID `json:"assigned_by"`
	AssignedAt       time.Time     `json:"assigned_at"`
	ReviewerWorkload int           `json:"reviewer_workload"`
	Priority         Priority      `json:"priority"`
}

func (ReviewAssigned) EventName() string { return "review_assigned" }

// ReviewStarted is published when a reviewer acquires the lock and the review
// enters IN_REVIEW.
type ReviewStarted struct {
	RequestID  id.RequestID  `json:"request_id"`
	TargetID   id.TargetID   `json:"target_id"`
	ReviewerID id.ReviewerID `json:"reviewer_id"`
	LockID     string        `json:"lock_id"`
	StartedAt  time.Time     `json:"started_at"`
	LockExpiry time.Time     `json:"lock_expiry"`
}

func (ReviewStarted) EventName() string { return "review_started" }

// DecisionRecorded is published when a decision commits, carrying the chain
// hash of its audit entry for external reference.
type DecisionRecorded struct {
	RequestID       id.RequestID  `json:"request_id"`
	TargetID        id.TargetID   `json:"target_id"`
	ReviewerID      id.ReviewerID `json:"reviewer_id"`
	Decision        Status        `json:"decision"`
	DecidedAt       time.Time     `json:"decided_at"`
	DurationMinutes int           `json:"duration_minutes"`
	ChainHash       string        `json:"chain_hash"`
}

func (DecisionRecorded) EventName() string { return "decision_recorded" }

// MappingMarkedStale is published when a decision attempt finds the target
// mutated since submission.
type MappingMarkedStale struct {
	RequestID           id.RequestID `json:"request_id"`
	TargetID            id.TargetID  `json:"target_id"`
	OriginalFingerprint string       `json:"original_fingerprint"`
	CurrentFingerprint  string       `json:"current_fingerprint"`
	DetectedAt          time.Time    `json:"detected_at"`
}

func (MappingMarkedStale) EventName() string { return "mapping_marked_stale" }

// ReviewSLABreached is published by the SLA sweep for each overdue review.
type ReviewSLABreached struct {
	RequestID    id.RequestID  `json:"request_id"`
	Priority     Priority      `json:"priority"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	SLADeadline  time.Time     `json:"sla_deadline"`
	HoursOverdue float64       `json:"hours_overdue"`
	AssignedTo   id.ReviewerID `json:"assigned_to,omitempty"`
	Status       Status        `json:"status"`
}

func (ReviewSLABreached) EventName() string { return "review_sla_breached" }

// ChainIntegrityVerified is published after every integrity verification,
// valid or not.
type ChainIntegrityVerified struct {
	VerificationID  string    `json:"verification_id"`
	TotalEntries    int       `json:"total_entries"`
	VerifiedEntries int       `json:"verified_entries"`
	ChainValid      bool      `json:"chain_valid"`
	LastEntryHash   string    `json:"last_entry_hash,omitempty"`
	VerifiedAt      time.Time `json:"verified_at"`
	TriggeredBy     string    `json:"triggered_by"`
}

func (ChainIntegrityVerified) EventName() string { return "chain_integrity_verified" }

// AuditTrailViolation is published when verification finds a broken link.
// Severity is always critical; the chain is never auto-repaired.
type AuditTrailViolation struct {
	BreakSequence int64     `json:"break_sequence"`
	ExpectedHash  string    `json:"expected_hash"`
	ActualHash    string    `json:"actual_hash"`
	TotalEntries  int       `json:"total_entries"`
	DetectedAt    time.Time `json:"detected_at"`
}

func (AuditTrailViolation) EventName() string { return "audit_trail_violation" }
