package review

// validTransitions is the complete review state machine. APPROVED and
// REJECTED are terminal; STALE and NEEDS_REVISION route back through PENDING
// so a review always restarts from submission, never skips straight to a
// decision.
var validTransitions = map[Status][]Status{
	StatusPending:       {StatusInReview},
	StatusInReview:      {StatusApproved, StatusRejected, StatusNeedsRevision, StatusStale},
	StatusNeedsRevision: {StatusPending},
	StatusStale:         {StatusPending},
	StatusApproved:      {},
	StatusRejected:      {},
}

// CanTransition reports whether from → to is a legal transition. It is total
// over all status pairs: unknown statuses, same-state transitions, and any
// path out of a terminal state are rejected.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a typed error when from → to is illegal.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
