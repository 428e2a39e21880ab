package handler

import (
	"attest/internal/review"
	"attest/internal/review/store"
)

// ReviewResponse is the wire shape for GET /reviews/{requestID}. It flattens
// the immutable request with its current lifecycle state.
type ReviewResponse struct {
	review.Request
	Status     review.Status `json:"status"`
	AssignedTo string        `json:"assigned_to,omitempty"`
}

func newReviewResponse(stored *store.StoredRequest) ReviewResponse {
	return ReviewResponse{
		Request:    stored.Request,
		Status:     stored.Status,
		AssignedTo: stored.AssignedTo.String(),
	}
}

// AssignResponse acknowledges a successful assignment.
type AssignResponse struct {
	RequestID  string `json:"request_id"`
	ReviewerID string `json:"reviewer_id"`
}

// ActiveLocksResponse lists the active review leases.
type ActiveLocksResponse struct {
	Locks []review.Lock `json:"locks"`
}
