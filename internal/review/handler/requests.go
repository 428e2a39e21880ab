package handler

// SubmitRequest is the body for POST /reviews.
type SubmitRequest struct {
	TargetID     string   `json:"target_id"`
	Priority     string   `json:"priority"`
	Rationale    string   `json:"rationale"`
	EvidenceRefs []string `json:"evidence_refs"`
}

// AssignRequest is the body for POST /reviews/{requestID}/assign.
type AssignRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

// DecisionRequest is the body for POST /reviews/{requestID}/decision.
type DecisionRequest struct {
	Decision         string   `json:"decision"`
	Comments         string   `json:"comments"`
	EvidenceReviewed []string `json:"evidence_reviewed"`
}
