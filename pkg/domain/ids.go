// Package domain holds the identifier types shared across the review ledger.
// IDs are distinct string types so a target ID can never be passed where a
// request ID is expected.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TargetID identifies an external review target (an obligation-to-control
// mapping). The ledger treats it as opaque; it only ever touches the target's
// fingerprint, never its content.
type TargetID string

// ReviewerID identifies a reviewer. Identity management is external; the
// ledger records the ID as the lock holder and decision author.
type ReviewerID string

// RequestID identifies a review request. Format: "req_" + 12 hex characters.
type RequestID string

// ReportID identifies an exported audit report. Format: "rpt_" + 8 hex
// characters.
type ReportID string

const (
	requestIDPrefix = "req_"
	requestIDHexLen = 12
	reportIDPrefix  = "rpt_"
	reportIDHexLen  = 8
)

// NewRequestID generates a fresh request ID.
func NewRequestID() RequestID {
	return RequestID(requestIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:requestIDHexLen])
}

// NewReportID generates a fresh report ID.
func NewReportID() ReportID {
	return ReportID(reportIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:reportIDHexLen])
}

// ParseRequestID validates the request ID shape. It rejects anything that
// could not have been produced by NewRequestID so malformed path parameters
// fail fast at the transport boundary.
func ParseRequestID(s string) (RequestID, error) {
	if err := validateHexID(s, requestIDPrefix, requestIDHexLen); err != nil {
		return "", fmt.Errorf("parse request id: %w", err)
	}
	return RequestID(s), nil
}

// ParseReportID validates the report ID shape.
func ParseReportID(s string) (ReportID, error) {
	if err := validateHexID(s, reportIDPrefix, reportIDHexLen); err != nil {
		return "", fmt.Errorf("parse report id: %w", err)
	}
	return ReportID(s), nil
}

func validateHexID(s, prefix string, hexLen int) error {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return fmt.Errorf("missing %q prefix", prefix)
	}
	if len(rest) != hexLen {
		return fmt.Errorf("expected %d hex characters, got %d", hexLen, len(rest))
	}
	for _, c := range rest {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("invalid hex character %q", c)
		}
	}
	return nil
}

func (t TargetID) String() string   { return string(t) }
func (r ReviewerID) String() string { return string(r) }
func (r RequestID) String() string  { return string(r) }
func (r ReportID) String() string   { return string(r) }
