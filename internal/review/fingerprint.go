package review

import (
	"encoding/hex"
	"encoding/json"
	"slices"

	"golang.org/x/crypto/blake2b"
)

// canonicalContent is the enumerated, stable subset of target fields the
// fingerprint covers. Field order is fixed by the struct; evidence URLs are
// sorted so representation order never changes the digest. Metadata fields
// (UpdatedAt, Annotations) are deliberately absent so unrelated churn does not
// spuriously flag staleness.
type canonicalContent struct {
	ObligationID    string   `json:"obligation_id"`
	ControlID       string   `json:"control_id"`
	Rationale       string   `json:"rationale"`
	EvidenceURLs    []string `json:"evidence_urls"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// Fingerprint computes the deterministic content digest of a target snapshot.
// Identical logical content yields identical digests regardless of evidence
// ordering; any change to an enumerated field changes the digest.
func Fingerprint(snapshot TargetSnapshot) string {
	urls := slices.Clone(snapshot.EvidenceURLs)
	slices.Sort(urls)
	if urls == nil {
		urls = []string{}
	}

	content, err := json.Marshal(canonicalContent{
		ObligationID:    snapshot.ObligationID,
		ControlID:       snapshot.ControlID,
		Rationale:       snapshot.Rationale,
		EvidenceURLs:    urls,
		ConfidenceScore: snapshot.ConfidenceScore,
	})
	if err != nil {
		// canonicalContent contains only marshal-safe types.
		panic("fingerprint: marshal canonical content: " + err.Error())
	}

	digest := blake2b.Sum256(content)
	return hex.EncodeToString(digest[:])
}

// IsStale reports whether the target's content changed since the original
// digest was captured.
func IsStale(originalDigest string, current TargetSnapshot) bool {
	return Fingerprint(current) != originalDigest
}
