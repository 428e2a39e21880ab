package review

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// GenesisHash is the fixed previous-hash sentinel of the first chain entry.
const GenesisHash = ""

// canonicalPayload serializes a payload deterministically. encoding/json
// sorts map keys at every nesting level, so two payloads with the same
// logical content always produce the same bytes.
func canonicalPayload(payload Payload) ([]byte, error) {
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return data, nil
}

// ComputeChainHash derives an entry's chain hash:
//
//	SHA-256(previous_hash || canonical(payload) || timestamp || actor)
//
// Timestamps are normalized to UTC RFC3339Nano so the digest is independent
// of the zone the entry was recorded in.
func ComputeChainHash(previousHash string, payload Payload, timestamp time.Time, actor string) (string, error) {
	data, err := canonicalPayload(payload)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(previousHash))
	h.Write(data)
	h.Write([]byte(timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(actor))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChain walks entries strictly by ledger-assigned sequence, recomputing
// each chain hash from the genesis sentinel and comparing against the stored
// value. It stops at the first mismatch and reports its sequence with the
// recomputed (expected) and stored (actual) hashes. An empty chain is
// trivially valid. A broken chain is a result, never an error: entries at or
// after the break must be treated as untrusted until investigated.
func VerifyChain(entries []AuditEntry, now time.Time) ChainVerificationResult {
	ordered := slices.Clone(entries)
	slices.SortFunc(ordered, func(a, b AuditEntry) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	result := ChainVerificationResult{
		Valid:        true,
		TotalEntries: len(ordered),
		VerifiedAt:   now,
	}

	previousHash := GenesisHash
	for i, entry := range ordered {
		expected, err := ComputeChainHash(previousHash, entry.Payload, entry.Timestamp, entry.Actor)
		if err != nil {
			// An unserializable stored payload cannot match any hash.
			expected = ""
		}

		if entry.PreviousHash != previousHash || entry.ChainHash != expected {
			result.Valid = false
			result.VerifiedEntries = i
			result.BreakSequence = entry.Sequence
			result.ExpectedHash = expected
			result.ActualHash = entry.ChainHash
			return result
		}

		previousHash = expected
	}

	result.VerifiedEntries = len(ordered)
	return result
}
