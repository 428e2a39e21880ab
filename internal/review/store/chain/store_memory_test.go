package chain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/review"
)

func TestMemoryAppendAssignsSequenceAndLinksHashes(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := store.Append(ctx, review.ActionReviewSubmitted, "alice", review.Payload{"request_id": "req_000000000001"}, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, review.GenesisHash, first.PreviousHash)
	assert.NotEmpty(t, first.ChainHash)

	second, err := store.Append(ctx, review.ActionReviewStarted, "bob", nil, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Sequence)
	assert.Equal(t, first.ChainHash, second.PreviousHash)
}

func TestMemoryAppendedChainVerifies(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 20 {
		_, err := store.Append(ctx, review.ActionDecisionRecorded, "alice", review.Payload{"step": i}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 20)

	result := review.VerifyChain(entries, time.Now())
	assert.True(t, result.Valid)
	assert.Equal(t, 20, result.VerifiedEntries)
}

func TestMemoryConcurrentAppendsKeepSequencesContiguous(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()

	const appenders = 32
	var wg sync.WaitGroup
	for i := range appenders {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.Append(ctx, review.ActionReviewSubmitted, "worker", review.Payload{"n": n}, time.Now().UTC())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, appenders)

	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Sequence)
	}
	assert.True(t, review.VerifyChain(entries, time.Now()).Valid)
}

func TestMemoryListReturnsCopies(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()

	_, err := store.Append(ctx, review.ActionReviewSubmitted, "alice", review.Payload{"k": "v"}, time.Now().UTC())
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	entries[0].Payload["k"] = "mutated"

	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", again[0].Payload["k"], "callers must not be able to rewrite stored entries")
}

func TestMemoryListRange(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 5 {
		_, err := store.Append(ctx, review.ActionReviewSubmitted, "alice", nil, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	// Half-open range: includes from, excludes to.
	got, err := store.ListRange(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Sequence)
	assert.Equal(t, int64(3), got[1].Sequence)
}
