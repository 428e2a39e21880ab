package request

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/review"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

func sampleRequest(reqID id.RequestID, submittedAt time.Time) review.Request {
	return review.Request{
		ID:                reqID,
		TargetID:          "MAP-001",
		TargetFingerprint: "abc123",
		Priority:          review.PriorityNormal,
		SubmittedAt:       submittedAt,
		SubmittedBy:       "alice",
		EvidenceRefs:      []string{"https://evidence.example/a"},
		Rationale:         "covers the notification requirement",
	}
}

func TestCreateAndGet(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()
	reqID := id.NewRequestID()

	err := store.Create(ctx, sampleRequest(reqID, time.Now()), review.StatusPending)
	require.NoError(t, err)

	stored, err := store.Get(ctx, reqID)
	require.NoError(t, err)
	assert.Equal(t, review.StatusPending, stored.Status)
	assert.Equal(t, id.TargetID("MAP-001"), stored.Request.TargetID)
	assert.Empty(t, stored.AssignedTo)
}

func TestCreateDuplicate(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()
	reqID := id.NewRequestID()

	require.NoError(t, store.Create(ctx, sampleRequest(reqID, time.Now()), review.StatusPending))
	err := store.Create(ctx, sampleRequest(reqID, time.Now()), review.StatusPending)
	assert.True(t, errors.Is(err, sentinel.ErrConflict))
}

func TestGetUnknown(t *testing.T) {
	store := NewMemory()
	_, err := store.Get(t.Context(), id.NewRequestID())
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestUpdateStatusAndAssign(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()
	reqID := id.NewRequestID()
	require.NoError(t, store.Create(ctx, sampleRequest(reqID, time.Now()), review.StatusPending))

	require.NoError(t, store.Assign(ctx, reqID, "bob"))
	require.NoError(t, store.UpdateStatus(ctx, reqID, review.StatusInReview))

	stored, err := store.Get(ctx, reqID)
	require.NoError(t, err)
	assert.Equal(t, review.StatusInReview, stored.Status)
	assert.Equal(t, id.ReviewerID("bob"), stored.AssignedTo)

	assert.True(t, errors.Is(store.UpdateStatus(ctx, id.NewRequestID(), review.StatusStale), sentinel.ErrNotFound))
}

func TestCountAssignedSkipsTerminal(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()

	active := id.NewRequestID()
	done := id.NewRequestID()
	require.NoError(t, store.Create(ctx, sampleRequest(active, time.Now()), review.StatusPending))
	require.NoError(t, store.Create(ctx, sampleRequest(done, time.Now()), review.StatusPending))
	require.NoError(t, store.Assign(ctx, active, "bob"))
	require.NoError(t, store.Assign(ctx, done, "bob"))
	require.NoError(t, store.UpdateStatus(ctx, done, review.StatusApproved))

	count, err := store.CountAssigned(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListActiveAndRange(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := id.NewRequestID()
	second := id.NewRequestID()
	third := id.NewRequestID()
	require.NoError(t, store.Create(ctx, sampleRequest(first, base), review.StatusPending))
	require.NoError(t, store.Create(ctx, sampleRequest(second, base.Add(time.Hour)), review.StatusPending))
	require.NoError(t, store.Create(ctx, sampleRequest(third, base.Add(2*time.Hour)), review.StatusPending))
	require.NoError(t, store.UpdateStatus(ctx, second, review.StatusRejected))

	activeReqs, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, activeReqs, 2)
	assert.Equal(t, first, activeReqs[0].Request.ID)
	assert.Equal(t, third, activeReqs[1].Request.ID)

	ranged, err := store.ListRange(ctx, base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, first, ranged[0].Request.ID)
	assert.Equal(t, second, ranged[1].Request.ID)
}
