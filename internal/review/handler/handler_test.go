package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"attest/internal/review"
	"attest/internal/review/handler/mocks"
	"attest/internal/review/service"
	"attest/internal/review/store"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler_mocks.go -package=mocks Service

type LedgerHandlerSuite struct {
	suite.Suite
}

func TestLedgerHandlerSuite(t *testing.T) {
	suite.Run(t, new(LedgerHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, chi.Router, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger)
	r := chi.NewRouter()
	handler.Register(r)
	return handler, r, mockService
}

func asReviewer(req *http.Request, reviewerID id.ReviewerID) *http.Request {
	ctx := requestcontext.WithReviewerID(req.Context(), reviewerID)
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// ============================================================
// Submission
// ============================================================

func (s *LedgerHandlerSuite) TestHandleSubmit() {
	handler, _, mockService := newTestHandler(s.T())

	submitted := time.Date(2025, 11, 4, 9, 0, 0, 0, time.UTC)
	mockService.EXPECT().SubmitForReview(
		gomock.Any(),
		id.TargetID("MAP-001"),
		review.PriorityHigh,
		"confidence below threshold",
		[]string{"s3://evidence/doc-1"},
		id.ReviewerID("alice"),
	).Return(&review.Request{
		ID:                "req_0123456789ab",
		TargetID:          "MAP-001",
		TargetFingerprint: "fp-1",
		Priority:          review.PriorityHigh,
		SubmittedAt:       submitted,
		SubmittedBy:       "alice",
		EvidenceRefs:      []string{"s3://evidence/doc-1"},
		Rationale:         "confidence below threshold",
	}, nil)

	body, err := json.Marshal(SubmitRequest{
		TargetID:     "MAP-001",
		Priority:     "high",
		Rationale:    "confidence below threshold",
		EvidenceRefs: []string{"s3://evidence/doc-1"},
	})
	require.NoError(s.T(), err)

	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	handler.HandleSubmit(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	assert.Equal(s.T(), "req_0123456789ab", resp["id"])
	assert.Equal(s.T(), "fp-1", resp["target_fingerprint"])
}

func (s *LedgerHandlerSuite) TestHandleSubmitRequiresAuth() {
	handler, _, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	handler.HandleSubmit(w, req)

	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(s.T(), "unauthorized", decodeBody(s.T(), w)["error"])
}

func (s *LedgerHandlerSuite) TestHandleSubmitRejectsUnknownFields() {
	handler, _, _ := newTestHandler(s.T())

	body := []byte(`{"target_id":"MAP-001","bogus":true}`)
	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	handler.HandleSubmit(w, req)

	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	assert.Equal(s.T(), "validation", decodeBody(s.T(), w)["error"])
}

// ============================================================
// Lifecycle: assign, start, decide
// ============================================================

func (s *LedgerHandlerSuite) TestHandleAssign() {
	_, router, mockService := newTestHandler(s.T())

	mockService.EXPECT().AssignReviewer(
		gomock.Any(),
		id.RequestID("req_0123456789ab"),
		id.ReviewerID("bob"),
		id.ReviewerID("lead"),
	).Return(nil)

	body, err := json.Marshal(AssignRequest{ReviewerID: "bob"})
	require.NoError(s.T(), err)

	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews/req_0123456789ab/assign", bytes.NewReader(body)), "lead")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	assert.Equal(s.T(), "req_0123456789ab", resp["request_id"])
	assert.Equal(s.T(), "bob", resp["reviewer_id"])
}

func (s *LedgerHandlerSuite) TestHandleAssignRejectsMalformedID() {
	_, router, _ := newTestHandler(s.T())

	body := []byte(`{"reviewer_id":"bob"}`)
	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews/not-an-id/assign", bytes.NewReader(body)), "lead")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	assert.Equal(s.T(), "validation", decodeBody(s.T(), w)["error"])
}

func (s *LedgerHandlerSuite) TestHandleStartContention() {
	_, router, mockService := newTestHandler(s.T())

	held := dErrors.Wrap(
		&review.LockHeldError{TargetID: "MAP-001", Holder: "alice"},
		dErrors.CodeLockHeld, "target MAP-001 is locked",
	).WithDetail("holder", "alice")
	mockService.EXPECT().AcquireAndStart(
		gomock.Any(),
		id.RequestID("req_0123456789ab"),
		id.ReviewerID("bob"),
	).Return(nil, held)

	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews/req_0123456789ab/start", nil), "bob")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusConflict, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	assert.Equal(s.T(), "lock_held", resp["error"])
	details := resp["details"].(map[string]any)
	assert.Equal(s.T(), "alice", details["holder"])
}

func (s *LedgerHandlerSuite) TestHandleStart() {
	_, router, mockService := newTestHandler(s.T())

	acquired := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)
	mockService.EXPECT().AcquireAndStart(
		gomock.Any(),
		id.RequestID("req_0123456789ab"),
		id.ReviewerID("alice"),
	).Return(&review.Lock{
		TargetID:   "MAP-001",
		Holder:     "alice",
		LockID:     uuid.New(),
		AcquiredAt: acquired,
		ExpiresAt:  acquired.Add(service.DefaultLockTTL),
	}, nil)

	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews/req_0123456789ab/start", nil), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	assert.Equal(s.T(), "MAP-001", resp["target_id"])
	assert.Equal(s.T(), "alice", resp["holder"])
}

func (s *LedgerHandlerSuite) TestHandleDecision() {
	_, router, mockService := newTestHandler(s.T())

	decided := time.Date(2025, 11, 4, 10, 30, 0, 0, time.UTC)
	mockService.EXPECT().RecordDecision(
		gomock.Any(),
		id.RequestID("req_0123456789ab"),
		id.ReviewerID("alice"),
		review.StatusApproved,
		"mapping holds",
		[]string{"s3://evidence/doc-1"},
	).Return(&service.DecisionRecord{
		Decision: review.Decision{
			RequestID:           "req_0123456789ab",
			ReviewerID:          "alice",
			Decision:            review.StatusApproved,
			Comments:            "mapping holds",
			EvidenceReviewed:    []string{"s3://evidence/doc-1"},
			DecidedAt:           decided,
			DurationMinutes:     30,
			FingerprintVerified: true,
		},
		ChainHash: "abc123",
	}, nil)

	body, err := json.Marshal(DecisionRequest{
		Decision:         "approved",
		Comments:         "mapping holds",
		EvidenceReviewed: []string{"s3://evidence/doc-1"},
	})
	require.NoError(s.T(), err)

	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews/req_0123456789ab/decision", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	assert.Equal(s.T(), "abc123", resp["chain_hash"])
	decision := resp["decision"].(map[string]any)
	assert.Equal(s.T(), "approved", decision["decision"])
	assert.Equal(s.T(), float64(30), decision["duration_minutes"])
}

func (s *LedgerHandlerSuite) TestHandleDecisionStaleTarget() {
	_, router, mockService := newTestHandler(s.T())

	mockService.EXPECT().RecordDecision(
		gomock.Any(), id.RequestID("req_0123456789ab"), id.ReviewerID("alice"),
		review.StatusApproved, "", gomock.Nil(),
	).Return(nil, dErrors.New(dErrors.CodeStaleTarget, "target changed since submission"))

	body := []byte(`{"decision":"approved"}`)
	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews/req_0123456789ab/decision", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(s.T(), "stale_target", decodeBody(s.T(), w)["error"])
}

func (s *LedgerHandlerSuite) TestHandleDecisionLostLease() {
	_, router, mockService := newTestHandler(s.T())

	mockService.EXPECT().RecordDecision(
		gomock.Any(), id.RequestID("req_0123456789ab"), id.ReviewerID("alice"),
		review.StatusApproved, "", gomock.Nil(),
	).Return(nil, dErrors.New(dErrors.CodeLockExpired, "review lease expired"))

	body := []byte(`{"decision":"approved"}`)
	req := asReviewer(httptest.NewRequest(http.MethodPost, "/reviews/req_0123456789ab/decision", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(s.T(), "lock_expired", decodeBody(s.T(), w)["error"])
}

// ============================================================
// Reads: review, verification, report, locks
// ============================================================

func (s *LedgerHandlerSuite) TestHandleGetReview() {
	_, router, mockService := newTestHandler(s.T())

	mockService.EXPECT().GetReview(gomock.Any(), id.RequestID("req_0123456789ab")).
		Return(&store.StoredRequest{
			Request: review.Request{
				ID:       "req_0123456789ab",
				TargetID: "MAP-001",
				Priority: review.PriorityNormal,
			},
			Status:     review.StatusInReview,
			AssignedTo: "alice",
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/reviews/req_0123456789ab", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	assert.Equal(s.T(), "in_review", resp["status"])
	assert.Equal(s.T(), "alice", resp["assigned_to"])
}

func (s *LedgerHandlerSuite) TestHandleGetReviewNotFound() {
	_, router, mockService := newTestHandler(s.T())

	mockService.EXPECT().GetReview(gomock.Any(), id.RequestID("req_ffffffffffff")).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "review request not found"))

	req := httptest.NewRequest(http.MethodGet, "/reviews/req_ffffffffffff", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusNotFound, w.Code)
	assert.Equal(s.T(), "not_found", decodeBody(s.T(), w)["error"])
}

func (s *LedgerHandlerSuite) TestHandleVerify() {
	_, router, mockService := newTestHandler(s.T())

	mockService.EXPECT().VerifyIntegrity(gomock.Any(), "auditor").
		Return(&review.ChainVerificationResult{
			Valid:           false,
			TotalEntries:    10,
			VerifiedEntries: 3,
			BreakSequence:   4,
			VerifiedAt:      time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
		}, nil)

	req := asReviewer(httptest.NewRequest(http.MethodGet, "/ledger/verify", nil), "auditor")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	assert.Equal(s.T(), false, resp["valid"])
	assert.Equal(s.T(), float64(4), resp["break_sequence"])
}

func (s *LedgerHandlerSuite) TestHandleReport() {
	_, router, mockService := newTestHandler(s.T())

	from := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	mockService.EXPECT().ExportReport(gomock.Any(), from, to, "auditor").
		Return(&review.Report{
			ID:             "rpt_01234567",
			From:           from,
			To:             to,
			TotalReviews:   12,
			CompletionRate: 0.75,
		}, nil)

	url := "/ledger/report?from=2025-10-01T00:00:00Z&to=2025-11-01T00:00:00Z"
	req := asReviewer(httptest.NewRequest(http.MethodGet, url, nil), "auditor")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	assert.Equal(s.T(), "rpt_01234567", resp["id"])
	assert.Equal(s.T(), float64(12), resp["total_reviews"])
}

func (s *LedgerHandlerSuite) TestHandleReportRejectsBadRange() {
	_, router, _ := newTestHandler(s.T())

	req := asReviewer(httptest.NewRequest(http.MethodGet, "/ledger/report?from=yesterday&to=2025-11-01T00:00:00Z", nil), "auditor")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	assert.Equal(s.T(), "validation", decodeBody(s.T(), w)["error"])
}

func (s *LedgerHandlerSuite) TestHandleActiveLocks() {
	_, router, mockService := newTestHandler(s.T())

	acquired := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)
	mockService.EXPECT().ActiveLocks(gomock.Any()).Return([]review.Lock{
		{TargetID: "MAP-001", Holder: "alice", LockID: uuid.New(), AcquiredAt: acquired, ExpiresAt: acquired.Add(30 * time.Minute)},
	}, nil)

	req := asReviewer(httptest.NewRequest(http.MethodGet, "/locks", nil), "auditor")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(s.T(), w)
	locks := resp["locks"].([]any)
	require.Len(s.T(), locks, 1)
	assert.Equal(s.T(), "alice", locks[0].(map[string]any)["holder"])
}
