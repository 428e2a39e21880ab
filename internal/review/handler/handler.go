// Package handler exposes the review ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attest/internal/review"
	"attest/internal/review/service"
	"attest/internal/review/store"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/httputil"
	"attest/pkg/requestcontext"
)

// Service defines the ledger operations the HTTP layer exposes.
type Service interface {
	SubmitForReview(ctx context.Context, targetID id.TargetID, priority review.Priority, rationale string, evidenceRefs []string, submittedBy id.ReviewerID) (*review.Request, error)
	AssignReviewer(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID, assignedBy id.ReviewerID) error
	AcquireAndStart(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID) (*review.Lock, error)
	RecordDecision(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID, decision review.Status, comments string, evidenceReviewed []string) (*service.DecisionRecord, error)
	GetReview(ctx context.Context, requestID id.RequestID) (*store.StoredRequest, error)
	VerifyIntegrity(ctx context.Context, triggeredBy string) (*review.ChainVerificationResult, error)
	ExportReport(ctx context.Context, from, to time.Time, requester string) (*review.Report, error)
	ActiveLocks(ctx context.Context) ([]review.Lock, error)
}

// Handler wires ledger endpoints to the ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a ledger handler.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts ledger endpoints on the router. All routes assume the
// reviewer auth middleware already ran.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reviews", h.HandleSubmit)
	r.Get("/reviews/{requestID}", h.HandleGetReview)
	r.Post("/reviews/{requestID}/assign", h.HandleAssign)
	r.Post("/reviews/{requestID}/start", h.HandleStart)
	r.Post("/reviews/{requestID}/decision", h.HandleDecision)
	r.Get("/ledger/verify", h.HandleVerify)
	r.Get("/ledger/report", h.HandleReport)
	r.Get("/locks", h.HandleActiveLocks)
}

// HandleSubmit handles POST /reviews.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewerID, ok := h.requireReviewer(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[SubmitRequest](w, r)
	if !ok {
		return
	}

	created, err := h.service.SubmitForReview(ctx, id.TargetID(req.TargetID),
		review.Priority(req.Priority), req.Rationale, req.EvidenceRefs, reviewerID)
	if err != nil {
		h.logError(ctx, "submit review failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleGetReview handles GET /reviews/{requestID}.
func (h *Handler) HandleGetReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}

	stored, err := h.service.GetReview(ctx, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newReviewResponse(stored))
}

// HandleAssign handles POST /reviews/{requestID}/assign.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assignedBy, ok := h.requireReviewer(w, ctx)
	if !ok {
		return
	}
	requestID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[AssignRequest](w, r)
	if !ok {
		return
	}
	if req.ReviewerID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "reviewer_id is required"))
		return
	}

	if err := h.service.AssignReviewer(ctx, requestID, id.ReviewerID(req.ReviewerID), assignedBy); err != nil {
		h.logError(ctx, "assign reviewer failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AssignResponse{
		RequestID:  requestID.String(),
		ReviewerID: req.ReviewerID,
	})
}

// HandleStart handles POST /reviews/{requestID}/start.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewerID, ok := h.requireReviewer(w, ctx)
	if !ok {
		return
	}
	requestID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}

	lock, err := h.service.AcquireAndStart(ctx, requestID, reviewerID)
	if err != nil {
		h.logError(ctx, "start review failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lock)
}

// HandleDecision handles POST /reviews/{requestID}/decision.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewerID, ok := h.requireReviewer(w, ctx)
	if !ok {
		return
	}
	requestID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[DecisionRequest](w, r)
	if !ok {
		return
	}

	record, err := h.service.RecordDecision(ctx, requestID, reviewerID,
		review.Status(req.Decision), req.Comments, req.EvidenceReviewed)
	if err != nil {
		h.logError(ctx, "record decision failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleVerify handles GET /ledger/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewerID, ok := h.requireReviewer(w, ctx)
	if !ok {
		return
	}

	result, err := h.service.VerifyIntegrity(ctx, reviewerID.String())
	if err != nil {
		h.logError(ctx, "chain verification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleReport handles GET /ledger/report?from=RFC3339&to=RFC3339.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewerID, ok := h.requireReviewer(w, ctx)
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid 'from' timestamp"))
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid 'to' timestamp"))
		return
	}

	report, err := h.service.ExportReport(ctx, from, to, reviewerID.String())
	if err != nil {
		h.logError(ctx, "report export failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleActiveLocks handles GET /locks.
func (h *Handler) HandleActiveLocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := h.requireReviewer(w, ctx); !ok {
		return
	}

	locks, err := h.service.ActiveLocks(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActiveLocksResponse{Locks: locks})
}

func (h *Handler) requireReviewer(w http.ResponseWriter, ctx context.Context) (id.ReviewerID, bool) {
	reviewerID := requestcontext.ReviewerID(ctx)
	if reviewerID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return reviewerID, true
}

func (h *Handler) requestIDParam(w http.ResponseWriter, r *http.Request) (id.RequestID, bool) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid request id"))
		return "", false
	}
	return requestID, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
