// Package service orchestrates the review ledger: submission, assignment,
// lock-guarded review, decision recording, chain verification, and report
// export.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"attest/internal/review"
	"attest/internal/review/metrics"
	"attest/internal/review/ports"
	"attest/internal/review/store"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

// DefaultLockTTL bounds how long an inactive reviewer can block others.
const DefaultLockTTL = 30 * time.Minute

// DecisionRecord is the result of RecordDecision: the persisted decision plus
// the chain hash of its audit entry for external reference.
type DecisionRecord struct {
	Decision  review.Decision `json:"decision"`
	ChainHash string          `json:"chain_hash"`
}

// Service composes the hash chain, fingerprint, lock, and state machine into
// the public ledger workflow.
type Service struct {
	entries   store.EntryStore
	requests  store.RequestStore
	decisions store.DecisionStore
	locks     store.LockStore
	targets   ports.TargetRepository

	reviewers ports.ReviewerDirectory
	publisher ports.EventPublisher
	clock     ports.Clock
	txRunner  store.TxRunner
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	lockTTL   time.Duration

	verifyGroup singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithReviewerDirectory wires the external reviewer directory used by
// AssignReviewer.
func WithReviewerDirectory(directory ports.ReviewerDirectory) Option {
	return func(s *Service) { s.reviewers = directory }
}

// WithPublisher wires the domain event publisher.
func WithPublisher(publisher ports.EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithClock overrides the time source.
func WithClock(clock ports.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithTxRunner wires transactional execution for the decision path.
func WithTxRunner(runner store.TxRunner) Option {
	return func(s *Service) { s.txRunner = runner }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics wires Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLockTTL overrides the review lease TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// New constructs a ledger service over the given stores and target repository.
func New(entries store.EntryStore, requests store.RequestStore, decisions store.DecisionStore, locks store.LockStore, targets ports.TargetRepository, opts ...Option) (*Service, error) {
	if entries == nil {
		return nil, fmt.Errorf("entry store is required")
	}
	if requests == nil {
		return nil, fmt.Errorf("request store is required")
	}
	if decisions == nil {
		return nil, fmt.Errorf("decision store is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock store is required")
	}
	if targets == nil {
		return nil, fmt.Errorf("target repository is required")
	}

	svc := &Service{
		entries:   entries,
		requests:  requests,
		decisions: decisions,
		locks:     locks,
		targets:   targets,
		clock:     ports.SystemClock{},
		txRunner:  store.PassthroughTx{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("attest/review"),
		lockTTL:   DefaultLockTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// SubmitForReview captures a target's fingerprint and creates a PENDING
// review request, appending a REVIEW_SUBMITTED entry.
func (s *Service) SubmitForReview(ctx context.Context, targetID id.TargetID, priority review.Priority, rationale string, evidenceRefs []string, submittedBy id.ReviewerID) (*review.Request, error) {
	ctx, span := s.tracer.Start(ctx, "review.SubmitForReview")
	defer span.End()

	if targetID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "target_id is required")
	}
	if !priority.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown priority %q", priority)
	}
	if submittedBy == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "submitted_by is required")
	}

	snapshot, err := s.targets.Load(ctx, targetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "review target not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load review target")
	}

	now := s.clock.Now()
	req := review.Request{
		ID:                id.NewRequestID(),
		TargetID:          targetID,
		TargetFingerprint: review.Fingerprint(*snapshot),
		Priority:          priority,
		SubmittedAt:       now,
		SubmittedBy:       submittedBy,
		EvidenceRefs:      evidenceRefs,
		Rationale:         rationale,
	}

	if err := s.requests.Create(ctx, req, review.StatusPending); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to create review request")
	}

	payload := s.auditPayload(ctx, review.Payload{
		"request_id":  req.ID.String(),
		"target_id":   targetID.String(),
		"fingerprint": req.TargetFingerprint,
		"priority":    string(priority),
	})
	if _, err := s.entries.Append(ctx, review.ActionReviewSubmitted, submittedBy.String(), payload, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to append audit entry")
	}

	s.publish(ctx, review.ReviewRequested{
		RequestID:         req.ID,
		TargetID:          targetID,
		TargetFingerprint: req.TargetFingerprint,
		Priority:          priority,
		SubmittedBy:       submittedBy,
		SubmittedAt:       now,
		SLADeadline:       review.SLADeadline(now, priority),
	})
	s.metrics.IncrementSubmissions()

	s.logger.InfoContext(ctx, "review submitted",
		"request_id", req.ID,
		"target_id", targetID,
		"priority", priority,
	)
	return &req, nil
}

// AssignReviewer records a reviewer assignment after checking the reviewer's
// workload capacity against their active assignments.
func (s *Service) AssignReviewer(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID, assignedBy id.ReviewerID) error {
	ctx, span := s.tracer.Start(ctx, "review.AssignReviewer")
	defer span.End()

	if s.reviewers == nil {
		return dErrors.New(dErrors.CodePersistence, "reviewer directory is not configured")
	}

	stored, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if stored.Status.Terminal() {
		return dErrors.Wrap(
			&review.InvalidTransitionError{From: stored.Status, To: stored.Status},
			dErrors.CodeInvalidTransition, "cannot assign a finalized review")
	}

	reviewer, err := s.reviewers.Load(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "reviewer not found")
		}
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load reviewer")
	}

	workload, err := s.requests.CountAssigned(ctx, reviewerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to count reviewer workload")
	}
	if reviewer.WorkloadCapacity > 0 && workload >= reviewer.WorkloadCapacity {
		return dErrors.Newf(dErrors.CodeValidation, "reviewer %s is at capacity (%d active)", reviewerID, workload).
			WithDetail("workload_capacity", fmt.Sprint(reviewer.WorkloadCapacity))
	}

	if err := s.requests.Assign(ctx, requestID, reviewerID); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to assign reviewer")
	}

	now := s.clock.Now()
	payload := s.auditPayload(ctx, review.Payload{
		"request_id":  requestID.String(),
		"reviewer_id": reviewerID.String(),
		"assigned_by": assignedBy.String(),
	})
	if _, err := s.entries.Append(ctx, review.ActionReviewAssigned, assignedBy.String(), payload, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to append audit entry")
	}

	s.publish(ctx, review.ReviewAssigned{
		RequestID:        requestID,
		ReviewerID:       reviewerID,
		AssignedBy:       assignedBy,
		AssignedAt:       now,
		ReviewerWorkload: workload + 1,
		Priority:         stored.Request.Priority,
	})

	s.logger.InfoContext(ctx, "reviewer assigned",
		"request_id", requestID,
		"reviewer_id", reviewerID,
	)
	return nil
}

// AcquireAndStart takes the review lease on the request's target and moves
// the request into IN_REVIEW. A failed acquisition leaves no trace.
func (s *Service) AcquireAndStart(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID) (*review.Lock, error) {
	ctx, span := s.tracer.Start(ctx, "review.AcquireAndStart")
	defer span.End()

	stored, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// An IN_REVIEW request whose lease lapsed without a decision would stay
	// wedged forever: the only transitions out of IN_REVIEW are decisions,
	// and decisions require the lease. Reconcile it back to PENDING before
	// the transition check so any reviewer can pick the target up again.
	if stored.Status == review.StatusInReview {
		current, err := s.locks.Get(ctx, stored.Request.TargetID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read review lock")
		}
		if current == nil {
			if err := s.reconcileExpired(ctx, stored, reviewerID); err != nil {
				return nil, err
			}
			stored.Status = review.StatusPending
		}
	}

	// Fail fast before taking the lease so a rejected transition causes no
	// side effects.
	if err := review.CheckTransition(stored.Status, review.StatusInReview); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidTransition, "review cannot start")
	}

	lock, err := s.locks.Acquire(ctx, stored.Request.TargetID, reviewerID, s.lockTTL)
	if err != nil {
		var held *review.LockHeldError
		if errors.As(err, &held) {
			s.metrics.IncrementLockContention()
			return nil, dErrors.Wrap(err, dErrors.CodeLockHeld, "target is being reviewed").
				WithDetail("holder", held.Holder.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to acquire review lock")
	}
	s.metrics.IncrementLockAcquisitions()

	now := s.clock.Now()
	if err := s.requests.UpdateStatus(ctx, requestID, review.StatusInReview); err != nil {
		s.releaseLock(ctx, stored.Request.TargetID, reviewerID)
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to update review status")
	}

	payload := s.auditPayload(ctx, review.Payload{
		"request_id":  requestID.String(),
		"target_id":   stored.Request.TargetID.String(),
		"reviewer_id": reviewerID.String(),
		"lock_id":     lock.LockID.String(),
	})
	if _, err := s.entries.Append(ctx, review.ActionReviewStarted, reviewerID.String(), payload, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to append audit entry")
	}

	s.publish(ctx, review.ReviewStarted{
		RequestID:  requestID,
		TargetID:   stored.Request.TargetID,
		ReviewerID: reviewerID,
		LockID:     lock.LockID.String(),
		StartedAt:  now,
		LockExpiry: lock.ExpiresAt,
	})

	s.logger.InfoContext(ctx, "review started",
		"request_id", requestID,
		"reviewer_id", reviewerID,
		"lock_expires_at", lock.ExpiresAt,
	)
	return lock, nil
}

// reconcileExpired returns an abandoned IN_REVIEW request to PENDING after
// its lease lapsed. The step deliberately sits outside the state machine
// table: it undoes an abandoned review rather than advancing one, and it
// leaves its own audit entry so the abandonment is visible in the chain.
func (s *Service) reconcileExpired(ctx context.Context, stored *store.StoredRequest, observedBy id.ReviewerID) error {
	requestID := stored.Request.ID
	now := s.clock.Now()

	err := s.txRunner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.UpdateStatus(txCtx, requestID, review.StatusPending); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		payload := s.auditPayload(txCtx, review.Payload{
			"request_id":  requestID.String(),
			"target_id":   stored.Request.TargetID.String(),
			"from_status": string(review.StatusInReview),
			"to_status":   string(review.StatusPending),
		})
		if _, err := s.entries.Append(txCtx, review.ActionReviewLeaseExpired, observedBy.String(), payload, now); err != nil {
			return fmt.Errorf("append entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to reconcile expired review")
	}

	s.logger.WarnContext(ctx, "expired review lease reconciled",
		"request_id", requestID,
		"target_id", stored.Request.TargetID,
		"observed_by", observedBy,
	)
	return nil
}

// RecordDecision finalizes a review. The caller must hold the target's lease;
// the target must not have mutated since submission. Decision, status, and
// audit entry commit as one atomic unit; the lease is released afterward.
func (s *Service) RecordDecision(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID, decision review.Status, comments string, evidenceReviewed []string) (*DecisionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "review.RecordDecision")
	defer span.End()

	switch decision {
	case review.StatusApproved, review.StatusRejected, review.StatusNeedsRevision:
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "%q is not a recordable decision", decision)
	}

	stored, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	targetID := stored.Request.TargetID

	lock, err := s.locks.Get(ctx, targetID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read review lock")
	}
	if lock == nil {
		// The lease lapsed mid-review. No state change: the next acquirer
		// reclaims the target lazily.
		return nil, dErrors.Wrap(review.ErrLockExpired, dErrors.CodeLockExpired, "review lock expired")
	}
	if lock.Holder != reviewerID {
		return nil, dErrors.Wrap(review.ErrLockOwnership, dErrors.CodeLockOwnership, "review lock held by another reviewer").
			WithDetail("holder", lock.Holder.String())
	}

	if err := review.CheckTransition(stored.Status, decision); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidTransition, "decision not allowed from current status")
	}

	snapshot, err := s.targets.Load(ctx, targetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "review target no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to reload review target")
	}

	now := s.clock.Now()
	if review.IsStale(stored.Request.TargetFingerprint, *snapshot) {
		return nil, s.markStale(ctx, stored, *snapshot, reviewerID, now)
	}

	record := review.Decision{
		RequestID:           requestID,
		ReviewerID:          reviewerID,
		Decision:            decision,
		Comments:            comments,
		EvidenceReviewed:    evidenceReviewed,
		DecidedAt:           now,
		DurationMinutes:     review.DurationMinutes(stored.Request.SubmittedAt, now),
		FingerprintVerified: true,
	}

	var entry *review.AuditEntry
	err = s.txRunner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.decisions.Create(txCtx, record); err != nil {
			return fmt.Errorf("create decision: %w", err)
		}
		if err := s.requests.UpdateStatus(txCtx, requestID, decision); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		payload := s.auditPayload(txCtx, review.Payload{
			"request_id":       requestID.String(),
			"target_id":        targetID.String(),
			"reviewer_id":      reviewerID.String(),
			"decision":         string(decision),
			"duration_minutes": record.DurationMinutes,
		})
		entry, err = s.entries.Append(txCtx, review.ActionDecisionRecorded, reviewerID.String(), payload, now)
		if err != nil {
			return fmt.Errorf("append entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to record decision")
	}

	s.releaseLock(ctx, targetID, reviewerID)

	s.publish(ctx, review.DecisionRecorded{
		RequestID:       requestID,
		TargetID:        targetID,
		ReviewerID:      reviewerID,
		Decision:        decision,
		DecidedAt:       now,
		DurationMinutes: record.DurationMinutes,
		ChainHash:       entry.ChainHash,
	})
	s.metrics.IncrementDecision(string(decision))

	s.logger.InfoContext(ctx, "decision recorded",
		"request_id", requestID,
		"reviewer_id", reviewerID,
		"decision", decision,
		"chain_hash", entry.ChainHash,
	)
	return &DecisionRecord{Decision: record, ChainHash: entry.ChainHash}, nil
}

// markStale voids an in-flight review whose target mutated after submission.
// The STALE transition and its audit entry commit together before the error
// surfaces, so the detection is itself auditable.
func (s *Service) markStale(ctx context.Context, stored *store.StoredRequest, snapshot review.TargetSnapshot, reviewerID id.ReviewerID, now time.Time) error {
	requestID := stored.Request.ID
	targetID := stored.Request.TargetID
	currentFingerprint := review.Fingerprint(snapshot)

	err := s.txRunner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.UpdateStatus(txCtx, requestID, review.StatusStale); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		payload := s.auditPayload(txCtx, review.Payload{
			"request_id":           requestID.String(),
			"target_id":            targetID.String(),
			"original_fingerprint": stored.Request.TargetFingerprint,
			"current_fingerprint":  currentFingerprint,
		})
		if _, err := s.entries.Append(txCtx, review.ActionMappingMarkedStale, reviewerID.String(), payload, now); err != nil {
			return fmt.Errorf("append entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to mark review stale")
	}

	s.releaseLock(ctx, targetID, reviewerID)

	s.publish(ctx, review.MappingMarkedStale{
		RequestID:           requestID,
		TargetID:            targetID,
		OriginalFingerprint: stored.Request.TargetFingerprint,
		CurrentFingerprint:  currentFingerprint,
		DetectedAt:          now,
	})
	s.metrics.IncrementStaleDetections()

	s.logger.WarnContext(ctx, "target changed mid-review, marked stale",
		"request_id", requestID,
		"target_id", targetID,
	)
	return dErrors.Wrap(review.ErrStaleTarget, dErrors.CodeStaleTarget, "target changed since review started")
}

// VerifyIntegrity walks the full audit chain. Concurrent callers share one
// verification run. Every run publishes ChainIntegrityVerified; a broken
// chain additionally publishes AuditTrailViolation and is never auto-repaired.
func (s *Service) VerifyIntegrity(ctx context.Context, triggeredBy string) (*review.ChainVerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "review.VerifyIntegrity")
	defer span.End()

	value, err, _ := s.verifyGroup.Do("verify", func() (any, error) {
		start := time.Now()
		entries, err := s.entries.List(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list audit entries")
		}

		result := review.VerifyChain(entries, s.clock.Now())
		s.metrics.ObserveVerification(start, result.Valid)

		lastHash := ""
		if n := len(entries); n > 0 {
			lastHash = entries[n-1].ChainHash
		}
		s.publish(ctx, review.ChainIntegrityVerified{
			VerificationID:  uuid.NewString(),
			TotalEntries:    result.TotalEntries,
			VerifiedEntries: result.VerifiedEntries,
			ChainValid:      result.Valid,
			LastEntryHash:   lastHash,
			VerifiedAt:      result.VerifiedAt,
			TriggeredBy:     triggeredBy,
		})
		if !result.Valid {
			s.publish(ctx, review.AuditTrailViolation{
				BreakSequence: result.BreakSequence,
				ExpectedHash:  result.ExpectedHash,
				ActualHash:    result.ActualHash,
				TotalEntries:  result.TotalEntries,
				DetectedAt:    result.VerifiedAt,
			})
			s.logger.ErrorContext(ctx, "audit chain integrity violation",
				"break_sequence", result.BreakSequence,
				"verified_entries", result.VerifiedEntries,
			)
		}
		return &result, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*review.ChainVerificationResult), nil
}

// ActiveLocks lists unexpired review leases and refreshes the lock gauge.
func (s *Service) ActiveLocks(ctx context.Context) ([]review.Lock, error) {
	locks, err := s.locks.ActiveLocks(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list active locks")
	}
	s.metrics.SetActiveLocks(len(locks))
	return locks, nil
}

// GetReview returns a request with its current lifecycle state.
func (s *Service) GetReview(ctx context.Context, requestID id.RequestID) (*store.StoredRequest, error) {
	return s.getRequest(ctx, requestID)
}

func (s *Service) getRequest(ctx context.Context, requestID id.RequestID) (*store.StoredRequest, error) {
	stored, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "review request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load review request")
	}
	return stored, nil
}

// auditPayload enriches an entry payload with request-scoped client metadata
// when the middleware provided it.
func (s *Service) auditPayload(ctx context.Context, payload review.Payload) review.Payload {
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		payload["client_ip"] = ip
	}
	if client := requestcontext.ClientInfo(ctx); client != "" {
		payload["client"] = client
	}
	if correlationID := requestcontext.RequestID(ctx); correlationID != "" {
		payload["correlation_id"] = correlationID
	}
	return payload
}

func (s *Service) releaseLock(ctx context.Context, targetID id.TargetID, holder id.ReviewerID) {
	if err := s.locks.Release(ctx, targetID, holder); err != nil {
		// The lease will lapse on its own; log and move on.
		s.logger.WarnContext(ctx, "failed to release review lock",
			"target_id", targetID,
			"holder", holder,
			"error", err,
		)
	}
}

func (s *Service) publish(ctx context.Context, event review.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Fire-and-forget: committed ledger state never rolls back over a
		// delivery failure.
		s.logger.WarnContext(ctx, "failed to publish event",
			"event", event.EventName(),
			"error", err,
		)
	}
}
