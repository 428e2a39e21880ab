package service

import (
	"context"
	"time"

	"attest/internal/review"
	dErrors "attest/pkg/domain-errors"
)

// CheckSLABreaches scans active reviews and publishes ReviewSLABreached for
// each one past its response deadline. Returns the breached requests.
func (s *Service) CheckSLABreaches(ctx context.Context) ([]review.ReviewSLABreached, error) {
	ctx, span := s.tracer.Start(ctx, "review.CheckSLABreaches")
	defer span.End()

	active, err := s.requests.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list active reviews")
	}

	now := s.clock.Now()
	breaches := make([]review.ReviewSLABreached, 0)
	for _, stored := range active {
		req := stored.Request
		if !review.IsSLABreached(req.SubmittedAt, req.Priority, now) {
			continue
		}
		deadline := review.SLADeadline(req.SubmittedAt, req.Priority)
		breach := review.ReviewSLABreached{
			RequestID:    req.ID,
			Priority:     req.Priority,
			SubmittedAt:  req.SubmittedAt,
			SLADeadline:  deadline,
			HoursOverdue: now.Sub(deadline).Hours(),
			AssignedTo:   stored.AssignedTo,
			Status:       stored.Status,
		}
		breaches = append(breaches, breach)
		s.publish(ctx, breach)
		s.metrics.IncrementSLABreaches()
	}

	if len(breaches) > 0 {
		s.logger.WarnContext(ctx, "sla breaches detected", "count", len(breaches))
	}
	return breaches, nil
}

// RunSLASweep runs CheckSLABreaches on the given interval until ctx is
// cancelled.
func (s *Service) RunSLASweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.CheckSLABreaches(ctx); err != nil {
				s.logger.ErrorContext(ctx, "sla sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunLockReaper refreshes the active-lock gauge on the given interval until
// ctx is cancelled. Correctness never depends on it; expired leases are
// reclaimed lazily on the next acquire.
func (s *Service) RunLockReaper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.ActiveLocks(ctx); err != nil {
				s.logger.ErrorContext(ctx, "lock sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
