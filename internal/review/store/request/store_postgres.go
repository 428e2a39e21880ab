package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"attest/internal/review"
	"attest/internal/review/store"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
	txcontext "attest/pkg/platform/tx"
)

// PostgresStore persists review requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, req review.Request, status review.Status) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO review_requests (id, target_id, fingerprint, priority, submitted_at, submitted_by, rationale, evidence_refs, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, req.ID.String(), string(req.TargetID), req.TargetFingerprint, string(req.Priority),
		req.SubmittedAt, string(req.SubmittedBy), req.Rationale, pq.Array(req.EvidenceRefs), string(status))
	if err != nil {
		return fmt.Errorf("insert review request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID id.RequestID) (*store.StoredRequest, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT id, target_id, fingerprint, priority, submitted_at, submitted_by, rationale, evidence_refs, status, assigned_to
		FROM review_requests WHERE id = $1
	`, requestID.String())

	stored, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get review request: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, requestID id.RequestID, status review.Status) error {
	result, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE review_requests SET status = $2 WHERE id = $1`, requestID.String(), string(status))
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return checkAffected(result, requestID)
}

func (s *PostgresStore) Assign(ctx context.Context, requestID id.RequestID, reviewerID id.ReviewerID) error {
	result, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE review_requests SET assigned_to = $2 WHERE id = $1`, requestID.String(), string(reviewerID))
	if err != nil {
		return fmt.Errorf("assign request: %w", err)
	}
	return checkAffected(result, requestID)
}

func (s *PostgresStore) CountAssigned(ctx context.Context, reviewerID id.ReviewerID) (int, error) {
	var count int
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_requests
		WHERE assigned_to = $1 AND status NOT IN ('approved', 'rejected')
	`, string(reviewerID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count assigned requests: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]store.StoredRequest, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, target_id, fingerprint, priority, submitted_at, submitted_by, rationale, evidence_refs, status, assigned_to
		FROM review_requests WHERE status NOT IN ('approved', 'rejected') ORDER BY submitted_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list active requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PostgresStore) ListRange(ctx context.Context, from, to time.Time) ([]store.StoredRequest, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, target_id, fingerprint, priority, submitted_at, submitted_by, rationale, evidence_refs, status, assigned_to
		FROM review_requests WHERE submitted_at >= $1 AND submitted_at < $2 ORDER BY submitted_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list requests in range: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*store.StoredRequest, error) {
	var stored store.StoredRequest
	var reqID, targetID, priority, submittedBy, status string
	var assignedTo sql.NullString
	var evidenceRefs pq.StringArray

	err := row.Scan(&reqID, &targetID, &stored.Request.TargetFingerprint, &priority,
		&stored.Request.SubmittedAt, &submittedBy, &stored.Request.Rationale, &evidenceRefs,
		&status, &assignedTo)
	if err != nil {
		return nil, err
	}

	parsed, err := id.ParseRequestID(reqID)
	if err != nil {
		return nil, fmt.Errorf("stored request id: %w", err)
	}
	stored.Request.ID = parsed
	stored.Request.TargetID = id.TargetID(targetID)
	stored.Request.Priority = review.Priority(priority)
	stored.Request.SubmittedBy = id.ReviewerID(submittedBy)
	stored.Request.EvidenceRefs = []string(evidenceRefs)
	stored.Status = review.Status(status)
	if assignedTo.Valid {
		stored.AssignedTo = id.ReviewerID(assignedTo.String)
	}
	return &stored, nil
}

func scanRequests(rows *sql.Rows) ([]store.StoredRequest, error) {
	out := make([]store.StoredRequest, 0)
	for rows.Next() {
		stored, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review request: %w", err)
		}
		out = append(out, *stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review requests: %w", err)
	}
	return out, nil
}

func checkAffected(result sql.Result, requestID id.RequestID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return nil
}
