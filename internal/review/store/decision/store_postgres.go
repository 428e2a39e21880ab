package decision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"attest/internal/review"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
	txcontext "attest/pkg/platform/tx"
)

// PostgresStore persists review decisions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed decision store.
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

func (s *PostgresStore) Create(ctx context.Context, decision review.Decision) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO review_decisions (request_id, reviewer_id, decision, comments, evidence_reviewed, decided_at, duration_minutes, fingerprint_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, decision.RequestID.String(), string(decision.ReviewerID), string(decision.Decision),
		decision.Comments, pq.Array(decision.EvidenceReviewed), decision.DecidedAt,
		decision.DurationMinutes, decision.FingerprintVerified)
	if err != nil {
		return fmt.Errorf("insert review decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID id.RequestID) (*review.Decision, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT request_id, reviewer_id, decision, comments, evidence_reviewed, decided_at, duration_minutes, fingerprint_verified
		FROM review_decisions WHERE request_id = $1
	`, requestID.String())

	decision, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision for %s: %w", requestID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get review decision: %w", err)
	}
	return decision, nil
}

func (s *PostgresStore) ListRange(ctx context.Context, from, to time.Time) ([]review.Decision, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT request_id, reviewer_id, decision, comments, evidence_reviewed, decided_at, duration_minutes, fingerprint_verified
		FROM review_decisions WHERE decided_at >= $1 AND decided_at < $2 ORDER BY decided_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list decisions in range: %w", err)
	}
	defer rows.Close()

	out := make([]review.Decision, 0)
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review decision: %w", err)
		}
		out = append(out, *decision)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review decisions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*review.Decision, error) {
	var decision review.Decision
	var reqID, reviewerID, outcome string
	var evidenceReviewed pq.StringArray

	err := row.Scan(&reqID, &reviewerID, &outcome, &decision.Comments, &evidenceReviewed,
		&decision.DecidedAt, &decision.DurationMinutes, &decision.FingerprintVerified)
	if err != nil {
		return nil, err
	}

	parsed, err := id.ParseRequestID(reqID)
	if err != nil {
		return nil, fmt.Errorf("stored request id: %w", err)
	}
	decision.RequestID = parsed
	decision.ReviewerID = id.ReviewerID(reviewerID)
	decision.Decision = review.Status(outcome)
	decision.EvidenceReviewed = []string(evidenceReviewed)
	return &decision, nil
}
