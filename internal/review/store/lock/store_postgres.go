package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attest/internal/review"
	"attest/internal/review/ports"
	id "attest/pkg/domain"
	txcontext "attest/pkg/platform/tx"
)

// acquireQuery is the compare-and-swap core. The upsert only fires when the
// existing lease lapsed or belongs to the same holder; a same-holder renewal
// keeps its lock ID and acquisition time. Losing the race returns no row.
const acquireQuery = `
	INSERT INTO review_locks (target_id, holder, lock_id, acquired_at, expires_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (target_id) DO UPDATE SET
		holder      = EXCLUDED.holder,
		lock_id     = CASE WHEN review_locks.holder = EXCLUDED.holder AND review_locks.expires_at > $4
		                   THEN review_locks.lock_id ELSE EXCLUDED.lock_id END,
		acquired_at = CASE WHEN review_locks.holder = EXCLUDED.holder AND review_locks.expires_at > $4
		                   THEN review_locks.acquired_at ELSE EXCLUDED.acquired_at END,
		expires_at  = EXCLUDED.expires_at
	WHERE review_locks.expires_at <= $4 OR review_locks.holder = EXCLUDED.holder
	RETURNING lock_id, acquired_at, expires_at`

// PostgresStore persists review leases in PostgreSQL, for deployments that
// run without Redis. Expiry is a stored deadline checked against the clock on
// every read; lapsed rows are reclaimed by the next Acquire.
type PostgresStore struct {
	db    *sql.DB
	clock ports.Clock
}

// NewPostgres constructs a PostgreSQL-backed lock store.
func NewPostgres(db *sql.DB, clock ports.Clock) *PostgresStore {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &PostgresStore{db: db, clock: clock}
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

func (s *PostgresStore) Acquire(ctx context.Context, targetID id.TargetID, holder id.ReviewerID, ttl time.Duration) (*review.Lock, error) {
	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	candidate := review.Lock{
		TargetID:   targetID,
		Holder:     holder,
		LockID:     uuid.New(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	// Two attempts: the holder read below can race a concurrent release or
	// expiry, in which case the target is free again and the upsert wins.
	for attempt := 0; attempt < 2; attempt++ {
		row := s.querier(ctx).QueryRowContext(ctx, acquireQuery,
			string(targetID), string(holder), candidate.LockID, now, candidate.ExpiresAt)

		granted := candidate
		err := row.Scan(&granted.LockID, &granted.AcquiredAt, &granted.ExpiresAt)
		if err == nil {
			return &granted, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("acquire lease on %s: %w", targetID, err)
		}

		var currentHolder string
		err = s.querier(ctx).QueryRowContext(ctx,
			`SELECT holder FROM review_locks WHERE target_id = $1 AND expires_at > $2`,
			string(targetID), now).Scan(&currentHolder)
		if err == nil {
			return nil, &review.LockHeldError{TargetID: targetID, Holder: id.ReviewerID(currentHolder)}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("acquire lease on %s: %w", targetID, err)
		}
	}
	return nil, fmt.Errorf("acquire lease on %s: lost the race twice", targetID)
}

func (s *PostgresStore) Release(ctx context.Context, targetID id.TargetID, holder id.ReviewerID) error {
	now := s.clock.Now().UTC().Truncate(time.Microsecond)

	result, err := s.querier(ctx).ExecContext(ctx,
		`DELETE FROM review_locks WHERE target_id = $1 AND holder = $2 AND expires_at > $3`,
		string(targetID), string(holder), now)
	if err != nil {
		return fmt.Errorf("release lease on %s: %w", targetID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release lease on %s: %w", targetID, err)
	}
	if affected > 0 {
		return nil
	}

	var currentHolder string
	err = s.querier(ctx).QueryRowContext(ctx,
		`SELECT holder FROM review_locks WHERE target_id = $1 AND expires_at > $2`,
		string(targetID), now).Scan(&currentHolder)
	if errors.Is(err, sql.ErrNoRows) {
		// Free or lapsed: the lease is treated as already released.
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lease on %s: %w", targetID, err)
	}
	return fmt.Errorf("release lock on %s held by %s: %w", targetID, currentHolder, review.ErrLockOwnership)
}

func (s *PostgresStore) Get(ctx context.Context, targetID id.TargetID) (*review.Lock, error) {
	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT target_id, holder, lock_id, acquired_at, expires_at
		FROM review_locks WHERE target_id = $1 AND expires_at > $2
	`, string(targetID), now)

	lock, err := scanLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lease on %s: %w", targetID, err)
	}
	return lock, nil
}

func (s *PostgresStore) ActiveLocks(ctx context.Context) ([]review.Lock, error) {
	now := s.clock.Now().UTC().Truncate(time.Microsecond)

	// Opportunistic cleanup keeps the table from accumulating dead rows.
	if _, err := s.querier(ctx).ExecContext(ctx,
		`DELETE FROM review_locks WHERE expires_at <= $1`, now); err != nil {
		return nil, fmt.Errorf("sweep expired leases: %w", err)
	}

	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT target_id, holder, lock_id, acquired_at, expires_at
		FROM review_locks WHERE expires_at > $1 ORDER BY acquired_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list active leases: %w", err)
	}
	defer rows.Close()

	locks := make([]review.Lock, 0)
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		locks = append(locks, *lock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leases: %w", err)
	}
	return locks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLock(row rowScanner) (*review.Lock, error) {
	var lock review.Lock
	var targetID, holder string

	err := row.Scan(&targetID, &holder, &lock.LockID, &lock.AcquiredAt, &lock.ExpiresAt)
	if err != nil {
		return nil, err
	}
	lock.TargetID = id.TargetID(targetID)
	lock.Holder = id.ReviewerID(holder)
	return &lock, nil
}
