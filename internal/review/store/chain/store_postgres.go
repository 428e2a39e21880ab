package chain

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attest/internal/review"
	txcontext "attest/pkg/platform/tx"
)

// chainLockKey is the advisory lock key serializing chain appends. One chain
// per deployment, so a single constant key is enough.
const chainLockKey = 7201

// PostgresStore persists the audit chain in PostgreSQL. Appends take a
// transaction-scoped advisory lock so the read-tip / hash / insert window is
// serialized across every node sharing the database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed chain store.
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

func (s *PostgresStore) Append(ctx context.Context, action review.Action, actor string, payload review.Payload, ts time.Time) (*review.AuditEntry, error) {
	// Reuse a caller-provided transaction (the decision path appends inside
	// one); otherwise open our own so the advisory lock spans the append.
	if tx, ok := txcontext.From(ctx); ok {
		return s.appendInTx(ctx, tx, action, actor, payload, ts)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin chain append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	entry, err := s.appendInTx(ctx, tx, action, actor, payload, ts)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chain append: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) appendInTx(ctx context.Context, tx *sql.Tx, action review.Action, actor string, payload review.Payload, ts time.Time) (*review.AuditEntry, error) {
	// TIMESTAMPTZ keeps microseconds; hash the timestamp that will actually
	// round-trip, or verification would fail on every read-back.
	ts = ts.UTC().Truncate(time.Microsecond)

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
		return nil, fmt.Errorf("acquire chain lock: %w", err)
	}

	previousHash := review.GenesisHash
	var sequence int64 = 1
	row := tx.QueryRowContext(ctx, `SELECT sequence, chain_hash FROM audit_entries ORDER BY sequence DESC LIMIT 1`)
	var tipSequence int64
	var tipHash string
	switch err := row.Scan(&tipSequence, &tipHash); err {
	case nil:
		sequence = tipSequence + 1
		previousHash = tipHash
	case sql.ErrNoRows:
		// genesis append
	default:
		return nil, fmt.Errorf("read chain tip: %w", err)
	}

	hash, err := review.ComputeChainHash(previousHash, payload, ts, actor)
	if err != nil {
		return nil, err
	}

	entry := review.AuditEntry{
		Sequence:     sequence,
		ID:           uuid.New(),
		Action:       action,
		Actor:        actor,
		Payload:      payload,
		PreviousHash: previousHash,
		ChainHash:    hash,
		Timestamp:    ts.UTC(),
	}

	payloadBytes, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal entry payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_entries (sequence, id, action, actor, payload, previous_hash, chain_hash, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.Sequence, entry.ID, string(entry.Action), entry.Actor, payloadBytes, entry.PreviousHash, entry.ChainHash, entry.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]review.AuditEntry, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT sequence, id, action, actor, payload, previous_hash, chain_hash, ts
		FROM audit_entries ORDER BY sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListRange(ctx context.Context, from, to time.Time) ([]review.AuditEntry, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT sequence, id, action, actor, payload, previous_hash, chain_hash, ts
		FROM audit_entries WHERE ts >= $1 AND ts < $2 ORDER BY sequence
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list audit entries in range: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]review.AuditEntry, error) {
	entries := make([]review.AuditEntry, 0)
	for rows.Next() {
		var entry review.AuditEntry
		var action string
		var payloadBytes []byte
		if err := rows.Scan(&entry.Sequence, &entry.ID, &action, &entry.Actor, &payloadBytes, &entry.PreviousHash, &entry.ChainHash, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = review.Action(action)
		if len(payloadBytes) > 0 {
			if err := json.Unmarshal(payloadBytes, &entry.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal entry payload: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
