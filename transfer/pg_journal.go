package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGJournal is a Postgres-backed Journal so the inconsistent-transfer
// state survives process restarts.
type PGJournal struct {
	pool *pgxpool.Pool
}

func NewPGJournal(pool *pgxpool.Pool) *PGJournal {
	return &PGJournal{pool: pool}
}

// EnsureSchema installs the journal table. Safe to call on every start.
func (j *PGJournal) EnsureSchema(ctx context.Context) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS transfer_journal (
    id           uuid PRIMARY KEY,
    land_id      bigint NOT NULL,
    seller       text NOT NULL,
    buyer        text NOT NULL,
    document_cid text NOT NULL,
    status       text NOT NULL DEFAULT 'pending',
    attempts     int NOT NULL DEFAULT 0,
    last_error   text NOT NULL DEFAULT '',
    created_at   timestamptz NOT NULL DEFAULT now(),
    updated_at   timestamptz NOT NULL DEFAULT now()
)`, `
CREATE INDEX IF NOT EXISTS transfer_journal_unresolved_idx
    ON transfer_journal (created_at) WHERE status = 'regrant_failed'`,
	}
	for _, ddl := range stmts {
		if _, err := j.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("transfer: ensure journal schema: %w", err)
		}
	}
	return nil
}

func (j *PGJournal) Record(ctx context.Context, e Entry) error {
	status := e.Status
	if status == "" {
		status = EntryPending
	}
	const q = `
INSERT INTO transfer_journal (id, land_id, seller, buyer, document_cid, status)
VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := j.pool.Exec(ctx, q, e.ID, e.LandID, e.Seller, e.Buyer, e.DocumentCID, string(status)); err != nil {
		return fmt.Errorf("transfer: record journal entry: %w", err)
	}
	return nil
}

func (j *PGJournal) MarkAborted(ctx context.Context, id string, cause error) error {
	return j.mark(ctx, id, EntryAborted, cause, false)
}

func (j *PGJournal) MarkRegrantFailed(ctx context.Context, id string, cause error) error {
	return j.mark(ctx, id, EntryRegrantFailed, cause, true)
}

func (j *PGJournal) MarkResolved(ctx context.Context, id string) error {
	return j.mark(ctx, id, EntryResolved, nil, false)
}

func (j *PGJournal) mark(ctx context.Context, id string, status EntryStatus, cause error, countAttempt bool) error {
	lastErr := ""
	if cause != nil {
		lastErr = cause.Error()
	}
	bump := 0
	if countAttempt {
		bump = 1
	}
	const q = `
UPDATE transfer_journal
SET status = $2,
    last_error = $3,
    attempts = attempts + $4,
    updated_at = now()
WHERE id = $1
`
	tag, err := j.pool.Exec(ctx, q, id, string(status), lastErr, bump)
	if err != nil {
		return fmt.Errorf("transfer: mark journal entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return nil
}

func (j *PGJournal) ListUnresolved(ctx context.Context, limit int) ([]Entry, error) {
	const q = `
SELECT id, land_id, seller, buyer, document_cid, status, attempts, last_error, created_at, updated_at
FROM transfer_journal
WHERE status = 'regrant_failed'
ORDER BY created_at
LIMIT $1
`
	rows, err := j.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("transfer: list unresolved entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.LandID, &e.Seller, &e.Buyer, &e.DocumentCID, &status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("transfer: scan journal entry: %w", err)
		}
		e.Status = EntryStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transfer: iterate journal entries: %w", err)
	}
	return out, nil
}

// Get loads one entry by id; operator tooling helper.
func (j *PGJournal) Get(ctx context.Context, id string) (Entry, error) {
	const q = `
SELECT id, land_id, seller, buyer, document_cid, status, attempts, last_error, created_at, updated_at
FROM transfer_journal
WHERE id = $1
`
	var e Entry
	var status string
	err := j.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.LandID, &e.Seller, &e.Buyer, &e.DocumentCID, &status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return Entry{}, fmt.Errorf("transfer: get journal entry: %w", err)
	}
	e.Status = EntryStatus(status)
	return e, nil
}
