package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrEntryNotFound signals a journal id with no entry behind it.
var ErrEntryNotFound = errors.New("transfer: journal entry not found")

// EntryStatus tracks where a transfer stands in the two-phase protocol.
type EntryStatus string

const (
	// EntryPending: recorded, on-chain phase not yet confirmed.
	EntryPending EntryStatus = "pending"
	// EntryAborted: on-chain phase failed; system consistent, nothing to do.
	EntryAborted EntryStatus = "aborted"
	// EntryRegrantFailed: on-chain owner moved but document access did not.
	// This is the inconsistent-transfer state awaiting reconciliation.
	EntryRegrantFailed EntryStatus = "regrant_failed"
	// EntryResolved: both phases confirmed.
	EntryResolved EntryStatus = "resolved"
)

// Entry is one journaled transfer attempt. It carries everything a retry
// needs: the parcel, both parties, and the access-controlled document CID.
type Entry struct {
	ID          string
	LandID      uint64
	Seller      string
	Buyer       string
	DocumentCID string
	Status      EntryStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Journal persists transfer attempts so the inconsistent-transfer state
// survives and can be reconciled. Implementations: PGJournal (durable),
// MemJournal (tests and single-process use).
type Journal interface {
	Record(ctx context.Context, e Entry) error
	MarkAborted(ctx context.Context, id string, cause error) error
	// MarkRegrantFailed flags the inconsistent state and counts the attempt.
	MarkRegrantFailed(ctx context.Context, id string, cause error) error
	MarkResolved(ctx context.Context, id string) error
	// ListUnresolved returns regrant_failed entries, oldest first.
	ListUnresolved(ctx context.Context, limit int) ([]Entry, error)
}

// MemJournal is an in-memory Journal.
type MemJournal struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	now     func() time.Time
}

func NewMemJournal() *MemJournal {
	return &MemJournal{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

func (j *MemJournal) Record(ctx context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.entries[e.ID]; ok {
		return fmt.Errorf("transfer: journal entry %s already recorded", e.ID)
	}
	now := j.now()
	e.CreatedAt, e.UpdatedAt = now, now
	if e.Status == "" {
		e.Status = EntryPending
	}
	j.entries[e.ID] = &e
	j.order = append(j.order, e.ID)
	return nil
}

func (j *MemJournal) MarkAborted(ctx context.Context, id string, cause error) error {
	return j.mark(id, EntryAborted, cause, false)
}

func (j *MemJournal) MarkRegrantFailed(ctx context.Context, id string, cause error) error {
	return j.mark(id, EntryRegrantFailed, cause, true)
}

func (j *MemJournal) MarkResolved(ctx context.Context, id string) error {
	return j.mark(id, EntryResolved, nil, false)
}

func (j *MemJournal) mark(id string, status EntryStatus, cause error, countAttempt bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	e.Status = status
	e.UpdatedAt = j.now()
	if cause != nil {
		e.LastError = cause.Error()
	} else {
		e.LastError = ""
	}
	if countAttempt {
		e.Attempts++
	}
	return nil
}

func (j *MemJournal) ListUnresolved(ctx context.Context, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, 0, limit)
	for _, id := range j.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		if e := j.entries[id]; e.Status == EntryRegrantFailed {
			out = append(out, *e)
		}
	}
	return out, nil
}

// Get returns a copy of one entry; test and tooling helper.
func (j *MemJournal) Get(id string) (Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}
