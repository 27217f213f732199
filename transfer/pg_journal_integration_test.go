package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestPGJournal_Integration connects to a real PostgreSQL via DATABASE_URL
// and verifies the full journal lifecycle against the installed schema.
func TestPGJournal_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	journal := NewPGJournal(pool)
	if err := journal.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	id := uuid.NewString()
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM transfer_journal WHERE id = $1`, id)
	})

	entry := Entry{
		ID:          id,
		LandID:      7,
		Seller:      sellerAddr,
		Buyer:       buyerAddr,
		DocumentCID: fmt.Sprintf("cid-doc-%s", id),
	}
	if err := journal.Record(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := journal.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != EntryPending || got.LandID != 7 || got.Buyer != buyerAddr {
		t.Fatalf("unexpected entry %+v", got)
	}

	if err := journal.MarkRegrantFailed(ctx, id, errors.New("store: acl timeout")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, err = journal.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after failure: %v", err)
	}
	if got.Status != EntryRegrantFailed || got.Attempts != 1 || got.LastError == "" {
		t.Fatalf("unexpected entry after failure %+v", got)
	}

	unresolved, err := journal.ListUnresolved(ctx, 100)
	if err != nil {
		t.Fatalf("list unresolved: %v", err)
	}
	found := false
	for _, e := range unresolved {
		if e.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatal("expected entry in unresolved backlog")
	}

	if err := journal.MarkResolved(ctx, id); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}
	got, err = journal.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after resolve: %v", err)
	}
	if got.Status != EntryResolved {
		t.Fatalf("expected resolved, got %s", got.Status)
	}

	if err := journal.MarkResolved(ctx, uuid.NewString()); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound for unknown id, got %v", err)
	}
}
