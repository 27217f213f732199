package transfer

import (
	"context"
	"errors"
	"testing"
)

func TestMemJournalLifecycle(t *testing.T) {
	j := NewMemJournal()
	ctx := context.Background()

	entry := Entry{ID: "e1", LandID: 7, Seller: sellerAddr, Buyer: buyerAddr, DocumentCID: "cid-doc-7"}
	if err := j.Record(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(ctx, entry); err == nil {
		t.Fatal("expected duplicate record to fail")
	}

	got, ok := j.Get("e1")
	if !ok || got.Status != EntryPending {
		t.Fatalf("expected pending entry, got %+v ok=%v", got, ok)
	}

	if err := j.MarkRegrantFailed(ctx, "e1", errors.New("store: down")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ = j.Get("e1")
	if got.Status != EntryRegrantFailed || got.Attempts != 1 || got.LastError == "" {
		t.Fatalf("unexpected entry after failure: %+v", got)
	}

	unresolved, err := j.ListUnresolved(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unresolved) != 1 || unresolved[0].ID != "e1" {
		t.Fatalf("unexpected unresolved set %+v", unresolved)
	}

	if err := j.MarkResolved(ctx, "e1"); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}
	unresolved, _ = j.ListUnresolved(ctx, 10)
	if len(unresolved) != 0 {
		t.Fatalf("expected empty backlog, got %+v", unresolved)
	}

	if err := j.MarkResolved(ctx, "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestMemJournalListOrderAndLimit(t *testing.T) {
	j := NewMemJournal()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = j.Record(ctx, Entry{ID: id, LandID: 1, Seller: sellerAddr, Buyer: buyerAddr, DocumentCID: "cid"})
		_ = j.MarkRegrantFailed(ctx, id, errors.New("down"))
	}

	got, _ := j.ListUnresolved(ctx, 2)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected oldest-first limited list, got %+v", got)
	}
}
