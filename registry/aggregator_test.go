package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"parcelflow/ledger"
	"parcelflow/metadata"
	"parcelflow/price"
)

type fakeReader struct {
	records map[uint64]ledger.ParcelRecord
	owned   map[string][]uint64
	all     []uint64
	idsErr  error
	recErr  map[uint64]error
}

func (f *fakeReader) GetParcel(ctx context.Context, id uint64) (ledger.ParcelRecord, error) {
	if err := f.recErr[id]; err != nil {
		return ledger.ParcelRecord{}, err
	}
	rec, ok := f.records[id]
	if !ok {
		return ledger.ParcelRecord{}, fmt.Errorf("fake: parcel %d not found", id)
	}
	return rec, nil
}

func (f *fakeReader) GetOwnedParcelIDs(ctx context.Context, owner string) ([]uint64, error) {
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	return f.owned[owner], nil
}

func (f *fakeReader) GetAllParcelIDs(ctx context.Context) ([]uint64, error) {
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	return f.all, nil
}

type fakeResolver struct {
	docs map[string]metadata.ParcelMetadata
}

func (f *fakeResolver) Resolve(ctx context.Context, cid string) (metadata.ParcelMetadata, error) {
	md, ok := f.docs[cid]
	if !ok {
		return metadata.ParcelMetadata{}, fmt.Errorf("%w: cid %s", metadata.ErrUnresolvable, cid)
	}
	return md, nil
}

func testFixture() (*fakeReader, *fakeResolver) {
	reader := &fakeReader{
		records: map[uint64]ledger.ParcelRecord{},
		owned:   map[string][]uint64{},
		recErr:  map[uint64]error{},
	}
	resolver := &fakeResolver{docs: map[string]metadata.ParcelMetadata{}}

	for _, id := range []uint64{3, 1, 8, 5} {
		cid := fmt.Sprintf("cid-%d", id)
		reader.records[id] = ledger.ParcelRecord{
			ID:          id,
			Owner:       "0xaaaa",
			Status:      ledger.StatusActive,
			MetadataCID: cid,
			DocumentCID: fmt.Sprintf("doc-%d", id),
		}
		resolver.docs[cid] = metadata.ParcelMetadata{TitleNumber: fmt.Sprintf("TN-%d", id)}
	}
	reader.all = []uint64{3, 1, 8, 5}
	reader.owned["0xaaaa"] = []uint64{8, 3}
	return reader, resolver
}

func TestListAll_PreservesLedgerOrder(t *testing.T) {
	reader, resolver := testFixture()
	agg := NewAggregator(reader, resolver, price.Default()).WithConcurrencyLimit(2)

	views, err := agg.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(views) != 4 {
		t.Fatalf("expected 4 views, got %d", len(views))
	}
	for i, want := range []uint64{3, 1, 8, 5} {
		if views[i].ID != want {
			t.Errorf("slot %d: expected id %d, got %d", i, want, views[i].ID)
		}
		if !views[i].MetadataAvailable {
			t.Errorf("slot %d: expected metadata", i)
		}
		if want := fmt.Sprintf("TN-%d", want); views[i].Metadata.TitleNumber != want {
			t.Errorf("slot %d: expected title %s, got %s", i, want, views[i].Metadata.TitleNumber)
		}
	}
}

func TestListForOwner(t *testing.T) {
	reader, resolver := testFixture()
	agg := NewAggregator(reader, resolver, price.Default())

	views, err := agg.ListForOwner(context.Background(), "0xaaaa")
	if err != nil {
		t.Fatalf("list for owner: %v", err)
	}
	if len(views) != 2 || views[0].ID != 8 || views[1].ID != 3 {
		t.Fatalf("unexpected views %+v", views)
	}
}

func TestAssemble_MetadataFailureDegradesNotDrops(t *testing.T) {
	reader, resolver := testFixture()
	delete(resolver.docs, "cid-1")
	agg := NewAggregator(reader, resolver, price.Default())

	views, err := agg.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(views) != 4 {
		t.Fatalf("degraded record must stay in the result set, got %d views", len(views))
	}

	degraded := views[1]
	if degraded.ID != 1 {
		t.Fatalf("expected parcel 1 in slot 1, got %d", degraded.ID)
	}
	if degraded.MetadataAvailable {
		t.Error("expected metadata to be unavailable")
	}
	if degraded.Owner != "0xaaaa" || degraded.Status != ledger.StatusActive {
		t.Errorf("on-chain fields must survive metadata failure: %+v", degraded)
	}
}

func TestAssemble_LedgerRecordFailureMarksSlot(t *testing.T) {
	reader, resolver := testFixture()
	reader.recErr[8] = errors.New("rpc: connection reset")
	agg := NewAggregator(reader, resolver, price.Default())

	views, err := agg.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if views[2].FetchErr == nil {
		t.Fatal("expected FetchErr on slot 2")
	}
	if views[2].ID != 8 {
		t.Fatalf("expected id to survive fetch failure, got %d", views[2].ID)
	}
	for _, i := range []int{0, 1, 3} {
		if views[i].FetchErr != nil {
			t.Errorf("slot %d: unexpected fetch error %v", i, views[i].FetchErr)
		}
	}
}

func TestListAll_LedgerIDSetFailureIsFatal(t *testing.T) {
	reader, resolver := testFixture()
	cause := errors.New("rpc: node unreachable")
	reader.idsErr = cause
	agg := NewAggregator(reader, resolver, price.Default())

	if _, err := agg.ListAll(context.Background()); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped ledger failure, got %v", err)
	}
}

func TestAssemble_PriceSurfacedInHumanUnits(t *testing.T) {
	reader, resolver := testFixture()
	rec := reader.records[3]
	rec.Status = ledger.StatusForSale
	rec.PriceMinorUnit = 1_250_000_000
	reader.records[3] = rec

	agg := NewAggregator(reader, resolver, price.Default())
	views, err := agg.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if views[0].PriceHuman != 5000 {
		t.Fatalf("expected human price 5000, got %v", views[0].PriceHuman)
	}
}
