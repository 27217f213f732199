// Package registry assembles caller-facing parcel views by joining
// authoritative on-chain fields with off-chain descriptive metadata, and
// handles first registration of a parcel.
package registry

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"parcelflow/ledger"
	"parcelflow/metadata"
	"parcelflow/price"
)

// ParcelReader is the slice of the ledger client the aggregator needs.
type ParcelReader interface {
	GetParcel(ctx context.Context, id uint64) (ledger.ParcelRecord, error)
	GetOwnedParcelIDs(ctx context.Context, owner string) ([]uint64, error)
	GetAllParcelIDs(ctx context.Context) ([]uint64, error)
}

// Resolver fetches the descriptive document for a metadata CID.
type Resolver interface {
	Resolve(ctx context.Context, cid string) (metadata.ParcelMetadata, error)
}

// AssembledParcel merges on-chain truth with off-chain description.
// When the metadata document could not be resolved, MetadataAvailable is
// false and Metadata is zero; the on-chain fields are still authoritative.
// When even the on-chain record could not be fetched, FetchErr is set and
// only ID is meaningful.
type AssembledParcel struct {
	ID             uint64
	Owner          string
	Status         ledger.Status
	PriceMinorUnit uint64
	PriceHuman     float64
	PendingBuyer   string
	MetadataCID    string
	DocumentCID    string

	Metadata          metadata.ParcelMetadata
	MetadataAvailable bool

	FetchErr error
}

// Aggregator fans out over parcel id sets and assembles views. Per-record
// tasks are data independent: each owns its network calls and writes only
// its own output slot, so results keep the id-set order regardless of
// completion order.
type Aggregator struct {
	ledger    ParcelReader
	resolver  Resolver
	converter price.Converter
	limit     int
}

// NewAggregator wires the aggregator's capabilities.
func NewAggregator(reader ParcelReader, resolver Resolver, converter price.Converter) *Aggregator {
	return &Aggregator{
		ledger:    reader,
		resolver:  resolver,
		converter: converter,
	}
}

// WithConcurrencyLimit caps the per-record fan-out. Zero means unlimited.
func (a *Aggregator) WithConcurrencyLimit(n int) *Aggregator {
	a.limit = n
	return a
}

// ListForOwner assembles the parcels held by owner, in ledger order.
func (a *Aggregator) ListForOwner(ctx context.Context, owner string) ([]AssembledParcel, error) {
	ids, err := a.ledger.GetOwnedParcelIDs(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("registry: list parcels for owner %s: %w", owner, err)
	}
	return a.assemble(ctx, ids), nil
}

// ListAll assembles every registered parcel, in ledger order.
func (a *Aggregator) ListAll(ctx context.Context) ([]AssembledParcel, error) {
	ids, err := a.ledger.GetAllParcelIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list all parcels: %w", err)
	}
	return a.assemble(ctx, ids), nil
}

func (a *Aggregator) assemble(ctx context.Context, ids []uint64) []AssembledParcel {
	out := make([]AssembledParcel, len(ids))

	g := new(errgroup.Group)
	if a.limit > 0 {
		g.SetLimit(a.limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			out[i] = a.assembleOne(ctx, id)
			return nil
		})
	}
	g.Wait()

	return out
}

// assembleOne builds one view. A metadata failure degrades the descriptive
// fields; it never drops the record from the result set.
func (a *Aggregator) assembleOne(ctx context.Context, id uint64) AssembledParcel {
	rec, err := a.ledger.GetParcel(ctx, id)
	if err != nil {
		return AssembledParcel{
			ID:       id,
			FetchErr: fmt.Errorf("registry: parcel %d: %w", id, err),
		}
	}

	view := AssembledParcel{
		ID:             rec.ID,
		Owner:          rec.Owner,
		Status:         rec.Status,
		PriceMinorUnit: rec.PriceMinorUnit,
		PendingBuyer:   rec.PendingBuyer,
		MetadataCID:    rec.MetadataCID,
		DocumentCID:    rec.DocumentCID,
	}
	if rec.PriceMinorUnit > 0 {
		view.PriceHuman = a.converter.ToHuman(rec.PriceMinorUnit)
	}

	if md, err := a.resolver.Resolve(ctx, rec.MetadataCID); err == nil {
		view.Metadata = md
		view.MetadataAvailable = true
	}
	return view
}
