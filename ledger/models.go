package ledger

import "context"

// Status is the sale lifecycle state of a parcel as recorded on chain.
type Status string

const (
	StatusActive          Status = "Active"
	StatusForSale         Status = "ForSale"
	StatusPendingApproval Status = "PendingApproval"
	StatusApproved        Status = "Approved"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusForSale, StatusPendingApproval, StatusApproved:
		return true
	}
	return false
}

// Listed reports whether the parcel is in an open sale cycle, i.e. a
// pending buyer may legitimately be present.
func (s Status) Listed() bool {
	return s == StatusForSale || s == StatusPendingApproval
}

// ParcelRecord mirrors the authoritative on-chain fields of a land parcel.
// PendingBuyer is the empty string unless the parcel is listed.
type ParcelRecord struct {
	ID             uint64
	Owner          string
	Status         Status
	PriceMinorUnit uint64
	MetadataCID    string
	DocumentCID    string
	PendingBuyer   string
}

// OpKind enumerates the ledger mutations the core may submit.
type OpKind string

const (
	OpRegister          OpKind = "register"
	OpList              OpKind = "list"
	OpBuyerCommit       OpKind = "buyerCommit"
	OpApprove           OpKind = "approve"
	OpCancel            OpKind = "cancel"
	OpTransferOwnership OpKind = "transferOwnership"
)

// Operation is a single ledger call to issue. The core only computes
// operations; the ledger itself commits them and remains the source of
// truth for the resulting state.
type Operation struct {
	Kind   OpKind
	LandID uint64
	// Caller is the address the operation must be authorized by.
	Caller string

	// Kind-specific fields; zero values where not applicable.
	PriceMinorUnit uint64 // list
	FundsMinorUnit uint64 // buyerCommit
	Buyer          string // transferOwnership
	MetadataCID    string // register
	DocumentCID    string // register
}

// Client is the capability interface to the ledger. Implementations are
// supplied by the deployment (RPC client, simulator, test fake); calls are
// assumed atomic and strongly ordered by the ledger itself.
type Client interface {
	GetParcel(ctx context.Context, id uint64) (ParcelRecord, error)
	GetOwnedParcelIDs(ctx context.Context, owner string) ([]uint64, error)
	GetAllParcelIDs(ctx context.Context) ([]uint64, error)
	Submit(ctx context.Context, op Operation) error
}
