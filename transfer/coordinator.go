// Package transfer executes the two-phase ownership transfer: the on-chain
// transfer followed by the off-chain encrypted-document access regrant.
// The two systems fail independently, so a phase-2 failure is an explicit
// inconsistent state journaled for reconciliation, never a silent loss.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"parcelflow/ledger"
	"parcelflow/sale"
)

var (
	// ErrTransferInFlight guards against re-entry for the same parcel.
	ErrTransferInFlight = errors.New("transfer: transfer already in flight")
	// ErrLedgerTransfer signals a clean abort: the on-chain phase failed
	// and no off-chain action was taken, so the seller still controls
	// document access.
	ErrLedgerTransfer = errors.New("transfer: on-chain transfer failed")
)

// RegrantError is the inconsistent-transfer state: the buyer owns the
// parcel on chain but document access was not regranted. It carries the
// context a retry needs and is distinguishable from ErrLedgerTransfer.
type RegrantError struct {
	LandID      uint64
	Buyer       string
	DocumentCID string
	Err         error
}

func (e *RegrantError) Error() string {
	return fmt.Sprintf("transfer: access regrant failed for parcel %d (buyer %s, document %s): %v",
		e.LandID, e.Buyer, e.DocumentCID, e.Err)
}

func (e *RegrantError) Unwrap() error { return e.Err }

// Ledger is the slice of the ledger client the coordinator needs.
type Ledger interface {
	GetParcel(ctx context.Context, id uint64) (ledger.ParcelRecord, error)
	Submit(ctx context.Context, op ledger.Operation) error
}

// AccessController is the content store's access-control surface.
type AccessController interface {
	IssueAccessChallenge(ctx context.Context, address string) (string, error)
	RegrantAccess(ctx context.Context, cid, from, to string, signature []byte) error
}

// Signer authorizes the off-chain phase on behalf of the current owner.
type Signer interface {
	Address() string
	Sign(msg []byte) ([]byte, error)
}

// Coordinator runs the two-phase transfer protocol. The per-parcel guard
// is scoped to this process; across processes the ledger's own atomicity
// prevents double transfer and the regrant stays idempotent.
type Coordinator struct {
	ledger          Ledger
	access          AccessController
	journal         Journal
	machine         sale.Machine
	challengeSecret []byte
	opTimeout       time.Duration
	now             func() time.Time
	idGen           func() string

	mu       sync.Mutex
	inflight map[uint64]struct{}
}

const defaultOpTimeout = 30 * time.Second

// NewCoordinator wires the coordinator. challengeSecret is the HMAC secret
// the access-control service signs its challenge tokens with. The journal
// defaults to in-memory; pass a PGJournal via WithJournal for durability.
func NewCoordinator(l Ledger, access AccessController, challengeSecret []byte) *Coordinator {
	return &Coordinator{
		ledger:          l,
		access:          access,
		journal:         NewMemJournal(),
		machine:         sale.NewMachine(),
		challengeSecret: challengeSecret,
		opTimeout:       defaultOpTimeout,
		now:             time.Now,
		idGen:           uuid.NewString,
		inflight:        make(map[uint64]struct{}),
	}
}

// WithJournal replaces the default in-memory journal.
func (c *Coordinator) WithJournal(j Journal) *Coordinator {
	c.journal = j
	return c
}

// WithOperationTimeout bounds one whole transfer, both phases included.
func (c *Coordinator) WithOperationTimeout(d time.Duration) *Coordinator {
	c.opTimeout = d
	return c
}

// TransferOwnership moves the parcel to its pending buyer. Phase 1 submits
// the ledger transfer and waits for its confirmation; only then does phase
// 2 regrant encrypted-document access from seller to buyer. A phase-1
// failure aborts cleanly (ErrLedgerTransfer); a phase-2 failure returns
// *RegrantError and leaves a regrant_failed journal entry for the
// reconciler.
func (c *Coordinator) TransferOwnership(ctx context.Context, landID uint64, buyer string, signer Signer) error {
	if !c.acquire(landID) {
		return fmt.Errorf("%w: parcel %d", ErrTransferInFlight, landID)
	}
	defer c.release(landID)

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	rec, err := c.ledger.GetParcel(ctx, landID)
	if err != nil {
		return fmt.Errorf("transfer: load parcel %d: %w", landID, err)
	}

	// Preconditions are the approve transition's: owner caller, pending
	// buyer present, status PendingApproval.
	if _, err := c.machine.Approve(rec, signer.Address()); err != nil {
		return err
	}
	if buyer != rec.PendingBuyer {
		return fmt.Errorf("transfer: %s is not the pending buyer of parcel %d: %w", buyer, landID, sale.ErrInvalidTransition)
	}

	entry := Entry{
		ID:          c.idGen(),
		LandID:      landID,
		Seller:      rec.Owner,
		Buyer:       buyer,
		DocumentCID: rec.DocumentCID,
		Status:      EntryPending,
	}
	if err := c.journal.Record(ctx, entry); err != nil {
		return fmt.Errorf("transfer: journal parcel %d: %w", landID, err)
	}

	op := ledger.Operation{
		Kind:   ledger.OpTransferOwnership,
		LandID: landID,
		Caller: rec.Owner,
		Buyer:  buyer,
	}
	// Journal marks survive the operation deadline: losing the
	// regrant_failed record would hide the inconsistent state.
	markCtx := context.WithoutCancel(ctx)

	if err := c.ledger.Submit(ctx, op); err != nil {
		_ = c.journal.MarkAborted(markCtx, entry.ID, err)
		return fmt.Errorf("transfer: parcel %d: %w: %w", landID, ErrLedgerTransfer, err)
	}

	if err := signedRegrant(ctx, c.access, signer, c.challengeSecret, c.now, rec.Owner, buyer, rec.DocumentCID); err != nil {
		_ = c.journal.MarkRegrantFailed(markCtx, entry.ID, err)
		return &RegrantError{
			LandID:      landID,
			Buyer:       buyer,
			DocumentCID: rec.DocumentCID,
			Err:         err,
		}
	}

	_ = c.journal.MarkResolved(markCtx, entry.ID)
	return nil
}

func (c *Coordinator) acquire(landID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[landID]; busy {
		return false
	}
	c.inflight[landID] = struct{}{}
	return true
}

func (c *Coordinator) release(landID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, landID)
}
