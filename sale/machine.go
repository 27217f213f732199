// Package sale validates parcel sale-lifecycle transitions and computes
// the ledger operation each one requires. The machine never mutates state;
// the ledger commits the transition and confirms it.
package sale

import (
	"errors"
	"fmt"

	"parcelflow/ledger"
	"parcelflow/price"
)

// ErrInvalidTransition signals a (state, event) pair outside the
// transition table or an unauthorized caller. The record is untouched.
var ErrInvalidTransition = errors.New("sale: invalid transition")

// Machine validates sale transitions against the current on-chain record.
type Machine struct{}

func NewMachine() Machine { return Machine{} }

// List moves an unlisted parcel to ForSale at the given minor-unit price.
// Only the current owner may list, and the price must already have passed
// conversion (a zero price is rejected with price.ErrInvalidPrice).
func (Machine) List(rec ledger.ParcelRecord, caller string, priceMinor uint64) (ledger.Operation, error) {
	if priceMinor == 0 {
		return ledger.Operation{}, fmt.Errorf("sale: list parcel %d: %w", rec.ID, price.ErrInvalidPrice)
	}
	if rec.Status != ledger.StatusActive {
		return ledger.Operation{}, invalid("list", rec, caller)
	}
	if caller != rec.Owner {
		return ledger.Operation{}, invalid("list", rec, caller)
	}
	return ledger.Operation{
		Kind:           ledger.OpList,
		LandID:         rec.ID,
		Caller:         caller,
		PriceMinorUnit: priceMinor,
	}, nil
}

// CommitBuyer records a buyer committing exact funds against a listed
// parcel, moving it to PendingApproval. Fails once a buyer is pending.
func (Machine) CommitBuyer(rec ledger.ParcelRecord, caller string, fundsMinor uint64) (ledger.Operation, error) {
	if rec.Status != ledger.StatusForSale {
		return ledger.Operation{}, invalid("buyerCommit", rec, caller)
	}
	if rec.PendingBuyer != "" {
		return ledger.Operation{}, invalid("buyerCommit", rec, caller)
	}
	if caller == rec.Owner {
		return ledger.Operation{}, invalid("buyerCommit", rec, caller)
	}
	if fundsMinor != rec.PriceMinorUnit {
		return ledger.Operation{}, fmt.Errorf("sale: buyerCommit parcel %d: funds %d do not match price %d: %w",
			rec.ID, fundsMinor, rec.PriceMinorUnit, ErrInvalidTransition)
	}
	return ledger.Operation{
		Kind:           ledger.OpBuyerCommit,
		LandID:         rec.ID,
		Caller:         caller,
		FundsMinorUnit: fundsMinor,
	}, nil
}

// Approve lets the owner accept the pending buyer's committed funds,
// completing the sale cycle.
func (Machine) Approve(rec ledger.ParcelRecord, caller string) (ledger.Operation, error) {
	if rec.Status != ledger.StatusPendingApproval {
		return ledger.Operation{}, invalid("approve", rec, caller)
	}
	if caller != rec.Owner {
		return ledger.Operation{}, invalid("approve", rec, caller)
	}
	if rec.PendingBuyer == "" {
		return ledger.Operation{}, invalid("approve", rec, caller)
	}
	return ledger.Operation{
		Kind:   ledger.OpApprove,
		LandID: rec.ID,
		Caller: caller,
	}, nil
}

// Cancel withdraws an open listing or a pending sale, returning the
// parcel to Active. Only the owner may cancel.
func (Machine) Cancel(rec ledger.ParcelRecord, caller string) (ledger.Operation, error) {
	if !rec.Status.Listed() {
		return ledger.Operation{}, invalid("cancel", rec, caller)
	}
	if caller != rec.Owner {
		return ledger.Operation{}, invalid("cancel", rec, caller)
	}
	return ledger.Operation{
		Kind:   ledger.OpCancel,
		LandID: rec.ID,
		Caller: caller,
	}, nil
}

func invalid(event string, rec ledger.ParcelRecord, caller string) error {
	return fmt.Errorf("sale: %s parcel %d in state %s by %s: %w", event, rec.ID, rec.Status, caller, ErrInvalidTransition)
}
