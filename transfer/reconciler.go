package transfer

import (
	"context"
	"log"
	"time"
)

// SignerLookup resolves a signer for a seller address. Entries whose key
// is not in custody are skipped and stay visible for manual action.
type SignerLookup func(address string) (Signer, bool)

// Reconciler retries the off-chain regrant for journaled inconsistent
// transfers. Retries are bounded: an entry past MaxAttempts is left for an
// operator, reachable through Journal.ListUnresolved.
type Reconciler struct {
	journal         Journal
	access          AccessController
	signers         SignerLookup
	challengeSecret []byte

	Interval    time.Duration
	MaxAttempts int
	BatchSize   int

	now  func() time.Time
	logf func(format string, args ...any)
}

func NewReconciler(journal Journal, access AccessController, signers SignerLookup, challengeSecret []byte) *Reconciler {
	return &Reconciler{
		journal:         journal,
		access:          access,
		signers:         signers,
		challengeSecret: challengeSecret,
		Interval:        30 * time.Second,
		MaxAttempts:     5,
		BatchSize:       20,
		now:             time.Now,
		logf:            log.Printf,
	}
}

// Run reconciles on the configured interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if resolved, err := r.RunOnce(ctx); err != nil {
				r.logf("transfer: reconcile pass failed: %v", err)
			} else if resolved > 0 {
				r.logf("transfer: reconciled %d inconsistent transfer(s)", resolved)
			}
		}
	}
}

// RunOnce attempts one pass over unresolved entries and reports how many
// it resolved. The regrant is idempotent by contract, so retrying an entry
// that failed mid-flight is safe.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	entries, err := r.journal.ListUnresolved(ctx, r.BatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, e := range entries {
		if e.Attempts >= r.MaxAttempts {
			continue
		}
		signer, ok := r.signers(e.Seller)
		if !ok {
			continue
		}
		if err := signedRegrant(ctx, r.access, signer, r.challengeSecret, r.now, e.Seller, e.Buyer, e.DocumentCID); err != nil {
			if markErr := r.journal.MarkRegrantFailed(ctx, e.ID, err); markErr != nil {
				return resolved, markErr
			}
			continue
		}
		if err := r.journal.MarkResolved(ctx, e.ID); err != nil {
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}
