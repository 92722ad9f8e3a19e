package drip

import (
	"context"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/payout"
)

// Payouts lists the payouts owed to party. An empty party lists all of them.
func (l *Ledger) Payouts(ctx context.Context, party address.Address) ([]*payout.Payout, error) {
	return l.store.ListPayouts(ctx, party)
}

// ClaimPayout pushes an owed payout to its party and removes it. The payee
// or an admin may claim. A failed push leaves the payout in place.
func (l *Ledger) ClaimPayout(ctx context.Context, payoutID id.ID, caller address.Address) (*payout.Payout, error) {
	const op = "claim_payout"

	p, err := l.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, opErr(op, err)
	}
	if caller != p.Party && !l.policy.IsAdmin(ctx, caller) {
		return nil, &OpError{Op: op, Amount: p.Amount, Err: ErrNotPayee}
	}

	t := l.begin(op)
	if err := l.store.DeletePayout(ctx, payoutID); err != nil {
		return nil, opErr(op, err)
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.InsertPayout(ctx, p)
	})

	t.push(p.Asset, p.Party, p.Amount)
	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	l.logger.Info("payout claimed",
		"payout_id", p.ID,
		"op", p.Op,
		"party", p.Party,
		"asset", p.Asset,
		"amount", p.Amount,
	)
	l.plugins.EmitPayoutClaimed(ctx, p.Clone())

	return p, nil
}
