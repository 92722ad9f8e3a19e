package drip

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
)

// txn collects the gateway transfers an operation owes and the store writes
// that undo its committed state. Records are written first; transfers run
// in order afterwards.
type txn struct {
	op        string
	transfers []stream.Transfer
	undo      []func(context.Context) error
}

func (l *Ledger) begin(op string) *txn { return &txn{op: op} }

// onRollback registers fn to restore state. Rollbacks run in reverse order.
func (t *txn) onRollback(fn func(context.Context) error) {
	t.undo = append(t.undo, fn)
}

// pull plans a transfer into custody. Zero amounts are dropped.
func (t *txn) pull(asset, from address.Address, amount decimal.Decimal) {
	t.add(stream.DirectionPull, asset, from, amount)
}

// push plans a transfer out of custody. Zero amounts are dropped.
func (t *txn) push(asset, to address.Address, amount decimal.Decimal) {
	t.add(stream.DirectionPush, asset, to, amount)
}

func (t *txn) add(dir stream.Direction, asset, party address.Address, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	t.transfers = append(t.transfers, stream.NewTransfer(dir, asset, party, amount))
}

// since returns the transfers planned after the first n.
func (t *txn) since(n int) []stream.Transfer {
	out := make([]stream.Transfer, len(t.transfers)-n)
	copy(out, t.transfers[n:])
	return out
}

// abort rolls back committed records and returns cause.
func (l *Ledger) abort(ctx context.Context, t *txn, cause error) error {
	l.rollback(ctx, t)
	return cause
}

func (l *Ledger) rollback(ctx context.Context, t *txn) {
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](ctx); err != nil {
			l.logger.Error("rollback failed",
				"op", t.op,
				"step", i,
				"error", err,
			)
		}
	}
}

// commit executes the planned transfers in order.
//
// If the first transfer fails nothing has moved: the records are restored
// and the *TransferError is retryable. If a later one fails the operation
// stands as committed, since earlier transfers already paid out the state
// the records now hold. The failed push and every push after it are stored
// as owed payouts instead. Pulls only ever open a txn, so a failure after a
// completed transfer is always a push.
func (l *Ledger) commit(ctx context.Context, t *txn) error {
	for i, tr := range t.transfers {
		var err error
		switch tr.Direction {
		case stream.DirectionPull:
			err = l.gateway.Pull(ctx, tr.Asset, tr.Party, tr.Amount)
		default:
			err = l.gateway.Push(ctx, tr.Asset, tr.Party, tr.Amount)
		}
		if err == nil {
			continue
		}

		terr := &TransferError{
			Op:        t.op,
			Failed:    tr,
			Completed: append([]stream.Transfer(nil), t.transfers[:i]...),
			Err:       err,
		}
		if i == 0 {
			l.rollback(ctx, t)
			l.logger.Warn("transfer failed, state restored",
				"op", t.op,
				"direction", tr.Direction,
				"asset", tr.Asset,
				"party", tr.Party,
				"amount", tr.Amount,
				"error", err,
			)
		} else {
			terr.Owed = l.recordOwed(ctx, t.op, t.transfers[i:])
			l.logger.Error("transfer failed after partial settlement, payouts owed",
				"op", t.op,
				"asset", tr.Asset,
				"party", tr.Party,
				"amount", tr.Amount,
				"completed", i,
				"owed", len(terr.Owed),
				"error", err,
			)
		}
		l.plugins.EmitTransferFailed(ctx, t.op, terr)
		return terr
	}
	return nil
}

// recordOwed stores a payout for each unsent push. A payout that cannot be
// stored is logged with its full details for manual reconciliation.
func (l *Ledger) recordOwed(ctx context.Context, op string, unsent []stream.Transfer) []*payout.Payout {
	owed := make([]*payout.Payout, 0, len(unsent))
	for _, tr := range unsent {
		if tr.Direction != stream.DirectionPush {
			l.logger.Error("unsent pull after partial settlement",
				"op", op,
				"asset", tr.Asset,
				"party", tr.Party,
				"amount", tr.Amount,
			)
			continue
		}
		p := &payout.Payout{
			ID:        id.NewPayoutID(),
			Op:        op,
			Asset:     tr.Asset,
			Party:     tr.Party,
			Amount:    tr.Amount,
			CreatedAt: time.Now().UTC(),
		}
		if err := l.store.InsertPayout(ctx, p); err != nil {
			l.logger.Error("payout not recorded",
				"op", op,
				"asset", tr.Asset,
				"party", tr.Party,
				"amount", tr.Amount,
				"error", err,
			)
			continue
		}
		owed = append(owed, p)
	}
	return owed
}
