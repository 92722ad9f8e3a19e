package drip

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/types"
)

// Fee returns the protocol fee percentage applied to yield.
func (l *Ledger) Fee(ctx context.Context) (decimal.Decimal, error) {
	return l.store.GetFee(ctx)
}

// Earnings returns the operator's accrued share for asset.
func (l *Ledger) Earnings(ctx context.Context, asset address.Address) (decimal.Decimal, error) {
	return l.store.GetEarnings(ctx, asset)
}

// ListEarnings returns every asset with accrued earnings.
func (l *Ledger) ListEarnings(ctx context.Context) ([]*earnings.Balance, error) {
	return l.store.ListEarnings(ctx)
}

// UpdateFee sets the protocol fee. Admin only.
func (l *Ledger) UpdateFee(ctx context.Context, caller address.Address, fee decimal.Decimal) (*earnings.FeeChange, error) {
	const op = "update_fee"

	if !l.policy.IsAdmin(ctx, caller) {
		return nil, opErr(op, ErrNotAdmin)
	}
	if !types.ValidPercent(fee) {
		return nil, opErr(op, ErrInvalidFee)
	}

	previous, err := l.store.GetFee(ctx)
	if err != nil {
		return nil, opErr(op, err)
	}
	if err := l.store.SetFee(ctx, fee); err != nil {
		return nil, opErr(op, err)
	}

	change := &earnings.FeeChange{Admin: caller, Previous: previous, Current: fee}
	l.logger.Info("fee updated",
		"admin", caller,
		"previous", previous,
		"fee", fee,
	)
	l.plugins.EmitFeeUpdated(ctx, change)

	return change, nil
}

// TakeEarnings pays amount of the accrued earnings for asset to the calling
// admin.
func (l *Ledger) TakeEarnings(ctx context.Context, caller, asset address.Address, amount decimal.Decimal) (*earnings.Withdrawal, error) {
	const op = "take_earnings"

	if !l.policy.IsAdmin(ctx, caller) {
		return nil, opErr(op, ErrNotAdmin)
	}
	if !l.policy.IsApprovedYieldAsset(ctx, asset) {
		return nil, opErr(op, ErrAssetNotApproved)
	}
	if err := validateAmount(amount); err != nil {
		return nil, &OpError{Op: op, Amount: amount, Err: err}
	}

	available, err := l.store.GetEarnings(ctx, asset)
	if err != nil {
		return nil, opErr(op, err)
	}
	if amount.GreaterThan(available) {
		return nil, &OpError{Op: op, Amount: amount, Available: available, Err: ErrInsufficientEarnings}
	}

	t := l.begin(op)
	if err := l.store.DebitEarnings(ctx, asset, amount); err != nil {
		return nil, &OpError{Op: op, Amount: amount, Available: available, Err: err}
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.CreditEarnings(ctx, asset, amount)
	})

	t.push(asset, caller, amount)
	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	w := &earnings.Withdrawal{
		ID:        id.NewEarningsWithdrawalID(),
		Asset:     asset,
		Admin:     caller,
		Amount:    amount,
		Remaining: available.Sub(amount),
		CreatedAt: time.Now().UTC(),
	}
	l.logger.Info("earnings taken",
		"admin", caller,
		"asset", asset,
		"amount", amount,
		"remaining", w.Remaining,
	)
	l.plugins.EmitEarningsTaken(ctx, w)

	return w, nil
}

// creditEarnings adds the protocol's share of a settlement and registers
// the matching debit on rollback.
func (l *Ledger) creditEarnings(ctx context.Context, t *txn, asset address.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := l.store.CreditEarnings(ctx, asset, amount); err != nil {
		return err
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.DebitEarnings(ctx, asset, amount)
	})
	return nil
}
