package earnings

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
)

// Store persists the fee and the per-asset earnings balances.
type Store interface {
	// GetFee returns the fee percentage, zero when never set.
	GetFee(ctx context.Context) (decimal.Decimal, error)
	SetFee(ctx context.Context, fee decimal.Decimal) error
	// GetEarnings returns the balance for asset, zero when nothing accrued.
	GetEarnings(ctx context.Context, asset address.Address) (decimal.Decimal, error)
	CreditEarnings(ctx context.Context, asset address.Address, amount decimal.Decimal) error
	// DebitEarnings fails with an insufficiency error when amount exceeds
	// the balance and leaves it unchanged.
	DebitEarnings(ctx context.Context, asset address.Address, amount decimal.Decimal) error
	ListEarnings(ctx context.Context) ([]*Balance, error)
}
