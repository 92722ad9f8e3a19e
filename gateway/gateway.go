// Package gateway defines the custody boundary of the ledger. Every movement
// of value in or out of ledger custody, and every read of a yield asset's
// exchange index, goes through a Gateway.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
)

// ErrNoExchangeIndex is returned by ExchangeIndex for assets that do not
// bear yield.
var ErrNoExchangeIndex = errors.New("gateway: asset has no exchange index")

// Gateway moves assets between external parties and ledger custody.
//
// Implementations may call back into the ledger from Pull or Push. The
// ledger finalizes its own state before calling either method.
type Gateway interface {
	// Pull moves amount of asset from party into ledger custody.
	Pull(ctx context.Context, asset, from address.Address, amount decimal.Decimal) error
	// Push moves amount of asset from ledger custody to party.
	Push(ctx context.Context, asset, to address.Address, amount decimal.Decimal) error
	// ExchangeIndex returns the current redemption ratio of a yield asset.
	ExchangeIndex(ctx context.Context, asset address.Address) (decimal.Decimal, error)
}
