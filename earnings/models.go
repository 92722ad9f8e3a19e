// Package earnings tracks the operator's share of compounding yield and the
// protocol fee applied to it.
package earnings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
)

// Balance is the accrued, undrained operator share for one asset.
type Balance struct {
	Asset  address.Address `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// Withdrawal is the receipt of an administrative earnings withdrawal.
type Withdrawal struct {
	ID        id.EarningsWithdrawalID `json:"id"`
	Asset     address.Address         `json:"asset"`
	Admin     address.Address         `json:"admin"`
	Amount    decimal.Decimal         `json:"amount"`
	Remaining decimal.Decimal         `json:"remaining"`
	CreatedAt time.Time               `json:"created_at"`
}

// FeeChange records an update of the protocol fee.
type FeeChange struct {
	Admin    address.Address `json:"admin"`
	Previous decimal.Decimal `json:"previous"`
	Current  decimal.Decimal `json:"current"`
}
