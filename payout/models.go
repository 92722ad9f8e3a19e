// Package payout records transfers the ledger owes after an operation
// committed but the gateway failed part way through paying it out.
package payout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
)

// Payout is an owed push of Amount of Asset to Party. The funds sit in
// ledger custody until the payout is claimed.
type Payout struct {
	ID        id.PayoutID     `json:"id"`
	Op        string          `json:"op"`
	Asset     address.Address `json:"asset"`
	Party     address.Address `json:"party"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Clone returns a copy safe to mutate.
func (p *Payout) Clone() *Payout {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
