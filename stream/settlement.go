package stream

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
)

// SettlementKind distinguishes partial withdrawals from cancellations.
type SettlementKind string

const (
	SettlementWithdraw SettlementKind = "withdraw"
	SettlementCancel   SettlementKind = "cancel"
)

// Direction says whether value entered or left ledger custody.
type Direction string

const (
	DirectionPull Direction = "pull"
	DirectionPush Direction = "push"
)

// Transfer is one movement executed against the asset gateway.
type Transfer struct {
	ID        id.TransferID   `json:"id"`
	Direction Direction       `json:"direction"`
	Asset     address.Address `json:"asset"`
	Party     address.Address `json:"party"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewTransfer returns a transfer with a fresh id.
func NewTransfer(dir Direction, asset, party address.Address, amount decimal.Decimal) Transfer {
	return Transfer{
		ID:        id.NewTransferID(),
		Direction: dir,
		Asset:     asset,
		Party:     party,
		Amount:    amount,
	}
}

// Settlement is the receipt of a withdraw or cancel. Amounts are the net
// values pushed to each party after interest routing.
type Settlement struct {
	ID               id.SettlementID `json:"id"`
	Kind             SettlementKind  `json:"kind"`
	StreamID         uint64          `json:"stream_id"`
	Token            address.Address `json:"token"`
	Sender           address.Address `json:"sender"`
	Recipient        address.Address `json:"recipient"`
	Caller           address.Address `json:"caller"`
	At               int64           `json:"at"`
	RecipientAmount  decimal.Decimal `json:"recipient_amount"`
	SenderAmount     decimal.Decimal `json:"sender_amount"`
	Interest         Interest        `json:"interest"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Closed           bool            `json:"closed"`
	Transfers        []Transfer      `json:"transfers,omitempty"`
}

// Settled is the principal that left the stream in this settlement.
func (s *Settlement) Settled() decimal.Decimal {
	return s.RecipientAmount.Add(s.SenderAmount).Add(s.Interest.ProtocolInterest)
}
