// Package swap defines two-sided exchanges composed of mirrored streams.
package swap

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/types"
)

// Proposal is a swap funded only by its proposer. The proposer's deposit is
// held in escrow until the counterparty executes or either side cancels.
type Proposal struct {
	types.Entity

	ID               uint64          `json:"id"`
	Sender           address.Address `json:"sender"`
	Recipient        address.Address `json:"recipient"`
	TokenSender      address.Address `json:"token_sender"`
	TokenRecipient   address.Address `json:"token_recipient"`
	DepositSender    decimal.Decimal `json:"deposit_sender"`
	DepositRecipient decimal.Decimal `json:"deposit_recipient"`
	Duration         int64           `json:"duration"`
	ProposedAt       int64           `json:"proposed_at"`
}

// IsPrincipal reports whether a is the proposer or the counterparty.
func (p *Proposal) IsPrincipal(a address.Address) bool {
	return a == p.Sender || a == p.Recipient
}

// Clone returns a copy safe to mutate.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Swap is an executed proposal. SenderStreamID flows from Sender to
// Recipient in TokenSender; RecipientStreamID flows back in TokenRecipient.
type Swap struct {
	types.Entity

	ID                uint64          `json:"id"`
	Sender            address.Address `json:"sender"`
	Recipient         address.Address `json:"recipient"`
	TokenSender       address.Address `json:"token_sender"`
	TokenRecipient    address.Address `json:"token_recipient"`
	DepositSender     decimal.Decimal `json:"deposit_sender"`
	DepositRecipient  decimal.Decimal `json:"deposit_recipient"`
	SenderStreamID    uint64          `json:"sender_stream_id"`
	RecipientStreamID uint64          `json:"recipient_stream_id"`
	StartTime         int64           `json:"start_time"`
	StopTime          int64           `json:"stop_time"`
}

// IsPrincipal reports whether a is one of the two parties.
func (s *Swap) IsPrincipal(a address.Address) bool {
	return a == s.Sender || a == s.Recipient
}

// InboundStreamID returns the stream paying caller.
func (s *Swap) InboundStreamID(caller address.Address) uint64 {
	if caller == s.Sender {
		return s.RecipientStreamID
	}
	return s.SenderStreamID
}

// StreamIDs returns both underlying stream ids, sender side first.
func (s *Swap) StreamIDs() [2]uint64 {
	return [2]uint64{s.SenderStreamID, s.RecipientStreamID}
}

// Clone returns a copy safe to mutate.
func (s *Swap) Clone() *Swap {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
