// Package stream defines the continuous-payment stream record, its optional
// compounding side data, and the settlement receipts produced when value
// leaves a stream.
package stream

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/types"
)

// Stream is one continuous, one-directional payment. Value accrues to the
// recipient at RatePerSecond between StartTime and StopTime.
type Stream struct {
	types.Entity

	ID               uint64          `json:"id"`
	Sender           address.Address `json:"sender"`
	Recipient        address.Address `json:"recipient"`
	Token            address.Address `json:"token"`
	Deposit          decimal.Decimal `json:"deposit"`
	RatePerSecond    decimal.Decimal `json:"rate_per_second"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	StartTime        int64           `json:"start_time"`
	StopTime         int64           `json:"stop_time"`
	// SwapID is the executed swap the stream belongs to, zero for
	// standalone streams.
	SwapID uint64 `json:"swap_id,omitempty"`
}

// Duration returns StopTime - StartTime in seconds.
func (s *Stream) Duration() int64 { return s.StopTime - s.StartTime }

// DeltaOf returns the seconds elapsed inside the stream window at now:
// zero before StartTime, the full duration after StopTime.
func (s *Stream) DeltaOf(now int64) int64 {
	switch {
	case now <= s.StartTime:
		return 0
	case now < s.StopTime:
		return now - s.StartTime
	default:
		return s.StopTime - s.StartTime
	}
}

// Streamed returns the total value accrued to the recipient by now,
// ignoring withdrawals.
func (s *Stream) Streamed(now int64) decimal.Decimal {
	accrued := decimal.NewFromInt(s.DeltaOf(now)).Mul(s.RatePerSecond)
	return types.Min(accrued, s.Deposit)
}

// Withdrawn returns the total already paid out of the stream.
func (s *Stream) Withdrawn() decimal.Decimal {
	return s.Deposit.Sub(s.RemainingBalance)
}

// RecipientBalance returns what the recipient may withdraw at now.
func (s *Stream) RecipientBalance(now int64) decimal.Decimal {
	return s.Streamed(now).Sub(s.Withdrawn())
}

// SenderBalance returns the part of RemainingBalance not yet accrued to the
// recipient at now.
func (s *Stream) SenderBalance(now int64) decimal.Decimal {
	return s.RemainingBalance.Sub(s.RecipientBalance(now))
}

// BalanceOf returns party's balance at now. Parties other than the sender
// and recipient hold nothing.
func (s *Stream) BalanceOf(party address.Address, now int64) decimal.Decimal {
	switch party {
	case s.Recipient:
		return s.RecipientBalance(now)
	case s.Sender:
		return s.SenderBalance(now)
	default:
		return decimal.Zero
	}
}

// IsParty reports whether a is the sender or the recipient.
func (s *Stream) IsParty(a address.Address) bool {
	return a == s.Sender || a == s.Recipient
}

// Clone returns a copy safe to mutate.
func (s *Stream) Clone() *Stream {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// ListOpts filters stream listings.
type ListOpts struct {
	// Party matches streams where the address is sender or recipient.
	// Empty matches all streams.
	Party  address.Address
	Limit  int
	Offset int
}
