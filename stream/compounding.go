package stream

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/drip/types"
)

// Compounding holds the yield-specific fields of a stream whose token is an
// interest-bearing asset. It lives in a side table keyed by StreamID and is
// created and destroyed with its stream.
type Compounding struct {
	StreamID                 uint64          `json:"stream_id"`
	ExchangeRateInitial      decimal.Decimal `json:"exchange_rate_initial"`
	SenderSharePercentage    decimal.Decimal `json:"sender_share_percentage"`
	RecipientSharePercentage decimal.Decimal `json:"recipient_share_percentage"`
}

// Interest is the apportionment of yield accrued on a settling amount.
type Interest struct {
	GrossYield        decimal.Decimal `json:"gross_yield"`
	SenderInterest    decimal.Decimal `json:"sender_interest"`
	RecipientInterest decimal.Decimal `json:"recipient_interest"`
	ProtocolInterest  decimal.Decimal `json:"protocol_interest"`
}

// ZeroInterest is the split for streams that do not compound.
func ZeroInterest() Interest {
	return Interest{
		GrossYield:        decimal.Zero,
		SenderInterest:    decimal.Zero,
		RecipientInterest: decimal.Zero,
		ProtocolInterest:  decimal.Zero,
	}
}

// Deducted is what the recipient gives up out of the settling amount.
func (i Interest) Deducted() decimal.Decimal {
	return i.SenderInterest.Add(i.ProtocolInterest)
}

// InterestOf splits the yield earned by amount since creation, given the
// asset's current exchange index and the protocol fee percentage.
//
// The fee is taken first from the gross yield; the sender's share applies to
// what is left. The recipient's share is whatever remains and is realized by
// not deducting it. A depreciated index yields nothing, and the gross yield
// never exceeds amount.
func (c *Compounding) InterestOf(amount, currentIndex, fee decimal.Decimal) Interest {
	if !amount.IsPositive() || !currentIndex.GreaterThan(c.ExchangeRateInitial) {
		return ZeroInterest()
	}

	growth := currentIndex.Sub(c.ExchangeRateInitial)
	gross := types.MulDivFloor(amount, growth, c.ExchangeRateInitial)
	gross = types.Min(gross, amount)

	protocol := types.PercentOf(gross, fee)
	remainder := gross.Sub(protocol)
	sender := types.PercentOf(remainder, c.SenderSharePercentage)

	return Interest{
		GrossYield:        gross,
		SenderInterest:    sender,
		RecipientInterest: remainder.Sub(sender),
		ProtocolInterest:  protocol,
	}
}

// ValidShares reports whether both shares are in [0,100] and sum to 100.
func ValidShares(sender, recipient decimal.Decimal) bool {
	return types.ValidPercent(sender) &&
		types.ValidPercent(recipient) &&
		sender.Add(recipient).Equal(types.Hundred)
}

// Clone returns a copy safe to mutate.
func (c *Compounding) Clone() *Compounding {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
