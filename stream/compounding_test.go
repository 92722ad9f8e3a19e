package stream

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func compounding(sender, recipient string) *Compounding {
	return &Compounding{
		StreamID:                 1,
		ExchangeRateInitial:      dec("1"),
		SenderSharePercentage:    dec(sender),
		RecipientSharePercentage: dec(recipient),
	}
}

func TestInterestOf(t *testing.T) {
	tests := []struct {
		name          string
		sender        string
		recipient     string
		amount        string
		index         string
		fee           string
		wantGross     string
		wantSender    string
		wantRecipient string
		wantProtocol  string
	}{
		{"split with fee", "50", "50", "1000", "1.1", "10", "100", "45", "45", "10"},
		{"no fee", "50", "50", "1000", "1.1", "0", "100", "50", "50", "0"},
		{"full fee", "50", "50", "1000", "1.1", "100", "100", "0", "0", "100"},
		{"sender share zero", "0", "100", "1000", "1.1", "10", "100", "0", "90", "10"},
		{"sender share full", "100", "0", "1000", "1.1", "10", "100", "90", "0", "10"},
		{"flooring", "33", "67", "7", "1.5", "25", "3", "0", "3", "0"},
		{"depreciated index", "50", "50", "1000", "0.9", "10", "0", "0", "0", "0"},
		{"unchanged index", "50", "50", "1000", "1", "10", "0", "0", "0", "0"},
		{"capped at amount", "50", "50", "10", "3", "0", "10", "5", "5", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := compounding(tt.sender, tt.recipient)
			got := c.InterestOf(dec(tt.amount), dec(tt.index), dec(tt.fee))

			assert.Equal(t, tt.wantGross, got.GrossYield.String())
			assert.Equal(t, tt.wantSender, got.SenderInterest.String())
			assert.Equal(t, tt.wantRecipient, got.RecipientInterest.String())
			assert.Equal(t, tt.wantProtocol, got.ProtocolInterest.String())

			// Nothing created or destroyed.
			net := dec(tt.amount).Sub(got.Deducted())
			assert.True(t, net.Add(got.SenderInterest).Add(got.ProtocolInterest).Equal(dec(tt.amount)))
			assert.True(t, got.GrossYield.Equal(got.SenderInterest.Add(got.RecipientInterest).Add(got.ProtocolInterest)))
		})
	}
}

func TestInterestOfZeroAmount(t *testing.T) {
	got := compounding("50", "50").InterestOf(decimal.Zero, dec("2"), dec("10"))
	assert.True(t, got.GrossYield.IsZero())
	assert.True(t, got.Deducted().IsZero())
}

func TestValidShares(t *testing.T) {
	assert.True(t, ValidShares(dec("50"), dec("50")))
	assert.True(t, ValidShares(dec("0"), dec("100")))
	assert.True(t, ValidShares(dec("33.5"), dec("66.5")))
	assert.False(t, ValidShares(dec("50"), dec("49")))
	assert.False(t, ValidShares(dec("-10"), dec("110")))
	assert.False(t, ValidShares(dec("101"), dec("-1")))
}
