package drip_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
)

var half = drip.Shares{Sender: amt(50), Recipient: amt(50)}

func (f *fixture) createCompounding(t *testing.T, deposit, start, stop, now int64, shares drip.Shares) *drip.Stream {
	t.Helper()
	s, c, err := f.ledger.CreateCompoundingStream(context.Background(), drip.CreateStreamInput{
		Sender:    alice,
		Recipient: bob,
		Token:     cusdc,
		Deposit:   amt(deposit),
		StartTime: start,
		StopTime:  stop,
	}, shares, now)
	require.NoError(t, err)
	assert.Equal(t, s.ID, c.StreamID)
	return s
}

func (f *fixture) setFee(t *testing.T, fee int64) {
	t.Helper()
	_, err := f.ledger.UpdateFee(context.Background(), admin, amt(fee))
	require.NoError(t, err)
}

func TestCreateCompoundingStreamValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := drip.CreateStreamInput{
		Sender: alice, Recipient: bob, Token: cusdc,
		Deposit: amt(100), StartTime: 10, StopTime: 110,
	}

	bad := in
	bad.Deposit = amt(101)
	_, _, err := f.ledger.CreateCompoundingStream(ctx, bad, half, 0)
	assert.ErrorIs(t, err, drip.ErrDepositNotMultipleOfDuration)

	unapproved := in
	unapproved.Token = usdc
	_, _, err = f.ledger.CreateCompoundingStream(ctx, unapproved, half, 0)
	assert.ErrorIs(t, err, drip.ErrAssetNotApproved)

	for _, shares := range []drip.Shares{
		{Sender: amt(50), Recipient: amt(49)},
		{Sender: amt(-1), Recipient: amt(101)},
		{Sender: amt(101), Recipient: amt(-1)},
	} {
		_, _, err = f.ledger.CreateCompoundingStream(ctx, in, shares, 0)
		assert.ErrorIs(t, err, drip.ErrInvalidSharePercentage)
	}

	f.gateway.SetExchangeIndex(cusdc, decimal.Zero)
	_, _, err = f.ledger.CreateCompoundingStream(ctx, in, half, 0)
	assert.ErrorIs(t, err, drip.ErrInvalidExchangeIndex)

	assert.True(t, f.gateway.Custody(cusdc).IsZero())
}

func TestCompoundingWithdrawRoutesInterest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setFee(t, 10)
	s := f.createCompounding(t, 1000, 100, 200, 0, half)

	f.gateway.SetExchangeIndex(cusdc, dec("1.1"))

	preview, err := f.ledger.InterestOf(ctx, s.ID, amt(1000))
	require.NoError(t, err)
	assertDec(t, 100, preview.GrossYield)
	assertDec(t, 45, preview.SenderInterest)
	assertDec(t, 10, preview.ProtocolInterest)

	st, err := f.ledger.Withdraw(ctx, s.ID, bob, amt(1000), 200)
	require.NoError(t, err)
	assert.True(t, st.Closed)
	assertDec(t, 945, st.RecipientAmount)
	assertDec(t, 45, st.SenderAmount)
	assert.True(t, preview.GrossYield.Equal(st.Interest.GrossYield))
	assert.True(t, preview.RecipientInterest.Equal(st.Interest.RecipientInterest))

	assertDec(t, 945, f.holding(cusdc, bob))
	assertDec(t, -1000+45, f.holding(cusdc, alice))

	earned, err := f.ledger.Earnings(ctx, cusdc)
	require.NoError(t, err)
	assertDec(t, 10, earned)
	assert.True(t, f.gateway.Custody(cusdc).Equal(earned))

	_, err = f.ledger.GetCompounding(ctx, s.ID)
	assert.True(t, drip.IsNotFound(err))
}

func TestCompoundingCancelSplitsAtOneSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setFee(t, 10)
	s := f.createCompounding(t, 1000, 100, 200, 0, half)
	f.gateway.SetExchangeIndex(cusdc, dec("1.1"))

	st, err := f.ledger.Cancel(ctx, s.ID, alice, 150)
	require.NoError(t, err)

	// Recipient settles 500: gross 50, protocol 5, sender floor(22.5).
	assertDec(t, 50, st.Interest.GrossYield)
	assertDec(t, 5, st.Interest.ProtocolInterest)
	assertDec(t, 22, st.Interest.SenderInterest)
	assertDec(t, 473, st.RecipientAmount)
	assertDec(t, 522, st.SenderAmount)
	assertDec(t, 1000, st.Settled())

	earned, err := f.ledger.Earnings(ctx, cusdc)
	require.NoError(t, err)
	assertDec(t, 5, earned)
}

func TestInterestBoundaries(t *testing.T) {
	tests := []struct {
		name          string
		fee           int64
		shares        drip.Shares
		wantRecipient int64
		wantSender    int64
		wantEarnings  int64
	}{
		{"fee zero leaves earnings untouched", 0, half, 950, 50, 0},
		{"fee full routes all yield to operator", 100, drip.Shares{Sender: amt(100), Recipient: amt(0)}, 900, 0, 100},
		{"sender share zero", 10, drip.Shares{Sender: amt(0), Recipient: amt(100)}, 990, 0, 10},
		{"sender share full", 10, drip.Shares{Sender: amt(100), Recipient: amt(0)}, 900, 90, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.setFee(t, tt.fee)
			s := f.createCompounding(t, 1000, 100, 200, 0, tt.shares)
			f.gateway.SetExchangeIndex(cusdc, dec("1.1"))

			st, err := f.ledger.Withdraw(ctx, s.ID, bob, amt(1000), 300)
			require.NoError(t, err)
			assertDec(t, tt.wantRecipient, st.RecipientAmount)
			assertDec(t, tt.wantSender, st.SenderAmount)

			earned, err := f.ledger.Earnings(ctx, cusdc)
			require.NoError(t, err)
			assertDec(t, tt.wantEarnings, earned)

			// Nothing created or destroyed.
			total := st.RecipientAmount.Add(st.SenderAmount).Add(earned)
			assertDec(t, 1000, total)
		})
	}
}

func TestDepreciatedIndexYieldsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setFee(t, 10)
	s := f.createCompounding(t, 1000, 100, 200, 0, half)
	f.gateway.SetExchangeIndex(cusdc, dec("0.8"))

	st, err := f.ledger.Withdraw(ctx, s.ID, bob, amt(400), 140)
	require.NoError(t, err)
	assertDec(t, 400, st.RecipientAmount)
	assert.True(t, st.SenderAmount.IsZero())
	assert.True(t, st.Interest.GrossYield.IsZero())
}

func TestInterestOfPlainStream(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.create(t, 24, 1010, 1034, 1000)

	got, err := f.ledger.InterestOf(ctx, s.ID, amt(10))
	require.NoError(t, err)
	assert.True(t, got.GrossYield.IsZero())
	assert.True(t, got.Deducted().IsZero())

	_, err = f.ledger.InterestOf(ctx, s.ID, amt(-1))
	assert.ErrorIs(t, err, drip.ErrInvalidAmount)

	_, err = f.ledger.InterestOf(ctx, 42, amt(1))
	assert.True(t, drip.IsNotFound(err))

	_, err = f.ledger.GetCompounding(ctx, s.ID)
	assert.ErrorIs(t, err, drip.ErrCompoundingNotFound)
}
