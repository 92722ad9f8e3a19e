package drip_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
)

func TestUpdateFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.UpdateFee(ctx, alice, amt(10))
	assert.ErrorIs(t, err, drip.ErrNotAdmin)
	assert.True(t, drip.IsAuthorization(err))

	for _, fee := range []string{"-1", "100.5"} {
		_, err = f.ledger.UpdateFee(ctx, admin, dec(fee))
		assert.ErrorIs(t, err, drip.ErrInvalidFee)
	}

	change, err := f.ledger.UpdateFee(ctx, admin, dec("12.5"))
	require.NoError(t, err)
	assert.True(t, change.Previous.IsZero())
	assert.True(t, change.Current.Equal(dec("12.5")))

	fee, err := f.ledger.Fee(ctx)
	require.NoError(t, err)
	assert.True(t, fee.Equal(dec("12.5")))

	_, err = f.ledger.UpdateFee(ctx, admin, amt(100))
	require.NoError(t, err)
	_, err = f.ledger.UpdateFee(ctx, admin, amt(0))
	require.NoError(t, err)
}

func TestTakeEarnings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setFee(t, 50)
	s := f.createCompounding(t, 1000, 100, 200, 0, half)
	f.gateway.SetExchangeIndex(cusdc, dec("1.2"))

	_, err := f.ledger.Withdraw(ctx, s.ID, bob, amt(1000), 200)
	require.NoError(t, err)

	earned, err := f.ledger.Earnings(ctx, cusdc)
	require.NoError(t, err)
	assertDec(t, 100, earned)

	_, err = f.ledger.TakeEarnings(ctx, alice, cusdc, amt(1))
	assert.ErrorIs(t, err, drip.ErrNotAdmin)

	_, err = f.ledger.TakeEarnings(ctx, admin, usdc, amt(1))
	assert.ErrorIs(t, err, drip.ErrAssetNotApproved)

	_, err = f.ledger.TakeEarnings(ctx, admin, cusdc, amt(0))
	assert.ErrorIs(t, err, drip.ErrZeroAmount)

	_, err = f.ledger.TakeEarnings(ctx, admin, cusdc, amt(101))
	require.ErrorIs(t, err, drip.ErrInsufficientEarnings)
	assert.True(t, drip.IsInsufficient(err))

	w, err := f.ledger.TakeEarnings(ctx, admin, cusdc, amt(60))
	require.NoError(t, err)
	assertDec(t, 40, w.Remaining)
	assert.Equal(t, admin, w.Admin)
	assert.Contains(t, w.ID.String(), "ern_")
	assertDec(t, 60, f.gateway.BalanceOf(cusdc, admin))

	balances, err := f.ledger.ListEarnings(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assertDec(t, 40, balances[0].Amount)
	assertDec(t, 40, f.gateway.Custody(cusdc))
}

func TestRevokedAssetKeepsSettling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setFee(t, 10)
	s := f.createCompounding(t, 1000, 100, 200, 0, half)
	f.gateway.SetExchangeIndex(cusdc, dec("1.1"))
	f.policy.RevokeYieldAsset(cusdc)

	_, err := f.ledger.Withdraw(ctx, s.ID, bob, amt(1000), 200)
	require.NoError(t, err)

	_, err = f.ledger.TakeEarnings(ctx, admin, cusdc, amt(1))
	assert.ErrorIs(t, err, drip.ErrAssetNotApproved)
}
