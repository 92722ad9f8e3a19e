package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/gateway"
)

func TestPullPush(t *testing.T) {
	ctx := context.Background()
	g := New()
	g.Mint("USDC", "alice", decimal.NewFromInt(100))

	require.NoError(t, g.Pull(ctx, "USDC", "alice", decimal.NewFromInt(60)))
	assert.True(t, g.BalanceOf("USDC", "alice").Equal(decimal.NewFromInt(40)))
	assert.True(t, g.Custody("USDC").Equal(decimal.NewFromInt(60)))

	require.NoError(t, g.Push(ctx, "USDC", "bob", decimal.NewFromInt(25)))
	assert.True(t, g.BalanceOf("USDC", "bob").Equal(decimal.NewFromInt(25)))
	assert.True(t, g.Custody("USDC").Equal(decimal.NewFromInt(35)))
}

func TestInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	g := New()
	g.Mint("USDC", "alice", decimal.NewFromInt(10))

	err := g.Pull(ctx, "USDC", "alice", decimal.NewFromInt(11))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, g.BalanceOf("USDC", "alice").Equal(decimal.NewFromInt(10)))

	err = g.Push(ctx, "USDC", "bob", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	g := New()
	g.Mint("USDC", "alice", decimal.NewFromInt(10))
	boom := errors.New("boom")
	g.FailNext(OpPull, boom)

	assert.ErrorIs(t, g.Pull(ctx, "USDC", "alice", decimal.NewFromInt(1)), boom)
	assert.NoError(t, g.Pull(ctx, "USDC", "alice", decimal.NewFromInt(1)))
}

func TestHooksRunUnlocked(t *testing.T) {
	ctx := context.Background()
	g := New()
	g.Mint("USDC", "alice", decimal.NewFromInt(10))

	var seen decimal.Decimal
	g.OnPush(func(ctx context.Context, asset, party address.Address, amount decimal.Decimal) {
		// Reading state from inside the hook must not deadlock.
		seen = g.BalanceOf(asset, party)
	})

	require.NoError(t, g.Pull(ctx, "USDC", "alice", decimal.NewFromInt(10)))
	require.NoError(t, g.Push(ctx, "USDC", "bob", decimal.NewFromInt(4)))
	assert.True(t, seen.Equal(decimal.NewFromInt(4)))
}

func TestExchangeIndex(t *testing.T) {
	ctx := context.Background()
	g := New()

	_, err := g.ExchangeIndex(ctx, "USDC")
	assert.ErrorIs(t, err, gateway.ErrNoExchangeIndex)

	g.SetExchangeIndex("cUSDC", decimal.RequireFromString("1.05"))
	idx, err := g.ExchangeIndex(ctx, "cUSDC")
	require.NoError(t, err)
	assert.Equal(t, "1.05", idx.String())
}
