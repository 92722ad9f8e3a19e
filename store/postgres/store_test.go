package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/drip"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
	"github.com/xraph/drip/types"
)

// setupTestStore starts a PostgreSQL container and returns a migrated store.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	s := New(pool)
	require.NoError(t, s.Migrate(ctx))
	// Migrations are idempotent.
	require.NoError(t, s.Migrate(ctx))

	t.Cleanup(func() {
		_ = s.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	return s
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestStream(id uint64, sender, recipient string) *stream.Stream {
	return &stream.Stream{
		Entity:           types.NewEntity(),
		ID:               id,
		Sender:           drip.Address(sender),
		Recipient:        drip.Address(recipient),
		Token:            "USDC",
		Deposit:          dec("3600000000000000000000"),
		RatePerSecond:    dec("1000000000000000000"),
		RemainingBalance: dec("3600000000000000000000"),
		StartTime:        1000,
		StopTime:         4600,
	}
}

func TestStore_StreamLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.NextStreamID(ctx)
	require.NoError(t, err)
	second, err := s.NextStreamID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	st := newTestStream(first, "alice", "bob")
	require.NoError(t, s.InsertStream(ctx, st, nil))

	err = s.InsertStream(ctx, st, nil)
	assert.ErrorIs(t, err, drip.ErrAlreadyExists)

	got, err := s.GetStream(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, st.Sender, got.Sender)
	assert.Equal(t, st.Recipient, got.Recipient)
	assert.True(t, st.Deposit.Equal(got.Deposit), "deposit survives NUMERIC round trip")
	assert.True(t, st.RatePerSecond.Equal(got.RatePerSecond))
	assert.Equal(t, int64(4600), got.StopTime)

	_, err = s.GetCompounding(ctx, first)
	assert.ErrorIs(t, err, drip.ErrCompoundingNotFound)

	got.RemainingBalance = dec("1")
	got.Touch()
	require.NoError(t, s.UpdateStream(ctx, got))

	got, err = s.GetStream(ctx, first)
	require.NoError(t, err)
	assert.True(t, got.RemainingBalance.Equal(dec("1")))

	require.NoError(t, s.DeleteStream(ctx, first))
	_, err = s.GetStream(ctx, first)
	assert.ErrorIs(t, err, drip.ErrStreamNotFound)
	assert.ErrorIs(t, s.DeleteStream(ctx, first), drip.ErrStreamNotFound)
	assert.ErrorIs(t, s.UpdateStream(ctx, got), drip.ErrStreamNotFound)
}

func TestStore_CompoundingCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	c := &stream.Compounding{
		ExchangeRateInitial:      dec("0.0201"),
		SenderSharePercentage:    dec("50"),
		RecipientSharePercentage: dec("50"),
	}
	require.NoError(t, s.InsertStream(ctx, newTestStream(7, "alice", "bob"), c))

	got, err := s.GetCompounding(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.StreamID)
	assert.True(t, got.ExchangeRateInitial.Equal(dec("0.0201")))
	assert.True(t, got.SenderSharePercentage.Equal(dec("50")))

	require.NoError(t, s.DeleteStream(ctx, 7))
	_, err = s.GetCompounding(ctx, 7)
	assert.ErrorIs(t, err, drip.ErrStreamNotFound)

	// Re-inserting after a delete restores both records.
	require.NoError(t, s.InsertStream(ctx, newTestStream(7, "alice", "bob"), c))
	_, err = s.GetCompounding(ctx, 7)
	require.NoError(t, err)
}

func TestStore_ListStreams(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertStream(ctx, newTestStream(3, "alice", "bob"), nil))
	require.NoError(t, s.InsertStream(ctx, newTestStream(1, "carol", "alice"), nil))
	require.NoError(t, s.InsertStream(ctx, newTestStream(2, "bob", "carol"), nil))

	all, err := s.ListStreams(ctx, stream.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{all[0].ID, all[1].ID, all[2].ID})

	alice, err := s.ListStreams(ctx, stream.ListOpts{Party: "alice"})
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, uint64(1), alice[0].ID)
	assert.Equal(t, uint64(3), alice[1].ID)

	page, err := s.ListStreams(ctx, stream.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(2), page[0].ID)
}

func TestStore_ProposalAndSwap(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.NextSwapID(ctx)
	require.NoError(t, err)

	p := &swap.Proposal{
		Entity:           types.NewEntity(),
		ID:               id,
		Sender:           "alice",
		Recipient:        "bob",
		TokenSender:      "USDC",
		TokenRecipient:   "DAI",
		DepositSender:    dec("100"),
		DepositRecipient: dec("200"),
		Duration:         100,
		ProposedAt:       1000,
	}
	require.NoError(t, s.InsertProposal(ctx, p))
	assert.ErrorIs(t, s.InsertProposal(ctx, p), drip.ErrAlreadyExists)

	gotP, err := s.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, drip.Address("DAI"), gotP.TokenRecipient)
	assert.True(t, gotP.DepositRecipient.Equal(dec("200")))
	assert.Equal(t, int64(100), gotP.Duration)

	require.NoError(t, s.DeleteProposal(ctx, id))
	_, err = s.GetProposal(ctx, id)
	assert.ErrorIs(t, err, drip.ErrProposalNotFound)
	assert.ErrorIs(t, s.DeleteProposal(ctx, id), drip.ErrProposalNotFound)

	sw := &swap.Swap{
		Entity:            types.NewEntity(),
		ID:                id,
		Sender:            "alice",
		Recipient:         "bob",
		TokenSender:       "USDC",
		TokenRecipient:    "DAI",
		DepositSender:     dec("100"),
		DepositRecipient:  dec("200"),
		SenderStreamID:    11,
		RecipientStreamID: 12,
		StartTime:         1000,
		StopTime:          1100,
	}
	require.NoError(t, s.InsertSwap(ctx, sw))

	gotS, err := s.GetSwap(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, [2]uint64{11, 12}, gotS.StreamIDs())
	assert.Equal(t, int64(1100), gotS.StopTime)

	require.NoError(t, s.DeleteSwap(ctx, id))
	_, err = s.GetSwap(ctx, id)
	assert.ErrorIs(t, err, drip.ErrSwapNotFound)
}

func TestStore_FeeAndEarnings(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	fee, err := s.GetFee(ctx)
	require.NoError(t, err)
	assert.True(t, fee.IsZero(), "fee defaults to zero")

	require.NoError(t, s.SetFee(ctx, dec("12.5")))
	require.NoError(t, s.SetFee(ctx, dec("10")))
	fee, err = s.GetFee(ctx)
	require.NoError(t, err)
	assert.True(t, fee.Equal(dec("10")))

	bal, err := s.GetEarnings(ctx, "cUSDC")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	require.NoError(t, s.CreditEarnings(ctx, "cUSDC", dec("5")))
	require.NoError(t, s.CreditEarnings(ctx, "cUSDC", dec("7")))
	require.NoError(t, s.CreditEarnings(ctx, "cDAI", dec("1")))

	bal, err = s.GetEarnings(ctx, "cUSDC")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("12")))

	err = s.DebitEarnings(ctx, "cUSDC", dec("13"))
	assert.True(t, errors.Is(err, drip.ErrInsufficientEarnings))
	assert.True(t, drip.IsInsufficient(err))

	require.NoError(t, s.DebitEarnings(ctx, "cUSDC", dec("12")))
	bal, err = s.GetEarnings(ctx, "cUSDC")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	assert.ErrorIs(t, s.DebitEarnings(ctx, "unknown", dec("1")), drip.ErrInsufficientEarnings)

	list, err := s.ListEarnings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, drip.Address("cDAI"), list[0].Asset)
	assert.Equal(t, drip.Address("cUSDC"), list[1].Asset)
}

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Close())
	err := s.Ping(ctx)
	assert.ErrorIs(t, err, drip.ErrStoreNotReady)
	assert.True(t, drip.IsRetryable(err))
}

func TestStore_SwapStream(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	streamID, err := s.NextStreamID(ctx)
	require.NoError(t, err)
	st := newTestStream(streamID, "alice", "bob")
	st.SwapID = 7
	require.NoError(t, s.InsertStream(ctx, st, nil))

	got, err := s.GetStream(ctx, streamID)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.SwapID)
}

func TestStore_Payouts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	owed := &payout.Payout{
		ID:        id.NewPayoutID(),
		Op:        "cancel",
		Asset:     "USDC",
		Party:     "alice",
		Amount:    dec("3600000000000000000000"),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertPayout(ctx, owed))
	assert.ErrorIs(t, s.InsertPayout(ctx, owed), drip.ErrAlreadyExists)
	require.NoError(t, s.InsertPayout(ctx, &payout.Payout{
		ID: id.NewPayoutID(), Op: "withdraw", Asset: "USDC", Party: "bob", Amount: dec("3"),
	}))

	got, err := s.GetPayout(ctx, owed.ID)
	require.NoError(t, err)
	assert.Equal(t, owed.ID.String(), got.ID.String())
	assert.Equal(t, "cancel", got.Op)
	assert.True(t, owed.Amount.Equal(got.Amount))

	alice, err := s.ListPayouts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 1)
	all, err := s.ListPayouts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.DeletePayout(ctx, owed.ID))
	assert.ErrorIs(t, s.DeletePayout(ctx, owed.ID), drip.ErrPayoutNotFound)
	_, err = s.GetPayout(ctx, owed.ID)
	assert.ErrorIs(t, err, drip.ErrPayoutNotFound)
}
