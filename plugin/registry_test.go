package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
)

type recorder struct {
	name      string
	created   atomic.Int32
	withdrawn atomic.Int32
	fee       atomic.Int32
	err       error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnStreamCreated(context.Context, *stream.Stream, *stream.Compounding) error {
	r.created.Add(1)
	return r.err
}

func (r *recorder) OnWithdrawn(context.Context, *stream.Settlement) error {
	r.withdrawn.Add(1)
	return r.err
}

type feeOnly struct{ calls atomic.Int32 }

func (f *feeOnly) Name() string { return "fee-only" }

func (f *feeOnly) OnFeeUpdated(context.Context, *earnings.FeeChange) error {
	f.calls.Add(1)
	return nil
}

type payoutOnly struct{ claimed atomic.Int32 }

func (p *payoutOnly) Name() string { return "payout-only" }

func (p *payoutOnly) OnPayoutClaimed(context.Context, *payout.Payout) error {
	p.claimed.Add(1)
	return nil
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnWithdrawn(ctx context.Context, _ *stream.Settlement) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterAndDispatch(t *testing.T) {
	ctx := context.Background()
	r := quietRegistry()
	rec := &recorder{name: "rec"}
	fee := &feeOnly{}

	require.NoError(t, r.Register(rec))
	require.NoError(t, r.Register(fee))
	assert.Equal(t, 2, r.Count())
	assert.Same(t, rec, r.Get("rec"))
	assert.Nil(t, r.Get("missing"))

	r.EmitStreamCreated(ctx, &stream.Stream{ID: 1}, nil)
	r.EmitWithdrawn(ctx, &stream.Settlement{StreamID: 1})
	r.EmitFeeUpdated(ctx, &earnings.FeeChange{})
	r.EmitStreamCanceled(ctx, &stream.Settlement{StreamID: 1})

	assert.Equal(t, int32(1), rec.created.Load())
	assert.Equal(t, int32(1), rec.withdrawn.Load())
	assert.Equal(t, int32(1), fee.calls.Load())
}

func TestDuplicateRegistration(t *testing.T) {
	r := quietRegistry()
	require.NoError(t, r.Register(&recorder{name: "rec"}))
	assert.Error(t, r.Register(&recorder{name: "rec"}))
}

func TestHookErrorsDoNotPropagate(t *testing.T) {
	r := quietRegistry()
	rec := &recorder{name: "rec", err: errors.New("boom")}
	require.NoError(t, r.Register(rec))

	r.EmitWithdrawn(context.Background(), &stream.Settlement{})
	assert.Equal(t, int32(1), rec.withdrawn.Load())
}

func TestHookTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(10 * time.Millisecond)
	require.NoError(t, r.Register(slow{}))

	start := time.Now()
	r.EmitWithdrawn(context.Background(), &stream.Settlement{})
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestImplementedInterfaces(t *testing.T) {
	names := implementedInterfaces(&recorder{name: "rec"})
	assert.ElementsMatch(t, []string{"OnStreamCreated", "OnWithdrawn"}, names)
}

func TestPayoutClaimedDispatch(t *testing.T) {
	r := quietRegistry()
	p := &payoutOnly{}
	require.NoError(t, r.Register(p))
	require.NoError(t, r.Register(&recorder{name: "rec"}))

	r.EmitPayoutClaimed(context.Background(), &payout.Payout{Party: "alice"})
	assert.Equal(t, int32(1), p.claimed.Load())
	assert.Equal(t, []string{"OnPayoutClaimed"}, implementedInterfaces(p))
}
