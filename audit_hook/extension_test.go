package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
	audithook "github.com/xraph/drip/audit_hook"
	gwmem "github.com/xraph/drip/gateway/memory"
	"github.com/xraph/drip/policy"
	"github.com/xraph/drip/store/memory"
)

type captured struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, e *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captured) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

func (c *captured) last() *audithook.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func setup(t *testing.T, opts ...audithook.Option) (*drip.Ledger, *gwmem.Gateway, *captured) {
	t.Helper()

	rec := &captured{}
	gw := gwmem.New()
	l := drip.New(memory.New(),
		drip.WithGateway(gw),
		drip.WithPolicy(policy.NewStatic([]drip.Address{"admin"}, nil)),
		drip.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		drip.WithPlugin(audithook.New(rec, opts...)),
	)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	gw.Mint("USDC", "alice", decimal.NewFromInt(1000))
	return l, gw, rec
}

func createStream(t *testing.T, l *drip.Ledger) *drip.Stream {
	t.Helper()
	s, err := l.CreateStream(context.Background(), drip.CreateStreamInput{
		Sender:    "alice",
		Recipient: "bob",
		Token:     "USDC",
		Deposit:   decimal.NewFromInt(24),
		StartTime: 100,
		StopTime:  124,
	}, 50)
	require.NoError(t, err)
	return s
}

func TestStreamEventsAreAudited(t *testing.T) {
	l, _, rec := setup(t)
	ctx := context.Background()

	s := createStream(t, l)
	created := rec.last()
	assert.Equal(t, audithook.ResourceStream, created.Resource)
	assert.Equal(t, "1", created.ResourceID)
	assert.Equal(t, "24", created.Metadata["deposit"])
	assert.Equal(t, false, created.Metadata["compounding"])

	_, err := l.Withdraw(ctx, s.ID, "bob", decimal.NewFromInt(8), 108)
	require.NoError(t, err)
	withdrawn := rec.last()
	assert.Equal(t, audithook.ActionStreamWithdrawn, withdrawn.Action)
	assert.Equal(t, "8", withdrawn.Metadata["recipient_amount"])
	assert.Equal(t, "16", withdrawn.Metadata["remaining_balance"])

	_, err = l.Cancel(ctx, s.ID, "alice", 110)
	require.NoError(t, err)

	assert.Equal(t, []string{
		audithook.ActionStreamCreated,
		audithook.ActionStreamWithdrawn,
		audithook.ActionStreamCanceled,
	}, rec.actions())
	assert.Equal(t, true, rec.last().Metadata["closed"])
}

func TestPartialTransferFailureIsCritical(t *testing.T) {
	l, gw, rec := setup(t)
	ctx := context.Background()

	s := createStream(t, l)

	// First push succeeds, second fails.
	gw.FailNext(gwmem.OpPush, nil)
	gw.FailNext(gwmem.OpPush, errors.New("rpc down"))

	_, err := l.Cancel(ctx, s.ID, "alice", 108)
	require.Error(t, err)

	evt := rec.last()
	assert.Equal(t, audithook.ActionTransferFailed, evt.Action)
	assert.Equal(t, audithook.SeverityCritical, evt.Severity)
	assert.Equal(t, audithook.OutcomePartial, evt.Outcome)
	assert.Equal(t, 1, evt.Metadata["completed_transfers"])
	assert.Contains(t, evt.Reason, "rpc down")

	owed, err := l.Payouts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, owed, 1)
	assert.Equal(t, []string{owed[0].ID.String()}, evt.Metadata["owed_payouts"])
}

func TestPayoutClaimIsAudited(t *testing.T) {
	l, gw, rec := setup(t)
	ctx := context.Background()

	s := createStream(t, l)
	gw.FailNext(gwmem.OpPush, nil)
	gw.FailNext(gwmem.OpPush, errors.New("rpc down"))
	_, err := l.Cancel(ctx, s.ID, "alice", 108)
	require.Error(t, err)

	owed, err := l.Payouts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, owed, 1)
	_, err = l.ClaimPayout(ctx, owed[0].ID, "admin")
	require.NoError(t, err)

	evt := rec.last()
	assert.Equal(t, audithook.ActionPayoutClaimed, evt.Action)
	assert.Equal(t, audithook.ResourcePayout, evt.Resource)
	assert.Equal(t, owed[0].ID.String(), evt.ResourceID)
	assert.Equal(t, "cancel", evt.Metadata["op"])
	assert.Equal(t, "16", evt.Metadata["amount"])
}

func TestWithDisabledActions(t *testing.T) {
	l, _, rec := setup(t, audithook.WithDisabledActions(audithook.ActionStreamCreated))
	ctx := context.Background()

	s := createStream(t, l)
	assert.Empty(t, rec.actions())

	_, err := l.Cancel(ctx, s.ID, "bob", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{audithook.ActionStreamCanceled}, rec.actions())
}

func TestWithEnabledActions(t *testing.T) {
	l, _, rec := setup(t, audithook.WithEnabledActions(audithook.ActionFeeUpdated))
	ctx := context.Background()

	createStream(t, l)
	_, err := l.UpdateFee(ctx, "admin", decimal.NewFromInt(10))
	require.NoError(t, err)

	require.Equal(t, []string{audithook.ActionFeeUpdated}, rec.actions())
	evt := rec.last()
	assert.Equal(t, "0", evt.Metadata["previous"])
	assert.Equal(t, "10", evt.Metadata["current"])
	assert.Equal(t, audithook.CategoryAdmin, evt.Category)
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	})
	ext := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := ext.OnTransferFailed(context.Background(), "withdraw", errors.New("boom"))
	assert.NoError(t, err)
}
