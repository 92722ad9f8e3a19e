package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip"
	gwmem "github.com/xraph/drip/gateway/memory"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/policy"
	"github.com/xraph/drip/publisher/kafka"
	"github.com/xraph/drip/store/memory"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) events(t *testing.T) []kafka.Event {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]kafka.Event, len(w.msgs))
	for i, m := range w.msgs {
		require.NoError(t, json.Unmarshal(m.Value, &out[i]))
		assert.Equal(t, out[i].Key, string(m.Key))
	}
	return out
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublisher_StreamEvents(t *testing.T) {
	w := &recordingWriter{}
	gw := gwmem.New()
	l := drip.New(memory.New(),
		drip.WithGateway(gw),
		drip.WithPolicy(policy.DenyAll{}),
		drip.WithLogger(quiet()),
		drip.WithPlugin(kafka.New(kafka.Config{Topic: "drip-events"}, kafka.WithWriter(w), kafka.WithLogger(quiet()))),
	)
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))

	gw.Mint("USDC", "alice", decimal.NewFromInt(100))
	s, err := l.CreateStream(ctx, drip.CreateStreamInput{
		Sender: "alice", Recipient: "bob", Token: "USDC",
		Deposit: decimal.NewFromInt(24), StartTime: 100, StopTime: 124,
	}, 50)
	require.NoError(t, err)

	_, err = l.Withdraw(ctx, s.ID, "bob", decimal.NewFromInt(8), 108)
	require.NoError(t, err)

	events := w.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, kafka.EventStreamCreated, events[0].Type)
	assert.Equal(t, kafka.EventStreamWithdrawn, events[1].Type)
	assert.Equal(t, "stream:1", events[1].Key)

	var settlement drip.Settlement
	require.NoError(t, json.Unmarshal(events[1].Data, &settlement))
	assert.True(t, settlement.RecipientAmount.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, uint64(1), settlement.StreamID)

	require.NoError(t, l.Stop())
	assert.True(t, w.closed, "writer is closed on shutdown")
}

func TestPublisher_WriteErrorIsReturned(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker unavailable")}
	p := kafka.New(kafka.Config{}, kafka.WithWriter(w), kafka.WithLogger(quiet()))

	err := p.OnTransferFailed(context.Background(), "withdraw", errors.New("boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestPublisher_SwapKeys(t *testing.T) {
	w := &recordingWriter{}
	p := kafka.New(kafka.Config{}, kafka.WithWriter(w), kafka.WithLogger(quiet()))
	ctx := context.Background()

	require.NoError(t, p.OnSwapProposed(ctx, &drip.Proposal{ID: 7}))
	require.NoError(t, p.OnProposalCanceled(ctx, &drip.Proposal{ID: 7}))

	events := w.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, "swap:7", events[0].Key)
	assert.Equal(t, kafka.EventProposalCanceled, events[1].Type)
}

func TestPublisher_PayoutClaimed(t *testing.T) {
	w := &recordingWriter{}
	p := kafka.New(kafka.Config{}, kafka.WithWriter(w), kafka.WithLogger(quiet()))

	require.NoError(t, p.OnPayoutClaimed(context.Background(), &payout.Payout{
		Op: "cancel", Asset: "USDC", Party: "alice", Amount: decimal.NewFromInt(14),
	}))

	events := w.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, kafka.EventPayoutClaimed, events[0].Type)
	assert.Equal(t, "payout:alice", events[0].Key)

	var got payout.Payout
	require.NoError(t, json.Unmarshal(events[0].Data, &got))
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(14)))
	assert.Equal(t, "cancel", got.Op)
}
