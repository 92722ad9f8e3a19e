// Package kafka publishes Drip lifecycle events to a Kafka topic as JSON.
//
// Messages are keyed by stream or swap so every event of one stream lands
// on the same partition and keeps its order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Publisher)(nil)
	_ plugin.OnShutdown         = (*Publisher)(nil)
	_ plugin.OnStreamCreated    = (*Publisher)(nil)
	_ plugin.OnWithdrawn        = (*Publisher)(nil)
	_ plugin.OnStreamCanceled   = (*Publisher)(nil)
	_ plugin.OnTransferFailed   = (*Publisher)(nil)
	_ plugin.OnSwapProposed     = (*Publisher)(nil)
	_ plugin.OnSwapExecuted     = (*Publisher)(nil)
	_ plugin.OnSwapCanceled     = (*Publisher)(nil)
	_ plugin.OnProposalCanceled = (*Publisher)(nil)
	_ plugin.OnFeeUpdated       = (*Publisher)(nil)
	_ plugin.OnEarningsTaken    = (*Publisher)(nil)
	_ plugin.OnPayoutClaimed    = (*Publisher)(nil)
)

// Event types carried in Event.Type.
const (
	EventStreamCreated    = "stream.created"
	EventStreamWithdrawn  = "stream.withdrawn"
	EventStreamCanceled   = "stream.canceled"
	EventTransferFailed   = "transfer.failed"
	EventSwapProposed     = "swap.proposed"
	EventSwapExecuted     = "swap.executed"
	EventSwapCanceled     = "swap.canceled"
	EventProposalCanceled = "swap.proposal_canceled"
	EventFeeUpdated       = "fee.updated"
	EventEarningsTaken    = "earnings.taken"
	EventPayoutClaimed    = "payout.claimed"
)

// Config holds Kafka connection configuration.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Event is the JSON envelope of every published message.
type Event struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Publisher is a Drip plugin that forwards lifecycle events to Kafka.
type Publisher struct {
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger for the publisher.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithWriter replaces the Kafka writer, mainly for tests.
func WithWriter(w Writer) Option {
	return func(p *Publisher) { p.writer = w }
}

// New creates a Publisher writing to cfg.Topic. Writes are synchronous and
// wait for all in-sync replicas.
func New(cfg Config, opts ...Option) *Publisher {
	p := &Publisher{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer == nil {
		batchTimeout := cfg.BatchTimeout
		if batchTimeout == 0 {
			batchTimeout = 10 * time.Millisecond
		}
		p.writer = &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
			BatchTimeout: batchTimeout,
		}
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "kafka-publisher" }

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.writer.Close()
}

// ──────────────────────────────────────────────────
// Stream hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (p *Publisher) OnStreamCreated(ctx context.Context, s *stream.Stream, c *stream.Compounding) error {
	return p.publish(ctx, EventStreamCreated, streamKey(s.ID), struct {
		Stream      *stream.Stream      `json:"stream"`
		Compounding *stream.Compounding `json:"compounding,omitempty"`
	}{s, c})
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (p *Publisher) OnWithdrawn(ctx context.Context, st *stream.Settlement) error {
	return p.publish(ctx, EventStreamWithdrawn, streamKey(st.StreamID), st)
}

// OnStreamCanceled implements plugin.OnStreamCanceled.
func (p *Publisher) OnStreamCanceled(ctx context.Context, st *stream.Settlement) error {
	return p.publish(ctx, EventStreamCanceled, streamKey(st.StreamID), st)
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (p *Publisher) OnTransferFailed(ctx context.Context, op string, err error) error {
	return p.publish(ctx, EventTransferFailed, "op:"+op, struct {
		Op    string `json:"op"`
		Error string `json:"error"`
	}{op, err.Error()})
}

// ──────────────────────────────────────────────────
// Swap hooks
// ──────────────────────────────────────────────────

// OnSwapProposed implements plugin.OnSwapProposed.
func (p *Publisher) OnSwapProposed(ctx context.Context, prop *swap.Proposal) error {
	return p.publish(ctx, EventSwapProposed, swapKey(prop.ID), prop)
}

// OnSwapExecuted implements plugin.OnSwapExecuted.
func (p *Publisher) OnSwapExecuted(ctx context.Context, s *swap.Swap) error {
	return p.publish(ctx, EventSwapExecuted, swapKey(s.ID), s)
}

// OnSwapCanceled implements plugin.OnSwapCanceled.
func (p *Publisher) OnSwapCanceled(ctx context.Context, s *swap.Swap, settlements []*stream.Settlement) error {
	return p.publish(ctx, EventSwapCanceled, swapKey(s.ID), struct {
		Swap        *swap.Swap           `json:"swap"`
		Settlements []*stream.Settlement `json:"settlements"`
	}{s, settlements})
}

// OnProposalCanceled implements plugin.OnProposalCanceled.
func (p *Publisher) OnProposalCanceled(ctx context.Context, prop *swap.Proposal) error {
	return p.publish(ctx, EventProposalCanceled, swapKey(prop.ID), prop)
}

// ──────────────────────────────────────────────────
// Earnings hooks
// ──────────────────────────────────────────────────

// OnFeeUpdated implements plugin.OnFeeUpdated.
func (p *Publisher) OnFeeUpdated(ctx context.Context, change *earnings.FeeChange) error {
	return p.publish(ctx, EventFeeUpdated, "fee", change)
}

// OnEarningsTaken implements plugin.OnEarningsTaken.
func (p *Publisher) OnEarningsTaken(ctx context.Context, w *earnings.Withdrawal) error {
	return p.publish(ctx, EventEarningsTaken, "earnings:"+w.Asset.String(), w)
}

// OnPayoutClaimed implements plugin.OnPayoutClaimed.
func (p *Publisher) OnPayoutClaimed(ctx context.Context, owed *payout.Payout) error {
	return p.publish(ctx, EventPayoutClaimed, "payout:"+owed.Party.String(), owed)
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("drip/kafka: marshal %s: %w", eventType, err)
	}

	now := p.now()
	value, err := json.Marshal(Event{
		Type:       eventType,
		Key:        key,
		OccurredAt: now,
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("drip/kafka: marshal envelope: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Time:  now,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		p.logger.Warn("kafka publish failed",
			"event", eventType,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("drip/kafka: publish %s: %w", eventType, err)
	}
	return nil
}

func streamKey(id uint64) string { return "stream:" + strconv.FormatUint(id, 10) }

func swapKey(id uint64) string { return "swap:" + strconv.FormatUint(id, 10) }
