// Package observability provides a metrics extension for Drip that records
// lifecycle event counts and settled volumes via a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip"
	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnStreamCreated    = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawn        = (*MetricsExtension)(nil)
	_ plugin.OnStreamCanceled   = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed   = (*MetricsExtension)(nil)
	_ plugin.OnSwapProposed     = (*MetricsExtension)(nil)
	_ plugin.OnSwapExecuted     = (*MetricsExtension)(nil)
	_ plugin.OnSwapCanceled     = (*MetricsExtension)(nil)
	_ plugin.OnProposalCanceled = (*MetricsExtension)(nil)
	_ plugin.OnFeeUpdated       = (*MetricsExtension)(nil)
	_ plugin.OnEarningsTaken    = (*MetricsExtension)(nil)
	_ plugin.OnPayoutClaimed    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// Gauge interface for metric gauges.
type Gauge interface {
	Set(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Drip plugin to track stream activity.
type MetricsExtension struct {
	factory MetricFactory

	// Stream metrics
	StreamCreated      Counter
	CompoundingCreated Counter
	StreamDeposit      Histogram
	StreamDuration     Histogram
	Withdrawals        Counter
	WithdrawalAmount   Histogram
	StreamsClosed      Counter
	Cancellations      Counter
	CancelRefundAmount Histogram
	InterestSettled    Counter
	ProtocolInterest   Counter
	TransferFailures   Counter
	PayoutsOwed        Counter
	PayoutsClaimed     Counter
	PayoutAmount       Histogram

	// Swap metrics
	SwapProposed       Counter
	SwapExecuted       Counter
	SwapCanceled       Counter
	ProposalCanceled   Counter
	SwapStreamsSettled Histogram

	// Earnings metrics
	FeeUpdated     Counter
	FeePercent     Gauge
	EarningsTaken  Counter
	EarningsAmount Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use NewPrometheusFactory for a Prometheus registry, or app.Metrics() in
// forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Stream metrics
		StreamCreated:      factory.Counter("drip.stream.created"),
		CompoundingCreated: factory.Counter("drip.stream.compounding.created"),
		StreamDeposit:      factory.Histogram("drip.stream.deposit"),
		StreamDuration:     factory.Histogram("drip.stream.duration_seconds"),
		Withdrawals:        factory.Counter("drip.stream.withdrawals"),
		WithdrawalAmount:   factory.Histogram("drip.stream.withdrawal.amount"),
		StreamsClosed:      factory.Counter("drip.stream.closed"),
		Cancellations:      factory.Counter("drip.stream.canceled"),
		CancelRefundAmount: factory.Histogram("drip.stream.cancel.refund"),
		InterestSettled:    factory.Counter("drip.stream.interest.settled"),
		ProtocolInterest:   factory.Counter("drip.stream.interest.protocol"),
		TransferFailures:   factory.Counter("drip.transfer.failures"),
		PayoutsOwed:        factory.Counter("drip.payout.owed"),
		PayoutsClaimed:     factory.Counter("drip.payout.claimed"),
		PayoutAmount:       factory.Histogram("drip.payout.claimed.amount"),

		// Swap metrics
		SwapProposed:       factory.Counter("drip.swap.proposed"),
		SwapExecuted:       factory.Counter("drip.swap.executed"),
		SwapCanceled:       factory.Counter("drip.swap.canceled"),
		ProposalCanceled:   factory.Counter("drip.swap.proposal.canceled"),
		SwapStreamsSettled: factory.Histogram("drip.swap.cancel.streams"),

		// Earnings metrics
		FeeUpdated:     factory.Counter("drip.earnings.fee.updated"),
		FeePercent:     factory.Gauge("drip.earnings.fee.percent"),
		EarningsTaken:  factory.Counter("drip.earnings.taken"),
		EarningsAmount: factory.Histogram("drip.earnings.taken.amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (m *MetricsExtension) OnStreamCreated(_ context.Context, s *stream.Stream, c *stream.Compounding) error {
	m.StreamCreated.Inc()
	if c != nil {
		m.CompoundingCreated.Inc()
	}
	m.StreamDeposit.Observe(amountFloat(s.Deposit))
	m.StreamDuration.Observe(float64(s.Duration()))
	return nil
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (m *MetricsExtension) OnWithdrawn(_ context.Context, st *stream.Settlement) error {
	m.Withdrawals.Inc()
	m.WithdrawalAmount.Observe(amountFloat(st.RecipientAmount))
	m.settleInterest(st)
	if st.Closed {
		m.StreamsClosed.Inc()
	}
	return nil
}

// OnStreamCanceled implements plugin.OnStreamCanceled.
func (m *MetricsExtension) OnStreamCanceled(_ context.Context, st *stream.Settlement) error {
	m.Cancellations.Inc()
	m.StreamsClosed.Inc()
	m.CancelRefundAmount.Observe(amountFloat(st.SenderAmount))
	m.settleInterest(st)
	return nil
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ string, err error) error {
	m.TransferFailures.Inc()
	var te *drip.TransferError
	if errors.As(err, &te) && len(te.Owed) > 0 {
		m.PayoutsOwed.Add(float64(len(te.Owed)))
	}
	return nil
}

// OnPayoutClaimed implements plugin.OnPayoutClaimed.
func (m *MetricsExtension) OnPayoutClaimed(_ context.Context, p *payout.Payout) error {
	m.PayoutsClaimed.Inc()
	m.PayoutAmount.Observe(amountFloat(p.Amount))
	return nil
}

func (m *MetricsExtension) settleInterest(st *stream.Settlement) {
	if gross := st.Interest.GrossYield; gross.IsPositive() {
		m.InterestSettled.Add(amountFloat(gross))
	}
	if protocol := st.Interest.ProtocolInterest; protocol.IsPositive() {
		m.ProtocolInterest.Add(amountFloat(protocol))
	}
}

// ──────────────────────────────────────────────────
// Swap lifecycle hooks
// ──────────────────────────────────────────────────

// OnSwapProposed implements plugin.OnSwapProposed.
func (m *MetricsExtension) OnSwapProposed(_ context.Context, _ *swap.Proposal) error {
	m.SwapProposed.Inc()
	return nil
}

// OnSwapExecuted implements plugin.OnSwapExecuted.
func (m *MetricsExtension) OnSwapExecuted(_ context.Context, _ *swap.Swap) error {
	m.SwapExecuted.Inc()
	return nil
}

// OnSwapCanceled implements plugin.OnSwapCanceled.
func (m *MetricsExtension) OnSwapCanceled(_ context.Context, _ *swap.Swap, settlements []*stream.Settlement) error {
	m.SwapCanceled.Inc()
	m.SwapStreamsSettled.Observe(float64(len(settlements)))
	return nil
}

// OnProposalCanceled implements plugin.OnProposalCanceled.
func (m *MetricsExtension) OnProposalCanceled(_ context.Context, _ *swap.Proposal) error {
	m.ProposalCanceled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Earnings lifecycle hooks
// ──────────────────────────────────────────────────

// OnFeeUpdated implements plugin.OnFeeUpdated.
func (m *MetricsExtension) OnFeeUpdated(_ context.Context, change *earnings.FeeChange) error {
	m.FeeUpdated.Inc()
	m.FeePercent.Set(amountFloat(change.Current))
	return nil
}

// OnEarningsTaken implements plugin.OnEarningsTaken.
func (m *MetricsExtension) OnEarningsTaken(_ context.Context, w *earnings.Withdrawal) error {
	m.EarningsTaken.Inc()
	m.EarningsAmount.Observe(amountFloat(w.Amount))
	return nil
}

// amountFloat converts an amount for metrics, where precision loss is acceptable.
func amountFloat(d decimal.Decimal) float64 { return d.InexactFloat64() }
