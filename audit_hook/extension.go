// Package audithook bridges Drip lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any audit product. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/drip"
	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnStreamCreated    = (*Extension)(nil)
	_ plugin.OnWithdrawn        = (*Extension)(nil)
	_ plugin.OnStreamCanceled   = (*Extension)(nil)
	_ plugin.OnTransferFailed   = (*Extension)(nil)
	_ plugin.OnSwapProposed     = (*Extension)(nil)
	_ plugin.OnSwapExecuted     = (*Extension)(nil)
	_ plugin.OnSwapCanceled     = (*Extension)(nil)
	_ plugin.OnProposalCanceled = (*Extension)(nil)
	_ plugin.OnFeeUpdated       = (*Extension)(nil)
	_ plugin.OnEarningsTaken    = (*Extension)(nil)
	_ plugin.OnPayoutClaimed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Drip lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (e *Extension) OnStreamCreated(ctx context.Context, s *stream.Stream, c *stream.Compounding) error {
	kv := []any{
		"sender", s.Sender.String(),
		"recipient", s.Recipient.String(),
		"token", s.Token.String(),
		"deposit", s.Deposit.String(),
		"rate_per_second", s.RatePerSecond.String(),
		"start_time", s.StartTime,
		"stop_time", s.StopTime,
		"compounding", c != nil,
	}
	if c != nil {
		kv = append(kv,
			"exchange_rate_initial", c.ExchangeRateInitial.String(),
			"sender_share", c.SenderSharePercentage.String(),
			"recipient_share", c.RecipientSharePercentage.String(),
		)
	}
	return e.record(ctx, ActionStreamCreated, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s.ID), CategoryStream, nil, kv...)
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (e *Extension) OnWithdrawn(ctx context.Context, st *stream.Settlement) error {
	return e.record(ctx, ActionStreamWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(st.StreamID), CategoryPayment, nil,
		settlementMeta(st)...)
}

// OnStreamCanceled implements plugin.OnStreamCanceled.
func (e *Extension) OnStreamCanceled(ctx context.Context, st *stream.Settlement) error {
	return e.record(ctx, ActionStreamCanceled, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(st.StreamID), CategoryPayment, nil,
		settlementMeta(st)...)
}

// OnTransferFailed implements plugin.OnTransferFailed. A failure after some
// transfers already went through is recorded as partial and critical, since
// the host must reconcile those transfers.
func (e *Extension) OnTransferFailed(ctx context.Context, op string, err error) error {
	severity, outcome := SeverityError, OutcomeFailure
	kv := []any{"op", op}

	var te *drip.TransferError
	if errors.As(err, &te) {
		kv = append(kv,
			"failed_party", te.Failed.Party.String(),
			"failed_amount", te.Failed.Amount.String(),
		)
		if te.Partial() {
			severity, outcome = SeverityCritical, OutcomePartial
			owed := make([]string, len(te.Owed))
			for i, p := range te.Owed {
				owed[i] = p.ID.String()
			}
			kv = append(kv,
				"completed_transfers", len(te.Completed),
				"owed_payouts", owed,
			)
		}
	}
	return e.record(ctx, ActionTransferFailed, severity, outcome,
		ResourceTransfer, "", CategoryPayment, err, kv...)
}

// ──────────────────────────────────────────────────
// Swap lifecycle hooks
// ──────────────────────────────────────────────────

// OnSwapProposed implements plugin.OnSwapProposed.
func (e *Extension) OnSwapProposed(ctx context.Context, p *swap.Proposal) error {
	return e.record(ctx, ActionSwapProposed, SeverityInfo, OutcomeSuccess,
		ResourceSwap, swapID(p.ID), CategorySwap, nil,
		"sender", p.Sender.String(),
		"recipient", p.Recipient.String(),
		"token_sender", p.TokenSender.String(),
		"token_recipient", p.TokenRecipient.String(),
		"deposit_sender", p.DepositSender.String(),
		"deposit_recipient", p.DepositRecipient.String(),
		"duration", p.Duration,
	)
}

// OnSwapExecuted implements plugin.OnSwapExecuted.
func (e *Extension) OnSwapExecuted(ctx context.Context, s *swap.Swap) error {
	return e.record(ctx, ActionSwapExecuted, SeverityInfo, OutcomeSuccess,
		ResourceSwap, swapID(s.ID), CategorySwap, nil,
		"sender_stream_id", s.SenderStreamID,
		"recipient_stream_id", s.RecipientStreamID,
		"start_time", s.StartTime,
		"stop_time", s.StopTime,
	)
}

// OnSwapCanceled implements plugin.OnSwapCanceled.
func (e *Extension) OnSwapCanceled(ctx context.Context, s *swap.Swap, settlements []*stream.Settlement) error {
	canceled := make([]uint64, 0, len(settlements))
	for _, st := range settlements {
		canceled = append(canceled, st.StreamID)
	}
	return e.record(ctx, ActionSwapCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSwap, swapID(s.ID), CategorySwap, nil,
		"canceled_streams", canceled,
	)
}

// OnProposalCanceled implements plugin.OnProposalCanceled.
func (e *Extension) OnProposalCanceled(ctx context.Context, p *swap.Proposal) error {
	return e.record(ctx, ActionProposalCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSwap, swapID(p.ID), CategorySwap, nil,
		"refunded", p.DepositSender.String(),
		"token", p.TokenSender.String(),
	)
}

// ──────────────────────────────────────────────────
// Earnings lifecycle hooks
// ──────────────────────────────────────────────────

// OnFeeUpdated implements plugin.OnFeeUpdated.
func (e *Extension) OnFeeUpdated(ctx context.Context, change *earnings.FeeChange) error {
	return e.record(ctx, ActionFeeUpdated, SeverityWarning, OutcomeSuccess,
		ResourceFee, "", CategoryAdmin, nil,
		"admin", change.Admin.String(),
		"previous", change.Previous.String(),
		"current", change.Current.String(),
	)
}

// OnEarningsTaken implements plugin.OnEarningsTaken.
func (e *Extension) OnEarningsTaken(ctx context.Context, w *earnings.Withdrawal) error {
	return e.record(ctx, ActionEarningsTaken, SeverityInfo, OutcomeSuccess,
		ResourceEarnings, w.ID.String(), CategoryAdmin, nil,
		"admin", w.Admin.String(),
		"asset", w.Asset.String(),
		"amount", w.Amount.String(),
		"remaining", w.Remaining.String(),
	)
}

// OnPayoutClaimed implements plugin.OnPayoutClaimed.
func (e *Extension) OnPayoutClaimed(ctx context.Context, p *payout.Payout) error {
	return e.record(ctx, ActionPayoutClaimed, SeverityInfo, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayment, nil,
		"op", p.Op,
		"party", p.Party.String(),
		"asset", p.Asset.String(),
		"amount", p.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func settlementMeta(st *stream.Settlement) []any {
	return []any{
		"settlement_id", st.ID.String(),
		"caller", st.Caller.String(),
		"token", st.Token.String(),
		"at", st.At,
		"recipient_amount", st.RecipientAmount.String(),
		"sender_amount", st.SenderAmount.String(),
		"sender_interest", st.Interest.SenderInterest.String(),
		"protocol_interest", st.Interest.ProtocolInterest.String(),
		"remaining_balance", st.RemainingBalance.String(),
		"closed", st.Closed,
	}
}

func streamID(id uint64) string { return strconv.FormatUint(id, 10) }

func swapID(id uint64) string { return strconv.FormatUint(id, 10) }

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
