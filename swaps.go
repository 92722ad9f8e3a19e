package drip

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
	"github.com/xraph/drip/types"
)

// ProposeSwapInput describes a swap. Sender proposes and funds
// DepositSender of TokenSender; Recipient later funds DepositRecipient of
// TokenRecipient. Both streams last Duration seconds from execution.
type ProposeSwapInput struct {
	Sender           address.Address
	Recipient        address.Address
	TokenSender      address.Address
	TokenRecipient   address.Address
	DepositSender    decimal.Decimal
	DepositRecipient decimal.Decimal
	Duration         int64
}

func (l *Ledger) validateSwap(in ProposeSwapInput) error {
	if err := l.validateParties(in.Sender, in.Recipient); err != nil {
		return err
	}
	if l.self != "" && in.Sender == l.self {
		return ErrRecipientIsLedger
	}
	for _, token := range []address.Address{in.TokenSender, in.TokenRecipient} {
		if err := l.validator.Validate(token); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
	}
	for _, deposit := range []decimal.Decimal{in.DepositSender, in.DepositRecipient} {
		if err := validateDeposit(deposit); err != nil {
			return err
		}
	}
	if in.Duration <= 0 {
		return ErrInvalidDuration
	}
	if err := validateRate(in.DepositSender, in.Duration); err != nil {
		return err
	}
	return validateRate(in.DepositRecipient, in.Duration)
}

// ProposeSwap escrows the proposer's deposit and records a pending swap.
func (l *Ledger) ProposeSwap(ctx context.Context, in ProposeSwapInput, now int64) (*swap.Proposal, error) {
	const op = "propose_swap"

	if err := l.validateSwap(in); err != nil {
		return nil, &OpError{Op: op, Amount: in.DepositSender, Err: err}
	}

	swapID, err := l.store.NextSwapID(ctx)
	if err != nil {
		return nil, opErr(op, err)
	}

	p := &swap.Proposal{
		Entity:           types.NewEntity(),
		ID:               swapID,
		Sender:           in.Sender,
		Recipient:        in.Recipient,
		TokenSender:      in.TokenSender,
		TokenRecipient:   in.TokenRecipient,
		DepositSender:    in.DepositSender,
		DepositRecipient: in.DepositRecipient,
		Duration:         in.Duration,
		ProposedAt:       now,
	}

	t := l.begin(op)
	if err := l.store.InsertProposal(ctx, p); err != nil {
		return nil, &OpError{Op: op, SwapID: swapID, Err: err}
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.DeleteProposal(ctx, swapID)
	})

	t.pull(p.TokenSender, p.Sender, p.DepositSender)
	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	l.logger.Debug("swap proposed",
		"swap_id", swapID,
		"sender", p.Sender,
		"recipient", p.Recipient,
		"deposit_sender", p.DepositSender,
		"deposit_recipient", p.DepositRecipient,
	)
	l.plugins.EmitSwapProposed(ctx, p.Clone())

	return p, nil
}

// GetProposal returns a pending swap.
func (l *Ledger) GetProposal(ctx context.Context, swapID uint64) (*swap.Proposal, error) {
	p, err := l.store.GetProposal(ctx, swapID)
	if err != nil {
		return nil, &OpError{Op: "get_proposal", SwapID: swapID, Err: err}
	}
	return p, nil
}

// GetSwap returns an executed swap.
func (l *Ledger) GetSwap(ctx context.Context, swapID uint64) (*swap.Swap, error) {
	s, err := l.store.GetSwap(ctx, swapID)
	if err != nil {
		return nil, &OpError{Op: "get_swap", SwapID: swapID, Err: err}
	}
	return s, nil
}

// ExecuteSwap funds the counterparty's side and starts both streams at now.
// Only the counterparty may execute.
func (l *Ledger) ExecuteSwap(ctx context.Context, swapID uint64, caller address.Address, now int64) (*swap.Swap, error) {
	const op = "execute_swap"

	p, err := l.store.GetProposal(ctx, swapID)
	if err != nil {
		return nil, &OpError{Op: op, SwapID: swapID, Err: err}
	}
	if caller != p.Recipient {
		return nil, &OpError{Op: op, SwapID: swapID, Err: ErrNotCounterparty}
	}

	stop := now + p.Duration
	outbound := CreateStreamInput{
		Sender:    p.Sender,
		Recipient: p.Recipient,
		Token:     p.TokenSender,
		Deposit:   p.DepositSender,
		StartTime: now,
		StopTime:  stop,
	}
	inbound := CreateStreamInput{
		Sender:    p.Recipient,
		Recipient: p.Sender,
		Token:     p.TokenRecipient,
		Deposit:   p.DepositRecipient,
		StartTime: now,
		StopTime:  stop,
	}
	for _, in := range []CreateStreamInput{outbound, inbound} {
		if err := l.validateStream(in, now, true); err != nil {
			return nil, &OpError{Op: op, SwapID: swapID, Err: err}
		}
	}

	t := l.begin(op)
	senderStream, err := l.insertStream(ctx, t, outbound, nil, swapID)
	if err != nil {
		return nil, l.abort(ctx, t, &OpError{Op: op, SwapID: swapID, Err: err})
	}
	recipientStream, err := l.insertStream(ctx, t, inbound, nil, swapID)
	if err != nil {
		return nil, l.abort(ctx, t, &OpError{Op: op, SwapID: swapID, Err: err})
	}

	if err := l.store.DeleteProposal(ctx, swapID); err != nil {
		return nil, l.abort(ctx, t, &OpError{Op: op, SwapID: swapID, Err: err})
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.InsertProposal(ctx, p)
	})

	sw := &swap.Swap{
		Entity:            types.NewEntity(),
		ID:                swapID,
		Sender:            p.Sender,
		Recipient:         p.Recipient,
		TokenSender:       p.TokenSender,
		TokenRecipient:    p.TokenRecipient,
		DepositSender:     p.DepositSender,
		DepositRecipient:  p.DepositRecipient,
		SenderStreamID:    senderStream.ID,
		RecipientStreamID: recipientStream.ID,
		StartTime:         now,
		StopTime:          stop,
	}
	if err := l.store.InsertSwap(ctx, sw); err != nil {
		return nil, l.abort(ctx, t, &OpError{Op: op, SwapID: swapID, Err: err})
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.DeleteSwap(ctx, swapID)
	})

	t.pull(p.TokenRecipient, p.Recipient, p.DepositRecipient)
	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	l.logger.Debug("swap executed",
		"swap_id", swapID,
		"sender_stream_id", sw.SenderStreamID,
		"recipient_stream_id", sw.RecipientStreamID,
	)
	l.plugins.EmitStreamCreated(ctx, senderStream.Clone(), nil)
	l.plugins.EmitStreamCreated(ctx, recipientStream.Clone(), nil)
	l.plugins.EmitSwapExecuted(ctx, sw.Clone())

	return sw, nil
}

// WithdrawFromSwap withdraws from the stream paying caller. The swap is
// removed once both of its streams are drained.
func (l *Ledger) WithdrawFromSwap(ctx context.Context, swapID uint64, caller address.Address, amount decimal.Decimal, now int64) (*stream.Settlement, error) {
	const op = "withdraw_from_swap"

	sw, err := l.store.GetSwap(ctx, swapID)
	if err != nil {
		return nil, &OpError{Op: op, SwapID: swapID, Err: err}
	}
	if !sw.IsPrincipal(caller) {
		return nil, &OpError{Op: op, SwapID: swapID, Err: ErrUnauthorized}
	}

	t := l.begin(op)
	st, err := l.prepareWithdraw(ctx, t, sw.InboundStreamID(caller), caller, amount, now)
	if err != nil {
		return nil, l.abort(ctx, t, err)
	}
	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	l.logWithdrawn(st)
	l.plugins.EmitWithdrawn(ctx, st)
	return st, nil
}

// retireSwap deletes swap swapID once none of its streams is live. It is a
// no-op for standalone streams and for swaps already retired.
func (l *Ledger) retireSwap(ctx context.Context, t *txn, swapID uint64) error {
	if swapID == 0 {
		return nil
	}
	sw, err := l.store.GetSwap(ctx, swapID)
	if errors.Is(err, ErrSwapNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, streamID := range sw.StreamIDs() {
		_, err := l.store.GetStream(ctx, streamID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStreamNotFound) {
			return err
		}
	}

	if err := l.store.DeleteSwap(ctx, sw.ID); err != nil {
		return err
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.InsertSwap(ctx, sw)
	})
	l.logger.Debug("swap drained", "swap_id", sw.ID)
	return nil
}

// CancelSwap cancels every live stream of the swap and removes it. Each
// stream settles on its own terms; the two settlements need not match.
func (l *Ledger) CancelSwap(ctx context.Context, swapID uint64, caller address.Address, now int64) ([]*stream.Settlement, error) {
	const op = "cancel_swap"

	sw, err := l.store.GetSwap(ctx, swapID)
	if err != nil {
		return nil, &OpError{Op: op, SwapID: swapID, Err: err}
	}
	if !sw.IsPrincipal(caller) {
		return nil, &OpError{Op: op, SwapID: swapID, Err: ErrUnauthorized}
	}

	t := l.begin(op)
	var settlements []*stream.Settlement
	for _, streamID := range sw.StreamIDs() {
		st, err := l.prepareCancel(ctx, t, streamID, caller, now)
		if errors.Is(err, ErrStreamNotFound) {
			continue
		}
		if err != nil {
			return nil, l.abort(ctx, t, err)
		}
		settlements = append(settlements, st)
	}

	// Closing the last live stream retired the swap already; this covers a
	// swap whose streams were all gone before the call.
	if err := l.retireSwap(ctx, t, swapID); err != nil {
		return nil, l.abort(ctx, t, &OpError{Op: op, SwapID: swapID, Err: err})
	}

	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	for _, st := range settlements {
		l.logCanceled(st)
		l.plugins.EmitStreamCanceled(ctx, st)
	}
	l.logger.Debug("swap canceled",
		"swap_id", swapID,
		"settled_streams", len(settlements),
	)
	l.plugins.EmitSwapCanceled(ctx, sw, settlements)

	return settlements, nil
}

// CancelProposedSwap refunds the proposer's escrow and drops the proposal.
// Either principal may cancel.
func (l *Ledger) CancelProposedSwap(ctx context.Context, swapID uint64, caller address.Address) (*swap.Proposal, error) {
	const op = "cancel_proposed_swap"

	p, err := l.store.GetProposal(ctx, swapID)
	if err != nil {
		return nil, &OpError{Op: op, SwapID: swapID, Err: err}
	}
	if !p.IsPrincipal(caller) {
		return nil, &OpError{Op: op, SwapID: swapID, Err: ErrUnauthorized}
	}

	t := l.begin(op)
	if err := l.store.DeleteProposal(ctx, swapID); err != nil {
		return nil, &OpError{Op: op, SwapID: swapID, Err: err}
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.InsertProposal(ctx, p)
	})

	t.push(p.TokenSender, p.Sender, p.DepositSender)
	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	l.logger.Debug("swap proposal canceled",
		"swap_id", swapID,
		"caller", caller,
		"refund", p.DepositSender,
	)
	l.plugins.EmitProposalCanceled(ctx, p)

	return p, nil
}
