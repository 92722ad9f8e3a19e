package drip

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// CreateStreamInput describes a new stream. Times are unix seconds.
type CreateStreamInput struct {
	Sender    address.Address
	Recipient address.Address
	Token     address.Address
	Deposit   decimal.Decimal
	StartTime int64
	StopTime  int64
}

// validateStream checks in against the creation rules in a fixed order so
// the first violated rule is the one reported. Swap legs start at now, so
// startAtNow relaxes StartTime > now to StartTime >= now.
func (l *Ledger) validateStream(in CreateStreamInput, now int64, startAtNow bool) error {
	if err := l.validateParties(in.Sender, in.Recipient); err != nil {
		return err
	}
	if err := l.validator.Validate(in.Token); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if err := validateDeposit(in.Deposit); err != nil {
		return err
	}

	switch {
	case startAtNow && in.StartTime < now, !startAtNow && in.StartTime <= now:
		return ErrStartTimeBeforeNow
	case in.StopTime <= in.StartTime:
		return ErrStopTimeBeforeStartTime
	}

	return validateRate(in.Deposit, in.StopTime-in.StartTime)
}

func (l *Ledger) validateParties(sender, recipient address.Address) error {
	if err := l.validator.Validate(recipient); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}
	if recipient == sender {
		return ErrRecipientIsSender
	}
	if l.self != "" && recipient == l.self {
		return ErrRecipientIsLedger
	}
	if err := l.validator.Validate(sender); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSender, err)
	}
	return nil
}

func validateDeposit(deposit decimal.Decimal) error {
	if deposit.IsNegative() || !types.IsWhole(deposit) {
		return ErrInvalidAmount
	}
	if deposit.IsZero() {
		return ErrZeroDeposit
	}
	return nil
}

// validateRate requires at least one unit per second and an exact rate.
func validateRate(deposit decimal.Decimal, duration int64) error {
	d := decimal.NewFromInt(duration)
	if deposit.LessThan(d) {
		return ErrDepositSmallerThanDuration
	}
	if !deposit.Mod(d).IsZero() {
		return ErrDepositNotMultipleOfDuration
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || !types.IsWhole(amount) {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	return nil
}

// newStream builds the record for a validated input.
func newStream(streamID uint64, in CreateStreamInput) *stream.Stream {
	rate, _ := in.Deposit.QuoRem(decimal.NewFromInt(in.StopTime-in.StartTime), 0)
	return &stream.Stream{
		Entity:           types.NewEntity(),
		ID:               streamID,
		Sender:           in.Sender,
		Recipient:        in.Recipient,
		Token:            in.Token,
		Deposit:          in.Deposit,
		RatePerSecond:    rate,
		RemainingBalance: in.Deposit,
		StartTime:        in.StartTime,
		StopTime:         in.StopTime,
	}
}

// insertStream reserves an id, stores the stream and registers its removal
// on rollback. swapID is zero for standalone streams.
func (l *Ledger) insertStream(ctx context.Context, t *txn, in CreateStreamInput, c *stream.Compounding, swapID uint64) (*stream.Stream, error) {
	streamID, err := l.store.NextStreamID(ctx)
	if err != nil {
		return nil, err
	}

	s := newStream(streamID, in)
	s.SwapID = swapID
	if c != nil {
		c.StreamID = streamID
	}
	if err := l.store.InsertStream(ctx, s, c); err != nil {
		return nil, err
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.DeleteStream(ctx, streamID)
	})
	return s, nil
}

// CreateStream opens a stream and pulls its deposit from the sender.
func (l *Ledger) CreateStream(ctx context.Context, in CreateStreamInput, now int64) (*stream.Stream, error) {
	if err := l.validateStream(in, now, false); err != nil {
		return nil, &OpError{Op: "create_stream", Amount: in.Deposit, Err: err}
	}
	return l.openStream(ctx, "create_stream", in, nil)
}

func (l *Ledger) openStream(ctx context.Context, op string, in CreateStreamInput, c *stream.Compounding) (*stream.Stream, error) {
	t := l.begin(op)
	s, err := l.insertStream(ctx, t, in, c, 0)
	if err != nil {
		return nil, l.abort(ctx, t, &OpError{Op: op, Err: err})
	}

	t.pull(s.Token, s.Sender, s.Deposit)
	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	l.logger.Debug("stream created",
		"stream_id", s.ID,
		"sender", s.Sender,
		"recipient", s.Recipient,
		"deposit", s.Deposit,
		"compounding", c != nil,
	)
	l.plugins.EmitStreamCreated(ctx, s.Clone(), c.Clone())

	return s, nil
}

// GetStream returns a live stream.
func (l *Ledger) GetStream(ctx context.Context, streamID uint64) (*stream.Stream, error) {
	s, err := l.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, &OpError{Op: "get_stream", StreamID: streamID, Err: err}
	}
	return s, nil
}

// ListStreams lists live streams, optionally filtered by party.
func (l *Ledger) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	return l.store.ListStreams(ctx, opts)
}

// DeltaOf returns the seconds of the stream window elapsed at now.
func (l *Ledger) DeltaOf(ctx context.Context, streamID uint64, now int64) (int64, error) {
	s, err := l.GetStream(ctx, streamID)
	if err != nil {
		return 0, err
	}
	return s.DeltaOf(now), nil
}

// BalanceOf returns party's share of the stream at now. Principal only;
// interest is applied when value is settled.
func (l *Ledger) BalanceOf(ctx context.Context, streamID uint64, party address.Address, now int64) (decimal.Decimal, error) {
	s, err := l.GetStream(ctx, streamID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.BalanceOf(party, now), nil
}

// Withdraw pays amount of the recipient's accrued balance to the recipient.
// Either party may trigger it. The stream is removed once drained.
func (l *Ledger) Withdraw(ctx context.Context, streamID uint64, caller address.Address, amount decimal.Decimal, now int64) (*stream.Settlement, error) {
	t := l.begin("withdraw")
	st, err := l.prepareWithdraw(ctx, t, streamID, caller, amount, now)
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

// Cancel closes the stream, paying each party its balance at now.
func (l *Ledger) Cancel(ctx context.Context, streamID uint64, caller address.Address, now int64) (*stream.Settlement, error) {
	t := l.begin("cancel")
	st, err := l.prepareCancel(ctx, t, streamID, caller, now)
	if err != nil {
		return nil, l.abort(ctx, t, err)
	}
	if err := l.commit(ctx, t); err != nil {
		return nil, err
	}

	l.logCanceled(st)
	l.plugins.EmitStreamCanceled(ctx, st)
	return st, nil
}

// loadParty fetches the stream and its compounding record and checks that
// caller is one of its parties.
func (l *Ledger) loadParty(ctx context.Context, op string, streamID uint64, caller address.Address) (*stream.Stream, *stream.Compounding, error) {
	s, err := l.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, nil, &OpError{Op: op, StreamID: streamID, Err: err}
	}
	if !s.IsParty(caller) {
		return nil, nil, &OpError{Op: op, StreamID: streamID, Err: ErrUnauthorized}
	}
	c, err := l.compoundingOf(ctx, streamID)
	if err != nil {
		return nil, nil, &OpError{Op: op, StreamID: streamID, Err: err}
	}
	return s, c, nil
}

func (l *Ledger) prepareWithdraw(ctx context.Context, t *txn, streamID uint64, caller address.Address, amount decimal.Decimal, now int64) (*stream.Settlement, error) {
	if err := validateAmount(amount); err != nil {
		return nil, &OpError{Op: t.op, StreamID: streamID, Amount: amount, Err: err}
	}

	s, c, err := l.loadParty(ctx, t.op, streamID, caller)
	if err != nil {
		return nil, err
	}

	available := s.RecipientBalance(now)
	if amount.GreaterThan(available) {
		return nil, &OpError{Op: t.op, StreamID: streamID, Amount: amount, Available: available, Err: ErrInsufficientBalance}
	}

	interest, err := l.interestFor(ctx, s, c, amount)
	if err != nil {
		return nil, &OpError{Op: t.op, StreamID: streamID, Err: err}
	}

	updated := s.Clone()
	updated.RemainingBalance = s.RemainingBalance.Sub(amount)
	updated.Touch()
	closed := updated.RemainingBalance.IsZero()

	if closed {
		err = l.store.DeleteStream(ctx, streamID)
	} else {
		err = l.store.UpdateStream(ctx, updated)
	}
	if err != nil {
		return nil, &OpError{Op: t.op, StreamID: streamID, Err: err}
	}
	t.onRollback(func(ctx context.Context) error {
		if closed {
			return l.store.InsertStream(ctx, s, c)
		}
		return l.store.UpdateStream(ctx, s)
	})
	if closed {
		if err := l.retireSwap(ctx, t, s.SwapID); err != nil {
			return nil, &OpError{Op: t.op, StreamID: streamID, SwapID: s.SwapID, Err: err}
		}
	}

	if err := l.creditEarnings(ctx, t, s.Token, interest.ProtocolInterest); err != nil {
		return nil, &OpError{Op: t.op, StreamID: streamID, Err: err}
	}

	n := len(t.transfers)
	recipientAmount := amount.Sub(interest.Deducted())
	t.push(s.Token, s.Recipient, recipientAmount)
	t.push(s.Token, s.Sender, interest.SenderInterest)

	return &stream.Settlement{
		ID:               id.NewSettlementID(),
		Kind:             stream.SettlementWithdraw,
		StreamID:         streamID,
		Token:            s.Token,
		Sender:           s.Sender,
		Recipient:        s.Recipient,
		Caller:           caller,
		At:               now,
		RecipientAmount:  recipientAmount,
		SenderAmount:     interest.SenderInterest,
		Interest:         interest,
		RemainingBalance: updated.RemainingBalance,
		Closed:           closed,
		Transfers:        t.since(n),
	}, nil
}

func (l *Ledger) prepareCancel(ctx context.Context, t *txn, streamID uint64, caller address.Address, now int64) (*stream.Settlement, error) {
	s, c, err := l.loadParty(ctx, t.op, streamID, caller)
	if err != nil {
		return nil, err
	}

	recipientBalance := s.RecipientBalance(now)
	senderBalance := s.RemainingBalance.Sub(recipientBalance)

	interest, err := l.interestFor(ctx, s, c, recipientBalance)
	if err != nil {
		return nil, &OpError{Op: t.op, StreamID: streamID, Err: err}
	}

	if err := l.store.DeleteStream(ctx, streamID); err != nil {
		return nil, &OpError{Op: t.op, StreamID: streamID, Err: err}
	}
	t.onRollback(func(ctx context.Context) error {
		return l.store.InsertStream(ctx, s, c)
	})
	if err := l.retireSwap(ctx, t, s.SwapID); err != nil {
		return nil, &OpError{Op: t.op, StreamID: streamID, SwapID: s.SwapID, Err: err}
	}

	if err := l.creditEarnings(ctx, t, s.Token, interest.ProtocolInterest); err != nil {
		return nil, &OpError{Op: t.op, StreamID: streamID, Err: err}
	}

	n := len(t.transfers)
	recipientAmount := recipientBalance.Sub(interest.Deducted())
	senderAmount := senderBalance.Add(interest.SenderInterest)
	t.push(s.Token, s.Recipient, recipientAmount)
	t.push(s.Token, s.Sender, senderAmount)

	return &stream.Settlement{
		ID:               id.NewSettlementID(),
		Kind:             stream.SettlementCancel,
		StreamID:         streamID,
		Token:            s.Token,
		Sender:           s.Sender,
		Recipient:        s.Recipient,
		Caller:           caller,
		At:               now,
		RecipientAmount:  recipientAmount,
		SenderAmount:     senderAmount,
		Interest:         interest,
		RemainingBalance: decimal.Zero,
		Closed:           true,
		Transfers:        t.since(n),
	}, nil
}

func (l *Ledger) logWithdrawn(st *stream.Settlement) {
	l.logger.Debug("stream withdrawn",
		"stream_id", st.StreamID,
		"recipient_amount", st.RecipientAmount,
		"sender_interest", st.Interest.SenderInterest,
		"protocol_interest", st.Interest.ProtocolInterest,
		"remaining", st.RemainingBalance,
		"closed", st.Closed,
	)
}

func (l *Ledger) logCanceled(st *stream.Settlement) {
	l.logger.Debug("stream canceled",
		"stream_id", st.StreamID,
		"recipient_amount", st.RecipientAmount,
		"sender_amount", st.SenderAmount,
		"protocol_interest", st.Interest.ProtocolInterest,
	)
}
