package drip

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/stream"
)

// Shares is the split of the post-fee yield between sender and recipient,
// in percent.
type Shares struct {
	Sender    decimal.Decimal
	Recipient decimal.Decimal
}

// CreateCompoundingStream opens a stream whose token is an approved yield
// asset. The exchange index at creation becomes the baseline for interest.
func (l *Ledger) CreateCompoundingStream(ctx context.Context, in CreateStreamInput, shares Shares, now int64) (*stream.Stream, *stream.Compounding, error) {
	const op = "create_compounding_stream"

	if err := l.validateStream(in, now, false); err != nil {
		return nil, nil, &OpError{Op: op, Amount: in.Deposit, Err: err}
	}
	if !l.policy.IsApprovedYieldAsset(ctx, in.Token) {
		return nil, nil, opErr(op, ErrAssetNotApproved)
	}
	if !stream.ValidShares(shares.Sender, shares.Recipient) {
		return nil, nil, opErr(op, ErrInvalidSharePercentage)
	}

	index, err := l.gateway.ExchangeIndex(ctx, in.Token)
	if err != nil {
		return nil, nil, opErr(op, fmt.Errorf("drip: read exchange index of %s: %w", in.Token, err))
	}
	if !index.IsPositive() {
		return nil, nil, opErr(op, ErrInvalidExchangeIndex)
	}

	c := &stream.Compounding{
		ExchangeRateInitial:      index,
		SenderSharePercentage:    shares.Sender,
		RecipientSharePercentage: shares.Recipient,
	}
	s, err := l.openStream(ctx, op, in, c)
	if err != nil {
		return nil, nil, err
	}
	return s, c, nil
}

// GetCompounding returns the compounding record of a stream, or
// ErrCompoundingNotFound when the stream does not compound.
func (l *Ledger) GetCompounding(ctx context.Context, streamID uint64) (*stream.Compounding, error) {
	c, err := l.store.GetCompounding(ctx, streamID)
	if err != nil {
		return nil, &OpError{Op: "get_compounding", StreamID: streamID, Err: err}
	}
	return c, nil
}

// InterestOf returns the interest split that settling amount of the stream
// would produce at the current exchange index and fee. Streams that do not
// compound report zero interest.
func (l *Ledger) InterestOf(ctx context.Context, streamID uint64, amount decimal.Decimal) (stream.Interest, error) {
	const op = "interest_of"

	if amount.IsNegative() {
		return stream.ZeroInterest(), &OpError{Op: op, StreamID: streamID, Amount: amount, Err: ErrInvalidAmount}
	}

	s, err := l.store.GetStream(ctx, streamID)
	if err != nil {
		return stream.ZeroInterest(), &OpError{Op: op, StreamID: streamID, Err: err}
	}
	c, err := l.compoundingOf(ctx, streamID)
	if err != nil {
		return stream.ZeroInterest(), &OpError{Op: op, StreamID: streamID, Err: err}
	}

	interest, err := l.interestFor(ctx, s, c, amount)
	if err != nil {
		return stream.ZeroInterest(), &OpError{Op: op, StreamID: streamID, Err: err}
	}
	return interest, nil
}

// compoundingOf returns nil for streams without a compounding record.
func (l *Ledger) compoundingOf(ctx context.Context, streamID uint64) (*stream.Compounding, error) {
	c, err := l.store.GetCompounding(ctx, streamID)
	if errors.Is(err, ErrCompoundingNotFound) {
		return nil, nil
	}
	return c, err
}

// interestFor reads the exchange index and fee once and splits the yield
// on amount. Callers use the result for every transfer of the operation.
func (l *Ledger) interestFor(ctx context.Context, s *stream.Stream, c *stream.Compounding, amount decimal.Decimal) (stream.Interest, error) {
	if c == nil || amount.IsZero() {
		return stream.ZeroInterest(), nil
	}

	index, err := l.gateway.ExchangeIndex(ctx, s.Token)
	if err != nil {
		return stream.ZeroInterest(), fmt.Errorf("drip: read exchange index of %s: %w", s.Token, err)
	}
	fee, err := l.store.GetFee(ctx)
	if err != nil {
		return stream.ZeroInterest(), err
	}

	return c.InterestOf(amount, index, fee), nil
}
