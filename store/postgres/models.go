package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
	"github.com/xraph/drip/types"
)

// Column lists shared by the SELECT statements and the row scanners below.
// NUMERIC columns are cast to text so they scan into plain strings.
const (
	streamColumns = `id, sender, recipient, token, deposit::text, rate_per_second::text,
		remaining_balance::text, start_time, stop_time, swap_id, created_at, updated_at`

	proposalColumns = `id, sender, recipient, token_sender, token_recipient,
		deposit_sender::text, deposit_recipient::text, duration, proposed_at,
		created_at, updated_at`

	swapColumns = `id, sender, recipient, token_sender, token_recipient,
		deposit_sender::text, deposit_recipient::text, sender_stream_id,
		recipient_stream_id, start_time, stop_time, created_at, updated_at`

	payoutColumns = `id, op, asset, party, amount::text, created_at`
)

// streamRow mirrors a drip_streams row.
type streamRow struct {
	ID               int64
	Sender           string
	Recipient        string
	Token            string
	Deposit          string
	RatePerSecond    string
	RemainingBalance string
	StartTime        int64
	StopTime         int64
	SwapID           int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func scanStream(row pgx.Row) (*stream.Stream, error) {
	var r streamRow
	if err := row.Scan(
		&r.ID, &r.Sender, &r.Recipient, &r.Token, &r.Deposit, &r.RatePerSecond,
		&r.RemainingBalance, &r.StartTime, &r.StopTime, &r.SwapID, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return fromStreamRow(&r)
}

func fromStreamRow(r *streamRow) (*stream.Stream, error) {
	deposit, err := parseDecimal("deposit", r.Deposit)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("rate_per_second", r.RatePerSecond)
	if err != nil {
		return nil, err
	}
	remaining, err := parseDecimal("remaining_balance", r.RemainingBalance)
	if err != nil {
		return nil, err
	}
	return &stream.Stream{
		Entity:           types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:               uint64(r.ID),
		Sender:           address.Address(r.Sender),
		Recipient:        address.Address(r.Recipient),
		Token:            address.Address(r.Token),
		Deposit:          deposit,
		RatePerSecond:    rate,
		RemainingBalance: remaining,
		StartTime:        r.StartTime,
		StopTime:         r.StopTime,
		SwapID:           uint64(r.SwapID),
	}, nil
}

// compoundingRow mirrors a drip_compounding row joined to its stream. The
// compounding columns are NULL when the stream is a plain one.
type compoundingRow struct {
	ExchangeRateInitial      *string
	SenderSharePercentage    *string
	RecipientSharePercentage *string
}

func (r *compoundingRow) present() bool {
	return r.ExchangeRateInitial != nil && r.SenderSharePercentage != nil && r.RecipientSharePercentage != nil
}

func fromCompoundingRow(streamID uint64, r *compoundingRow) (*stream.Compounding, error) {
	initial, err := parseDecimal("exchange_rate_initial", *r.ExchangeRateInitial)
	if err != nil {
		return nil, err
	}
	senderShare, err := parseDecimal("sender_share_percentage", *r.SenderSharePercentage)
	if err != nil {
		return nil, err
	}
	recipientShare, err := parseDecimal("recipient_share_percentage", *r.RecipientSharePercentage)
	if err != nil {
		return nil, err
	}
	return &stream.Compounding{
		StreamID:                 streamID,
		ExchangeRateInitial:      initial,
		SenderSharePercentage:    senderShare,
		RecipientSharePercentage: recipientShare,
	}, nil
}

func scanProposal(row pgx.Row) (*swap.Proposal, error) {
	var (
		id                int64
		sender, recipient string
		tokenS, tokenR    string
		depS, depR        string
		duration, at      int64
		created, updated  time.Time
	)
	if err := row.Scan(
		&id, &sender, &recipient, &tokenS, &tokenR, &depS, &depR,
		&duration, &at, &created, &updated,
	); err != nil {
		return nil, err
	}

	depositSender, err := parseDecimal("deposit_sender", depS)
	if err != nil {
		return nil, err
	}
	depositRecipient, err := parseDecimal("deposit_recipient", depR)
	if err != nil {
		return nil, err
	}
	return &swap.Proposal{
		Entity:           types.Entity{CreatedAt: created, UpdatedAt: updated},
		ID:               uint64(id),
		Sender:           address.Address(sender),
		Recipient:        address.Address(recipient),
		TokenSender:      address.Address(tokenS),
		TokenRecipient:   address.Address(tokenR),
		DepositSender:    depositSender,
		DepositRecipient: depositRecipient,
		Duration:         duration,
		ProposedAt:       at,
	}, nil
}

func scanSwap(row pgx.Row) (*swap.Swap, error) {
	var (
		id                       int64
		sender, recipient        string
		tokenS, tokenR           string
		depS, depR               string
		senderStream, recvStream int64
		start, stop              int64
		created, updated         time.Time
	)
	if err := row.Scan(
		&id, &sender, &recipient, &tokenS, &tokenR, &depS, &depR,
		&senderStream, &recvStream, &start, &stop, &created, &updated,
	); err != nil {
		return nil, err
	}

	depositSender, err := parseDecimal("deposit_sender", depS)
	if err != nil {
		return nil, err
	}
	depositRecipient, err := parseDecimal("deposit_recipient", depR)
	if err != nil {
		return nil, err
	}
	return &swap.Swap{
		Entity:            types.Entity{CreatedAt: created, UpdatedAt: updated},
		ID:                uint64(id),
		Sender:            address.Address(sender),
		Recipient:         address.Address(recipient),
		TokenSender:       address.Address(tokenS),
		TokenRecipient:    address.Address(tokenR),
		DepositSender:     depositSender,
		DepositRecipient:  depositRecipient,
		SenderStreamID:    uint64(senderStream),
		RecipientStreamID: uint64(recvStream),
		StartTime:         start,
		StopTime:          stop,
	}, nil
}

func parseDecimal(column, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("drip/postgres: parse %s %q: %w", column, v, err)
	}
	return d, nil
}

func scanPayout(row pgx.Row) (*payout.Payout, error) {
	var (
		rawID, op, asset, party, amount string
		createdAt                       time.Time
	)
	if err := row.Scan(&rawID, &op, &asset, &party, &amount, &createdAt); err != nil {
		return nil, err
	}
	payoutID, err := id.ParsePayoutID(rawID)
	if err != nil {
		return nil, fmt.Errorf("drip/postgres: column id: %w", err)
	}
	v, err := parseDecimal("amount", amount)
	if err != nil {
		return nil, err
	}
	return &payout.Payout{
		ID:        payoutID,
		Op:        op,
		Asset:     address.Address(asset),
		Party:     address.Address(party),
		Amount:    v,
		CreatedAt: createdAt,
	}, nil
}
