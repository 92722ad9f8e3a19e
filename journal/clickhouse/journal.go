package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/stream"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Journal)(nil)
	_ plugin.OnInit           = (*Journal)(nil)
	_ plugin.OnWithdrawn      = (*Journal)(nil)
	_ plugin.OnStreamCanceled = (*Journal)(nil)
	_ plugin.OnEarningsTaken  = (*Journal)(nil)
)

// Journal writes every settlement and earnings withdrawal to ClickHouse.
// Swap cancellations arrive as one OnStreamCanceled per live stream, so they
// need no hook of their own.
type Journal struct {
	conn        driver.Conn
	logger      *slog.Logger
	autoMigrate bool
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger for the journal.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

// WithoutMigrate skips schema migration when the ledger starts.
func WithoutMigrate() Option {
	return func(j *Journal) { j.autoMigrate = false }
}

// New creates a Journal writing through conn.
func New(conn driver.Conn, opts ...Option) *Journal {
	j := &Journal{
		conn:        conn,
		logger:      slog.Default(),
		autoMigrate: true,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name implements plugin.Plugin.
func (j *Journal) Name() string { return "clickhouse-journal" }

// OnInit implements plugin.OnInit.
func (j *Journal) OnInit(ctx context.Context, _ interface{}) error {
	if !j.autoMigrate {
		return nil
	}
	return j.Migrate(ctx)
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (j *Journal) OnWithdrawn(ctx context.Context, st *stream.Settlement) error {
	return j.RecordSettlements(ctx, st)
}

// OnStreamCanceled implements plugin.OnStreamCanceled.
func (j *Journal) OnStreamCanceled(ctx context.Context, st *stream.Settlement) error {
	return j.RecordSettlements(ctx, st)
}

// OnEarningsTaken implements plugin.OnEarningsTaken.
func (j *Journal) OnEarningsTaken(ctx context.Context, w *earnings.Withdrawal) error {
	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO drip_earnings_withdrawals (
			withdrawal_id, asset, admin, amount, remaining, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("drip/clickhouse: prepare earnings batch: %w", err)
	}
	recorded := w.CreatedAt
	if recorded.IsZero() {
		recorded = time.Now().UTC()
	}
	if err := batch.Append(
		w.ID.String(), w.Asset.String(), w.Admin.String(), w.Amount, w.Remaining, recorded,
	); err != nil {
		return fmt.Errorf("drip/clickhouse: append earnings withdrawal: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("drip/clickhouse: send earnings batch: %w", err)
	}
	return nil
}

// RecordSettlements appends settlements in one batch.
func (j *Journal) RecordSettlements(ctx context.Context, settlements ...*stream.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}

	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO drip_settlements (
			settlement_id, kind, stream_id, token, sender, recipient, caller, at,
			recipient_amount, sender_amount, gross_yield, sender_interest,
			protocol_interest, remaining_balance, closed, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("drip/clickhouse: prepare settlement batch: %w", err)
	}

	recorded := time.Now().UTC()
	for _, st := range settlements {
		err = batch.Append(
			st.ID.String(), string(st.Kind), st.StreamID,
			st.Token.String(), st.Sender.String(), st.Recipient.String(), st.Caller.String(),
			st.At, st.RecipientAmount, st.SenderAmount,
			st.Interest.GrossYield, st.Interest.SenderInterest,
			st.Interest.ProtocolInterest, st.RemainingBalance, st.Closed, recorded,
		)
		if err != nil {
			return fmt.Errorf("drip/clickhouse: append settlement: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("drip/clickhouse: send settlement batch: %w", err)
	}
	j.logger.Debug("settlements journaled", "count", len(settlements))
	return nil
}

// StreamHistory returns the journaled settlements of a stream, oldest first.
// Transfers are not journaled and come back empty.
func (j *Journal) StreamHistory(ctx context.Context, streamID uint64) ([]*stream.Settlement, error) {
	rows, err := j.conn.Query(ctx, `
		SELECT settlement_id, kind, stream_id, token, sender, recipient, caller, at,
		       recipient_amount, sender_amount, gross_yield, sender_interest,
		       protocol_interest, remaining_balance, closed
		FROM drip_settlements
		WHERE stream_id = ?
		ORDER BY at ASC, recorded_at ASC
	`, streamID)
	if err != nil {
		return nil, fmt.Errorf("drip/clickhouse: query stream history: %w", err)
	}
	defer rows.Close()

	var result []*stream.Settlement
	for rows.Next() {
		var (
			settlementID, kind               string
			sid                              uint64
			token, sender, recipient, caller string
			at                               int64
			recipientAmt, senderAmt          decimal.Decimal
			gross, senderInterest, protocol  decimal.Decimal
			remaining                        decimal.Decimal
			closed                           bool
		)
		if err := rows.Scan(
			&settlementID, &kind, &sid, &token, &sender, &recipient, &caller, &at,
			&recipientAmt, &senderAmt, &gross, &senderInterest, &protocol, &remaining, &closed,
		); err != nil {
			return nil, fmt.Errorf("drip/clickhouse: scan settlement: %w", err)
		}

		parsed, err := id.ParseSettlementID(settlementID)
		if err != nil {
			return nil, fmt.Errorf("drip/clickhouse: parse settlement id: %w", err)
		}
		result = append(result, &stream.Settlement{
			ID:              parsed,
			Kind:            stream.SettlementKind(kind),
			StreamID:        sid,
			Token:           address.Address(token),
			Sender:          address.Address(sender),
			Recipient:       address.Address(recipient),
			Caller:          address.Address(caller),
			At:              at,
			RecipientAmount: recipientAmt,
			SenderAmount:    senderAmt,
			Interest: stream.Interest{
				GrossYield:        gross,
				SenderInterest:    senderInterest,
				RecipientInterest: gross.Sub(senderInterest).Sub(protocol),
				ProtocolInterest:  protocol,
			},
			RemainingBalance: remaining,
			Closed:           closed,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drip/clickhouse: iterate stream history: %w", err)
	}
	return result, nil
}

// SettledVolume returns the total value that left streams of token: what
// recipients and senders received plus protocol interest.
func (j *Journal) SettledVolume(ctx context.Context, token address.Address) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := j.conn.QueryRow(ctx, `
		SELECT toDecimal256(sum(recipient_amount + sender_amount + protocol_interest), 0)
		FROM drip_settlements
		WHERE token = ?
	`, token.String()).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("drip/clickhouse: query settled volume: %w", err)
	}
	return total, nil
}
