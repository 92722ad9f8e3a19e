package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip"
	"github.com/xraph/drip/address"
	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
)

var _ store.Store = (*Store)(nil)

const feeKey = "fee"

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *Pool
}

// New creates a Store over an open pool. The store owns the pool and
// closes it in Close.
func New(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Migrate runs the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := migrate(ctx, s.pool); err != nil {
		return fmt.Errorf("%w: %w", drip.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", drip.ErrStoreNotReady, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ──────────────────────────────────────────────────
// Streams
// ──────────────────────────────────────────────────

func (s *Store) NextStreamID(ctx context.Context) (uint64, error) {
	return s.nextval(ctx, "drip_stream_seq")
}

func (s *Store) InsertStream(ctx context.Context, st *stream.Stream, c *stream.Compounding) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("drip/postgres: begin insert stream: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO drip_streams (
			id, sender, recipient, token, deposit, rate_per_second,
			remaining_balance, start_time, stop_time, swap_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12)`,
		int64(st.ID), string(st.Sender), string(st.Recipient), string(st.Token),
		st.Deposit.String(), st.RatePerSecond.String(), st.RemainingBalance.String(),
		st.StartTime, st.StopTime, int64(st.SwapID), timestamp(st.CreatedAt), timestamp(st.UpdatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return drip.ErrAlreadyExists
		}
		return fmt.Errorf("drip/postgres: insert stream: %w", err)
	}

	if c != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO drip_compounding (
				stream_id, exchange_rate_initial, sender_share_percentage, recipient_share_percentage
			) VALUES ($1, $2::numeric, $3::numeric, $4::numeric)`,
			int64(st.ID), c.ExchangeRateInitial.String(),
			c.SenderSharePercentage.String(), c.RecipientSharePercentage.String(),
		)
		if err != nil {
			return fmt.Errorf("drip/postgres: insert compounding: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("drip/postgres: commit insert stream: %w", err)
	}
	return nil
}

func (s *Store) GetStream(ctx context.Context, streamID uint64) (*stream.Stream, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+streamColumns+` FROM drip_streams WHERE id = $1`, int64(streamID))
	st, err := scanStream(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, drip.ErrStreamNotFound
		}
		return nil, fmt.Errorf("drip/postgres: get stream: %w", err)
	}
	return st, nil
}

func (s *Store) GetCompounding(ctx context.Context, streamID uint64) (*stream.Compounding, error) {
	var r compoundingRow
	err := s.pool.QueryRow(ctx, `
		SELECT c.exchange_rate_initial::text, c.sender_share_percentage::text,
		       c.recipient_share_percentage::text
		FROM drip_streams s
		LEFT JOIN drip_compounding c ON c.stream_id = s.id
		WHERE s.id = $1`, int64(streamID),
	).Scan(&r.ExchangeRateInitial, &r.SenderSharePercentage, &r.RecipientSharePercentage)
	if err != nil {
		if isNotFoundError(err) {
			return nil, drip.ErrStreamNotFound
		}
		return nil, fmt.Errorf("drip/postgres: get compounding: %w", err)
	}
	if !r.present() {
		return nil, drip.ErrCompoundingNotFound
	}
	return fromCompoundingRow(streamID, &r)
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE drip_streams SET remaining_balance = $2::numeric, updated_at = $3
		WHERE id = $1`,
		int64(st.ID), st.RemainingBalance.String(), timestamp(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("drip/postgres: update stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return drip.ErrStreamNotFound
	}
	return nil
}

// DeleteStream removes the stream. The compounding row goes with it through
// the ON DELETE CASCADE foreign key.
func (s *Store) DeleteStream(ctx context.Context, streamID uint64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drip_streams WHERE id = $1`, int64(streamID))
	if err != nil {
		return fmt.Errorf("drip/postgres: delete stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return drip.ErrStreamNotFound
	}
	return nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	// LIMIT NULL is LIMIT ALL.
	rows, err := s.pool.Query(ctx, `
		SELECT `+streamColumns+` FROM drip_streams
		WHERE $1 = '' OR sender = $1 OR recipient = $1
		ORDER BY id
		LIMIT NULLIF($2::bigint, 0) OFFSET $3`,
		string(opts.Party), int64(opts.Limit), int64(opts.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("drip/postgres: list streams: %w", err)
	}
	defer rows.Close()

	var result []*stream.Stream
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("drip/postgres: scan stream: %w", err)
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drip/postgres: list streams: %w", err)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Swaps
// ──────────────────────────────────────────────────

func (s *Store) NextSwapID(ctx context.Context) (uint64, error) {
	return s.nextval(ctx, "drip_swap_seq")
}

func (s *Store) InsertProposal(ctx context.Context, p *swap.Proposal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO drip_swap_proposals (
			id, sender, recipient, token_sender, token_recipient,
			deposit_sender, deposit_recipient, duration, proposed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11)`,
		int64(p.ID), string(p.Sender), string(p.Recipient),
		string(p.TokenSender), string(p.TokenRecipient),
		p.DepositSender.String(), p.DepositRecipient.String(),
		p.Duration, p.ProposedAt, timestamp(p.CreatedAt), timestamp(p.UpdatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return drip.ErrAlreadyExists
		}
		return fmt.Errorf("drip/postgres: insert proposal: %w", err)
	}
	return nil
}

func (s *Store) GetProposal(ctx context.Context, swapID uint64) (*swap.Proposal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM drip_swap_proposals WHERE id = $1`, int64(swapID))
	p, err := scanProposal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, drip.ErrProposalNotFound
		}
		return nil, fmt.Errorf("drip/postgres: get proposal: %w", err)
	}
	return p, nil
}

func (s *Store) DeleteProposal(ctx context.Context, swapID uint64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drip_swap_proposals WHERE id = $1`, int64(swapID))
	if err != nil {
		return fmt.Errorf("drip/postgres: delete proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return drip.ErrProposalNotFound
	}
	return nil
}

func (s *Store) InsertSwap(ctx context.Context, sw *swap.Swap) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO drip_swaps (
			id, sender, recipient, token_sender, token_recipient,
			deposit_sender, deposit_recipient, sender_stream_id, recipient_stream_id,
			start_time, stop_time, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)`,
		int64(sw.ID), string(sw.Sender), string(sw.Recipient),
		string(sw.TokenSender), string(sw.TokenRecipient),
		sw.DepositSender.String(), sw.DepositRecipient.String(),
		int64(sw.SenderStreamID), int64(sw.RecipientStreamID),
		sw.StartTime, sw.StopTime, timestamp(sw.CreatedAt), timestamp(sw.UpdatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return drip.ErrAlreadyExists
		}
		return fmt.Errorf("drip/postgres: insert swap: %w", err)
	}
	return nil
}

func (s *Store) GetSwap(ctx context.Context, swapID uint64) (*swap.Swap, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+swapColumns+` FROM drip_swaps WHERE id = $1`, int64(swapID))
	sw, err := scanSwap(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, drip.ErrSwapNotFound
		}
		return nil, fmt.Errorf("drip/postgres: get swap: %w", err)
	}
	return sw, nil
}

func (s *Store) DeleteSwap(ctx context.Context, swapID uint64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drip_swaps WHERE id = $1`, int64(swapID))
	if err != nil {
		return fmt.Errorf("drip/postgres: delete swap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return drip.ErrSwapNotFound
	}
	return nil
}

// ──────────────────────────────────────────────────
// Earnings
// ──────────────────────────────────────────────────

func (s *Store) GetFee(ctx context.Context) (decimal.Decimal, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT value::text FROM drip_settings WHERE key = $1`, feeKey).Scan(&v)
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("drip/postgres: get fee: %w", err)
	}
	return parseDecimal("fee", v)
}

func (s *Store) SetFee(ctx context.Context, fee decimal.Decimal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO drip_settings (key, value, updated_at) VALUES ($1, $2::numeric, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		feeKey, fee.String(),
	)
	if err != nil {
		return fmt.Errorf("drip/postgres: set fee: %w", err)
	}
	return nil
}

func (s *Store) GetEarnings(ctx context.Context, asset address.Address) (decimal.Decimal, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT amount::text FROM drip_earnings WHERE asset = $1`, string(asset)).Scan(&v)
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("drip/postgres: get earnings: %w", err)
	}
	return parseDecimal("amount", v)
}

func (s *Store) CreditEarnings(ctx context.Context, asset address.Address, amount decimal.Decimal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO drip_earnings (asset, amount, updated_at) VALUES ($1, $2::numeric, NOW())
		ON CONFLICT (asset) DO UPDATE
		SET amount = drip_earnings.amount + EXCLUDED.amount, updated_at = NOW()`,
		string(asset), amount.String(),
	)
	if err != nil {
		return fmt.Errorf("drip/postgres: credit earnings: %w", err)
	}
	return nil
}

// DebitEarnings subtracts amount in one guarded UPDATE, so concurrent debits
// can never drive the balance negative.
func (s *Store) DebitEarnings(ctx context.Context, asset address.Address, amount decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE drip_earnings SET amount = amount - $2::numeric, updated_at = NOW()
		WHERE asset = $1 AND amount >= $2::numeric`,
		string(asset), amount.String(),
	)
	if err != nil {
		return fmt.Errorf("drip/postgres: debit earnings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return drip.ErrInsufficientEarnings
	}
	return nil
}

func (s *Store) ListEarnings(ctx context.Context) ([]*earnings.Balance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset, amount::text FROM drip_earnings ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("drip/postgres: list earnings: %w", err)
	}
	defer rows.Close()

	result := make([]*earnings.Balance, 0)
	for rows.Next() {
		var asset, v string
		if err := rows.Scan(&asset, &v); err != nil {
			return nil, fmt.Errorf("drip/postgres: scan earnings: %w", err)
		}
		amt, err := parseDecimal("amount", v)
		if err != nil {
			return nil, err
		}
		result = append(result, &earnings.Balance{Asset: address.Address(asset), Amount: amt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drip/postgres: list earnings: %w", err)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Payouts
// ──────────────────────────────────────────────────

func (s *Store) InsertPayout(ctx context.Context, p *payout.Payout) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO drip_payouts (id, op, asset, party, amount, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)`,
		p.ID.String(), p.Op, string(p.Asset), string(p.Party),
		p.Amount.String(), timestamp(p.CreatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return drip.ErrAlreadyExists
		}
		return fmt.Errorf("drip/postgres: insert payout: %w", err)
	}
	return nil
}

func (s *Store) GetPayout(ctx context.Context, payoutID id.ID) (*payout.Payout, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM drip_payouts WHERE id = $1`, payoutID.String())
	p, err := scanPayout(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, drip.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("drip/postgres: get payout: %w", err)
	}
	return p, nil
}

func (s *Store) DeletePayout(ctx context.Context, payoutID id.ID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drip_payouts WHERE id = $1`, payoutID.String())
	if err != nil {
		return fmt.Errorf("drip/postgres: delete payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return drip.ErrPayoutNotFound
	}
	return nil
}

func (s *Store) ListPayouts(ctx context.Context, party address.Address) ([]*payout.Payout, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+payoutColumns+` FROM drip_payouts
		WHERE $1 = '' OR party = $1
		ORDER BY id`,
		string(party),
	)
	if err != nil {
		return nil, fmt.Errorf("drip/postgres: list payouts: %w", err)
	}
	defer rows.Close()

	var result []*payout.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("drip/postgres: scan payout: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drip/postgres: list payouts: %w", err)
	}
	return result, nil
}

func (s *Store) nextval(ctx context.Context, seq string) (uint64, error) {
	var v int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval($1::regclass)`, seq).Scan(&v); err != nil {
		return 0, fmt.Errorf("drip/postgres: nextval %s: %w", seq, err)
	}
	return uint64(v), nil
}

// timestamp substitutes now for a zero time so records built without an
// Entity still get sensible audit columns.
func timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
