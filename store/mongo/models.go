package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
	"github.com/xraph/drip/types"
)

// ==================== Stream models ====================

// Stream amounts are decimal strings: documents are always replaced whole,
// so the server never does arithmetic on them.
type streamModel struct {
	ID               int64             `bson:"_id"`
	Sender           string            `bson:"sender"`
	Recipient        string            `bson:"recipient"`
	Token            string            `bson:"token"`
	Deposit          string            `bson:"deposit"`
	RatePerSecond    string            `bson:"rate_per_second"`
	RemainingBalance string            `bson:"remaining_balance"`
	StartTime        int64             `bson:"start_time"`
	StopTime         int64             `bson:"stop_time"`
	SwapID           int64             `bson:"swap_id,omitempty"`
	Compounding      *compoundingModel `bson:"compounding,omitempty"`
	CreatedAt        time.Time         `bson:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at"`
}

type compoundingModel struct {
	ExchangeRateInitial      string `bson:"exchange_rate_initial"`
	SenderSharePercentage    string `bson:"sender_share_percentage"`
	RecipientSharePercentage string `bson:"recipient_share_percentage"`
}

func toStreamModel(s *stream.Stream, c *stream.Compounding) *streamModel {
	m := &streamModel{
		ID:               int64(s.ID),
		Sender:           string(s.Sender),
		Recipient:        string(s.Recipient),
		Token:            string(s.Token),
		Deposit:          s.Deposit.String(),
		RatePerSecond:    s.RatePerSecond.String(),
		RemainingBalance: s.RemainingBalance.String(),
		StartTime:        s.StartTime,
		StopTime:         s.StopTime,
		SwapID:           int64(s.SwapID),
		CreatedAt:        stamp(s.CreatedAt),
		UpdatedAt:        stamp(s.UpdatedAt),
	}
	if c != nil {
		m.Compounding = &compoundingModel{
			ExchangeRateInitial:      c.ExchangeRateInitial.String(),
			SenderSharePercentage:    c.SenderSharePercentage.String(),
			RecipientSharePercentage: c.RecipientSharePercentage.String(),
		}
	}
	return m
}

func fromStreamModel(m *streamModel) (*stream.Stream, error) {
	deposit, err := parseDecimal("deposit", m.Deposit)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("rate_per_second", m.RatePerSecond)
	if err != nil {
		return nil, err
	}
	remaining, err := parseDecimal("remaining_balance", m.RemainingBalance)
	if err != nil {
		return nil, err
	}
	return &stream.Stream{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               uint64(m.ID),
		Sender:           address.Address(m.Sender),
		Recipient:        address.Address(m.Recipient),
		Token:            address.Address(m.Token),
		Deposit:          deposit,
		RatePerSecond:    rate,
		RemainingBalance: remaining,
		StartTime:        m.StartTime,
		StopTime:         m.StopTime,
		SwapID:           uint64(m.SwapID),
	}, nil
}

func fromCompoundingModel(streamID uint64, m *compoundingModel) (*stream.Compounding, error) {
	initial, err := parseDecimal("exchange_rate_initial", m.ExchangeRateInitial)
	if err != nil {
		return nil, err
	}
	senderShare, err := parseDecimal("sender_share_percentage", m.SenderSharePercentage)
	if err != nil {
		return nil, err
	}
	recipientShare, err := parseDecimal("recipient_share_percentage", m.RecipientSharePercentage)
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

// ==================== Swap models ====================

type proposalModel struct {
	ID               int64     `bson:"_id"`
	Sender           string    `bson:"sender"`
	Recipient        string    `bson:"recipient"`
	TokenSender      string    `bson:"token_sender"`
	TokenRecipient   string    `bson:"token_recipient"`
	DepositSender    string    `bson:"deposit_sender"`
	DepositRecipient string    `bson:"deposit_recipient"`
	Duration         int64     `bson:"duration"`
	ProposedAt       int64     `bson:"proposed_at"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toProposalModel(p *swap.Proposal) *proposalModel {
	return &proposalModel{
		ID:               int64(p.ID),
		Sender:           string(p.Sender),
		Recipient:        string(p.Recipient),
		TokenSender:      string(p.TokenSender),
		TokenRecipient:   string(p.TokenRecipient),
		DepositSender:    p.DepositSender.String(),
		DepositRecipient: p.DepositRecipient.String(),
		Duration:         p.Duration,
		ProposedAt:       p.ProposedAt,
		CreatedAt:        stamp(p.CreatedAt),
		UpdatedAt:        stamp(p.UpdatedAt),
	}
}

func fromProposalModel(m *proposalModel) (*swap.Proposal, error) {
	depositSender, err := parseDecimal("deposit_sender", m.DepositSender)
	if err != nil {
		return nil, err
	}
	depositRecipient, err := parseDecimal("deposit_recipient", m.DepositRecipient)
	if err != nil {
		return nil, err
	}
	return &swap.Proposal{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               uint64(m.ID),
		Sender:           address.Address(m.Sender),
		Recipient:        address.Address(m.Recipient),
		TokenSender:      address.Address(m.TokenSender),
		TokenRecipient:   address.Address(m.TokenRecipient),
		DepositSender:    depositSender,
		DepositRecipient: depositRecipient,
		Duration:         m.Duration,
		ProposedAt:       m.ProposedAt,
	}, nil
}

type swapModel struct {
	ID                int64     `bson:"_id"`
	Sender            string    `bson:"sender"`
	Recipient         string    `bson:"recipient"`
	TokenSender       string    `bson:"token_sender"`
	TokenRecipient    string    `bson:"token_recipient"`
	DepositSender     string    `bson:"deposit_sender"`
	DepositRecipient  string    `bson:"deposit_recipient"`
	SenderStreamID    int64     `bson:"sender_stream_id"`
	RecipientStreamID int64     `bson:"recipient_stream_id"`
	StartTime         int64     `bson:"start_time"`
	StopTime          int64     `bson:"stop_time"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func toSwapModel(s *swap.Swap) *swapModel {
	return &swapModel{
		ID:                int64(s.ID),
		Sender:            string(s.Sender),
		Recipient:         string(s.Recipient),
		TokenSender:       string(s.TokenSender),
		TokenRecipient:    string(s.TokenRecipient),
		DepositSender:     s.DepositSender.String(),
		DepositRecipient:  s.DepositRecipient.String(),
		SenderStreamID:    int64(s.SenderStreamID),
		RecipientStreamID: int64(s.RecipientStreamID),
		StartTime:         s.StartTime,
		StopTime:          s.StopTime,
		CreatedAt:         stamp(s.CreatedAt),
		UpdatedAt:         stamp(s.UpdatedAt),
	}
}

func fromSwapModel(m *swapModel) (*swap.Swap, error) {
	depositSender, err := parseDecimal("deposit_sender", m.DepositSender)
	if err != nil {
		return nil, err
	}
	depositRecipient, err := parseDecimal("deposit_recipient", m.DepositRecipient)
	if err != nil {
		return nil, err
	}
	return &swap.Swap{
		Entity:            types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                uint64(m.ID),
		Sender:            address.Address(m.Sender),
		Recipient:         address.Address(m.Recipient),
		TokenSender:       address.Address(m.TokenSender),
		TokenRecipient:    address.Address(m.TokenRecipient),
		DepositSender:     depositSender,
		DepositRecipient:  depositRecipient,
		SenderStreamID:    uint64(m.SenderStreamID),
		RecipientStreamID: uint64(m.RecipientStreamID),
		StartTime:         m.StartTime,
		StopTime:          m.StopTime,
	}, nil
}

// ==================== Earnings models ====================

// Earnings are Decimal128 so credits and guarded debits run server side.
type earningsModel struct {
	Asset     string          `bson:"_id"`
	Amount    bson.Decimal128 `bson:"amount"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// ==================== Payout models ====================

type payoutModel struct {
	ID        string    `bson:"_id"`
	Op        string    `bson:"op"`
	Asset     string    `bson:"asset"`
	Party     string    `bson:"party"`
	Amount    string    `bson:"amount"`
	CreatedAt time.Time `bson:"created_at"`
}

func toPayoutModel(p *payout.Payout) *payoutModel {
	return &payoutModel{
		ID:        p.ID.String(),
		Op:        p.Op,
		Asset:     string(p.Asset),
		Party:     string(p.Party),
		Amount:    p.Amount.String(),
		CreatedAt: stamp(p.CreatedAt),
	}
}

func fromPayoutModel(m *payoutModel) (*payout.Payout, error) {
	pid, err := id.ParsePayoutID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("drip/mongo: parse payout id: %w", err)
	}
	amount, err := parseDecimal("amount", m.Amount)
	if err != nil {
		return nil, err
	}
	return &payout.Payout{
		ID:        pid,
		Op:        m.Op,
		Asset:     address.Address(m.Asset),
		Party:     address.Address(m.Party),
		Amount:    amount,
		CreatedAt: m.CreatedAt,
	}, nil
}

type settingModel struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

type counterModel struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// ==================== Helpers ====================

func toDecimal128(d decimal.Decimal) (bson.Decimal128, error) {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.Decimal128{}, fmt.Errorf("drip/mongo: encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(field string, v bson.Decimal128) (decimal.Decimal, error) {
	return parseDecimal(field, v.String())
}

func parseDecimal(field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("drip/mongo: parse %s %q: %w", field, v, err)
	}
	return d, nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t.UTC()
}

func now() time.Time {
	return time.Now().UTC()
}
