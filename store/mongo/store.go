// Package mongo implements store.Store on MongoDB.
//
// A stream and its compounding record live in one document, so inserting
// or deleting them together is a single-document write.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/drip"
	"github.com/xraph/drip/address"
	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/payout"
	dripstore "github.com/xraph/drip/store"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
)

// Collection name constants.
const (
	colStreams   = "drip_streams"
	colProposals = "drip_swap_proposals"
	colSwaps     = "drip_swaps"
	colEarnings  = "drip_earnings"
	colSettings  = "drip_settings"
	colCounters  = "drip_counters"
	colPayouts   = "drip_payouts"
)

const (
	counterStreams = "streams"
	counterSwaps   = "swaps"
	settingFee     = "fee"
)

// compile-time interface check
var _ dripstore.Store = (*Store)(nil)

// Store implements store.Store using the MongoDB driver.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a Store over database in client. The store owns the client
// and disconnects it in Close.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Connect dials uri and returns a Store over database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("drip/mongo: connect: %w", err)
	}
	s := New(client, database)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("drip/mongo: ping: %w", err)
	}
	return s, nil
}

// Migrate creates indexes for all drip collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: drip/mongo: migrate %s indexes: %w", drip.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %w", drip.ErrStoreNotReady, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Stream Store ====================

func (s *Store) NextStreamID(ctx context.Context) (uint64, error) {
	return s.next(ctx, counterStreams)
}

func (s *Store) InsertStream(ctx context.Context, st *stream.Stream, c *stream.Compounding) error {
	_, err := s.db.Collection(colStreams).InsertOne(ctx, toStreamModel(st, c))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return drip.ErrAlreadyExists
		}
		return fmt.Errorf("drip/mongo: insert stream: %w", err)
	}
	return nil
}

func (s *Store) GetStream(ctx context.Context, streamID uint64) (*stream.Stream, error) {
	m, err := s.findStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return fromStreamModel(m)
}

func (s *Store) GetCompounding(ctx context.Context, streamID uint64) (*stream.Compounding, error) {
	m, err := s.findStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if m.Compounding == nil {
		return nil, drip.ErrCompoundingNotFound
	}
	return fromCompoundingModel(streamID, m.Compounding)
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	res, err := s.db.Collection(colStreams).UpdateOne(ctx,
		bson.M{"_id": int64(st.ID)},
		bson.M{"$set": bson.M{
			"remaining_balance": st.RemainingBalance.String(),
			"updated_at":        stamp(st.UpdatedAt),
		}},
	)
	if err != nil {
		return fmt.Errorf("drip/mongo: update stream: %w", err)
	}
	if res.MatchedCount == 0 {
		return drip.ErrStreamNotFound
	}
	return nil
}

func (s *Store) DeleteStream(ctx context.Context, streamID uint64) error {
	res, err := s.db.Collection(colStreams).DeleteOne(ctx, bson.M{"_id": int64(streamID)})
	if err != nil {
		return fmt.Errorf("drip/mongo: delete stream: %w", err)
	}
	if res.DeletedCount == 0 {
		return drip.ErrStreamNotFound
	}
	return nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	filter := bson.M{}
	if opts.Party != "" {
		filter["$or"] = bson.A{
			bson.M{"sender": string(opts.Party)},
			bson.M{"recipient": string(opts.Party)},
		}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colStreams).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("drip/mongo: list streams: %w", err)
	}
	var models []streamModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("drip/mongo: list streams: %w", err)
	}

	result := make([]*stream.Stream, len(models))
	for i := range models {
		st, err := fromStreamModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = st
	}
	return result, nil
}

func (s *Store) findStream(ctx context.Context, streamID uint64) (*streamModel, error) {
	var m streamModel
	err := s.db.Collection(colStreams).FindOne(ctx, bson.M{"_id": int64(streamID)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, drip.ErrStreamNotFound
		}
		return nil, fmt.Errorf("drip/mongo: get stream: %w", err)
	}
	return &m, nil
}

// ==================== Swap Store ====================

func (s *Store) NextSwapID(ctx context.Context) (uint64, error) {
	return s.next(ctx, counterSwaps)
}

func (s *Store) InsertProposal(ctx context.Context, p *swap.Proposal) error {
	_, err := s.db.Collection(colProposals).InsertOne(ctx, toProposalModel(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return drip.ErrAlreadyExists
		}
		return fmt.Errorf("drip/mongo: insert proposal: %w", err)
	}
	return nil
}

func (s *Store) GetProposal(ctx context.Context, swapID uint64) (*swap.Proposal, error) {
	var m proposalModel
	err := s.db.Collection(colProposals).FindOne(ctx, bson.M{"_id": int64(swapID)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, drip.ErrProposalNotFound
		}
		return nil, fmt.Errorf("drip/mongo: get proposal: %w", err)
	}
	return fromProposalModel(&m)
}

func (s *Store) DeleteProposal(ctx context.Context, swapID uint64) error {
	res, err := s.db.Collection(colProposals).DeleteOne(ctx, bson.M{"_id": int64(swapID)})
	if err != nil {
		return fmt.Errorf("drip/mongo: delete proposal: %w", err)
	}
	if res.DeletedCount == 0 {
		return drip.ErrProposalNotFound
	}
	return nil
}

func (s *Store) InsertSwap(ctx context.Context, sw *swap.Swap) error {
	_, err := s.db.Collection(colSwaps).InsertOne(ctx, toSwapModel(sw))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return drip.ErrAlreadyExists
		}
		return fmt.Errorf("drip/mongo: insert swap: %w", err)
	}
	return nil
}

func (s *Store) GetSwap(ctx context.Context, swapID uint64) (*swap.Swap, error) {
	var m swapModel
	err := s.db.Collection(colSwaps).FindOne(ctx, bson.M{"_id": int64(swapID)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, drip.ErrSwapNotFound
		}
		return nil, fmt.Errorf("drip/mongo: get swap: %w", err)
	}
	return fromSwapModel(&m)
}

func (s *Store) DeleteSwap(ctx context.Context, swapID uint64) error {
	res, err := s.db.Collection(colSwaps).DeleteOne(ctx, bson.M{"_id": int64(swapID)})
	if err != nil {
		return fmt.Errorf("drip/mongo: delete swap: %w", err)
	}
	if res.DeletedCount == 0 {
		return drip.ErrSwapNotFound
	}
	return nil
}

// ==================== Earnings Store ====================

func (s *Store) GetFee(ctx context.Context) (decimal.Decimal, error) {
	var m settingModel
	err := s.db.Collection(colSettings).FindOne(ctx, bson.M{"_id": settingFee}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("drip/mongo: get fee: %w", err)
	}
	return parseDecimal("fee", m.Value)
}

func (s *Store) SetFee(ctx context.Context, fee decimal.Decimal) error {
	_, err := s.db.Collection(colSettings).UpdateOne(ctx,
		bson.M{"_id": settingFee},
		bson.M{"$set": bson.M{"value": fee.String()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("drip/mongo: set fee: %w", err)
	}
	return nil
}

func (s *Store) GetEarnings(ctx context.Context, asset address.Address) (decimal.Decimal, error) {
	var m earningsModel
	err := s.db.Collection(colEarnings).FindOne(ctx, bson.M{"_id": string(asset)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("drip/mongo: get earnings: %w", err)
	}
	return fromDecimal128("amount", m.Amount)
}

func (s *Store) CreditEarnings(ctx context.Context, asset address.Address, amount decimal.Decimal) error {
	inc, err := toDecimal128(amount)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(colEarnings).UpdateOne(ctx,
		bson.M{"_id": string(asset)},
		bson.M{
			"$inc": bson.M{"amount": inc},
			"$set": bson.M{"updated_at": now()},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("drip/mongo: credit earnings: %w", err)
	}
	return nil
}

// DebitEarnings decrements only when the stored balance covers amount; the
// filter and the $inc apply atomically to the one document.
func (s *Store) DebitEarnings(ctx context.Context, asset address.Address, amount decimal.Decimal) error {
	floor, err := toDecimal128(amount)
	if err != nil {
		return err
	}
	dec, err := toDecimal128(amount.Neg())
	if err != nil {
		return err
	}
	res, err := s.db.Collection(colEarnings).UpdateOne(ctx,
		bson.M{"_id": string(asset), "amount": bson.M{"$gte": floor}},
		bson.M{
			"$inc": bson.M{"amount": dec},
			"$set": bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("drip/mongo: debit earnings: %w", err)
	}
	if res.MatchedCount == 0 {
		return drip.ErrInsufficientEarnings
	}
	return nil
}

func (s *Store) ListEarnings(ctx context.Context) ([]*earnings.Balance, error) {
	cur, err := s.db.Collection(colEarnings).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("drip/mongo: list earnings: %w", err)
	}
	var models []earningsModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("drip/mongo: list earnings: %w", err)
	}

	result := make([]*earnings.Balance, len(models))
	for i := range models {
		amt, err := fromDecimal128("amount", models[i].Amount)
		if err != nil {
			return nil, err
		}
		result[i] = &earnings.Balance{Asset: address.Address(models[i].Asset), Amount: amt}
	}
	return result, nil
}

// ==================== Payout Store ====================

func (s *Store) InsertPayout(ctx context.Context, p *payout.Payout) error {
	_, err := s.db.Collection(colPayouts).InsertOne(ctx, toPayoutModel(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return drip.ErrAlreadyExists
		}
		return fmt.Errorf("drip/mongo: insert payout: %w", err)
	}
	return nil
}

func (s *Store) GetPayout(ctx context.Context, payoutID id.ID) (*payout.Payout, error) {
	var m payoutModel
	err := s.db.Collection(colPayouts).FindOne(ctx, bson.M{"_id": payoutID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, drip.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("drip/mongo: get payout: %w", err)
	}
	return fromPayoutModel(&m)
}

func (s *Store) DeletePayout(ctx context.Context, payoutID id.ID) error {
	res, err := s.db.Collection(colPayouts).DeleteOne(ctx, bson.M{"_id": payoutID.String()})
	if err != nil {
		return fmt.Errorf("drip/mongo: delete payout: %w", err)
	}
	if res.DeletedCount == 0 {
		return drip.ErrPayoutNotFound
	}
	return nil
}

func (s *Store) ListPayouts(ctx context.Context, party address.Address) ([]*payout.Payout, error) {
	filter := bson.M{}
	if party != "" {
		filter["party"] = string(party)
	}
	cur, err := s.db.Collection(colPayouts).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("drip/mongo: list payouts: %w", err)
	}
	var models []payoutModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("drip/mongo: list payouts: %w", err)
	}

	result := make([]*payout.Payout, len(models))
	for i := range models {
		p, err := fromPayoutModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Helpers ====================

// next increments the named counter and returns the new value. The first
// call upserts the counter at 1.
func (s *Store) next(ctx context.Context, name string) (uint64, error) {
	var m counterModel
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return 0, fmt.Errorf("drip/mongo: next %s id: %w", name, err)
	}
	return uint64(m.Seq), nil
}

// migrationIndexes returns the index definitions for all drip collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colStreams: {
			{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colSwaps: {
			{Keys: bson.D{{Key: "sender_stream_id", Value: 1}}},
			{Keys: bson.D{{Key: "recipient_stream_id", Value: 1}}},
		},
		colPayouts: {
			{Keys: bson.D{{Key: "party", Value: 1}, {Key: "_id", Value: 1}}},
		},
	}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
