// Package memory provides an in-memory Store. Records are copied on the way
// in and out, so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"

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

type Store struct {
	mu sync.RWMutex

	// Stream storage
	streamSeq   uint64
	streams     map[uint64]*stream.Stream
	compounding map[uint64]*stream.Compounding

	// Swap storage
	swapSeq   uint64
	proposals map[uint64]*swap.Proposal
	swaps     map[uint64]*swap.Swap

	// Earnings storage
	fee      decimal.Decimal
	earnings map[address.Address]decimal.Decimal

	// Owed payouts
	payouts map[string]*payout.Payout

	closed bool
}

func New() *Store {
	return &Store{
		streams:     make(map[uint64]*stream.Stream),
		compounding: make(map[uint64]*stream.Compounding),
		proposals:   make(map[uint64]*swap.Proposal),
		swaps:       make(map[uint64]*swap.Swap),
		fee:         decimal.Zero,
		earnings:    make(map[address.Address]decimal.Decimal),
		payouts:     make(map[string]*payout.Payout),
	}
}

// Stream Store implementation
func (s *Store) NextStreamID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streamSeq++
	return s.streamSeq, nil
}

func (s *Store) InsertStream(_ context.Context, st *stream.Stream, c *stream.Compounding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[st.ID]; exists {
		return drip.ErrAlreadyExists
	}
	s.streams[st.ID] = st.Clone()
	if c != nil {
		cp := c.Clone()
		cp.StreamID = st.ID
		s.compounding[st.ID] = cp
	}
	return nil
}

func (s *Store) GetStream(_ context.Context, streamID uint64) (*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[streamID]; ok {
		return st.Clone(), nil
	}
	return nil, drip.ErrStreamNotFound
}

func (s *Store) GetCompounding(_ context.Context, streamID uint64) (*stream.Compounding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.streams[streamID]; !ok {
		return nil, drip.ErrStreamNotFound
	}
	if c, ok := s.compounding[streamID]; ok {
		return c.Clone(), nil
	}
	return nil, drip.ErrCompoundingNotFound
}

func (s *Store) UpdateStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.streams[st.ID]
	if !ok {
		return drip.ErrStreamNotFound
	}
	existing.RemainingBalance = st.RemainingBalance
	existing.UpdatedAt = st.UpdatedAt
	return nil
}

func (s *Store) DeleteStream(_ context.Context, streamID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streams[streamID]; !ok {
		return drip.ErrStreamNotFound
	}
	delete(s.streams, streamID)
	delete(s.compounding, streamID)
	return nil
}

func (s *Store) ListStreams(_ context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*stream.Stream
	for _, st := range s.streams {
		if opts.Party != "" && !st.IsParty(opts.Party) {
			continue
		}
		result = append(result, st.Clone())
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, opts.Offset, opts.Limit), nil
}

// Swap Store implementation
func (s *Store) NextSwapID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.swapSeq++
	return s.swapSeq, nil
}

func (s *Store) InsertProposal(_ context.Context, p *swap.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.proposals[p.ID]; exists {
		return drip.ErrAlreadyExists
	}
	s.proposals[p.ID] = p.Clone()
	return nil
}

func (s *Store) GetProposal(_ context.Context, swapID uint64) (*swap.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.proposals[swapID]; ok {
		return p.Clone(), nil
	}
	return nil, drip.ErrProposalNotFound
}

func (s *Store) DeleteProposal(_ context.Context, swapID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[swapID]; !ok {
		return drip.ErrProposalNotFound
	}
	delete(s.proposals, swapID)
	return nil
}

func (s *Store) InsertSwap(_ context.Context, sw *swap.Swap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.swaps[sw.ID]; exists {
		return drip.ErrAlreadyExists
	}
	s.swaps[sw.ID] = sw.Clone()
	return nil
}

func (s *Store) GetSwap(_ context.Context, swapID uint64) (*swap.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sw, ok := s.swaps[swapID]; ok {
		return sw.Clone(), nil
	}
	return nil, drip.ErrSwapNotFound
}

func (s *Store) DeleteSwap(_ context.Context, swapID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.swaps[swapID]; !ok {
		return drip.ErrSwapNotFound
	}
	delete(s.swaps, swapID)
	return nil
}

// Earnings Store implementation
func (s *Store) GetFee(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fee, nil
}

func (s *Store) SetFee(_ context.Context, fee decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fee = fee
	return nil
}

func (s *Store) GetEarnings(_ context.Context, asset address.Address) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.earnings[asset]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (s *Store) CreditEarnings(_ context.Context, asset address.Address, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.earnings[asset]
	if !ok {
		current = decimal.Zero
	}
	s.earnings[asset] = current.Add(amount)
	return nil
}

func (s *Store) DebitEarnings(_ context.Context, asset address.Address, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.earnings[asset]
	if !ok || current.LessThan(amount) {
		return drip.ErrInsufficientEarnings
	}
	s.earnings[asset] = current.Sub(amount)
	return nil
}

func (s *Store) ListEarnings(_ context.Context) ([]*earnings.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*earnings.Balance, 0, len(s.earnings))
	for asset, amount := range s.earnings {
		result = append(result, &earnings.Balance{Asset: asset, Amount: amount})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Asset < result[j].Asset })
	return result, nil
}

// Payout Store implementation
func (s *Store) InsertPayout(_ context.Context, p *payout.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.ID.String()
	if _, exists := s.payouts[key]; exists {
		return drip.ErrAlreadyExists
	}
	s.payouts[key] = p.Clone()
	return nil
}

func (s *Store) GetPayout(_ context.Context, payoutID id.ID) (*payout.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payouts[payoutID.String()]; ok {
		return p.Clone(), nil
	}
	return nil, drip.ErrPayoutNotFound
}

func (s *Store) DeletePayout(_ context.Context, payoutID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := payoutID.String()
	if _, ok := s.payouts[key]; !ok {
		return drip.ErrPayoutNotFound
	}
	delete(s.payouts, key)
	return nil
}

func (s *Store) ListPayouts(_ context.Context, party address.Address) ([]*payout.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*payout.Payout
	for _, p := range s.payouts {
		if party != "" && p.Party != party {
			continue
		}
		result = append(result, p.Clone())
	}
	// TypeIDs sort by creation time.
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return drip.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
