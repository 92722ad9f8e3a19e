// Package memory provides an in-process custody Gateway for tests and
// single-process deployments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/gateway"
)

// ErrInsufficientFunds is returned when a pull exceeds the party's holdings
// or a push exceeds custody.
var ErrInsufficientFunds = errors.New("gateway/memory: insufficient funds")

// Op names a gateway method for failure injection.
type Op string

const (
	OpPull Op = "pull"
	OpPush Op = "push"
)

// Hook observes a completed transfer. It runs without the gateway lock held
// and may call back into the ledger.
type Hook func(ctx context.Context, asset, party address.Address, amount decimal.Decimal)

var _ gateway.Gateway = (*Gateway)(nil)

// Gateway keeps per-party holdings and ledger custody in memory.
type Gateway struct {
	mu       sync.Mutex
	holdings map[address.Address]map[address.Address]decimal.Decimal
	custody  map[address.Address]decimal.Decimal
	indexes  map[address.Address]decimal.Decimal
	failures map[Op][]error
	onPull   Hook
	onPush   Hook
}

// New returns an empty gateway.
func New() *Gateway {
	return &Gateway{
		holdings: make(map[address.Address]map[address.Address]decimal.Decimal),
		custody:  make(map[address.Address]decimal.Decimal),
		indexes:  make(map[address.Address]decimal.Decimal),
		failures: make(map[Op][]error),
	}
}

// Mint credits party with amount of asset outside ledger custody.
func (g *Gateway) Mint(asset, party address.Address, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addHolding(asset, party, amount)
}

// BalanceOf returns party's holdings of asset.
func (g *Gateway) BalanceOf(asset, party address.Address) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holding(asset, party)
}

// Custody returns the amount of asset held by the ledger.
func (g *Gateway) Custody(asset address.Address) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.custodyOf(asset)
}

// SetExchangeIndex sets the redemption ratio of a yield asset.
func (g *Gateway) SetExchangeIndex(asset address.Address, index decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.indexes[asset] = index
}

// FailNext makes the next call to op return err. Calls queue in order.
func (g *Gateway) FailNext(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = append(g.failures[op], err)
}

// OnPull registers a hook run after every successful pull.
func (g *Gateway) OnPull(h Hook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onPull = h
}

// OnPush registers a hook run after every successful push.
func (g *Gateway) OnPush(h Hook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onPush = h
}

func (g *Gateway) Pull(ctx context.Context, asset, from address.Address, amount decimal.Decimal) error {
	g.mu.Lock()
	if err := g.takeFailure(OpPull); err != nil {
		g.mu.Unlock()
		return err
	}
	have := g.holding(asset, from)
	if have.LessThan(amount) {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s holds %s of %s, pull needs %s", ErrInsufficientFunds, from, have, asset, amount)
	}
	g.addHolding(asset, from, amount.Neg())
	g.custody[asset] = g.custodyOf(asset).Add(amount)
	hook := g.onPull
	g.mu.Unlock()

	if hook != nil {
		hook(ctx, asset, from, amount)
	}
	return nil
}

func (g *Gateway) Push(ctx context.Context, asset, to address.Address, amount decimal.Decimal) error {
	g.mu.Lock()
	if err := g.takeFailure(OpPush); err != nil {
		g.mu.Unlock()
		return err
	}
	held := g.custodyOf(asset)
	if held.LessThan(amount) {
		g.mu.Unlock()
		return fmt.Errorf("%w: custody holds %s of %s, push needs %s", ErrInsufficientFunds, held, asset, amount)
	}
	g.custody[asset] = held.Sub(amount)
	g.addHolding(asset, to, amount)
	hook := g.onPush
	g.mu.Unlock()

	if hook != nil {
		hook(ctx, asset, to, amount)
	}
	return nil
}

func (g *Gateway) ExchangeIndex(_ context.Context, asset address.Address) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.indexes[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", gateway.ErrNoExchangeIndex, asset)
	}
	return idx, nil
}

func (g *Gateway) takeFailure(op Op) error {
	queue := g.failures[op]
	if len(queue) == 0 {
		return nil
	}
	g.failures[op] = queue[1:]
	return queue[0]
}

func (g *Gateway) holding(asset, party address.Address) decimal.Decimal {
	if m, ok := g.holdings[asset]; ok {
		if v, ok := m[party]; ok {
			return v
		}
	}
	return decimal.Zero
}

func (g *Gateway) addHolding(asset, party address.Address, delta decimal.Decimal) {
	m, ok := g.holdings[asset]
	if !ok {
		m = make(map[address.Address]decimal.Decimal)
		g.holdings[asset] = m
	}
	m[party] = g.holding(asset, party).Add(delta)
}

func (g *Gateway) custodyOf(asset address.Address) decimal.Decimal {
	if v, ok := g.custody[asset]; ok {
		return v
	}
	return decimal.Zero
}
