// Package policy answers the administrative questions the ledger asks
// before privileged operations.
package policy

import (
	"context"
	"sync"

	"github.com/xraph/drip/address"
)

// Policy decides who administers the ledger and which assets may back
// compounding streams.
type Policy interface {
	IsAdmin(ctx context.Context, a address.Address) bool
	IsApprovedYieldAsset(ctx context.Context, asset address.Address) bool
}

// Static is an in-process Policy backed by fixed sets. It is safe for
// concurrent use and may be changed at runtime.
type Static struct {
	mu     sync.RWMutex
	admins map[address.Address]struct{}
	assets map[address.Address]struct{}
}

// NewStatic returns a Static policy seeded with admins and approved assets.
func NewStatic(admins, yieldAssets []address.Address) *Static {
	p := &Static{
		admins: make(map[address.Address]struct{}, len(admins)),
		assets: make(map[address.Address]struct{}, len(yieldAssets)),
	}
	for _, a := range admins {
		p.admins[a] = struct{}{}
	}
	for _, a := range yieldAssets {
		p.assets[a] = struct{}{}
	}
	return p
}

func (p *Static) IsAdmin(_ context.Context, a address.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.admins[a]
	return ok
}

func (p *Static) IsApprovedYieldAsset(_ context.Context, asset address.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.assets[asset]
	return ok
}

// AddAdmin grants the admin role.
func (p *Static) AddAdmin(a address.Address) {
	p.mu.Lock()
	p.admins[a] = struct{}{}
	p.mu.Unlock()
}

// RemoveAdmin revokes the admin role.
func (p *Static) RemoveAdmin(a address.Address) {
	p.mu.Lock()
	delete(p.admins, a)
	p.mu.Unlock()
}

// ApproveYieldAsset whitelists asset for compounding streams.
func (p *Static) ApproveYieldAsset(asset address.Address) {
	p.mu.Lock()
	p.assets[asset] = struct{}{}
	p.mu.Unlock()
}

// RevokeYieldAsset removes asset from the whitelist. Existing compounding
// streams keep settling; only new ones and earnings withdrawals are refused.
func (p *Static) RevokeYieldAsset(asset address.Address) {
	p.mu.Lock()
	delete(p.assets, asset)
	p.mu.Unlock()
}

// DenyAll is a Policy with no admins and no approved assets.
type DenyAll struct{}

func (DenyAll) IsAdmin(context.Context, address.Address) bool              { return false }
func (DenyAll) IsApprovedYieldAsset(context.Context, address.Address) bool { return false }
