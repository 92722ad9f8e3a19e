// Package store defines the unified persistence interface for Drip.
package store

import (
	"context"

	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
)

// Store is the unified storage interface for all Drip entities. Method
// names carry their entity so the per-package interfaces embed cleanly.
type Store interface {
	stream.Store
	swap.Store
	earnings.Store
	payout.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
