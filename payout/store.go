package payout

import (
	"context"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/id"
)

// Store persists owed payouts.
type Store interface {
	InsertPayout(ctx context.Context, p *Payout) error
	GetPayout(ctx context.Context, payoutID id.ID) (*Payout, error)
	DeletePayout(ctx context.Context, payoutID id.ID) error
	// ListPayouts returns payouts owed to party, oldest first. An empty
	// party lists every payout.
	ListPayouts(ctx context.Context, party address.Address) ([]*Payout, error)
}
