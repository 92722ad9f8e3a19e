// Package plugin provides an extensible plugin system for Drip.
// Plugins can hook into stream, swap and earnings lifecycle events.
package plugin

import (
	"context"

	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Stream hooks
// ──────────────────────────────────────────────────

// OnStreamCreated is called after a stream is created and funded.
// c is nil for streams that do not compound.
type OnStreamCreated interface {
	Plugin
	OnStreamCreated(ctx context.Context, s *stream.Stream, c *stream.Compounding) error
}

// OnWithdrawn is called after a withdrawal settled.
type OnWithdrawn interface {
	Plugin
	OnWithdrawn(ctx context.Context, st *stream.Settlement) error
}

// OnStreamCanceled is called after a cancellation settled.
type OnStreamCanceled interface {
	Plugin
	OnStreamCanceled(ctx context.Context, st *stream.Settlement) error
}

// OnTransferFailed is called when a gateway transfer failed. err is a
// *drip.TransferError; its Owed payouts are set when the operation
// settled before the failure.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, op string, err error) error
}

// OnPayoutClaimed is called after an owed payout reached its party.
type OnPayoutClaimed interface {
	Plugin
	OnPayoutClaimed(ctx context.Context, p *payout.Payout) error
}

// ──────────────────────────────────────────────────
// Swap hooks
// ──────────────────────────────────────────────────

// OnSwapProposed is called after a proposal is escrowed.
type OnSwapProposed interface {
	Plugin
	OnSwapProposed(ctx context.Context, p *swap.Proposal) error
}

// OnSwapExecuted is called after both streams of a swap are live.
type OnSwapExecuted interface {
	Plugin
	OnSwapExecuted(ctx context.Context, s *swap.Swap) error
}

// OnSwapCanceled is called after an executed swap is canceled, with one
// settlement per stream that was still live.
type OnSwapCanceled interface {
	Plugin
	OnSwapCanceled(ctx context.Context, s *swap.Swap, settlements []*stream.Settlement) error
}

// OnProposalCanceled is called after a proposal is refunded.
type OnProposalCanceled interface {
	Plugin
	OnProposalCanceled(ctx context.Context, p *swap.Proposal) error
}

// ──────────────────────────────────────────────────
// Earnings hooks
// ──────────────────────────────────────────────────

// OnFeeUpdated is called after the protocol fee changes.
type OnFeeUpdated interface {
	Plugin
	OnFeeUpdated(ctx context.Context, change *earnings.FeeChange) error
}

// OnEarningsTaken is called after an admin withdrew earnings.
type OnEarningsTaken interface {
	Plugin
	OnEarningsTaken(ctx context.Context, w *earnings.Withdrawal) error
}
