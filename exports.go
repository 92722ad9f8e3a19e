package drip

import (
	"github.com/xraph/drip/address"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
	"github.com/xraph/drip/types"
)

// Re-export common types for convenience so users don't have to import the
// model packages for everyday calls.

// Address identifies a principal, an asset, or the ledger itself.
type Address = address.Address

// Stream is re-exported from the stream package.
type Stream = stream.Stream

// Settlement is re-exported from the stream package.
type Settlement = stream.Settlement

// ListOpts is re-exported from the stream package.
type ListOpts = stream.ListOpts

// Interest is re-exported from the stream package.
type Interest = stream.Interest

// Proposal is re-exported from the swap package.
type Proposal = swap.Proposal

// Swap is re-exported from the swap package.
type Swap = swap.Swap

// Payout is re-exported from the payout package.
type Payout = payout.Payout

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export amount helpers
var (
	Amount          = types.Amount
	ParseAmount     = types.ParseAmount
	MustParseAmount = types.MustParseAmount
	NewEntity       = types.NewEntity
)
