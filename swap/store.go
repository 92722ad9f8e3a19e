package swap

import "context"

// Store persists proposals and executed swaps. A proposal and the swap it
// becomes share one id.
type Store interface {
	NextSwapID(ctx context.Context) (uint64, error)
	InsertProposal(ctx context.Context, p *Proposal) error
	GetProposal(ctx context.Context, swapID uint64) (*Proposal, error)
	DeleteProposal(ctx context.Context, swapID uint64) error
	InsertSwap(ctx context.Context, s *Swap) error
	GetSwap(ctx context.Context, swapID uint64) (*Swap, error)
	DeleteSwap(ctx context.Context, swapID uint64) error
}
