package stream

import "context"

// Store persists streams and their compounding side records.
type Store interface {
	// NextStreamID reserves the next stream id. Ids start at 1 and are
	// never reused, even when the reserving operation is later rejected.
	NextStreamID(ctx context.Context) (uint64, error)
	// InsertStream stores s under s.ID together with c when c is non-nil.
	InsertStream(ctx context.Context, s *Stream, c *Compounding) error
	GetStream(ctx context.Context, streamID uint64) (*Stream, error)
	GetCompounding(ctx context.Context, streamID uint64) (*Compounding, error)
	// UpdateStream persists RemainingBalance and UpdatedAt.
	UpdateStream(ctx context.Context, s *Stream) error
	// DeleteStream removes the stream and its compounding record.
	DeleteStream(ctx context.Context, streamID uint64) error
	ListStreams(ctx context.Context, opts ListOpts) ([]*Stream, error)
}
