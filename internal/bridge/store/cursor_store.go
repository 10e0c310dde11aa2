package store

import (
	"context"

	"github.com/gateline/bridge/internal/bridge/types"
)

// CursorStore durably persists tail and forward cursors.
//
// The advance-only-after-success discipline is the caller's: stores just
// replace the stored value atomically with whatever they are handed.
type CursorStore interface {
	// TailCursor returns the cursor for a file path, or a zero cursor when
	// the path has never been tailed.
	TailCursor(ctx context.Context, path string) (types.TailCursor, error)

	SaveTailCursor(ctx context.Context, cur types.TailCursor) error

	// ForwardCursor returns the cursor for a remote endpoint, or a zero
	// cursor when nothing has been acknowledged yet.
	ForwardCursor(ctx context.Context, endpoint string) (types.ForwardCursor, error)

	SaveForwardCursor(ctx context.Context, cur types.ForwardCursor) error
}
