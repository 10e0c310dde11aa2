package store

import (
	"context"
	"time"

	"github.com/gateline/bridge/internal/bridge/types"
)

// ConflictStore persists ambiguous-match conflicts until an operator clears
// them.  A badge has at most one open conflict at a time.
type ConflictStore interface {
	// OpenConflict returns the open conflict for a badge, if any.
	OpenConflict(ctx context.Context, badge string) (types.SyncConflict, bool, error)

	// Create records a new conflict.  If the badge already has an open
	// conflict, Create is a no-op (the existing conflict stands).
	Create(ctx context.Context, c types.SyncConflict) error

	// ListOpen returns all conflicts awaiting operator resolution.
	ListOpen(ctx context.Context) ([]types.SyncConflict, error)

	// Clear marks a conflict resolved; its badge becomes resolvable again
	// on the next pass.
	Clear(ctx context.Context, id string, at time.Time) error
}
