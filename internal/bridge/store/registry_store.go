package store

import (
	"context"
	"time"

	"github.com/gateline/bridge/internal/bridge/types"
)

// BoundPerson pairs an active badge binding with its person identity, as
// needed by the registry exporter.
type BoundPerson struct {
	Badge  string
	Person types.PersonIdentity
}

// RegistryStore is the person/card registry.
type RegistryStore interface {
	// FindByNormalizedName returns every identity whose lookup key equals
	// name, confirmed and provisional alike.
	FindByNormalizedName(ctx context.Context, name string) ([]types.PersonIdentity, error)

	// UpsertPerson creates the identity or refreshes its display name and
	// provenance.  The normalized name is recomputed by the caller.
	UpsertPerson(ctx context.Context, p types.PersonIdentity) error

	// ActiveBinding returns the current active binding for a badge, if any.
	ActiveBinding(ctx context.Context, badge string) (types.BadgeBinding, bool, error)

	// BindBadge makes personID the active holder of badge at time at.
	// A prior binding to a different identity is superseded (deactivated,
	// never deleted).  Binding an already-correctly-bound pair is a no-op.
	// Returns whether an existing binding was superseded.
	BindBadge(ctx context.Context, badge, personID string, at time.Time) (superseded bool, err error)

	// ActiveBindings lists every active binding with its identity.
	ActiveBindings(ctx context.Context) ([]BoundPerson, error)
}
