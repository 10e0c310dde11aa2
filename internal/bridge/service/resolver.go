package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gateline/bridge/internal/bridge/metrics"
	"github.com/gateline/bridge/internal/bridge/store"
	"github.com/gateline/bridge/internal/bridge/types"
)

var (
	// ErrIdentityConflict marks a badge blocked by an ambiguous name match.
	// It blocks only the affected badge, never the batch.
	ErrIdentityConflict = errors.New("ambiguous identity match")
)

// IdentityResolver maps (badge, captured name) pairs to person identities,
// creating provisional identities when nothing matches.
type IdentityResolver struct {
	registry  store.RegistryStore
	conflicts store.ConflictStore
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewIdentityResolver(reg store.RegistryStore, conf store.ConflictStore, m *metrics.Metrics, logger *log.Logger) *IdentityResolver {
	return &IdentityResolver{registry: reg, conflicts: conf, metrics: m, logger: logger}
}

// Resolve attaches a person identity to one decoded record.
//
// ok=false with a nil error means the badge is blocked by an open conflict
// (pre-existing or created by this call) and should be retried on a later
// pass once the conflict is cleared.
func (r *IdentityResolver) Resolve(ctx context.Context, rec types.AccessRecord) (personID string, ok bool, err error) {
	// A badge under an open conflict stays unresolved until an operator
	// clears it.
	if _, open, err := r.conflicts.OpenConflict(ctx, rec.Badge); err != nil {
		return "", false, fmt.Errorf("conflict lookup for badge %s: %w", rec.Badge, err)
	} else if open {
		return "", false, nil
	}

	matches, err := r.registry.FindByNormalizedName(ctx, NormalizeName(rec.Name))
	if err != nil {
		return "", false, fmt.Errorf("registry lookup for %q: %w", rec.Name, err)
	}

	now := time.Now().UTC()

	switch len(matches) {
	case 0:
		// No identity carries this name: synthesize a provisional one.
		// The id is a pure function of the badge, so retries of the same
		// unresolved badge are naturally idempotent.
		p := ProvisionalIdentity(rec.Badge, rec.Name)
		if err := r.registry.UpsertPerson(ctx, p); err != nil {
			return "", false, fmt.Errorf("create provisional %s: %w", p.ID, err)
		}
		r.metrics.ProvisionalCreated.Inc()
		r.logger.Printf("provisional identity %s for badge %s (%q)", p.ID, rec.Badge, rec.Name)
		return p.ID, true, r.bind(ctx, rec.Badge, p.ID, now)

	case 1:
		return matches[0].ID, true, r.bind(ctx, rec.Badge, matches[0].ID, now)

	default:
		// Ambiguous: surface a conflict, leave the badge unresolved.
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.ID)
		}
		c := types.SyncConflict{
			ID:           uuid.NewString(),
			Badge:        rec.Badge,
			CapturedName: rec.Name,
			CandidateIDs: candidates,
			CreatedAt:    now,
		}
		if err := r.conflicts.Create(ctx, c); err != nil {
			return "", false, fmt.Errorf("record conflict for badge %s: %w", rec.Badge, err)
		}
		r.metrics.ConflictsOpened.Inc()
		r.logger.Printf("conflict: badge %s name %q matches %v: %v", rec.Badge, rec.Name, candidates, ErrIdentityConflict)
		return "", false, nil
	}
}

func (r *IdentityResolver) bind(ctx context.Context, badge, personID string, at time.Time) error {
	superseded, err := r.registry.BindBadge(ctx, badge, personID, at)
	if err != nil {
		return fmt.Errorf("bind badge %s to %s: %w", badge, personID, err)
	}
	if superseded {
		// An explicit rebind, never silently dropped history.
		r.metrics.BadgeRebinds.Inc()
		r.logger.Printf("rebind: badge %s now bound to %s (prior binding superseded)", badge, personID)
	}
	return nil
}

// NormalizeName produces the lookup key for a captured name: internal
// whitespace collapsed, case folded.  Display names keep their original
// form; only comparisons use this.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ProvisionalIdentity synthesizes the identity for an unmatched badge.
// Deterministic: the same badge always yields the same identity.
func ProvisionalIdentity(badge, capturedName string) types.PersonIdentity {
	return types.PersonIdentity{
		ID:             "badge:" + badge,
		DisplayName:    capturedName,
		NormalizedName: NormalizeName(capturedName),
		Provenance:     types.ProvenanceProvisional,
	}
}
