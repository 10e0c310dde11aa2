package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/gateline/bridge/internal/db"

	"github.com/gateline/bridge/internal/bridge/store"
	"github.com/gateline/bridge/internal/bridge/types"
)

type RegistryStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRegistryStore(db *sql.DB, writer *dbpkg.Worker) *RegistryStore {
	return &RegistryStore{db: db, writer: writer}
}

func (s *RegistryStore) FindByNormalizedName(ctx context.Context, name string) ([]types.PersonIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, display_name, normalized_name, provenance, created_at_ms, updated_at_ms
FROM persons
WHERE normalized_name = ?
ORDER BY id;
`, name)
	if err != nil {
		return nil, fmt.Errorf("FindByNormalizedName query: %w", err)
	}
	defer rows.Close()

	var out []types.PersonIdentity
	for rows.Next() {
		var (
			p                    types.PersonIdentity
			createdMs, updatedMs int64
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.NormalizedName, &p.Provenance, &createdMs, &updatedMs); err != nil {
			return nil, fmt.Errorf("FindByNormalizedName scan: %w", err)
		}
		p.CreatedAt = time.UnixMilli(createdMs).UTC()
		p.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *RegistryStore) UpsertPerson(ctx context.Context, p types.PersonIdentity) error {
	now := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO persons(id, display_name, normalized_name, provenance, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  display_name    = excluded.display_name,
  normalized_name = excluded.normalized_name,
  provenance      = excluded.provenance,
  updated_at_ms   = excluded.updated_at_ms;
`, p.ID, p.DisplayName, p.NormalizedName, string(p.Provenance), now, now); err != nil {
			return fmt.Errorf("UpsertPerson %s: %w", p.ID, err)
		}
		return nil
	})
}

func (s *RegistryStore) ActiveBinding(ctx context.Context, badge string) (types.BadgeBinding, bool, error) {
	var (
		b       types.BadgeBinding
		boundMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT badge, person_id, bound_at_ms
FROM badge_bindings
WHERE badge = ? AND active = 1;
`, badge).Scan(&b.Badge, &b.PersonID, &boundMs)
	if err == sql.ErrNoRows {
		return types.BadgeBinding{}, false, nil
	}
	if err != nil {
		return types.BadgeBinding{}, false, fmt.Errorf("ActiveBinding query: %w", err)
	}
	b.Active = true
	b.BoundAt = time.UnixMilli(boundMs).UTC()
	return b, true, nil
}

func (s *RegistryStore) BindBadge(ctx context.Context, badge, personID string, at time.Time) (bool, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	atMs := at.UTC().UnixMilli()

	superseded := false
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `
SELECT person_id FROM badge_bindings WHERE badge = ? AND active = 1;
`, badge).Scan(&current)
		switch {
		case err == sql.ErrNoRows:
			// No active binding: fall through to insert.
		case err != nil:
			return fmt.Errorf("BindBadge lookup: %w", err)
		case current == personID:
			// Already correctly bound: no-op.
			return nil
		default:
			// Supersede the prior holder; the row is kept for history.
			if _, err := tx.ExecContext(ctx, `
UPDATE badge_bindings
SET active = 0, superseded_at_ms = ?
WHERE badge = ? AND active = 1;
`, atMs, badge); err != nil {
				return fmt.Errorf("BindBadge supersede: %w", err)
			}
			superseded = true
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO badge_bindings(badge, person_id, active, bound_at_ms)
VALUES (?, ?, 1, ?);
`, badge, personID, atMs); err != nil {
			return fmt.Errorf("BindBadge insert: %w", err)
		}
		return nil
	})
	return superseded, err
}

func (s *RegistryStore) ActiveBindings(ctx context.Context) ([]store.BoundPerson, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT b.badge, p.id, p.display_name, p.normalized_name, p.provenance
FROM badge_bindings b
JOIN persons p ON p.id = b.person_id
WHERE b.active = 1;
`)
	if err != nil {
		return nil, fmt.Errorf("ActiveBindings query: %w", err)
	}
	defer rows.Close()

	var out []store.BoundPerson
	for rows.Next() {
		var bp store.BoundPerson
		if err := rows.Scan(&bp.Badge, &bp.Person.ID, &bp.Person.DisplayName,
			&bp.Person.NormalizedName, &bp.Person.Provenance); err != nil {
			return nil, fmt.Errorf("ActiveBindings scan: %w", err)
		}
		out = append(out, bp)
	}
	return out, rows.Err()
}
