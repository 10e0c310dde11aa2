package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a couple of confirmed identities with bound badges so a
// dev environment has something to resolve against before the first feed
// sync.  Safe to run repeatedly.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	seed := []struct {
		id, name, norm, badge string
	}{
		{"matricula:1001", "JOAO DA SILVA", "joao da silva", "1234"},
		{"matricula:1002", "MARIA OLIVEIRA", "maria oliveira", "5678"},
	}

	for _, p := range seed {
		if _, err := db.ExecContext(ctx, `
INSERT INTO persons(id, display_name, normalized_name, provenance, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, 'confirmed', ?, ?)
ON CONFLICT(id) DO UPDATE SET
  display_name    = excluded.display_name,
  normalized_name = excluded.normalized_name,
  updated_at_ms   = excluded.updated_at_ms;
`, p.id, p.name, p.norm, now, now); err != nil {
			return fmt.Errorf("seed person %s: %w", p.id, err)
		}

		var existing int
		err := db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM badge_bindings WHERE badge = ? AND active = 1;
`, p.badge).Scan(&existing)
		if err != nil {
			return fmt.Errorf("seed check binding %s: %w", p.badge, err)
		}
		if existing > 0 {
			continue
		}

		if _, err := db.ExecContext(ctx, `
INSERT INTO badge_bindings(badge, person_id, active, bound_at_ms)
VALUES (?, ?, 1, ?);
`, p.badge, p.id, now); err != nil {
			return fmt.Errorf("seed binding %s: %w", p.badge, err)
		}
	}

	return nil
}
