package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	dbpkg "github.com/gateline/bridge/internal/db"

	"github.com/gateline/bridge/internal/bridge/types"
)

type ConflictStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewConflictStore(db *sql.DB, writer *dbpkg.Worker) *ConflictStore {
	return &ConflictStore{db: db, writer: writer}
}

func (s *ConflictStore) OpenConflict(ctx context.Context, badge string) (types.SyncConflict, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, badge, captured_name, candidates, created_at_ms, cleared_at_ms
FROM sync_conflicts
WHERE badge = ? AND cleared_at_ms IS NULL;
`, badge)

	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return types.SyncConflict{}, false, nil
	}
	if err != nil {
		return types.SyncConflict{}, false, fmt.Errorf("OpenConflict query: %w", err)
	}
	return c, true, nil
}

func (s *ConflictStore) Create(ctx context.Context, c types.SyncConflict) error {
	candidates, err := json.Marshal(c.CandidateIDs)
	if err != nil {
		return fmt.Errorf("Create marshal candidates: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// The partial unique index on (badge) where cleared_at_ms IS NULL
		// enforces one open conflict per badge; INSERT OR IGNORE keeps the
		// first one.
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO sync_conflicts(id, badge, captured_name, candidates, created_at_ms)
VALUES (?, ?, ?, ?, ?);
`, c.ID, c.Badge, c.CapturedName, string(candidates), c.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("Create conflict %s: %w", c.Badge, err)
		}
		return nil
	})
}

func (s *ConflictStore) ListOpen(ctx context.Context) ([]types.SyncConflict, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, badge, captured_name, candidates, created_at_ms, cleared_at_ms
FROM sync_conflicts
WHERE cleared_at_ms IS NULL
ORDER BY created_at_ms;
`)
	if err != nil {
		return nil, fmt.Errorf("ListOpen query: %w", err)
	}
	defer rows.Close()

	var out []types.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("ListOpen scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *ConflictStore) Clear(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE sync_conflicts
SET cleared_at_ms = ?
WHERE id = ? AND cleared_at_ms IS NULL;
`, at.UTC().UnixMilli(), id); err != nil {
			return fmt.Errorf("Clear conflict %s: %w", id, err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConflict(row rowScanner) (types.SyncConflict, error) {
	var (
		c          types.SyncConflict
		candidates string
		createdMs  int64
		clearedMs  sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.Badge, &c.CapturedName, &candidates, &createdMs, &clearedMs); err != nil {
		return types.SyncConflict{}, err
	}
	if err := json.Unmarshal([]byte(candidates), &c.CandidateIDs); err != nil {
		return types.SyncConflict{}, fmt.Errorf("unmarshal candidates: %w", err)
	}
	c.CreatedAt = time.UnixMilli(createdMs).UTC()
	if clearedMs.Valid {
		t := time.UnixMilli(clearedMs.Int64).UTC()
		c.ClearedAt = &t
	}
	return c, nil
}
