package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/gateline/bridge/internal/db"

	"github.com/gateline/bridge/internal/bridge/types"
)

type CursorStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCursorStore(db *sql.DB, writer *dbpkg.Worker) *CursorStore {
	return &CursorStore{db: db, writer: writer}
}

func (s *CursorStore) TailCursor(ctx context.Context, path string) (types.TailCursor, error) {
	cur := types.TailCursor{Path: path}

	var updatedMs int64
	err := s.db.QueryRowContext(ctx, `
SELECT offset, fingerprint, updated_at_ms
FROM tail_cursors
WHERE path = ?;
`, path).Scan(&cur.Offset, &cur.Fingerprint, &updatedMs)
	if err == sql.ErrNoRows {
		// First encounter of the path: the whole file is backlog.
		return cur, nil
	}
	if err != nil {
		return types.TailCursor{}, fmt.Errorf("TailCursor query: %w", err)
	}
	cur.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return cur, nil
}

func (s *CursorStore) SaveTailCursor(ctx context.Context, cur types.TailCursor) error {
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO tail_cursors(path, offset, fingerprint, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
  offset        = excluded.offset,
  fingerprint   = excluded.fingerprint,
  updated_at_ms = excluded.updated_at_ms;
`, cur.Path, cur.Offset, cur.Fingerprint, cur.UpdatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("SaveTailCursor %s: %w", cur.Path, err)
		}
		return nil
	})
}

func (s *CursorStore) ForwardCursor(ctx context.Context, endpoint string) (types.ForwardCursor, error) {
	cur := types.ForwardCursor{Endpoint: endpoint}

	var updatedMs int64
	err := s.db.QueryRowContext(ctx, `
SELECT path, offset, idempotency_key, updated_at_ms
FROM forward_cursors
WHERE endpoint = ?;
`, endpoint).Scan(&cur.Path, &cur.Offset, &cur.Key, &updatedMs)
	if err == sql.ErrNoRows {
		return cur, nil
	}
	if err != nil {
		return types.ForwardCursor{}, fmt.Errorf("ForwardCursor query: %w", err)
	}
	cur.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return cur, nil
}

func (s *CursorStore) SaveForwardCursor(ctx context.Context, cur types.ForwardCursor) error {
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO forward_cursors(endpoint, path, offset, idempotency_key, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(endpoint) DO UPDATE SET
  path            = excluded.path,
  offset          = excluded.offset,
  idempotency_key = excluded.idempotency_key,
  updated_at_ms   = excluded.updated_at_ms;
`, cur.Endpoint, cur.Path, cur.Offset, cur.Key, cur.UpdatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("SaveForwardCursor %s: %w", cur.Endpoint, err)
		}
		return nil
	})
}
