package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/gateline/bridge/internal/db"

	"github.com/gateline/bridge/internal/bridge/store"
)

type RejectedEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRejectedEventStore(db *sql.DB, writer *dbpkg.Worker) *RejectedEventStore {
	return &RejectedEventStore{db: db, writer: writer}
}

func (s *RejectedEventStore) Record(ctx context.Context, ev store.RejectedEvent) error {
	if ev.RejectedAt.IsZero() {
		ev.RejectedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO rejected_events(idempotency_key, badge, person_id, status_code, detail, rejected_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, ev.Key, ev.Badge, ev.PersonID, ev.StatusCode, ev.Detail, ev.RejectedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("Record rejection %s: %w", ev.Key, err)
		}
		return nil
	})
}

func (s *RejectedEventStore) IsRejected(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1 FROM rejected_events WHERE idempotency_key = ?;
`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsRejected query: %w", err)
	}
	return true, nil
}

func (s *RejectedEventStore) ListRecent(ctx context.Context, limit int) ([]store.RejectedEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT idempotency_key, badge, person_id, status_code, detail, rejected_at_ms
FROM rejected_events
ORDER BY rejected_at_ms DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent query: %w", err)
	}
	defer rows.Close()

	var out []store.RejectedEvent
	for rows.Next() {
		var (
			ev         store.RejectedEvent
			rejectedMs int64
		)
		if err := rows.Scan(&ev.Key, &ev.Badge, &ev.PersonID, &ev.StatusCode, &ev.Detail, &rejectedMs); err != nil {
			return nil, fmt.Errorf("ListRecent scan: %w", err)
		}
		ev.RejectedAt = time.UnixMilli(rejectedMs).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
