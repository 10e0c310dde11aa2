package store

import (
	"context"
	"time"
)

// RejectedEvent is an access event the remote side permanently refused
// (4xx).  It is recorded for operator visibility and excluded from retry.
type RejectedEvent struct {
	Key        string
	Badge      string
	PersonID   string
	StatusCode int
	Detail     string
	RejectedAt time.Time
}

// RejectedEventStore is an append-only record of permanent delivery
// rejections.
type RejectedEventStore interface {
	Record(ctx context.Context, ev RejectedEvent) error

	// IsRejected lets the forwarder skip a permanently rejected event when
	// its lines are replayed.
	IsRejected(ctx context.Context, key string) (bool, error)

	ListRecent(ctx context.Context, limit int) ([]RejectedEvent, error)
}
