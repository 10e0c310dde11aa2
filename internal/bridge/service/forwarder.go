package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gateline/bridge/internal/bridge/metrics"
	"github.com/gateline/bridge/internal/bridge/store"
	"github.com/gateline/bridge/internal/bridge/types"
	"github.com/gateline/bridge/internal/remote"
)

// EventSink is the remote delivery target.  *remote.Client implements it.
type EventSink interface {
	Endpoint() string
	PostAccessEvent(ctx context.Context, ev remote.Event) error
}

// ForwarderConfig bounds the per-event retry behavior within one tick.
type ForwarderConfig struct {
	// MaxAttempts per event per tick.  Defaults to 3.
	MaxAttempts int

	// BackoffBase is the first retry delay; it doubles per attempt.
	// Defaults to 500ms.
	BackoffBase time.Duration
}

func (c ForwarderConfig) withDefaults() ForwarderConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	return c
}

// ForwardResult summarizes one delivery batch.
type ForwardResult struct {
	Acked    int // acknowledged by the remote this tick
	Skipped  int // already acknowledged or already rejected earlier
	Rejected int // permanently rejected this tick
	Pending  int // left undelivered, retried next tick
}

// SyncForwarder delivers resolved access events to the remote system with
// retry and idempotency.
//
// Delivery is at-least-once and strictly in log order: the forward cursor
// advances only past events the remote acknowledged, and never past an
// event that is still pending.  Replays after a crash or rotation are
// de-duplicated by the remote via the idempotency key, and short-circuited
// locally by the cursor and the rejected-event record.
type SyncForwarder struct {
	sink     EventSink
	cursors  store.CursorStore
	rejected store.RejectedEventStore
	cfg      ForwarderConfig
	metrics  *metrics.Metrics
	logger   *log.Logger

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSyncForwarder(
	sink EventSink,
	cursors store.CursorStore,
	rejected store.RejectedEventStore,
	cfg ForwarderConfig,
	m *metrics.Metrics,
	logger *log.Logger,
) *SyncForwarder {
	return &SyncForwarder{
		sink:     sink,
		cursors:  cursors,
		rejected: rejected,
		cfg:      cfg.withDefaults(),
		metrics:  m,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// EventKey builds the idempotency key for a record position.
func EventKey(path string, offset int64) string {
	return fmt.Sprintf("%s:%d", path, offset)
}

// Forward delivers events in the order given (original log order).  It
// returns an error only for store failures; delivery failures are folded
// into the result so a single undeliverable event never aborts a tick.
func (f *SyncForwarder) Forward(ctx context.Context, events []types.AccessEvent) (ForwardResult, error) {
	var res ForwardResult
	if len(events) == 0 {
		return res, nil
	}

	cur, err := f.cursors.ForwardCursor(ctx, f.sink.Endpoint())
	if err != nil {
		return res, fmt.Errorf("load forward cursor: %w", err)
	}

	for i, ev := range events {
		// Already acknowledged in an earlier tick (replay after crash or
		// rotation): idempotent no-op.
		if cur.Covers(ev.Path, ev.Offset) {
			res.Skipped++
			continue
		}

		// Permanently rejected earlier: excluded from retry.
		if rej, err := f.rejected.IsRejected(ctx, ev.Key); err != nil {
			return res, fmt.Errorf("rejection lookup %s: %w", ev.Key, err)
		} else if rej {
			res.Skipped++
			continue
		}

		outcome, err := f.deliver(ctx, ev)
		if err != nil {
			return res, err
		}

		switch outcome {
		case deliveredAck:
			res.Acked++
			f.metrics.EventsForwarded.Inc()

			// Advance only after acknowledgment, in log order.
			cur = types.ForwardCursor{
				Endpoint:  f.sink.Endpoint(),
				Path:      ev.Path,
				Offset:    ev.Offset,
				Key:       ev.Key,
				UpdatedAt: time.Now().UTC(),
			}
			if err := f.cursors.SaveForwardCursor(ctx, cur); err != nil {
				return res, fmt.Errorf("save forward cursor: %w", err)
			}

		case deliveredRejected:
			// Recorded by deliver; does not block subsequent events and
			// does not advance the cursor by itself.
			res.Rejected++
			f.metrics.EventsRejected.Inc()

		case deliveredPending:
			// Attempts exhausted: everything from here stays pending so
			// ordering is preserved.
			res.Pending = len(events) - i
			f.metrics.EventsPending.Set(float64(res.Pending))
			return res, nil
		}
	}

	f.metrics.EventsPending.Set(0)
	return res, nil
}

type deliveryOutcome int

const (
	deliveredAck deliveryOutcome = iota
	deliveredRejected
	deliveredPending
)

func (f *SyncForwarder) deliver(ctx context.Context, ev types.AccessEvent) (deliveryOutcome, error) {
	var lastErr error

	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := f.cfg.BackoffBase << (attempt - 1)
			if err := f.sleep(ctx, delay); err != nil {
				// Cancelled mid-backoff: leave the event pending.
				return deliveredPending, nil
			}
		}

		err := f.sink.PostAccessEvent(ctx, remote.Event{
			PersonID:  ev.PersonID,
			Badge:     ev.Badge,
			Key:       ev.Key,
			Timestamp: ev.Timestamp,
			Direction: string(ev.Direction),
		})
		if err == nil {
			return deliveredAck, nil
		}

		var rej *remote.RejectedError
		if errors.As(err, &rej) {
			f.logger.Printf("event %s permanently rejected (status %d)", ev.Key, rej.Status)
			recErr := f.rejected.Record(ctx, store.RejectedEvent{
				Key:        ev.Key,
				Badge:      ev.Badge,
				PersonID:   ev.PersonID,
				StatusCode: rej.Status,
				Detail:     rej.Body,
				RejectedAt: time.Now().UTC(),
			})
			if recErr != nil {
				return deliveredRejected, fmt.Errorf("record rejection %s: %w", ev.Key, recErr)
			}
			return deliveredRejected, nil
		}

		// Transient (or unclassified) failure: retry with backoff.
		lastErr = err
	}

	f.logger.Printf("event %s still pending after %d attempts: %v", ev.Key, f.cfg.MaxAttempts, lastErr)
	return deliveredPending, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
