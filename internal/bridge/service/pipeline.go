package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gateline/bridge/internal/bridge/codec"
	"github.com/gateline/bridge/internal/bridge/metrics"
	"github.com/gateline/bridge/internal/bridge/store"
	"github.com/gateline/bridge/internal/bridge/tailer"
	"github.com/gateline/bridge/internal/bridge/types"
)

// Pipeline runs one full bridge pass: refresh the roster, tail the badge
// log, decode and filter new records, resolve identities, and forward the
// resulting events.
type Pipeline struct {
	settings  store.SettingsStore
	cursors   store.CursorStore
	codec     codec.Codec
	ts        TimestampSource
	resolver  *IdentityResolver
	forwarder *SyncForwarder
	students  *StudentSync
	metrics   *metrics.Metrics
	logger    *log.Logger

	mu     sync.Mutex
	status Status
}

// Status is a snapshot of the last completed pass, served by the operator
// API.
type Status struct {
	LastPassAt    time.Time `json:"last_pass_at"`
	LastError     string    `json:"last_error,omitempty"`
	LinesRead     int       `json:"lines_read"`
	EventsAcked   int       `json:"events_acked"`
	EventsPending int       `json:"events_pending"`
	Rejected      int       `json:"events_rejected"`
	Unresolved    int       `json:"unresolved"`
}

func NewPipeline(
	settings store.SettingsStore,
	cursors store.CursorStore,
	c codec.Codec,
	ts TimestampSource,
	resolver *IdentityResolver,
	forwarder *SyncForwarder,
	students *StudentSync,
	m *metrics.Metrics,
	logger *log.Logger,
) *Pipeline {
	return &Pipeline{
		settings:  settings,
		cursors:   cursors,
		codec:     c,
		ts:        ts,
		resolver:  resolver,
		forwarder: forwarder,
		students:  students,
		metrics:   m,
		logger:    logger,
	}
}

// Status returns the last pass snapshot.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// RunPass executes one pass.  Settings are re-read each pass so operator
// changes take effect on the next tick without a restart.
func (p *Pipeline) RunPass(ctx context.Context) error {
	start := time.Now()
	err := p.runPass(ctx, start)
	p.metrics.ObservePass(start)

	p.mu.Lock()
	p.status.LastPassAt = start
	if err != nil {
		p.status.LastError = err.Error()
	} else {
		p.status.LastError = ""
	}
	p.mu.Unlock()
	return err
}

func (p *Pipeline) runPass(ctx context.Context, start time.Time) error {
	logPath, ok, err := p.settings.Get(ctx, store.SettingLogPath)
	if err != nil {
		return fmt.Errorf("read log path setting: %w", err)
	}
	if !ok || logPath == "" {
		p.logger.Printf("no badge log path configured, skipping pass")
		return nil
	}

	filter, err := p.loadFilter(ctx)
	if err != nil {
		return err
	}

	// The roster refresh is best effort: a remote outage must not stop
	// local records from accumulating against the cursor.
	if p.students != nil {
		if n, err := p.students.Sync(ctx); err != nil {
			p.logger.Printf("roster sync failed, continuing with stored registry: %v", err)
		} else {
			p.logger.Printf("roster sync: %d students", n)
		}
	}

	cur, err := p.cursors.TailCursor(ctx, logPath)
	if err != nil {
		return fmt.Errorf("load tail cursor: %w", err)
	}

	batch, err := tailer.Tail(ctx, logPath, cur)
	if err != nil {
		return fmt.Errorf("tail %s: %w", logPath, err)
	}

	if batch.Rotated {
		p.metrics.RotationsDetected.Inc()
		p.logger.Printf("badge log %s rotated, restarting from the beginning", logPath)
		if err := p.cursors.SaveTailCursor(ctx, batch.Next); err != nil {
			return fmt.Errorf("reset tail cursor: %w", err)
		}
		return nil
	}

	events, unresolved, err := p.collect(ctx, batch, filter)
	if err != nil {
		return err
	}

	res, err := p.forwarder.Forward(ctx, events)
	if err != nil {
		return fmt.Errorf("forward events: %w", err)
	}

	p.mu.Lock()
	p.status.LinesRead = len(batch.Lines)
	p.status.EventsAcked = res.Acked
	p.status.EventsPending = res.Pending
	p.status.Rejected = res.Rejected
	p.status.Unresolved = unresolved
	p.mu.Unlock()

	// The tail cursor may only advance once every record in the batch is
	// settled: delivered, rejected, or skipped.  Pending deliveries and
	// conflict-blocked records must be re-read next pass.
	if res.Pending > 0 || unresolved > 0 {
		p.logger.Printf("pass incomplete (%d pending, %d unresolved), tail cursor held", res.Pending, unresolved)
		return nil
	}

	if err := p.cursors.SaveTailCursor(ctx, batch.Next); err != nil {
		return fmt.Errorf("save tail cursor: %w", err)
	}
	if len(batch.Lines) > 0 {
		p.logger.Printf("pass complete: %d lines, %d acked, %d rejected, %d skipped in %s",
			len(batch.Lines), res.Acked, res.Rejected, res.Skipped, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// collect decodes, filters and resolves the batch into forwardable events.
// Blank lines are silent; malformed lines are logged and counted but never
// block the batch.  Records blocked on an identity conflict are counted as
// unresolved so the caller holds the tail cursor.
func (p *Pipeline) collect(ctx context.Context, batch tailer.Batch, filter OffsetDateFilter) ([]types.AccessEvent, int, error) {
	var events []types.AccessEvent
	unresolved := 0

	for _, line := range batch.Lines {
		p.metrics.LinesRead.Inc()

		rec, err := p.codec.Decode(line.Text, line.Offset)
		if errors.Is(err, codec.ErrBlankRecord) {
			continue
		}
		if err != nil {
			p.metrics.RecordsMalformed.Inc()
			p.logger.Printf("malformed record at offset %d: %v", line.Offset, err)
			continue
		}
		p.metrics.RecordsDecoded.Inc()

		rec.Path = batch.Next.Path
		rec.Timestamp = p.ts.Timestamp(rec.Path, rec.Offset)

		if !filter.Keep(rec) {
			p.metrics.RecordsFiltered.Inc()
			continue
		}

		personID, ok, err := p.resolver.Resolve(ctx, rec)
		if err != nil {
			return nil, 0, fmt.Errorf("resolve badge %s: %w", rec.Badge, err)
		}
		if !ok {
			unresolved++
			continue
		}

		events = append(events, types.AccessEvent{
			PersonID:  personID,
			Badge:     rec.Badge,
			Key:       EventKey(rec.Path, rec.Offset),
			Timestamp: rec.Timestamp,
			Direction: types.DirectionUnknown,
			Path:      rec.Path,
			Offset:    rec.Offset,
		})
	}

	return events, unresolved, nil
}

func (p *Pipeline) loadFilter(ctx context.Context) (OffsetDateFilter, error) {
	raw, ok, err := p.settings.Get(ctx, store.SettingCutoff)
	if err != nil {
		return OffsetDateFilter{}, fmt.Errorf("read cutoff setting: %w", err)
	}
	if !ok {
		return OffsetDateFilter{}, nil
	}
	cutoff, err := ParseCutoff(raw)
	if err != nil {
		return OffsetDateFilter{}, fmt.Errorf("cutoff setting %q: %w", raw, err)
	}
	return OffsetDateFilter{Cutoff: cutoff}, nil
}
