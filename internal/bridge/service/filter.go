package service

import (
	"time"

	"github.com/gateline/bridge/internal/bridge/types"
)

// OffsetDateFilter drops records strictly older than a configured cutoff.
// A zero cutoff means no filtering.  Together with the forwarder's
// idempotency keys it makes a full-file re-ingest safe: history before the
// cutoff is suppressed instead of re-delivered.
type OffsetDateFilter struct {
	Cutoff time.Time
}

// Keep reports whether the record survives the cutoff.
func (f OffsetDateFilter) Keep(rec types.AccessRecord) bool {
	if f.Cutoff.IsZero() {
		return true
	}
	return !rec.Timestamp.Before(f.Cutoff)
}

// CutoffLayout is the operator-facing date format for the cutoff setting.
const CutoffLayout = "02/01/2006"

// ParseCutoff parses an operator-provided cutoff value.  Empty means no
// filtering.
func ParseCutoff(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(CutoffLayout, v, time.UTC)
}
