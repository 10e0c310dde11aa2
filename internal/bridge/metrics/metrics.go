// Package metrics provides observability for the sync pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pipeline throughput and failure modes.
type Metrics struct {
	LinesRead          prometheus.Counter
	RecordsDecoded     prometheus.Counter
	RecordsMalformed   prometheus.Counter
	RecordsFiltered    prometheus.Counter
	RotationsDetected  prometheus.Counter
	ProvisionalCreated prometheus.Counter
	BadgeRebinds       prometheus.Counter
	ConflictsOpened    prometheus.Counter
	EventsForwarded    prometheus.Counter
	EventsRejected     prometheus.Counter
	EventsPending      prometheus.Gauge
	PassDuration       prometheus.Histogram
}

// New registers and returns all pipeline metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LinesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_lines_read_total",
			Help: "Raw lines read from the turnstile log",
		}),
		RecordsDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_records_decoded_total",
			Help: "Lines decoded into badge records",
		}),
		RecordsMalformed: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_records_malformed_total",
			Help: "Lines skipped as malformed badge records",
		}),
		RecordsFiltered: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_records_filtered_total",
			Help: "Records dropped by the offset-date cutoff",
		}),
		RotationsDetected: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_rotations_detected_total",
			Help: "Log truncations/rotations detected by the tailer",
		}),
		ProvisionalCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_provisional_identities_total",
			Help: "Provisional identities synthesized for unmatched badges",
		}),
		BadgeRebinds: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_badge_rebinds_total",
			Help: "Badges rebound to a different identity (prior binding superseded)",
		}),
		ConflictsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_conflicts_opened_total",
			Help: "Ambiguous name matches surfaced as sync conflicts",
		}),
		EventsForwarded: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_events_forwarded_total",
			Help: "Access events acknowledged by the remote system",
		}),
		EventsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_events_rejected_total",
			Help: "Access events permanently rejected by the remote system",
		}),
		EventsPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_events_pending",
			Help: "Events awaiting delivery after the last pass",
		}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_pass_duration_seconds",
			Help:    "Duration of full pipeline passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

// ObservePass records the duration of one pipeline pass.  Call with the
// time.Now() captured at pass start.
func (m *Metrics) ObservePass(start time.Time) {
	m.PassDuration.Observe(time.Since(start).Seconds())
}
