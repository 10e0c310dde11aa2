package types

import "time"

// AccessRecord is one decoded line of the turnstile log.  It is ephemeral:
// records live only for the duration of a pipeline pass.
type AccessRecord struct {
	// Badge is the canonical badge number: leading zeros and surrounding
	// whitespace stripped from the 16-character field.
	Badge string

	// Name is the captured person name, trimmed, at most 40 characters.
	Name string

	// Path and Offset locate the source line.  Offset is the byte position
	// of the line start in the file and is part of the idempotency key.
	Path   string
	Offset int64

	// Timestamp is the ordering key used by the offset-date filter.  The
	// fixed-width format carries no date component, so this is supplied by
	// a TimestampSource policy, not parsed from the line.
	Timestamp time.Time
}

// Direction of a turnstile passage, when known.
type Direction string

const (
	DirectionUnknown Direction = ""
	DirectionIn      Direction = "in"
	DirectionOut     Direction = "out"
)

// AccessEvent is a resolved record ready for remote delivery.
type AccessEvent struct {
	PersonID  string    `json:"person_id"`
	Badge     string    `json:"badge"`
	Key       string    `json:"idempotency_key"`
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction,omitempty"`

	// Path and Offset are carried so the forward cursor can advance in
	// original log order.  They are not part of the wire payload.
	Path   string `json:"-"`
	Offset int64  `json:"-"`
}
