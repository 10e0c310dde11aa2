package types

import "time"

// TailCursor records how much of a log file has been safely processed.
//
// Cursors are immutable values: advancing a cursor means storing a new one,
// never mutating in place, so a crash mid-update cannot leave a torn cursor.
type TailCursor struct {
	Path string

	// Offset is the byte position just past the last consumed line.
	Offset int64

	// Fingerprint is a SHA-256 of the last consumed line, checked on the
	// next tail to detect truncation or rotation.  Nil means "no cursor":
	// the whole file is backlog.
	Fingerprint []byte

	UpdatedAt time.Time
}

// Zero reports whether the cursor has never been advanced.
func (c TailCursor) Zero() bool {
	return c.Offset == 0 && len(c.Fingerprint) == 0
}

// ForwardCursor records, per remote endpoint, the last event positively
// acknowledged by the remote side.  It advances only after acknowledgment,
// never optimistically, so a crash causes at most a safe re-delivery.
type ForwardCursor struct {
	Endpoint string
	Path     string
	Offset   int64
	Key      string

	UpdatedAt time.Time
}

// Covers reports whether an event at the given position has already been
// acknowledged under this cursor.
func (c ForwardCursor) Covers(path string, offset int64) bool {
	return c.Key != "" && c.Path == path && offset <= c.Offset
}
