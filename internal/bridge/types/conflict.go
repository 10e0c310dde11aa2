package types

import "time"

// SyncConflict is an ambiguous name match: two or more confirmed identities
// share a normalized name, so a badge cannot be bound automatically.  The
// conflict is surfaced for an operator and the badge stays unresolved until
// the conflict is cleared.
type SyncConflict struct {
	ID           string     `json:"id"`
	Badge        string     `json:"badge"`
	CapturedName string     `json:"captured_name"`
	CandidateIDs []string   `json:"candidate_ids"`
	CreatedAt    time.Time  `json:"created_at"`
	ClearedAt    *time.Time `json:"cleared_at,omitempty"`
}

// Open reports whether the conflict still blocks its badge.
func (c SyncConflict) Open() bool { return c.ClearedAt == nil }
