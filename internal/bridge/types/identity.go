package types

import "time"

// Provenance says where a person identity came from.
type Provenance string

const (
	// ProvenanceConfirmed marks identities from the authoritative person feed.
	ProvenanceConfirmed Provenance = "confirmed"

	// ProvenanceProvisional marks identities synthesized from access data
	// alone, pending confirmation from the feed.
	ProvenanceProvisional Provenance = "provisional"
)

// PersonIdentity is a person known to the registry.
//
// DisplayName preserves the operator-facing original casing; NormalizedName
// is the lookup key (whitespace collapsed, case-folded).  The two are kept
// as separate fields so normalization never destroys the original.
type PersonIdentity struct {
	ID             string
	DisplayName    string
	NormalizedName string
	Provenance     Provenance
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BadgeBinding ties a badge number to a person identity.  A badge has at
// most one active binding at a time; rebinding supersedes the prior binding
// rather than deleting it, so history is preserved.
type BadgeBinding struct {
	Badge        string
	PersonID     string
	Active       bool
	BoundAt      time.Time
	SupersededAt *time.Time
}
