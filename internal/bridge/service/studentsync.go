package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gateline/bridge/internal/bridge/store"
	"github.com/gateline/bridge/internal/bridge/types"
	"github.com/gateline/bridge/internal/remote"
)

// StudentFeed supplies the authoritative student roster.  *remote.Client
// implements it.
type StudentFeed interface {
	FetchStudents(ctx context.Context) ([]remote.Student, error)
}

// StudentSync refreshes confirmed identities and badge bindings from the
// remote roster.  Feed entries win over provisional identities: binding a
// feed badge supersedes whatever held it before.
type StudentSync struct {
	feed     StudentFeed
	registry store.RegistryStore
	logger   *log.Logger
}

func NewStudentSync(feed StudentFeed, registry store.RegistryStore, logger *log.Logger) *StudentSync {
	return &StudentSync{feed: feed, registry: registry, logger: logger}
}

// Sync pulls the roster and upserts every student as a confirmed identity,
// binding their badge when the feed carries one.  Returns the number of
// students processed.
func (s *StudentSync) Sync(ctx context.Context) (int, error) {
	students, err := s.feed.FetchStudents(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch students: %w", err)
	}

	now := time.Now().UTC()
	for _, st := range students {
		id := feedPersonID(st)
		p := types.PersonIdentity{
			ID:             id,
			DisplayName:    st.Name,
			NormalizedName: NormalizeName(st.Name),
			Provenance:     types.ProvenanceConfirmed,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.registry.UpsertPerson(ctx, p); err != nil {
			return 0, fmt.Errorf("upsert student %s: %w", id, err)
		}

		badge := canonicalFeedBadge(st.Badge)
		if badge == "" {
			continue
		}
		superseded, err := s.registry.BindBadge(ctx, badge, id, now)
		if err != nil {
			return 0, fmt.Errorf("bind badge %s to %s: %w", badge, id, err)
		}
		if superseded {
			s.logger.Printf("badge %s rebound to %s from roster", badge, id)
		}
	}

	return len(students), nil
}

func feedPersonID(st remote.Student) string {
	if st.Registration != "" {
		return "matricula:" + st.Registration
	}
	return "feed:" + strconv.FormatInt(st.ID, 10)
}

// canonicalFeedBadge matches the log-side badge canonicalization so a
// zero-padded feed badge binds the same key the decoder produces.
func canonicalFeedBadge(raw string) string {
	b := strings.TrimSpace(raw)
	b = strings.TrimLeft(b, "0")
	return b
}
