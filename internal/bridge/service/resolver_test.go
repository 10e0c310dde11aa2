package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/gateline/bridge/internal/bridge/service"
	"github.com/gateline/bridge/internal/bridge/store/memory"
	"github.com/gateline/bridge/internal/bridge/types"
)

func confirmedPerson(id, name string) types.PersonIdentity {
	now := time.Now().UTC()
	return types.PersonIdentity{
		ID:             id,
		DisplayName:    name,
		NormalizedName: service.NormalizeName(name),
		Provenance:     types.ProvenanceConfirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestIdentityResolver_CreatesProvisionalWhenUnmatched(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistryStore()
	conf := memory.NewConflictStore()
	r := service.NewIdentityResolver(reg, conf, testMetrics(), testLogger())

	id, ok, err := r.Resolve(ctx, types.AccessRecord{Badge: "9999", Name: "VISITANTE UM"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok || id != "badge:9999" {
		t.Fatalf("got (%q, %v), want (\"badge:9999\", true)", id, ok)
	}

	b, found, err := reg.ActiveBinding(ctx, "9999")
	if err != nil || !found {
		t.Fatalf("ActiveBinding: found=%v err=%v", found, err)
	}
	if b.PersonID != "badge:9999" {
		t.Fatalf("badge bound to %q, want badge:9999", b.PersonID)
	}

	people, err := reg.FindByNormalizedName(ctx, service.NormalizeName("VISITANTE UM"))
	if err != nil || len(people) != 1 {
		t.Fatalf("FindByNormalizedName: %d people, err=%v", len(people), err)
	}
	if people[0].Provenance != types.ProvenanceProvisional {
		t.Fatalf("provenance = %q, want provisional", people[0].Provenance)
	}
}

func TestIdentityResolver_ProvisionalRetryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistryStore()
	r := service.NewIdentityResolver(reg, memory.NewConflictStore(), testMetrics(), testLogger())

	rec := types.AccessRecord{Badge: "9999", Name: "VISITANTE UM"}
	for i := 0; i < 3; i++ {
		id, ok, err := r.Resolve(ctx, rec)
		if err != nil || !ok || id != "badge:9999" {
			t.Fatalf("attempt %d: (%q, %v, %v)", i, id, ok, err)
		}
	}

	if n := len(reg.Bindings()); n != 1 {
		t.Fatalf("%d bindings after repeated resolves, want 1", n)
	}
}

func TestIdentityResolver_SingleMatchBinds(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistryStore()
	if err := reg.UpsertPerson(ctx, confirmedPerson("matricula:1001", "JOAO DA SILVA")); err != nil {
		t.Fatal(err)
	}
	r := service.NewIdentityResolver(reg, memory.NewConflictStore(), testMetrics(), testLogger())

	id, ok, err := r.Resolve(ctx, types.AccessRecord{Badge: "1234", Name: "joao  da silva"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok || id != "matricula:1001" {
		t.Fatalf("got (%q, %v), want (matricula:1001, true)", id, ok)
	}
}

func TestIdentityResolver_RebindSupersedesPriorHolder(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistryStore()
	if err := reg.UpsertPerson(ctx, confirmedPerson("matricula:1001", "JOAO DA SILVA")); err != nil {
		t.Fatal(err)
	}
	if err := reg.UpsertPerson(ctx, confirmedPerson("matricula:1002", "MARIA OLIVEIRA")); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.BindBadge(ctx, "1234", "matricula:1001", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	r := service.NewIdentityResolver(reg, memory.NewConflictStore(), testMetrics(), testLogger())

	// The badge now swipes under the other person's name.
	id, ok, err := r.Resolve(ctx, types.AccessRecord{Badge: "1234", Name: "MARIA OLIVEIRA"})
	if err != nil || !ok || id != "matricula:1002" {
		t.Fatalf("got (%q, %v, %v), want (matricula:1002, true, nil)", id, ok, err)
	}

	b, found, err := reg.ActiveBinding(ctx, "1234")
	if err != nil || !found {
		t.Fatalf("ActiveBinding: found=%v err=%v", found, err)
	}
	if b.PersonID != "matricula:1002" {
		t.Fatalf("active holder = %q, want matricula:1002", b.PersonID)
	}

	active := 0
	for _, bnd := range reg.Bindings() {
		if bnd.Badge == "1234" && bnd.Active {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("%d active bindings for the badge, want 1", active)
	}
}

func TestIdentityResolver_DuplicateNamesOpenOneConflict(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistryStore()
	if err := reg.UpsertPerson(ctx, confirmedPerson("matricula:2001", "ANA SOUZA")); err != nil {
		t.Fatal(err)
	}
	if err := reg.UpsertPerson(ctx, confirmedPerson("matricula:2002", "ANA SOUZA")); err != nil {
		t.Fatal(err)
	}
	conf := memory.NewConflictStore()
	r := service.NewIdentityResolver(reg, conf, testMetrics(), testLogger())

	rec := types.AccessRecord{Badge: "7777", Name: "ANA SOUZA"}
	for i := 0; i < 2; i++ {
		id, ok, err := r.Resolve(ctx, rec)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if ok || id != "" {
			t.Fatalf("attempt %d resolved to %q, want unresolved", i, id)
		}
	}

	open, err := conf.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("%d open conflicts, want exactly 1", len(open))
	}
	c := open[0]
	if c.Badge != "7777" || len(c.CandidateIDs) != 2 {
		t.Fatalf("conflict = %+v, want badge 7777 with 2 candidates", c)
	}

	if _, found, _ := reg.ActiveBinding(ctx, "7777"); found {
		t.Fatal("conflicted badge must not be bound")
	}
}

func TestIdentityResolver_ResolvesAfterConflictCleared(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistryStore()
	if err := reg.UpsertPerson(ctx, confirmedPerson("matricula:2001", "ANA SOUZA")); err != nil {
		t.Fatal(err)
	}
	if err := reg.UpsertPerson(ctx, confirmedPerson("matricula:2002", "ANA SOUZA")); err != nil {
		t.Fatal(err)
	}
	conf := memory.NewConflictStore()
	r := service.NewIdentityResolver(reg, conf, testMetrics(), testLogger())

	rec := types.AccessRecord{Badge: "7777", Name: "ANA SOUZA"}
	if _, ok, err := r.Resolve(ctx, rec); ok || err != nil {
		t.Fatalf("expected unresolved, got ok=%v err=%v", ok, err)
	}

	// Operator fixes the duplicate and clears the conflict.
	if err := reg.UpsertPerson(ctx, confirmedPerson("matricula:2002", "ANA SOUZA FILHA")); err != nil {
		t.Fatal(err)
	}
	open, _ := conf.ListOpen(ctx)
	if err := conf.Clear(ctx, open[0].ID, time.Now().UTC()); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	id, ok, err := r.Resolve(ctx, rec)
	if err != nil || !ok || id != "matricula:2001" {
		t.Fatalf("after clear got (%q, %v, %v), want (matricula:2001, true, nil)", id, ok, err)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"JOAO DA SILVA":        "joao da silva",
		"  joao   da  silva  ": "joao da silva",
		"Maria\tOliveira":      "maria oliveira",
	}
	for in, want := range cases {
		if got := service.NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
