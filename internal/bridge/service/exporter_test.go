package service_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gateline/bridge/internal/bridge/codec"
	"github.com/gateline/bridge/internal/bridge/service"
	"github.com/gateline/bridge/internal/bridge/store/memory"
)

func TestRegistryExporter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistryStore()
	now := time.Now().UTC()

	people := map[string]string{ // badge -> name
		"1234": "JOAO DA SILVA",
		"5678": "MARIA OLIVEIRA",
		"9999": "ANA SOUZA",
	}
	for badge, name := range people {
		p := confirmedPerson("matricula:"+badge, name)
		if err := reg.UpsertPerson(ctx, p); err != nil {
			t.Fatal(err)
		}
		if _, err := reg.BindBadge(ctx, badge, p.ID, now); err != nil {
			t.Fatal(err)
		}
	}

	c := codec.New(codec.DefaultTag)
	exp := service.NewRegistryExporter(reg, c, testLogger())
	path := filepath.Join(t.TempDir(), "export.txt")

	n, err := exp.Export(ctx, path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != len(people) {
		t.Fatalf("exported %d records, want %d", n, len(people))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\r\n"), "\r\n")
	if len(lines) != len(people) {
		t.Fatalf("%d lines, want %d", len(lines), len(people))
	}

	// Sorted by display name: ANA, JOAO, MARIA.
	wantOrder := []string{"9999", "1234", "5678"}
	for i, line := range lines {
		rec, err := c.Decode(line, 0)
		if err != nil {
			t.Fatalf("line %d does not decode: %v", i, err)
		}
		if rec.Badge != wantOrder[i] {
			t.Fatalf("line %d badge = %s, want %s", i, rec.Badge, wantOrder[i])
		}
		if rec.Name != people[rec.Badge] {
			t.Fatalf("badge %s name = %q, want %q", rec.Badge, rec.Name, people[rec.Badge])
		}
	}
}

func TestRegistryExporter_ExcludesSupersededBindings(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistryStore()
	now := time.Now().UTC()

	for _, p := range []struct{ id, name string }{
		{"matricula:1", "ALICE PRIMEIRA"},
		{"matricula:2", "BRUNA SEGUNDA"},
	} {
		if err := reg.UpsertPerson(ctx, confirmedPerson(p.id, p.name)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := reg.BindBadge(ctx, "4242", "matricula:1", now); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.BindBadge(ctx, "4242", "matricula:2", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	c := codec.New(codec.DefaultTag)
	exp := service.NewRegistryExporter(reg, c, testLogger())
	path := filepath.Join(t.TempDir(), "export.txt")

	n, err := exp.Export(ctx, path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 1 {
		t.Fatalf("exported %d records, want the single active binding", n)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := c.Decode(strings.TrimRight(string(raw), "\r\n"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Badge != "4242" || rec.Name != "BRUNA SEGUNDA" {
		t.Fatalf("rebound badge exported as (%s, %q), want the new holder", rec.Badge, rec.Name)
	}
}

func TestRegistryExporter_EmptyRegistry(t *testing.T) {
	reg := memory.NewRegistryStore()
	exp := service.NewRegistryExporter(reg, codec.New(codec.DefaultTag), testLogger())
	path := filepath.Join(t.TempDir(), "export.txt")

	n, err := exp.Export(context.Background(), path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 0 {
		t.Fatalf("exported %d records from an empty registry", n)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected an empty file, got %d bytes", len(raw))
	}
}
