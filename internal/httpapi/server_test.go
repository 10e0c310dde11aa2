package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gateline/bridge/internal/bridge/service"
	"github.com/gateline/bridge/internal/bridge/store"
	"github.com/gateline/bridge/internal/bridge/store/memory"
	"github.com/gateline/bridge/internal/bridge/types"
	"github.com/gateline/bridge/internal/httpapi"
)

type fakeStatus struct{ st service.Status }

func (f *fakeStatus) Status() service.Status { return f.st }

type fakeKicker struct{ kicks atomic.Int64 }

func (f *fakeKicker) Kick() { f.kicks.Add(1) }

type fakeExporter struct {
	records int
	path    string
}

func (f *fakeExporter) Export(_ context.Context, path string) (int, error) {
	f.path = path
	return f.records, nil
}

type testEnv struct {
	ts        *httptest.Server
	kicker    *fakeKicker
	exporter  *fakeExporter
	conflicts *memory.ConflictStore
	settings  *memory.SettingsStore
}

// newTestServer wires the operator API against in-memory stores and fakes
// and returns an httptest.Server that a plain http.Client can hit.
func newTestServer(t *testing.T, st service.Status) *testEnv {
	t.Helper()

	env := &testEnv{
		kicker:    &fakeKicker{},
		exporter:  &fakeExporter{records: 3},
		conflicts: memory.NewConflictStore(),
		settings:  memory.NewSettingsStore(),
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     log.New(io.Discard, "", 0),
		Addr:       ":0",
		Status:     &fakeStatus{st: st},
		Scheduler:  env.kicker,
		Exporter:   env.exporter,
		ExportPath: "/tmp/export.txt",
		Conflicts:  env.conflicts,
		Rejected:   memory.NewRejectedEventStore(),
		Settings:   env.settings,
		Gatherer:   prometheus.NewRegistry(),
	})

	env.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(env.ts.Close)
	return env
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t, service.Status{})

	resp, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStatus_ReportsLastPass(t *testing.T) {
	env := newTestServer(t, service.Status{
		LastPassAt:  time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC),
		LinesRead:   7,
		EventsAcked: 5,
		Unresolved:  1,
	})

	resp, err := http.Get(env.ts.URL + "/v1/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var st service.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.LinesRead != 7 || st.EventsAcked != 5 || st.Unresolved != 1 {
		t.Fatalf("status = %+v", st)
	}
}

func TestListConflicts(t *testing.T) {
	env := newTestServer(t, service.Status{})
	if err := env.conflicts.Create(context.Background(), types.SyncConflict{
		ID:           "c1",
		Badge:        "7777",
		CapturedName: "ANA SOUZA",
		CandidateIDs: []string{"matricula:2001", "matricula:2002"},
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(env.ts.URL + "/v1/conflicts")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Conflicts []types.SyncConflict `json:"conflicts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Conflicts) != 1 || body.Conflicts[0].Badge != "7777" {
		t.Fatalf("conflicts = %+v", body.Conflicts)
	}
}

func TestClearConflict_ClearsAndKicks(t *testing.T) {
	env := newTestServer(t, service.Status{})
	if err := env.conflicts.Create(context.Background(), types.SyncConflict{
		ID: "c1", Badge: "7777", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(env.ts.URL+"/v1/conflicts/c1/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, open, _ := env.conflicts.OpenConflict(context.Background(), "7777"); open {
		t.Error("conflict still open after clear")
	}
	if env.kicker.kicks.Load() != 1 {
		t.Error("clearing a conflict should kick a sync pass")
	}
}

func TestSync_Kicks(t *testing.T) {
	env := newTestServer(t, service.Status{})

	resp, err := http.Post(env.ts.URL+"/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if env.kicker.kicks.Load() != 1 {
		t.Error("expected one kick")
	}
}

func TestExport_RunsExporter(t *testing.T) {
	env := newTestServer(t, service.Status{})

	resp, err := http.Post(env.ts.URL+"/v1/export", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Path    string `json:"path"`
		Records int    `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Records != 3 || body.Path != "/tmp/export.txt" {
		t.Fatalf("body = %+v", body)
	}
	if env.exporter.path != "/tmp/export.txt" {
		t.Errorf("exporter called with %q", env.exporter.path)
	}
}

func TestPutSettings_UpdatesProvidedKeys(t *testing.T) {
	env := newTestServer(t, service.Status{})

	body := []byte(`{"log_path":"/srv/bilhetes.txt","cutoff":"15/03/2026","interval_minutes":5}`)
	req, err := http.NewRequest(http.MethodPut, env.ts.URL+"/v1/settings", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ctx := context.Background()
	for key, want := range map[string]string{
		store.SettingLogPath:         "/srv/bilhetes.txt",
		store.SettingCutoff:          "15/03/2026",
		store.SettingIntervalMinutes: "5",
	} {
		v, ok, err := env.settings.Get(ctx, key)
		if err != nil || !ok || v != want {
			t.Errorf("setting %s = (%q, %v, %v), want %q", key, v, ok, err, want)
		}
	}
}

func TestPutSettings_BadCutoff_400(t *testing.T) {
	env := newTestServer(t, service.Status{})

	body := []byte(`{"cutoff":"2026-03-15"}`)
	req, err := http.NewRequest(http.MethodPut, env.ts.URL+"/v1/settings", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPutSettings_BadInterval_400(t *testing.T) {
	env := newTestServer(t, service.Status{})

	body := []byte(`{"interval_minutes":0}`)
	req, err := http.NewRequest(http.MethodPut, env.ts.URL+"/v1/settings", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPutSettings_InvalidJSON_400(t *testing.T) {
	env := newTestServer(t, service.Status{})

	req, err := http.NewRequest(http.MethodPut, env.ts.URL+"/v1/settings", bytes.NewReader([]byte(`not json`)))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
