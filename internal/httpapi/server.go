package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gateline/bridge/internal/bridge/service"
	"github.com/gateline/bridge/internal/bridge/store"
)

// StatusSource reports the last pipeline pass.  *service.Pipeline
// implements it.
type StatusSource interface {
	Status() service.Status
}

// Kicker requests an immediate sync pass.  *service.SyncScheduler
// implements it.
type Kicker interface {
	Kick()
}

// Exporter writes the badge registry export file.  *service.RegistryExporter
// implements it.
type Exporter interface {
	Export(ctx context.Context, path string) (int, error)
}

type Dependencies struct {
	Logger     *log.Logger
	Addr       string
	Status     StatusSource
	Scheduler  Kicker
	Exporter   Exporter
	ExportPath string
	Conflicts  store.ConflictStore
	Rejected   store.RejectedEventStore
	Settings   store.SettingsStore
	Gatherer   prometheus.Gatherer
}

// Server is the operator-facing HTTP surface: status, conflict resolution,
// manual sync and export triggers, settings, metrics.  The turnstile
// hardware never talks to it.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux

	status     StatusSource
	scheduler  Kicker
	exporter   Exporter
	exportPath string
	conflicts  store.ConflictStore
	rejected   store.RejectedEventStore
	settings   store.SettingsStore
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		status:     d.Status,
		scheduler:  d.Scheduler,
		exporter:   d.Exporter,
		exportPath: d.ExportPath,
		conflicts:  d.Conflicts,
		rejected:   d.Rejected,
		settings:   d.Settings,
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/conflicts", s.handleListConflicts)
	mux.HandleFunc("POST /v1/conflicts/{id}/clear", s.handleClearConflict)
	mux.HandleFunc("GET /v1/rejected", s.handleListRejected)
	mux.HandleFunc("POST /v1/sync", s.handleSync)
	mux.HandleFunc("POST /v1/export", s.handleExport)
	mux.HandleFunc("PUT /v1/settings", s.handlePutSettings)

	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	open, err := s.conflicts.ListOpen(r.Context())
	if err != nil {
		s.logger.Printf("list conflicts error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": open})
}

func (s *Server) handleClearConflict(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "conflict id is required")
		return
	}

	if err := s.conflicts.Clear(r.Context(), id, time.Now().UTC()); err != nil {
		s.logger.Printf("clear conflict %s error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	// The blocked badge can now resolve; don't wait for the next tick.
	s.scheduler.Kick()
	writeJSON(w, http.StatusOK, map[string]string{"cleared": id})
}

func (s *Server) handleListRejected(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.rejected.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("list rejected error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rejected": events})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Kick()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	n, err := s.exporter.Export(r.Context(), s.exportPath)
	if err != nil {
		s.logger.Printf("export error: %v", err)
		writeError(w, http.StatusInternalServerError, "export_failed", "registry export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": s.exportPath, "records": n})
}

type settingsRequest struct {
	LogPath         *string `json:"log_path"`
	Cutoff          *string `json:"cutoff"`
	IntervalMinutes *int    `json:"interval_minutes"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	if req.Cutoff != nil {
		if _, err := service.ParseCutoff(*req.Cutoff); err != nil {
			writeError(w, http.StatusBadRequest, "bad_cutoff", "cutoff must be dd/mm/yyyy or empty")
			return
		}
	}
	if req.IntervalMinutes != nil && (*req.IntervalMinutes < 1 || *req.IntervalMinutes > 1440) {
		writeError(w, http.StatusBadRequest, "bad_interval", "interval_minutes must be between 1 and 1440")
		return
	}

	ctx := r.Context()
	updated := map[string]string{}
	if req.LogPath != nil {
		if err := s.settings.Set(ctx, store.SettingLogPath, *req.LogPath); err != nil {
			s.logger.Printf("set log_path error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		updated[store.SettingLogPath] = *req.LogPath
	}
	if req.Cutoff != nil {
		if err := s.settings.Set(ctx, store.SettingCutoff, *req.Cutoff); err != nil {
			s.logger.Printf("set cutoff error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		updated[store.SettingCutoff] = *req.Cutoff
	}
	if req.IntervalMinutes != nil {
		v := strconv.Itoa(*req.IntervalMinutes)
		if err := s.settings.Set(ctx, store.SettingIntervalMinutes, v); err != nil {
			s.logger.Printf("set interval error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		updated[store.SettingIntervalMinutes] = v
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}
