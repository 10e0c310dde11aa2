package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gateline/bridge/internal/bridge/codec"
	"github.com/gateline/bridge/internal/bridge/metrics"
	"github.com/gateline/bridge/internal/bridge/service"
	"github.com/gateline/bridge/internal/bridge/store"
	sqlitestore "github.com/gateline/bridge/internal/bridge/store/sqlite"
	"github.com/gateline/bridge/internal/config"
	"github.com/gateline/bridge/internal/db"
	"github.com/gateline/bridge/internal/httpapi"
	"github.com/gateline/bridge/internal/remote"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New(os.Stdout, "bridge ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	registry := sqlitestore.NewRegistryStore(conn, writer)
	cursors := sqlitestore.NewCursorStore(conn, writer)
	conflicts := sqlitestore.NewConflictStore(conn, writer)
	rejected := sqlitestore.NewRejectedEventStore(conn, writer)
	settings := sqlitestore.NewSettingsStore(conn, writer)

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn); err != nil {
			logger.Fatalf("seed dev data: %v", err)
		}
	}

	seedSettings(ctx, logger, settings, cfg)

	// Remote
	var client *remote.Client
	if cfg.RemoteBaseURL != "" {
		client = remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteAPIKey, nil)
	} else {
		logger.Printf("BRIDGE_REMOTE_URL not set, running without a remote (decode and resolve only)")
	}

	// Services
	m := metrics.New(prometheus.DefaultRegisterer)
	c := codec.New(cfg.RecordTag)
	resolver := service.NewIdentityResolver(registry, conflicts, m, logger)
	exporter := service.NewRegistryExporter(registry, c, logger)

	var pipeline *service.Pipeline
	if client != nil {
		forwarder := service.NewSyncForwarder(client, cursors, rejected, service.ForwarderConfig{}, m, logger)
		students := service.NewStudentSync(client, registry, logger)
		pipeline = service.NewPipeline(settings, cursors, c, service.IngestClock{}, resolver, forwarder, students, m, logger)
	}

	var scheduler *service.SyncScheduler
	if pipeline != nil {
		scheduler = service.NewSyncScheduler(pipeline, settings, time.Duration(cfg.IntervalMinutes)*time.Minute, logger)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// HTTP
	deps := httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Exporter:   exporter,
		ExportPath: cfg.ExportPath,
		Conflicts:  conflicts,
		Rejected:   rejected,
		Settings:   settings,
		Gatherer:   prometheus.DefaultGatherer,
	}
	if pipeline != nil {
		deps.Status = pipeline
		deps.Scheduler = scheduler
	} else {
		deps.Status = idleStatus{}
		deps.Scheduler = noScheduler{}
	}
	srv := httpapi.NewServer(deps)

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// seedSettings copies env-provided values into the settings store so later
// operator edits via the API survive restarts.  Env values win at startup.
func seedSettings(ctx context.Context, logger *log.Logger, settings store.SettingsStore, cfg config.Config) {
	seed := map[string]string{}
	if cfg.LogPath != "" {
		seed[store.SettingLogPath] = cfg.LogPath
	}
	if cfg.Cutoff != "" {
		seed[store.SettingCutoff] = cfg.Cutoff
	}
	seed[store.SettingIntervalMinutes] = strconv.Itoa(cfg.IntervalMinutes)

	for k, v := range seed {
		if err := settings.Set(ctx, k, v); err != nil {
			logger.Printf("seed setting %s: %v", k, err)
		}
	}
}

type idleStatus struct{}

func (idleStatus) Status() service.Status { return service.Status{} }

type noScheduler struct{}

func (noScheduler) Kick() {}
