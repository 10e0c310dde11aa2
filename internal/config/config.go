package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gateline/bridge/internal/bridge/codec"
	"github.com/gateline/bridge/internal/bridge/service"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/bridge.db"

	// Badge log ingest
	LogPath   string // turnstile badge log; empty = configured later via settings
	RecordTag string // fixed-width tag literal
	Cutoff    string // dd/mm/yyyy, empty = no filtering

	// Remote school-management system
	RemoteBaseURL string
	RemoteAPIKey  string

	// Scheduling
	IntervalMinutes int // clamped to 1..1440

	// Registry export
	ExportPath string
}

// FromEnv reads BRIDGE_* variables.  A malformed cutoff is the one hard
// startup error: a silently-wrong date filter would drop swipes.
func FromEnv() (Config, error) {
	addr := getenvDefault("BRIDGE_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("BRIDGE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	cutoff := strings.TrimSpace(os.Getenv("BRIDGE_CUTOFF"))
	if _, err := service.ParseCutoff(cutoff); err != nil {
		return Config{}, fmt.Errorf("BRIDGE_CUTOFF %q: want dd/mm/yyyy: %w", cutoff, err)
	}

	interval := getenvInt("BRIDGE_INTERVAL_MINUTES", 1)
	if interval < 1 {
		interval = 1
	}
	if interval > 1440 {
		interval = 1440
	}

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   getenvDefault("BRIDGE_DB_PATH", "./data/bridge.db"),

		LogPath:   strings.TrimSpace(os.Getenv("BRIDGE_LOG_PATH")),
		RecordTag: getenvDefault("BRIDGE_RECORD_TAG", codec.DefaultTag),
		Cutoff:    cutoff,

		RemoteBaseURL: strings.TrimSpace(os.Getenv("BRIDGE_REMOTE_URL")),
		RemoteAPIKey:  strings.TrimSpace(os.Getenv("BRIDGE_REMOTE_API_KEY")),

		IntervalMinutes: interval,

		ExportPath: getenvDefault("BRIDGE_EXPORT_PATH", "./data/export.txt"),
	}, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
