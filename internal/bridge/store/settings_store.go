package store

import "context"

// Well-known settings keys.  Values are plain strings; parsing and
// validation belong to the reader.
const (
	SettingLogPath         = "log_path"
	SettingCutoff          = "cutoff"
	SettingIntervalMinutes = "interval_minutes"
)

// SettingsStore is a durable key-value settings provider.  Operator-mutable
// values live here and are re-read at the start of every pipeline pass, so
// changes take effect without a restart.
type SettingsStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}
