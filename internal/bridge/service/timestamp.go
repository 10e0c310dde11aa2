package service

import (
	"os"
	"time"
)

// TimestampSource supplies the ordering timestamp for decoded records.
//
// The fixed-width record format carries no date component, so where the
// timestamp comes from is deployment policy, not a property of the line.
type TimestampSource interface {
	Timestamp(path string, offset int64) time.Time
}

// IngestClock stamps records with the ingestion time.  This is the default
// policy: it is monotone across passes and needs no external signal.
type IngestClock struct {
	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

func (c IngestClock) Timestamp(string, int64) time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// FileModTime stamps records with the log file's modification time, for
// deployments where the hardware clock is more truthful than the bridge
// host's.  Falls back to the current time when the file cannot be stat'd.
type FileModTime struct{}

func (FileModTime) Timestamp(path string, _ int64) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now().UTC()
	}
	return info.ModTime().UTC()
}
