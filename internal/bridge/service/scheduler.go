package service

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gateline/bridge/internal/bridge/store"
)

const (
	minIntervalMinutes = 1
	maxIntervalMinutes = 1440
)

// PassRunner is the unit of work the scheduler drives.  *Pipeline
// implements it.
type PassRunner interface {
	RunPass(ctx context.Context) error
}

// SyncScheduler runs pipeline passes on a fixed interval, starting with an
// immediate pass.  The interval setting is re-read each tick so operator
// changes apply without a restart.  A pass in progress is never overlapped:
// ticks and kicks that arrive mid-pass are dropped, not queued.
type SyncScheduler struct {
	pipeline PassRunner
	settings store.SettingsStore
	interval time.Duration
	logger   *log.Logger

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSyncScheduler builds a scheduler with interval as the fallback when no
// interval setting is stored.
func NewSyncScheduler(pipeline PassRunner, settings store.SettingsStore, interval time.Duration, logger *log.Logger) *SyncScheduler {
	return &SyncScheduler{
		pipeline: pipeline,
		settings: settings,
		interval: clampInterval(interval),
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Start launches the scheduling loop in the background.
func (s *SyncScheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop cancels the loop and waits for a pass in progress to finish.
func (s *SyncScheduler) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
	})
}

// Kick requests an immediate pass.  It never blocks; if a kick is already
// queued the request coalesces with it.
func (s *SyncScheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *SyncScheduler) run(ctx context.Context) {
	defer close(s.done)

	s.pass(ctx)

	timer := time.NewTimer(s.currentInterval(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.pass(ctx)
		case <-s.kick:
			s.pass(ctx)
		}

		// A pass can outlast the interval; drain a tick that fired during
		// it so passes never bunch up.
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.currentInterval(ctx))
	}
}

func (s *SyncScheduler) pass(ctx context.Context) {
	if err := s.pipeline.RunPass(ctx); err != nil && ctx.Err() == nil {
		s.logger.Printf("sync pass failed: %v", err)
	}
}

// currentInterval prefers the stored setting over the configured fallback.
func (s *SyncScheduler) currentInterval(ctx context.Context) time.Duration {
	raw, ok, err := s.settings.Get(ctx, store.SettingIntervalMinutes)
	if err != nil || !ok {
		return s.interval
	}
	mins, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Printf("ignoring invalid interval setting %q", raw)
		return s.interval
	}
	return clampInterval(time.Duration(mins) * time.Minute)
}

func clampInterval(d time.Duration) time.Duration {
	if d < minIntervalMinutes*time.Minute {
		return minIntervalMinutes * time.Minute
	}
	if d > maxIntervalMinutes*time.Minute {
		return maxIntervalMinutes * time.Minute
	}
	return d
}
