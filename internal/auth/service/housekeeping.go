package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/sessionauth/pkg/slogx"
)

const (
	sweepLockKey = "sweep"
	sweepLockTTL = 5 * time.Minute
)

// HousekeepingService periodically deletes refresh sessions that expired
// longer ago than the retention window. With a Locker set, only the replica
// holding the lease sweeps on a given tick.
type HousekeepingService struct {
	Sessions *SessionService
	Logger   *slog.Logger
	Interval time.Duration
	Lock     Locker // optional

	// Internal channels for lifecycle management
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, it defaults to 24 hours.
func NewHousekeepingService(sessions *SessionService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &HousekeepingService{
		Sessions: sessions,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. It sweeps once immediately and then
// on every tick. Call Stop to shut it down. Repeated calls are no-ops.
func (s *HousekeepingService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "locked", s.Lock != nil)
}

// Stop blocks until an in-progress sweep has finished. It returns at once
// when the worker was never started, and only the first call does anything.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.started.Load() {
			<-s.doneCh
		}
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) cleanup() {
	ctx := slogx.WithContext(context.Background(), s.Logger.With("task", "sweep"))
	if _, err := s.RunOnce(ctx); err != nil {
		s.Logger.Error("housekeeping sweep failed", "error", err)
	}
}

// RunOnce performs a single sweep and reports whether this replica ran it.
func (s *HousekeepingService) RunOnce(ctx context.Context) (bool, error) {
	if s.Lock != nil {
		release, ok, err := s.Lock.TryLock(ctx, sweepLockKey, sweepLockTTL)
		if err != nil {
			return false, err
		}
		if !ok {
			s.Logger.Debug("sweep skipped, another replica holds the lock")
			return false, nil
		}
		defer func() {
			if err := release(ctx); err != nil {
				s.Logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	if _, err := s.Sessions.SweepExpired(ctx); err != nil {
		return true, err
	}
	return true, nil
}
