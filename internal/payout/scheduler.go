package payout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gig-marketplace/internal/lock"
)

// batchLockName guards the scheduled platform-wide batch across instances
const batchLockName = "batch"

// SchedulerConfig holds payout scheduler configuration
type SchedulerConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval: 15 * time.Minute,
		LockTTL:  10 * time.Minute,
	}
}

// Scheduler runs the platform-wide payout batch on a timer. The redis lock
// keeps concurrent instances from running overlapping batches; it is an
// efficiency measure only, correctness comes from the ledger's conditional
// transitions.
type Scheduler struct {
	coordinator *Coordinator
	locker      *lock.Client
	config      *SchedulerConfig
	logger      zerolog.Logger

	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	lastRun   time.Time
	nextRun   time.Time
	lastBatch *BatchResult
}

// NewScheduler creates a payout scheduler. The locker may be nil when no
// redis is configured; the scheduler then runs unguarded.
func NewScheduler(coordinator *Coordinator, locker *lock.Client, config *SchedulerConfig, logger zerolog.Logger) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if config.Interval <= 0 {
		config.Interval = 15 * time.Minute
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 10 * time.Minute
	}

	return &Scheduler{
		coordinator: coordinator,
		locker:      locker,
		config:      config,
		stopChan:    make(chan struct{}),
		logger:      logger.With().Str("component", "PayoutScheduler").Logger(),
	}
}

// Start starts the scheduler loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.nextRun = time.Now().Add(s.config.Interval)
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("Starting payout scheduler")

	s.wg.Add(1)
	go s.loop()

	return nil
}

// Stop stops the scheduler and waits for an in-flight batch to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Payout scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
			s.mu.Lock()
			s.nextRun = time.Now().Add(s.config.Interval)
			s.mu.Unlock()
		case <-s.stopChan:
			return
		}
	}
}

// runOnce executes one scheduled batch under the distributed lock. If
// another instance holds the lock the run is skipped, never queued.
func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.LockTTL)
	defer cancel()

	release, acquired := s.acquireLock(ctx)
	if !acquired {
		s.logger.Debug().Msg("Batch lock held elsewhere, skipping run")
		return
	}
	defer release()

	batch, err := s.coordinator.PayoutAllPending(ctx, nil)

	s.mu.Lock()
	s.lastRun = time.Now()
	if batch != nil {
		s.lastBatch = batch
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled payout batch failed")
	}
}

// acquireLock takes the distributed batch lock and keeps it refreshed until
// the returned release func is called
func (s *Scheduler) acquireLock(ctx context.Context) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}

	token, err := lock.Token()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate lock token")
		return nil, false
	}

	key := s.locker.Key(batchLockName)
	ok, err := s.locker.Acquire(ctx, key, token, s.config.LockTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to acquire batch lock")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	refreshStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.config.LockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.locker.Refresh(context.Background(), key, token, s.config.LockTTL); err != nil {
					s.logger.Warn().Err(err).Msg("Failed to refresh batch lock")
				}
			case <-refreshStop:
				return
			}
		}
	}()

	return func() {
		close(refreshStop)
		if _, err := s.locker.Release(context.Background(), key, token); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release batch lock")
		}
	}, true
}

// Status reports the scheduler's run state for the admin surface
type Status struct {
	Running   bool         `json:"running"`
	Interval  string       `json:"interval"`
	LastRun   *time.Time   `json:"last_run,omitempty"`
	NextRun   *time.Time   `json:"next_run,omitempty"`
	LastBatch *BatchResult `json:"last_batch,omitempty"`
}

// GetStatus returns the current scheduler status
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:  s.running,
		Interval: s.config.Interval.String(),
	}
	if !s.lastRun.IsZero() {
		t := s.lastRun
		status.LastRun = &t
	}
	if s.running && !s.nextRun.IsZero() {
		t := s.nextRun
		status.NextRun = &t
	}
	status.LastBatch = s.lastBatch
	return status
}
