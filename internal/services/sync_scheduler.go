package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// Scheduling modes. Interval mode fires on a fixed cadence measured from
// scheduling time: a pass that runs long makes the next tick a skipped
// tick (reentrancy guard), never a queued one. Delay mode waits the full
// interval after each pass completes.
const (
	SyncModeInterval = "interval"
	SyncModeDelay    = "delay"
)

// SyncScheduler drives recurring sync passes. Exactly one of three
// strategies is active: a cron expression, a fixed-interval job, or a
// fixed-delay worker loop.
type SyncScheduler struct {
	sync     *SyncService
	interval time.Duration
	mode     string
	schedule string // optional cron expression, wins over interval/delay

	scheduler gocron.Scheduler
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// NewSyncScheduler validates the configuration and creates a scheduler.
// schedule, when non-empty, must be a standard five-field cron expression.
func NewSyncScheduler(syncSvc *SyncService, interval time.Duration, mode, schedule string) (*SyncScheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %v", interval)
	}
	switch mode {
	case SyncModeInterval, SyncModeDelay:
	case "":
		mode = SyncModeInterval
	default:
		return nil, fmt.Errorf("unknown sync mode %q", mode)
	}
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
		}
	}

	return &SyncScheduler{
		sync:     syncSvc,
		interval: interval,
		mode:     mode,
		schedule: schedule,
	}, nil
}

// Start arms the recurring sync. Calling Start on a running scheduler is a
// no-op.
func (s *SyncScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.mode == SyncModeDelay && s.schedule == "" {
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.delayLoop(s.stopCh)
		s.running = true
		log.Printf("⏰ [SCHEDULER] Periodic sync started (fixed delay, every %v after completion)", s.interval)
		return nil
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	var def gocron.JobDefinition
	if s.schedule != "" {
		def = gocron.CronJob(s.schedule, false)
	} else {
		def = gocron.DurationJob(s.interval)
	}

	if _, err := scheduler.NewJob(def, gocron.NewTask(s.runOnce)); err != nil {
		return fmt.Errorf("failed to register sync job: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.running = true
	if s.schedule != "" {
		log.Printf("⏰ [SCHEDULER] Periodic sync started (cron %q)", s.schedule)
	} else {
		log.Printf("⏰ [SCHEDULER] Periodic sync started (fixed interval, every %v)", s.interval)
	}
	return nil
}

// Stop disarms the recurring sync and waits for the worker to exit.
// Calling Stop on a stopped scheduler is a no-op.
func (s *SyncScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	s.wg.Wait()

	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			return fmt.Errorf("failed to shut down scheduler: %w", err)
		}
		s.scheduler = nil
	}

	log.Printf("⏹️  [SCHEDULER] Periodic sync stopped")
	return nil
}

// delayLoop sleeps the full interval after each completed pass
func (s *SyncScheduler) delayLoop(stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-time.After(s.interval):
		}
		s.runOnce()
	}
}

// runOnce executes one pass. Every failure is swallowed here; a broken
// pass must never kill the timer.
func (s *SyncScheduler) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [SCHEDULER] Sync pass panicked: %v", r)
		}
	}()

	err := s.sync.SyncFromSource(context.Background())
	switch {
	case errors.Is(err, ErrSyncInProgress):
		log.Printf("⏭️  [SCHEDULER] Tick skipped, previous pass still running")
	case err != nil:
		log.Printf("❌ [SCHEDULER] Sync pass failed: %v", err)
	}
}
