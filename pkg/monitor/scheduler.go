package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"visibility-go/pkg/logger"
)

// Scheduler triggers recurring visibility runs on a cron cadence. The run
// callback is injected so the scheduler stays unaware of where results go.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	run      func(ctx context.Context) error
	log      *logger.Logger

	mu        sync.Mutex
	entryID   cron.EntryID
	running   bool
	runs      int64
	lastRun   time.Time
	lastError string
}

// NewScheduler validates the cron expression and builds a scheduler.
// Standard 5-field expressions and descriptors like @hourly are accepted.
// runTimeout bounds each triggered run; zero means no per-run deadline.
func NewScheduler(schedule string, runTimeout time.Duration, run func(ctx context.Context) error) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("run callback is required")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}

	return &Scheduler{
		cron:     cron.New(),
		schedule: schedule,
		timeout:  runTimeout,
		run:      run,
		log:      logger.GetLogger().WithField("component", "scheduler"),
	}, nil
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	entryID, err := s.cron.AddFunc(s.schedule, s.executeRun)
	if err != nil {
		return fmt.Errorf("failed to schedule run: %w", err)
	}

	s.mu.Lock()
	s.entryID = entryID
	s.mu.Unlock()

	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

// executeRun fires one scheduled run. Overlapping triggers are skipped so
// a slow comprehensive batch never stacks on itself.
func (s *Scheduler) executeRun() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("Previous run still in progress, skipping trigger")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Panic recovered in scheduled run")
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.run(ctx)

	s.mu.Lock()
	s.runs++
	s.lastRun = start
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Error("Scheduled run failed")
		return
	}
	s.log.WithField("duration", time.Since(start).String()).Info("Scheduled run completed")
}

// NextRun reports when the job fires next; zero before Start.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	entryID := s.entryID
	s.mu.Unlock()

	entry := s.cron.Entry(entryID)
	return entry.Next
}

// Status reports scheduling state for the status endpoint.
func (s *Scheduler) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"schedule": s.schedule,
		"runs":     s.runs,
		"running":  s.running,
	}
	if !s.lastRun.IsZero() {
		status["last_run"] = s.lastRun
	}
	if s.lastError != "" {
		status["last_error"] = s.lastError
	}
	if next := s.nextRunLocked(); !next.IsZero() {
		status["next_run"] = next
	}
	return status
}

// nextRunLocked reads the entry while the caller holds the mutex.
func (s *Scheduler) nextRunLocked() time.Time {
	entry := s.cron.Entry(s.entryID)
	return entry.Next
}
