// Package scheduler runs a background loop that triggers incremental sync
// on a fixed interval, realizing §4.8: periodic trigger, explicit
// start/stop/run-once control, a status snapshot, and clean shutdown on an
// OS interrupt/terminate signal.
package scheduler

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/jiraindex/pkg/models"
)

// Syncer is the subset of the sync engine the scheduler drives.
type Syncer interface {
	IncrementalSync(ctx context.Context, projects []string) (models.SyncResult, error)
}

// Scheduler invokes Syncer.IncrementalSync every Interval until stopped.
// All mutable state is guarded by mu; the run loop itself is a single
// cooperative goroutine, matching §5's "scheduler loop is itself a
// cooperative task" model.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	projects []string
	logger   zerolog.Logger
	metrics  schedulerMetrics

	mu         sync.Mutex
	running    bool
	syncCount  int
	errorCount int
	lastSync   time.Time
	lastResult *models.SyncResult

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Scheduler. interval is sync_interval_minutes converted to a
// Duration; projects is the configured sync_projects set (nil means "every
// project the sync engine already knows about").
func New(syncer Syncer, interval time.Duration, projects []string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		projects: projects,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		metrics:  newSchedulerMetrics(),
	}
}

// Start launches the background loop in its own goroutine and returns
// immediately. Calling Start while already running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop signals the loop to exit after completing any in-flight sync, and
// blocks until it has. Calling Stop when not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// RunOnce triggers a single incremental sync immediately, outside the
// ticker cadence, updating the same status counters the loop does.
func (s *Scheduler) RunOnce(ctx context.Context) (models.SyncResult, error) {
	return s.runSync(ctx)
}

// Status returns a snapshot of the scheduler's current state.
func (s *Scheduler) Status() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := models.SyncStatus{
		Running:    s.running,
		Interval:   s.interval,
		LastSync:   s.lastSync,
		SyncCount:  s.syncCount,
		ErrorCount: s.errorCount,
	}
	if s.lastResult != nil {
		result := *s.lastResult
		status.LastResult = &result
	}
	return status
}

// loop runs until ctx is done, Stop is called, or the process receives
// SIGINT/SIGTERM — in every case the current in-flight sync is allowed to
// finish before the loop exits.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")

	for {
		select {
		case <-sigCtx.Done():
			s.logger.Info().Msg("scheduler stopping on signal or context cancellation")
			s.setRunning(false)
			return
		case <-s.stopCh:
			s.logger.Info().Msg("scheduler stopping on explicit Stop")
			s.setRunning(false)
			return
		case <-ticker.C:
			if _, err := s.runSync(context.WithoutCancel(sigCtx)); err != nil {
				s.logger.Error().Err(err).Msg("scheduled incremental sync failed")
			}
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) (models.SyncResult, error) {
	start := time.Now()
	result, err := s.syncer.IncrementalSync(ctx, s.projects)
	failed := err != nil || len(result.Errors) > 0
	s.metrics.recordRun(ctx, time.Since(start).Seconds(), failed)

	s.mu.Lock()
	s.syncCount++
	s.lastSync = time.Now()
	resultCopy := result
	s.lastResult = &resultCopy
	if failed {
		s.errorCount++
	}
	s.mu.Unlock()

	return result, err
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}
