package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job names shared by the cron entries, the HTTP triggers, and the status
// endpoint.
const (
	JobSync      = "sync"
	JobSummaries = "summaries"
)

// Jobs holds the callables the scheduler drives. The closures own their
// guard and tracker bookkeeping so manual HTTP triggers behave identically.
type Jobs struct {
	Sync      func(ctx context.Context)
	Summaries func(ctx context.Context)
}

// Scheduler runs the sync and summary jobs on cron schedules. An empty spec
// disables that job.
type Scheduler struct {
	cron        *cron.Cron
	syncSpec    string
	summarySpec string
	jobs        Jobs
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.Mutex
	isRunning   bool
}

// NewScheduler creates a new instance of Scheduler
func NewScheduler(syncSpec, summarySpec string, jobs Jobs, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:        cron.New(),
		syncSpec:    syncSpec,
		summarySpec: summarySpec,
		jobs:        jobs,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start registers the configured entries and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if s.syncSpec != "" && s.jobs.Sync != nil {
		if _, err := s.cron.AddFunc(s.syncSpec, func() { s.jobs.Sync(s.ctx) }); err != nil {
			return fmt.Errorf("invalid sync schedule %q: %w", s.syncSpec, err)
		}
		s.logger.Info("sync job scheduled", zap.String("spec", s.syncSpec))
	}
	if s.summarySpec != "" && s.jobs.Summaries != nil {
		if _, err := s.cron.AddFunc(s.summarySpec, func() { s.jobs.Summaries(s.ctx) }); err != nil {
			return fmt.Errorf("invalid summary schedule %q: %w", s.summarySpec, err)
		}
		s.logger.Info("summary job scheduled", zap.String("spec", s.summarySpec))
	}

	s.cron.Start()
	s.isRunning = true
	return nil
}

// Stop cancels in-flight jobs and waits for the cron loop to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.cancel()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-time.After(30 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
	s.isRunning = false
}

// IsRunning reports whether the cron loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
