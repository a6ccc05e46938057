package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Config holds configuration for an interval scheduler
type Config struct {
	// Name identifies the scheduler in logs
	Name string
	// Interval between runs. Zero disables the scheduler.
	Interval time.Duration
	// RunOnStart runs the job once immediately when started
	RunOnStart bool
	// JobTimeout bounds a single run; zero means no bound
	JobTimeout time.Duration
	// Enabled is consulted before every run so a toggle takes effect without
	// a restart. Nil means always enabled.
	Enabled func() bool
	// Skippable reports errors that mean "try again next tick" (logged at info)
	Skippable func(error) bool
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.Interval < 0 {
		return fmt.Errorf("%w: interval cannot be negative", ErrInvalidConfig)
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("%w: job timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// RunInfo describes the most recent run
type RunInfo struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
	Skipped    bool
}

// Scheduler runs a job on a fixed interval until stopped
type Scheduler struct {
	config Config
	job    Job
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   RunInfo
	runs      int
}

// New creates a new interval scheduler
func New(config Config, job Job, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config: config,
		job:    job,
		logger: logger.With(zap.String("scheduler", config.Name)),
	}, nil
}

// Start starts the run loop. A zero interval leaves the scheduler stopped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.Interval == 0 {
		s.logger.Info("Scheduler disabled (interval is 0)")
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)

	return nil
}

// Stop stops the run loop and waits for an in-flight run until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the run loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Interval returns the configured interval
func (s *Scheduler) Interval() time.Duration {
	return s.config.Interval
}

// LastRun returns the most recent run and the number of runs so far
func (s *Scheduler) LastRun() (RunInfo, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.runs
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.config.Enabled != nil && !s.config.Enabled() {
		s.logger.Debug("Scheduled run skipped, disabled")
		return
	}

	info := RunInfo{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := s.logger.With(zap.String("run_id", info.RunID))

	runCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	log.Debug("Scheduled run starting")
	err := s.job(runCtx)
	info.FinishedAt = time.Now()

	switch {
	case err == nil:
		log.Debug("Scheduled run finished", zap.Duration("duration", info.FinishedAt.Sub(info.StartedAt)))
	case s.config.Skippable != nil && s.config.Skippable(err):
		info.Skipped = true
		log.Info("Scheduled run skipped", zap.String("reason", err.Error()))
	default:
		info.Err = err
		log.Error("Scheduled run failed", zap.Error(err))
	}

	s.mu.Lock()
	s.lastRun = info
	s.runs++
	s.mu.Unlock()
}
