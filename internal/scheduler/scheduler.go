// Package scheduler owns the recurring background jobs of the engine.
// All periodic work is registered here so every job shares one start and
// one graceful-shutdown path.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"marketpulse/internal/observability"
)

// Scheduler errors.
var (
	// ErrInvalidInterval is returned for a zero or negative job interval.
	// This is a startup misconfiguration and must fail before the first tick.
	ErrInvalidInterval = errors.New("scheduler: job interval must be positive")

	ErrDuplicateJob   = errors.New("scheduler: job name already registered")
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotStarted     = errors.New("scheduler: not started")
)

// Handler is one job execution. The context is cancelled when the
// scheduler stops; in-flight executions are allowed to finish.
type Handler func(ctx context.Context) error

// Job is a named recurring task.
type Job struct {
	Name     string
	Interval time.Duration
	Handler  Handler
}

// job carries the runtime state of a registered Job.
type job struct {
	Job

	running   atomic.Bool  // serializes a job against itself
	lastRunAt atomic.Int64 // Unix ms of last execution start
	runs      atomic.Int64
	skipped   atomic.Int64
}

// Scheduler runs registered jobs on independent intervals.
// Each job fires its first execution immediately at start (t=0), then on
// every interval tick. A tick due while the previous execution is still in
// flight is dropped and logged as a skipped tick, never queued, so a job
// can never run two overlapping executions.
type Scheduler struct {
	logger  *log.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	jobs    map[string]*job
	order   []*job
	started bool

	cancel context.CancelFunc
	loopWG sync.WaitGroup // ticker loops
	runWG  sync.WaitGroup // in-flight handler executions
}

// Options contains configuration for creating a Scheduler.
type Options struct {
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// New creates an empty Scheduler.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		logger:  logger,
		metrics: opts.Metrics,
		jobs:    make(map[string]*job),
	}
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(j Job) error {
	if j.Name == "" || j.Handler == nil {
		return fmt.Errorf("scheduler: job needs a name and a handler")
	}
	if j.Interval <= 0 {
		return fmt.Errorf("%w: %s has %s", ErrInvalidInterval, j.Name, j.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if _, exists := s.jobs[j.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, j.Name)
	}

	jb := &job{Job: j}
	s.jobs[j.Name] = jb
	s.order = append(s.order, jb)
	return nil
}

// Start begins firing every registered job on its own interval.
// The first execution of each job fires immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, jb := range s.order {
		s.loopWG.Add(1)
		go s.runLoop(ctx, jb)
	}

	s.logger.Printf("scheduler started with %d jobs", len(s.order))
	return nil
}

// Stop cancels all pending timers and waits for in-flight executions to
// finish. No new executions start after Stop returns.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.loopWG.Wait()
	s.runWG.Wait()

	s.logger.Printf("scheduler stopped")
	return nil
}

// Stats returns the run and skipped-tick counts for a job.
func (s *Scheduler) Stats(name string) (runs, skipped int64) {
	s.mu.Lock()
	jb, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return 0, 0
	}
	return jb.runs.Load(), jb.skipped.Load()
}

// LastRunAt returns the Unix-millisecond start time of the job's most
// recent execution, or zero if it never ran.
func (s *Scheduler) LastRunAt(name string) int64 {
	s.mu.Lock()
	jb, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return jb.lastRunAt.Load()
}

// runLoop drives one job's ticker until the scheduler stops.
func (s *Scheduler) runLoop(ctx context.Context, jb *job) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(jb.Interval)
	defer ticker.Stop()

	// First tick fires at t=0.
	s.launch(ctx, jb)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.launch(ctx, jb)
		}
	}
}

// launch starts one execution unless the previous one is still in flight,
// in which case the tick is dropped.
func (s *Scheduler) launch(ctx context.Context, jb *job) {
	if !jb.running.CompareAndSwap(false, true) {
		jb.skipped.Add(1)
		s.metrics.ObserveJobSkip(jb.Name)
		s.logger.Printf("job %s: tick skipped, previous run still in flight", jb.Name)
		return
	}

	jb.lastRunAt.Store(time.Now().UnixMilli())
	s.runWG.Add(1)

	go func() {
		defer s.runWG.Done()
		defer jb.running.Store(false)

		start := time.Now()
		err := jb.Handler(ctx)
		elapsed := time.Since(start)

		jb.runs.Add(1)
		s.metrics.ObserveJobRun(jb.Name, elapsed.Seconds())
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Printf("job %s failed after %s: %v", jb.Name, elapsed, err)
		}
	}()
}
