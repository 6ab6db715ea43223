// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package jobs runs maintenance tasks on cron schedules.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
	"github.com/samber/oops"

	"github.com/holomush/authtokens/internal/observability"
	"github.com/holomush/authtokens/pkg/errutil"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

type entry struct {
	name    string
	task    Task
	running atomic.Bool
}

// Scheduler runs Tasks on cron specs (seconds field first). A task whose
// previous run is still in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewScheduler creates a Scheduler. metrics may be nil.
func NewScheduler(metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		metrics: metrics,
		logger:  logger,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ValidateSpec reports whether spec is a valid six-field cron spec or
// descriptor such as "@hourly".
func ValidateSpec(spec string) error {
	if _, err := cron.Parse(spec); err != nil {
		return oops.Code("SCHEDULE_INVALID").With("schedule", spec).Wrap(err)
	}
	return nil
}

// Add registers task under name on spec.
func (s *Scheduler) Add(name, spec string, task Task) error {
	if task == nil {
		return oops.Code("SCHEDULE_INVALID").With("job", name).Errorf("task is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[name]; exists {
		return oops.Code("SCHEDULE_DUPLICATE").With("job", name).Errorf("job already registered")
	}

	e := &entry{name: name, task: task}
	if err := s.cron.AddFunc(spec, func() { s.run(e) }); err != nil {
		return oops.Code("SCHEDULE_INVALID").With("job", name).With("schedule", spec).Wrap(err)
	}
	s.entries[name] = e
	s.logger.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// Start begins firing scheduled tasks.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// RunNow runs the named task immediately and returns its error. It fails
// with SCHEDULE_BUSY if the task is already running and SCHEDULE_STOPPED
// after Stop.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return oops.Code("SCHEDULE_UNKNOWN_JOB").With("job", name).Errorf("no such job")
	}
	if !e.running.CompareAndSwap(false, true) {
		return oops.Code("SCHEDULE_BUSY").With("job", name).Errorf("job already running")
	}
	defer e.running.Store(false)
	if !s.track() {
		return oops.Code("SCHEDULE_STOPPED").With("job", name).Errorf("scheduler is stopped")
	}
	defer s.wg.Done()
	return s.execute(ctx, e)
}

// Stop stops the schedule, cancels running tasks, and waits for them to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.cron.Stop()
		s.started = false
	}
	s.stopped = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("SCHEDULE_STOP_TIMEOUT").Wrap(ctx.Err())
	}
}

func (s *Scheduler) run(e *entry) {
	if !e.running.CompareAndSwap(false, true) {
		s.logger.Warn("job still running, skipping tick", "job", e.name)
		return
	}
	defer e.running.Store(false)
	// cron.Stop does not wait for a tick already in flight.
	if !s.track() {
		return
	}
	defer s.wg.Done()
	_ = s.execute(s.ctx, e)
}

// track registers a run with the wait group unless Stop has begun. Add and
// the stopped check share s.mu so Stop's Wait never races an Add.
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) execute(ctx context.Context, e *entry) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("JOB_PANIC").With("job", e.name).Errorf("job panicked: %v", r)
		}
		s.metrics.ObserveJob(e.name, time.Since(start), err)
		if err != nil {
			errutil.LogErrorContext(ctx, s.logger, "job failed", err)
			return
		}
		s.logger.DebugContext(ctx, "job finished", "job", e.name, "took", time.Since(start))
	}()

	return e.task(ctx)
}
