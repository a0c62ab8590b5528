package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

// State describes the scheduler lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Task is one poll cycle. The scheduler ignores its error beyond logging;
// cycle outcomes are the orchestrator's concern.
type Task func(ctx context.Context) error

// Scheduler drives a Task on a fixed start-to-start cadence: each cycle is
// due interval after the previous cycle STARTED, regardless of how long the
// cycle ran. An overrunning cycle never stacks; the next one fires
// immediately and the cadence re-anchors from that start.
type Scheduler struct {
	interval time.Duration
	task     Task
	logger   logger.Logger

	mu    sync.Mutex
	state State
	done  chan struct{}

	now     func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) bool
}

func New(interval time.Duration, task Task, log logger.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		task:     task,
		logger:   log.WithField("component", "scheduler"),
		state:    StateIdle,
		done:     make(chan struct{}),
		now:      time.Now,
		sleepFn:  sleepCtx,
	}
}

// Run blocks until ctx is cancelled, executing the task immediately and then
// on every interval tick. The in-flight cycle is allowed to finish before
// Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		close(s.done)
		s.logger.Info("Scheduler stopped")
	}()

	s.logger.Infof("Scheduler started with %s interval", s.interval)

	for {
		start := s.now()
		s.runCycle(ctx)

		next := start.Add(s.interval)
		delay := next.Sub(s.now())
		if delay < 0 {
			// Overrun: fire the next cycle right away and re-anchor.
			s.logger.Warnf("Cycle overran the %s interval by %s", s.interval, -delay)
			delay = 0
		}

		if !s.sleepFn(ctx, delay) {
			return
		}
	}
}

// Done is closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.task(ctx); err != nil {
		s.logger.Errorf("Cycle finished with error: %v", err)
	}
}

// sleepCtx waits d and reports whether the wait completed before ctx was
// cancelled. A zero or negative d still checks for cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
