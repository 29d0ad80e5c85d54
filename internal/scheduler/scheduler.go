// Package scheduler runs the admission-controlled loop that moves tasks from
// the frontier into the worker pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/polzat/internal/crawler"
	"github.com/JakeFAU/polzat/internal/metrics"
)

const (
	defaultCeiling           = 10
	defaultSaturationBackoff = 500 * time.Millisecond
	defaultIdleBackoff       = 250 * time.Millisecond
)

// Frontier is the subset of the frontier the loop needs.
type Frontier interface {
	crawler.Popper
	Len() int
}

// Config controls admission and polling.
type Config struct {
	// Ceiling is the worker pool size and the in-flight admission limit.
	Ceiling int
	// SaturationBackoff is the wait before re-checking a saturated pool.
	SaturationBackoff time.Duration
	// IdleBackoff is the wait before polling an empty frontier again.
	IdleBackoff time.Duration
}

// Scheduler polls the frontier and dispatches tasks to a bounded pool.
//
// Admission is a soft check of the in-flight counter, not a semaphore. Only
// the loop goroutine increments the counter, so the check-then-increment race
// cannot overshoot the ceiling here; completions only ever lower it.
type Scheduler struct {
	frontier Frontier
	executor crawler.Executor
	pool     *Pool
	cfg      Config
	inFlight atomic.Int64
	logger   *zap.Logger
}

// New constructs a Scheduler and its worker pool.
func New(frontier Frontier, executor crawler.Executor, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = defaultCeiling
	}
	if cfg.SaturationBackoff <= 0 {
		cfg.SaturationBackoff = defaultSaturationBackoff
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = defaultIdleBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		frontier: frontier,
		executor: executor,
		pool:     NewPool(cfg.Ceiling),
		cfg:      cfg,
		logger:   logger,
	}
}

// InFlight returns the number of dispatched tasks that have not completed.
func (s *Scheduler) InFlight() int64 {
	return s.inFlight.Load()
}

// Ceiling returns the configured admission ceiling.
func (s *Scheduler) Ceiling() int {
	return s.cfg.Ceiling
}

// Run blocks, dispatching tasks until the context finishes. Tasks already
// dispatched are never cancelled; Run waits for them before returning.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.pool.Close()
	s.logger.Info("scheduler started", zap.Int("ceiling", s.cfg.Ceiling), zap.Int("workers", s.pool.Size()))
	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopping", zap.Int64("in_flight", s.InFlight()))
			return
		}
		if s.inFlight.Load() >= int64(s.cfg.Ceiling) {
			pause(ctx, s.cfg.SaturationBackoff)
			continue
		}
		task, ok := s.frontier.Pop()
		if !ok {
			pause(ctx, s.cfg.IdleBackoff)
			continue
		}
		metrics.SetFrontierPending(s.frontier.Len())
		s.dispatch(ctx, task)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, task crawler.Task) {
	metrics.SetInFlight(s.inFlight.Add(1))
	taskCtx := context.WithoutCancel(ctx)
	s.pool.Submit(func() {
		s.execute(taskCtx, task)
	})
}

func (s *Scheduler) execute(ctx context.Context, task crawler.Task) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if rec := recover(); rec != nil {
			outcome = "panic"
			s.logger.Error("task panicked",
				zap.String("execution_id", task.ExecutionID),
				zap.String("url", task.URL),
				zap.Any("panic", rec),
			)
		}
		metrics.ObserveCompleted(string(task.Operation), outcome)
		metrics.SetInFlight(s.inFlight.Add(-1))
	}()

	s.logger.Debug("task started",
		zap.String("execution_id", task.ExecutionID),
		zap.String("url", task.URL),
		zap.String("operation", string(task.Operation)),
	)
	if err := s.runExecutor(ctx, task); err != nil {
		outcome = classify(err)
		level := s.logger.Warn
		if outcome == "disallowed" {
			level = s.logger.Debug
		}
		level("task failed",
			zap.String("execution_id", task.ExecutionID),
			zap.String("url", task.URL),
			zap.String("operation", string(task.Operation)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("task finished",
		zap.String("execution_id", task.ExecutionID),
		zap.String("url", task.URL),
		zap.Duration("duration", time.Since(start)),
	)
}

func (s *Scheduler) runExecutor(ctx context.Context, task crawler.Task) error {
	if s.executor == nil {
		return errors.New("no executor configured")
	}
	if err := s.executor.Execute(ctx, task); err != nil {
		return fmt.Errorf("execute %s: %w", task.Operation, err)
	}
	return nil
}

func classify(err error) string {
	if errors.Is(err, crawler.ErrDisallowed) {
		return "disallowed"
	}
	return "error"
}

func pause(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
