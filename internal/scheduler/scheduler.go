// Package scheduler runs named periodic background tasks. Each task gets its
// own goroutine and ticker; a failing or panicking tick is logged and the
// schedule keeps going, so one task can never disturb another.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Task struct {
	Name     string
	Interval time.Duration
	// RunOnStart triggers an immediate first run before the first tick.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type Scheduler struct {
	tasks  []Task
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

func (s *Scheduler) Add(t Task) {
	s.tasks = append(s.tasks, t)
}

// Start launches all registered tasks. It returns immediately; tasks stop
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
}

// Wait blocks until every task goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	s.logger.Info("task scheduled", "task", t.Name, "interval", t.Interval)

	if t.RunOnStart {
		s.runOnce(ctx, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("task stopped", "task", t.Name)
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task", t.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := t.Run(ctx); err != nil {
		s.logger.Error("task failed", "task", t.Name, "error", err)
		return
	}
	s.logger.Debug("task ran", "task", t.Name, "duration_ms", time.Since(start).Milliseconds())
}
