package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunOnStart(t *testing.T) {
	var runs atomic.Int32
	s := New(nil)
	s.Add(Task{
		Name:       "immediate",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("task did not run on start")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	s.Wait()
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d; want 1", got)
	}
}

func TestScheduler_Ticks(t *testing.T) {
	var runs atomic.Int32
	s := New(nil)
	s.Add(Task{
		Name:     "ticking",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline", runs.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	s.Wait()
}

func TestScheduler_FailingTickDoesNotStopSchedule(t *testing.T) {
	var runs atomic.Int32
	s := New(nil)
	s.Add(Task{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				return errors.New("transient failure")
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("schedule stopped after failure; runs = %d", runs.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	s.Wait()
}

func TestScheduler_PanickingTickIsIsolated(t *testing.T) {
	var panics atomic.Int32
	var healthy atomic.Int32
	s := New(nil)
	s.Add(Task{
		Name:     "panicking",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			panics.Add(1)
			panic("boom")
		},
	})
	s.Add(Task{
		Name:     "healthy",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			healthy.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(time.Second)
	for panics.Load() < 2 || healthy.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("panics = %d, healthy = %d; want both >= 2", panics.Load(), healthy.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	s.Wait()
}
