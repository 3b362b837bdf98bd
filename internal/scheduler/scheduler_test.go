package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RegisterValidation(t *testing.T) {
	s := New(Options{})

	if err := s.Register(Job{Name: "", Interval: time.Second, Handler: noop}); err == nil {
		t.Error("Expected error for missing name")
	}
	if err := s.Register(Job{Name: "j", Interval: time.Second}); err == nil {
		t.Error("Expected error for missing handler")
	}

	err := s.Register(Job{Name: "j", Interval: 0, Handler: noop})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval for zero interval, got %v", err)
	}

	err = s.Register(Job{Name: "j", Interval: -time.Second, Handler: noop})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval for negative interval, got %v", err)
	}
}

func TestScheduler_RegisterDuplicate(t *testing.T) {
	s := New(Options{})

	if err := s.Register(Job{Name: "j", Interval: time.Second, Handler: noop}); err != nil {
		t.Fatalf("First register failed: %v", err)
	}
	err := s.Register(Job{Name: "j", Interval: time.Second, Handler: noop})
	if !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("Expected ErrDuplicateJob, got %v", err)
	}
}

func TestScheduler_FirstTickImmediate(t *testing.T) {
	s := New(Options{})

	ran := make(chan struct{})
	var once atomic.Bool
	err := s.Register(Job{
		Name:     "immediate",
		Interval: time.Hour, // no second tick within the test
		Handler: func(ctx context.Context) error {
			if once.CompareAndSwap(false, true) {
				close(ran)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("First execution did not fire at start")
	}
}

func TestScheduler_OverlapDropsTick(t *testing.T) {
	s := New(Options{})

	// Handler takes 1.5 intervals, so every other tick lands mid-run and
	// must be dropped, not queued.
	const interval = 40 * time.Millisecond
	var runs atomic.Int32
	err := s.Register(Job{
		Name:     "slow",
		Interval: interval,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			time.Sleep(interval + interval/2)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let roughly six intervals elapse, then stop.
	time.Sleep(6 * interval)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	gotRuns, gotSkipped := s.Stats("slow")
	if gotSkipped == 0 {
		t.Error("Expected at least one skipped tick for an overlapping handler")
	}
	// Runs never overlap: with a 1.5x handler, at most one run per 2 ticks
	// plus the immediate first run.
	if gotRuns > 4 {
		t.Errorf("Expected at most 4 serialized runs, got %d", gotRuns)
	}
	if int32(gotRuns) != runs.Load() {
		t.Errorf("Stats runs %d disagree with handler count %d", gotRuns, runs.Load())
	}
}

func TestScheduler_StopWaitsForInflight(t *testing.T) {
	s := New(Options{})

	var finished atomic.Bool
	started := make(chan struct{})
	err := s.Register(Job{
		Name:     "inflight",
		Interval: time.Hour,
		Handler: func(ctx context.Context) error {
			close(started)
			time.Sleep(100 * time.Millisecond)
			finished.Store(true)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	<-started
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !finished.Load() {
		t.Error("Stop returned before the in-flight execution finished")
	}
}

func TestScheduler_RegisterAfterStart(t *testing.T) {
	s := New(Options{})

	if err := s.Register(Job{Name: "a", Interval: time.Hour, Handler: noop}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	err := s.Register(Job{Name: "b", Interval: time.Hour, Handler: noop})
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted on double start, got %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := New(Options{})
	if err := s.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}
}

func TestScheduler_LastRunAt(t *testing.T) {
	s := New(Options{})

	ran := make(chan struct{})
	var once atomic.Bool
	err := s.Register(Job{
		Name:     "tracked",
		Interval: time.Hour,
		Handler: func(ctx context.Context) error {
			if once.CompareAndSwap(false, true) {
				close(ran)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if s.LastRunAt("tracked") != 0 {
		t.Error("Expected zero LastRunAt before start")
	}

	before := time.Now().UnixMilli()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	<-ran
	got := s.LastRunAt("tracked")
	if got < before {
		t.Errorf("LastRunAt %d earlier than start %d", got, before)
	}
}

func noop(ctx context.Context) error { return nil }
