package monitor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewScheduler_ValidatesInputs tests cron expression and callback validation
func TestNewScheduler_ValidatesInputs(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }

	if _, err := NewScheduler("0 */6 * * *", time.Minute, noop); err != nil {
		t.Fatalf("Expected valid 5-field expression to be accepted, got error: %v", err)
	}
	if _, err := NewScheduler("@hourly", time.Minute, noop); err != nil {
		t.Fatalf("Expected descriptor expression to be accepted, got error: %v", err)
	}
	if _, err := NewScheduler("not a cron line", time.Minute, noop); err == nil {
		t.Fatal("Expected error for malformed expression, got nil")
	}
	if _, err := NewScheduler("@hourly", time.Minute, nil); err == nil {
		t.Fatal("Expected error for nil run callback, got nil")
	}
}

// TestScheduler_ExecuteRunTracksOutcome tests run counting and error capture
func TestScheduler_ExecuteRunTracksOutcome(t *testing.T) {
	var calls int32
	s, err := NewScheduler("@hourly", time.Minute, func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("upstream down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected scheduler, got error: %v", err)
	}

	s.executeRun()
	status := s.Status()
	if status["runs"].(int64) != 1 {
		t.Errorf("Expected 1 run, got %v", status["runs"])
	}
	if status["last_error"] != "upstream down" {
		t.Errorf("Expected last_error to carry the run failure, got %v", status["last_error"])
	}

	// A later clean run clears the recorded error
	s.executeRun()
	status = s.Status()
	if status["runs"].(int64) != 2 {
		t.Errorf("Expected 2 runs, got %v", status["runs"])
	}
	if _, present := status["last_error"]; present {
		t.Errorf("Expected last_error cleared after clean run, got %v", status["last_error"])
	}
	if _, present := status["last_run"]; !present {
		t.Error("Expected last_run to be recorded")
	}
}

// TestScheduler_SkipsOverlappingTrigger tests that a slow run suppresses the next trigger
func TestScheduler_SkipsOverlappingTrigger(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	s, err := NewScheduler("@hourly", 0, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Expected scheduler, got error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.executeRun()
		close(done)
	}()

	// Wait for the first run to be in flight
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("First run never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Second trigger must return without invoking the callback again
	s.executeRun()
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("Expected overlapping trigger to be skipped, callback ran %d times", got)
	}

	close(release)
	<-done
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected exactly one callback invocation, got %d", got)
	}
	if runs := s.Status()["runs"].(int64); runs != 1 {
		t.Errorf("Expected 1 completed run, got %d", runs)
	}
}

// TestScheduler_RecoversFromPanic tests that a panicking run does not kill the loop
func TestScheduler_RecoversFromPanic(t *testing.T) {
	s, err := NewScheduler("@hourly", 0, func(ctx context.Context) error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Expected scheduler, got error: %v", err)
	}

	s.executeRun()

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		t.Error("Expected running flag cleared after panic")
	}
}

// TestScheduler_AppliesRunTimeout tests the per-run deadline
func TestScheduler_AppliesRunTimeout(t *testing.T) {
	s, err := NewScheduler("@hourly", 30*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("Expected scheduler, got error: %v", err)
	}

	start := time.Now()
	s.executeRun()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Expected the deadline to cut the run short, took %s", elapsed)
	}

	lastError, _ := s.Status()["last_error"].(string)
	if lastError == "" {
		t.Fatal("Expected deadline error recorded, got none")
	}
	if !strings.Contains(lastError, "deadline") {
		t.Errorf("Expected deadline error, got %q", lastError)
	}
}

// TestScheduler_StartStop tests lifecycle wiring
func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler("@hourly", time.Minute, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Expected scheduler, got error: %v", err)
	}

	if next := s.NextRun(); !next.IsZero() {
		t.Errorf("Expected zero next-run before Start, got %s", next)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Expected Start to succeed, got error: %v", err)
	}
	if next := s.NextRun(); next.IsZero() || !next.After(time.Now()) {
		t.Errorf("Expected a future next-run after Start, got %s", next)
	}

	status := s.Status()
	if status["schedule"] != "@hourly" {
		t.Errorf("Expected schedule in status, got %v", status["schedule"])
	}
	if _, present := status["next_run"]; !present {
		t.Error("Expected next_run in status after Start")
	}

	s.Stop()
}
