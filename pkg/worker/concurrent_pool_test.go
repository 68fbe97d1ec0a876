package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type stubTask struct {
	id       string
	cost     int
	fail     bool
	panicVal interface{}
	ran      *atomic.Int32
	result   interface{}
}

func (t *stubTask) Execute(ctx context.Context) error {
	if t.ran != nil {
		t.ran.Add(1)
	}
	if t.panicVal != nil {
		panic(t.panicVal)
	}
	if t.fail {
		return errors.New("stub failure")
	}
	return nil
}

func (t *stubTask) GetID() string        { return t.id }
func (t *stubTask) GetPriority() int     { return 1 }
func (t *stubTask) EstimateComplexity() int { return t.cost }
func (t *stubTask) GetAdaptiveTimeout() time.Duration {
	return NewSmartTimeoutCalculator(TimeoutConfig{}).CalculateOptimalTimeout(t.cost)
}
func (t *stubTask) GetResult() interface{} { return t.result }

func collectResults(t *testing.T, pool *ConcurrentPool, want int) []*Result {
	t.Helper()
	results := make([]*Result, 0, want)
	timeout := time.After(5 * time.Second)
	for len(results) < want {
		select {
		case r := <-pool.GetResultChannel():
			results = append(results, r)
		case <-timeout:
			t.Fatalf("timed out waiting for results: got %d, want %d", len(results), want)
		}
	}
	return results
}

func TestConcurrentPool_RunsAllSubmittedTasks(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Workers = 3
	pool := NewConcurrentPool(cfg)
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	var ran atomic.Int32
	const n = 10
	for i := 0; i < n; i++ {
		task := &stubTask{id: fmt.Sprintf("task-%d", i), cost: 2, ran: &ran, result: i}
		if err := pool.Submit(task); err != nil {
			t.Fatalf("Submit task %d: %v", i, err)
		}
	}

	results := collectResults(t, pool, n)

	if got := ran.Load(); got != n {
		t.Errorf("executed %d tasks, want %d", got, n)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("task %s failed: %v", r.TaskID, r.Error)
		}
		if r.Data == nil {
			t.Errorf("task %s carried no result data", r.TaskID)
		}
	}

	metrics := pool.GetMetrics()
	if metrics.CompletedTasks != n {
		t.Errorf("CompletedTasks = %d, want %d", metrics.CompletedTasks, n)
	}
	if metrics.GetSuccessRate() != 1.0 {
		t.Errorf("GetSuccessRate() = %v, want 1.0", metrics.GetSuccessRate())
	}
}

func TestConcurrentPool_TaskPanicBecomesFailedResult(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Workers = 1
	pool := NewConcurrentPool(cfg)
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	if err := pool.Submit(&stubTask{id: "boom", cost: 2, panicVal: "exploded"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := pool.Submit(&stubTask{id: "after", cost: 2}); err != nil {
		t.Fatalf("Submit after panic: %v", err)
	}

	results := collectResults(t, pool, 2)

	var panicked, survived bool
	for _, r := range results {
		switch r.TaskID {
		case "boom":
			panicked = true
			if r.Success {
				t.Error("panicking task reported success")
			}
			if r.Error == nil {
				t.Error("panicking task carried no error")
			}
		case "after":
			survived = true
			if !r.Success {
				t.Errorf("task after panic failed: %v", r.Error)
			}
		}
	}
	if !panicked || !survived {
		t.Errorf("missing results: panicked=%v survived=%v", panicked, survived)
	}
}

func TestConcurrentPool_FailedTaskCarriesNoData(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Workers = 1
	pool := NewConcurrentPool(cfg)
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	if err := pool.Submit(&stubTask{id: "fails", cost: 2, fail: true, result: "stale"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	results := collectResults(t, pool, 1)
	if results[0].Success {
		t.Error("failing task reported success")
	}
	if results[0].Data != nil {
		t.Errorf("failed task leaked result data: %v", results[0].Data)
	}

	metrics := pool.GetMetrics()
	if metrics.FailedTasks != 1 {
		t.Errorf("FailedTasks = %d, want 1", metrics.FailedTasks)
	}
}

func TestConcurrentPool_SubmitRejectedWhenQueueFull(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Workers = 1
	cfg.MaxQueueSize = 1
	pool := NewConcurrentPool(cfg)
	// Pool not started: nothing drains the queue.

	if err := pool.Submit(&stubTask{id: "first", cost: 2}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := pool.Submit(&stubTask{id: "second", cost: 2}); err == nil {
		t.Error("expected rejection when queue is full")
	}
}

func TestAdaptiveTimeout_GrowsWithCostAndCaps(t *testing.T) {
	at := NewAdaptiveTimeout(TimeoutConfig{
		BaseTimeout:    30 * time.Second,
		MaxTimeout:     3 * time.Minute,
		SizeMultiplier: 1.5,
	})

	small := at.CalculateTimeout(2)
	medium := at.CalculateTimeout(12)
	huge := at.CalculateTimeout(1000)

	if small != 30*time.Second {
		t.Errorf("cost 2 timeout = %v, want base 30s", small)
	}
	if medium <= small {
		t.Errorf("cost 12 timeout %v not above cost 2 timeout %v", medium, small)
	}
	if huge != 3*time.Minute {
		t.Errorf("cost 1000 timeout = %v, want cap 3m", huge)
	}
}

func TestSmartTimeoutCalculator_TakesLargerStrategy(t *testing.T) {
	calc := NewSmartTimeoutCalculator(TimeoutConfig{
		BaseTimeout:    1 * time.Second, // adaptive stays tiny
		MaxTimeout:     5 * time.Minute,
		SizeMultiplier: 1.0,
	})

	// Progressive stage for a comprehensive keyword is 2 minutes; the
	// adaptive strategy would allow far less off a 1s base.
	got := calc.CalculateOptimalTimeout(20)
	if got != 2*time.Minute {
		t.Errorf("CalculateOptimalTimeout(20) = %v, want progressive 2m", got)
	}
}

func TestTaskMetrics_TracksDurationBounds(t *testing.T) {
	tm := NewTaskMetrics()
	tm.RecordTaskDuration(100 * time.Millisecond)
	tm.RecordTaskDuration(10 * time.Millisecond)
	tm.RecordTaskDuration(50 * time.Millisecond)

	snap := tm.GetSnapshot()
	if snap.TasksRecorded != 3 {
		t.Errorf("TasksRecorded = %d, want 3", snap.TasksRecorded)
	}
	if snap.MinDuration != 10*time.Millisecond {
		t.Errorf("MinDuration = %v, want 10ms", snap.MinDuration)
	}
	if snap.MaxDuration != 100*time.Millisecond {
		t.Errorf("MaxDuration = %v, want 100ms", snap.MaxDuration)
	}

	tm.Reset()
	if tm.GetSnapshot().TasksRecorded != 0 {
		t.Error("Reset did not clear recorded tasks")
	}
}
