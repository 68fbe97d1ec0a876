package worker

import (
	"sync/atomic"
	"time"
)

// TaskMetrics tracks per-task duration statistics for the pool
type TaskMetrics struct {
	TasksRecorded atomic.Uint64

	TotalDuration atomic.Uint64 // in nanoseconds
	MinDuration   atomic.Uint64 // in nanoseconds
	MaxDuration   atomic.Uint64 // in nanoseconds

	StartTime time.Time
}

// NewTaskMetrics creates a new metrics instance
func NewTaskMetrics() *TaskMetrics {
	return &TaskMetrics{
		StartTime: time.Now(),
	}
}

// RecordTaskDuration records task execution duration
func (tm *TaskMetrics) RecordTaskDuration(duration time.Duration) {
	nanos := uint64(duration.Nanoseconds())

	tm.TasksRecorded.Add(1)
	tm.TotalDuration.Add(nanos)

	// Update min duration
	for {
		current := tm.MinDuration.Load()
		if current == 0 || nanos < current {
			if tm.MinDuration.CompareAndSwap(current, nanos) {
				break
			}
		} else {
			break
		}
	}

	// Update max duration
	for {
		current := tm.MaxDuration.Load()
		if nanos > current {
			if tm.MaxDuration.CompareAndSwap(current, nanos) {
				break
			}
		} else {
			break
		}
	}
}

// GetSnapshot returns a snapshot of current metrics
func (tm *TaskMetrics) GetSnapshot() MetricsSnapshot {
	recorded := tm.TasksRecorded.Load()
	totalDuration := tm.TotalDuration.Load()
	minDuration := tm.MinDuration.Load()
	maxDuration := tm.MaxDuration.Load()

	var avgDuration time.Duration
	if recorded > 0 {
		avgDuration = time.Duration(totalDuration / recorded)
	}

	var throughput float64
	uptime := time.Since(tm.StartTime)
	if uptime > 0 {
		throughput = float64(recorded) / uptime.Seconds()
	}

	return MetricsSnapshot{
		TasksRecorded:   recorded,
		Throughput:      throughput,
		AverageDuration: avgDuration,
		MinDuration:     time.Duration(minDuration),
		MaxDuration:     time.Duration(maxDuration),
		Uptime:          uptime,
	}
}

// Reset clears all metrics
func (tm *TaskMetrics) Reset() {
	tm.TasksRecorded.Store(0)
	tm.TotalDuration.Store(0)
	tm.MinDuration.Store(0)
	tm.MaxDuration.Store(0)
	tm.StartTime = time.Now()
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	TasksRecorded   uint64        `json:"tasks_recorded"`
	Throughput      float64       `json:"throughput_per_second"`
	AverageDuration time.Duration `json:"average_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	Uptime          time.Duration `json:"uptime"`
}
