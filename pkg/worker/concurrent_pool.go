package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"visibility-go/pkg/logger"
)

// Task represents a unit of work to be processed
type Task interface {
	Execute(ctx context.Context) error
	GetID() string
	GetPriority() int // Lower number = higher priority
}

// SmartTask extends Task with adaptive timeout capabilities
type SmartTask interface {
	Task
	GetAdaptiveTimeout() time.Duration // Returns calculated timeout for this specific task
	EstimateComplexity() int           // Returns estimated cost (outbound requests + entities scored)
}

// Result represents the result of a task execution
type Result struct {
	TaskID    string
	Success   bool
	Error     error
	Data      interface{}
	Duration  time.Duration
	Timestamp time.Time
}

// ConcurrentPool runs keyword analysis tasks on a bounded set of workers.
// Each task queries both engines and scores one keyword; the pool only
// bounds concurrency, rate limiting lives with the engine client.
type ConcurrentPool struct {
	workers     int
	taskQueue   chan Task
	resultQueue chan *Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	// Metrics
	totalTasks     uint64
	completedTasks uint64
	failedTasks    uint64
	activeWorkers  int32
	durations      *TaskMetrics

	// Configuration
	maxQueueSize    int
	taskTimeout     time.Duration // Fallback timeout
	adaptiveTimeout bool

	timeoutCalculator *SmartTimeoutCalculator

	log *logger.Logger
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	Workers         int           `json:"workers"`
	MaxQueueSize    int           `json:"max_queue_size"`
	TaskTimeout     time.Duration `json:"task_timeout"`
	BufferSize      int           `json:"buffer_size"`
	AdaptiveTimeout bool          `json:"adaptive_timeout"`
	TimeoutConfig   TimeoutConfig `json:"timeout_config"`
}

// DefaultPoolConfig returns defaults sized for analysis batches: fast mode
// caps at 5 concurrent keywords, comprehensive runs up to 20 sequentially,
// so queues stay small.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:         5,
		MaxQueueSize:    64,
		TaskTimeout:     45 * time.Second, // Fallback timeout
		BufferSize:      64,
		AdaptiveTimeout: true,
		TimeoutConfig: TimeoutConfig{
			BaseTimeout:    30 * time.Second,
			MaxTimeout:     3 * time.Minute,
			SizeMultiplier: 1.5,
		},
	}
}

// NewConcurrentPool creates a new worker pool
func NewConcurrentPool(config PoolConfig) *ConcurrentPool {
	ctx, cancel := context.WithCancel(context.Background())

	var timeoutCalculator *SmartTimeoutCalculator
	if config.AdaptiveTimeout {
		timeoutCalculator = NewSmartTimeoutCalculator(config.TimeoutConfig)
	}

	return &ConcurrentPool{
		workers:           config.Workers,
		taskQueue:         make(chan Task, config.MaxQueueSize),
		resultQueue:       make(chan *Result, config.BufferSize),
		ctx:               ctx,
		cancel:            cancel,
		maxQueueSize:      config.MaxQueueSize,
		taskTimeout:       config.TaskTimeout,
		adaptiveTimeout:   config.AdaptiveTimeout,
		timeoutCalculator: timeoutCalculator,
		durations:         NewTaskMetrics(),
		log:               logger.GetLogger().WithField("component", "concurrent_pool"),
	}
}

// Start begins processing tasks with the specified number of workers
func (p *ConcurrentPool) Start() error {
	p.log.WithField("workers", p.workers).Info("Starting concurrent worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return nil
}

// Stop gracefully shuts down the worker pool
func (p *ConcurrentPool) Stop() error {
	p.log.Info("Stopping worker pool...")

	// Step 1: Cancel context to signal workers to stop
	p.cancel()

	// Step 2: Close task queue
	close(p.taskQueue)

	// Step 3: Wait for all workers to finish with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("All workers stopped gracefully")
	case <-time.After(30 * time.Second):
		p.log.Warn("Timeout waiting for workers to stop")
		<-done
	}

	// Step 4: Close result queue after workers are done
	close(p.resultQueue)
	return nil
}

// Submit adds a task to the worker queue (non-blocking)
func (p *ConcurrentPool) Submit(task Task) error {
	select {
	case p.taskQueue <- task:
		atomic.AddUint64(&p.totalTasks, 1)
		return nil
	default:
		return fmt.Errorf("task queue is full, cannot submit task %s", task.GetID())
	}
}

// SubmitWithTimeout adds a task with a timeout (blocking with timeout)
func (p *ConcurrentPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	select {
	case p.taskQueue <- task:
		atomic.AddUint64(&p.totalTasks, 1)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout submitting task %s", task.GetID())
	case <-p.ctx.Done():
		return fmt.Errorf("pool is shutting down")
	}
}

// GetResultChannel returns the result channel for consuming results
func (p *ConcurrentPool) GetResultChannel() <-chan *Result {
	return p.resultQueue
}

// GetMetrics returns current pool metrics
func (p *ConcurrentPool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		TotalTasks:     atomic.LoadUint64(&p.totalTasks),
		CompletedTasks: atomic.LoadUint64(&p.completedTasks),
		FailedTasks:    atomic.LoadUint64(&p.failedTasks),
		ActiveWorkers:  atomic.LoadInt32(&p.activeWorkers),
		QueueLength:    len(p.taskQueue),
		QueueCapacity:  cap(p.taskQueue),
	}
}

// GetDurations returns the per-task duration snapshot
func (p *ConcurrentPool) GetDurations() MetricsSnapshot {
	return p.durations.GetSnapshot()
}

// worker is the main worker goroutine that processes tasks
func (p *ConcurrentPool) worker(id int) {
	defer p.wg.Done()

	atomic.AddInt32(&p.activeWorkers, 1)
	defer atomic.AddInt32(&p.activeWorkers, -1)

	for {
		select {
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}

			p.processTask(task)

		case <-p.ctx.Done():
			return
		}
	}
}

// processTask executes a single task with timeout and error handling
func (p *ConcurrentPool) processTask(task Task) {
	startTime := time.Now()
	taskID := task.GetID()

	timeout := p.calculateTaskTimeout(task)

	taskCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	var err error
	var success bool

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
				p.log.WithField("task_id", taskID).WithField("panic", r).Error("Task panicked")
			}
		}()

		err = task.Execute(taskCtx)
		success = err == nil
	}()

	duration := time.Since(startTime)

	if success {
		atomic.AddUint64(&p.completedTasks, 1)
	} else {
		atomic.AddUint64(&p.failedTasks, 1)
	}
	p.durations.RecordTaskDuration(duration)

	// Tasks carry their computed record; the pool stays generic
	var taskData interface{}
	if resultTask, ok := task.(interface{ GetResult() interface{} }); ok && success {
		taskData = resultTask.GetResult()
	}

	result := &Result{
		TaskID:    taskID,
		Success:   success,
		Error:     err,
		Data:      taskData,
		Duration:  duration,
		Timestamp: time.Now(),
	}

	select {
	case p.resultQueue <- result:
	case <-p.ctx.Done():
		// Pool shutting down, safely drop result
	default:
		p.log.WithField("task_id", taskID).Warn("Result queue full, dropping result")
	}
}

// PoolMetrics represents worker pool performance metrics
type PoolMetrics struct {
	TotalTasks     uint64 `json:"total_tasks"`
	CompletedTasks uint64 `json:"completed_tasks"`
	FailedTasks    uint64 `json:"failed_tasks"`
	ActiveWorkers  int32  `json:"active_workers"`
	QueueLength    int    `json:"queue_length"`
	QueueCapacity  int    `json:"queue_capacity"`
}

// GetSuccessRate calculates the success rate of completed tasks
func (m PoolMetrics) GetSuccessRate() float64 {
	total := m.CompletedTasks + m.FailedTasks
	if total == 0 {
		return 0
	}
	return float64(m.CompletedTasks) / float64(total)
}

// GetUtilization calculates queue utilization percentage
func (m PoolMetrics) GetUtilization() float64 {
	if m.QueueCapacity == 0 {
		return 0
	}
	return float64(m.QueueLength) / float64(m.QueueCapacity) * 100
}

// calculateTaskTimeout calculates appropriate timeout for a task
func (p *ConcurrentPool) calculateTaskTimeout(task Task) time.Duration {
	if !p.adaptiveTimeout || p.timeoutCalculator == nil {
		return p.taskTimeout
	}

	if smartTask, ok := task.(SmartTask); ok {
		if adaptiveTimeout := smartTask.GetAdaptiveTimeout(); adaptiveTimeout > 0 {
			return adaptiveTimeout
		}
	}

	return p.taskTimeout
}
