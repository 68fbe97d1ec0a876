package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressReporter reports progress through a keyword analysis batch.
// Batches are small (≤20 keywords) but each keyword costs two network
// round-trips, so progress lines are emitted per completed keyword.
type ProgressReporter struct {
	mu          sync.RWMutex
	total       int
	current     int
	failed      int
	description string
	startTime   time.Time
	lastUpdate  time.Time
	logger      *Logger
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(total int, description string) *ProgressReporter {
	return &ProgressReporter{
		total:       total,
		current:     0,
		description: description,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		logger:      GetLogger().WithField("component", "progress"),
	}
}

// Update increments the completed-keyword counter and reports progress
func (pr *ProgressReporter) Update(increment int) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.current += increment
	pr.reportProgress()
	pr.lastUpdate = time.Now()
}

// Fail records a degraded keyword (counted as completed, flagged as failed)
func (pr *ProgressReporter) Fail() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.current++
	pr.failed++
	pr.reportProgress()
	pr.lastUpdate = time.Now()
}

// Complete marks the batch as complete and reports final status
func (pr *ProgressReporter) Complete() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.current = pr.total
	pr.reportProgress()
}

// reportProgress logs the current progress (must be called with lock held)
func (pr *ProgressReporter) reportProgress() {
	if pr.total == 0 {
		return
	}
	percentage := float64(pr.current) / float64(pr.total) * 100
	elapsed := time.Since(pr.startTime)

	// Estimate remaining time from the average per-keyword cost so far
	var eta string
	if pr.current > 0 && pr.current < pr.total {
		avgTimePerKeyword := elapsed / time.Duration(pr.current)
		remaining := time.Duration(pr.total-pr.current) * avgTimePerKeyword
		eta = fmt.Sprintf(" (ETA: %s)", remaining.Round(time.Second))
	}

	pr.logger.WithFields(map[string]interface{}{
		"progress":    fmt.Sprintf("%.1f%%", percentage),
		"completed":   pr.current,
		"failed":      pr.failed,
		"total":       pr.total,
		"elapsed":     elapsed.Round(time.Second).String(),
		"description": pr.description,
	}).Info(fmt.Sprintf("%s: %d/%d (%.1f%%)%s", pr.description, pr.current, pr.total, percentage, eta))
}

// GetProgress returns current progress information
func (pr *ProgressReporter) GetProgress() (current, total int, percentage float64) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	if pr.total == 0 {
		return 0, 0, 0
	}
	return pr.current, pr.total, float64(pr.current) / float64(pr.total) * 100
}

// FailedCount returns how many keywords degraded during the batch
func (pr *ProgressReporter) FailedCount() int {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.failed
}
