package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"visibility-go/pkg/logger"
	"visibility-go/pkg/storage"
)

// Gap between retried lookups so the retry pass never competes with a
// live batch for API quota.
const retryPacing = 500 * time.Millisecond

// RetryProcessor re-runs previously failed keyword queries once per
// process, in a background goroutine started by the first batch.
type RetryProcessor struct {
	monitor   *VisibilityMonitor
	log       *logger.Logger
	secureLog *logger.SecurityLogger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}

	// sink receives successfully retried records. Nil means the records
	// are dropped after the tracker is cleaned up.
	sink func([]*KeywordResult)

	mu        sync.Mutex
	lastRun   time.Time
	lastStats map[string]interface{}
}

// NewRetryProcessor creates a retry processor bound to the monitor whose
// pipeline it replays.
func NewRetryProcessor(vm *VisibilityMonitor) *RetryProcessor {
	return &RetryProcessor{
		monitor:   vm,
		log:       logger.GetLogger().WithField("component", "retry_processor"),
		secureLog: logger.GetSecurityLogger(),
		stopCh:    make(chan struct{}),
	}
}

// SetSink registers a consumer for retried records, e.g. an exporter.
// Call before the first batch runs.
func (rp *RetryProcessor) SetSink(sink func([]*KeywordResult)) {
	rp.sink = sink
}

// ProcessFailedQueriesAtStartup retries the failed-query backlog once per
// process. The pass runs in a separate goroutine and never blocks the
// calling batch.
func (rp *RetryProcessor) ProcessFailedQueriesAtStartup(ctx context.Context) {
	rp.startOnce.Do(func() {
		records, err := rp.monitor.failedTracker.GetRetryableQueries(ctx)
		if err != nil {
			rp.log.WithError(err).Error("Failed to load retryable queries")
			return
		}
		if len(records) == 0 {
			rp.log.Debug("No failed queries to retry at startup")
			return
		}

		rp.log.WithField("failed_count", len(records)).Info("Found failed queries, starting retry goroutine")

		go func() {
			defer func() {
				if r := recover(); r != nil {
					rp.log.WithField("panic", r).Error("Panic recovered in retry goroutine")
				}
			}()
			rp.processFailedQueries(ctx, records)
		}()
	})
}

// processFailedQueries replays each unique failed keyword through the
// monitor pipeline. Keywords that answer are removed from the tracker;
// keywords that fail again re-enter it with a bumped retry count inside
// the pipeline itself.
func (rp *RetryProcessor) processFailedQueries(ctx context.Context, records []storage.FailedQueryRecord) {
	start := time.Now()
	unique := dedupeFailedRecords(records)
	if len(unique) == 0 {
		rp.log.Info("All failed queries were duplicates")
		return
	}

	rp.log.WithFields(map[string]interface{}{
		"original_count": len(records),
		"unique_count":   len(unique),
	}).Info("Starting failed query retry processing")

	var succeeded []string
	var retried []*KeywordResult
	for i, rec := range unique {
		record, answered, err := rp.monitor.analyzeOne(ctx, rec.Keyword)
		if err != nil {
			rp.log.Info("Context cancelled, stopping retry processing")
			break
		}
		if answered {
			succeeded = append(succeeded, rec.Keyword)
			retried = append(retried, record)
		}

		if i == len(unique)-1 {
			break
		}
		stopped := false
		select {
		case <-ctx.Done():
			rp.log.Info("Context cancelled, stopping retry processing")
			stopped = true
		case <-rp.stopCh:
			rp.log.Info("Monitor closing, stopping retry processing")
			stopped = true
		case <-time.After(retryPacing):
		}
		if stopped {
			break
		}
	}

	if len(succeeded) > 0 {
		if err := rp.monitor.failedTracker.RemoveSuccessfulQueries(ctx, succeeded); err != nil {
			rp.log.WithError(err).Error("Failed to clear retried queries from tracker")
		}
		if rp.sink != nil {
			rp.sink(retried)
		}
	}

	stats := map[string]interface{}{
		"total_queries":      len(unique),
		"successful_retries": len(succeeded),
		"failed_retries":     len(unique) - len(succeeded),
		"duration":           time.Since(start).String(),
		"success_rate":       float64(len(succeeded)) / float64(len(unique)) * 100,
	}
	rp.mu.Lock()
	rp.lastRun = time.Now()
	rp.lastStats = stats
	rp.mu.Unlock()

	rp.log.WithFields(stats).Info("Failed query retry processing completed")
}

// Stop aborts an in-flight retry pass. Idempotent.
func (rp *RetryProcessor) Stop() {
	rp.stopOnce.Do(func() {
		close(rp.stopCh)
	})
}

// GetStatus reports the current backlog and the last completed pass.
func (rp *RetryProcessor) GetStatus(ctx context.Context) map[string]interface{} {
	backlog := 0
	if records, err := rp.monitor.failedTracker.GetRetryableQueries(ctx); err == nil {
		backlog = len(records)
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	status := map[string]interface{}{
		"type":     "startup_retry",
		"blocking": false,
		"backlog":  backlog,
	}
	if !rp.lastRun.IsZero() {
		status["last_run"] = rp.lastRun
		for k, v := range rp.lastStats {
			status[k] = v
		}
	}
	return status
}

// dedupeFailedRecords collapses records that share a keyword, keeping the
// first occurrence.
func dedupeFailedRecords(records []storage.FailedQueryRecord) []storage.FailedQueryRecord {
	seen := make(map[string]bool, len(records))
	var unique []storage.FailedQueryRecord
	for _, rec := range records {
		kw := strings.TrimSpace(rec.Keyword)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		rec.Keyword = kw
		unique = append(unique, rec)
	}
	return unique
}
