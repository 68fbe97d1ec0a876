package storage

import (
	"context"
	"sync"
	"time"

	"visibility-go/pkg/logger"
)

const failedQueriesKey = "failed_queries"

// Failed-query records are capped so a long outage cannot grow the
// storage without bound.
const maxFailedRecords = 1000

// SimpleTracker records keyword queries that failed upstream so a later
// run can retry them on a backoff schedule.
type SimpleTracker struct {
	storage Storage
	log     *logger.Logger
	mu      sync.Mutex // 防止竞态条件的互斥锁
}

// NewSimpleTracker creates a tracker over the given storage backend.
func NewSimpleTracker(storage Storage) *SimpleTracker {
	return &SimpleTracker{
		storage: storage,
		log:     logger.GetLogger().WithField("component", "simple_tracker"),
	}
}

// FailedQueryRecord is one keyword query awaiting retry. Location and
// device are kept so the retry reproduces the original lookup.
type FailedQueryRecord struct {
	Keyword     string    `json:"keyword"`
	Location    string    `json:"location"`
	Device      string    `json:"device"`
	Language    string    `json:"language,omitempty"`
	FailedAt    time.Time `json:"failed_at"`
	RetryCount  int       `json:"retry_count"`
	LastError   string    `json:"last_error"`
	NextRetryAt time.Time `json:"next_retry_at"`
}

// SaveFailedQueries records failed keyword queries for later retry.
// Existing records for the same keyword get their retry count bumped and
// their next-retry time pushed out.
func (st *SimpleTracker) SaveFailedQueries(ctx context.Context, records []FailedQueryRecord, cause error) error {
	if len(records) == 0 {
		return nil
	}

	st.mu.Lock() // 🔒 防止竞态条件
	defer st.mu.Unlock()

	var existing []FailedQueryRecord
	_ = st.storage.Load(ctx, failedQueriesKey, &existing)

	failedMap := make(map[string]FailedQueryRecord, len(existing))
	for _, rec := range existing {
		failedMap[rec.Keyword] = rec
	}

	now := time.Now()
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	for _, rec := range records {
		if prev, exists := failedMap[rec.Keyword]; exists {
			prev.RetryCount++
			prev.LastError = message
			prev.FailedAt = now
			prev.NextRetryAt = nextRetryTime(prev.RetryCount)
			failedMap[rec.Keyword] = prev
			continue
		}
		rec.FailedAt = now
		rec.RetryCount = 1
		rec.LastError = message
		rec.NextRetryAt = nextRetryTime(1)
		failedMap[rec.Keyword] = rec
	}

	updated := make([]FailedQueryRecord, 0, len(failedMap))
	for _, rec := range failedMap {
		updated = append(updated, rec)
	}
	if len(updated) > maxFailedRecords {
		updated = trimOldestFailures(updated, maxFailedRecords)
	}

	st.log.WithField("failed_queries", len(records)).Debug("Saved failed queries for retry")
	return st.storage.Save(ctx, failedQueriesKey, updated)
}

// GetRetryableQueries returns records whose backoff window has elapsed.
func (st *SimpleTracker) GetRetryableQueries(ctx context.Context) ([]FailedQueryRecord, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var failed []FailedQueryRecord
	if err := st.storage.Load(ctx, failedQueriesKey, &failed); err != nil {
		return []FailedQueryRecord{}, nil
	}

	var retryable []FailedQueryRecord
	now := time.Now()
	for _, rec := range failed {
		if now.After(rec.NextRetryAt) {
			retryable = append(retryable, rec)
		}
	}

	st.log.WithFields(map[string]interface{}{
		"total_failed": len(failed),
		"retryable":    len(retryable),
	}).Info("Retrieved retryable queries")

	return retryable, nil
}

// RemoveSuccessfulQueries drops records for keywords that have since
// succeeded.
func (st *SimpleTracker) RemoveSuccessfulQueries(ctx context.Context, keywords []string) error {
	if len(keywords) == 0 {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	var failed []FailedQueryRecord
	if err := st.storage.Load(ctx, failedQueriesKey, &failed); err != nil {
		return nil
	}

	successSet := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		successSet[kw] = true
	}

	var remaining []FailedQueryRecord
	removed := 0
	for _, rec := range failed {
		if successSet[rec.Keyword] {
			removed++
			continue
		}
		remaining = append(remaining, rec)
	}

	st.log.WithFields(map[string]interface{}{
		"removed":   removed,
		"remaining": len(remaining),
	}).Info("Removed successful queries from failed list")

	return st.storage.Save(ctx, failedQueriesKey, remaining)
}

// nextRetryTime calculates when to retry based on attempt count
func nextRetryTime(retryCount int) time.Time {
	delays := []time.Duration{
		5 * time.Minute,
		15 * time.Minute,
		60 * time.Minute,
		4 * time.Hour,
		24 * time.Hour,
	}

	if retryCount <= len(delays) {
		return time.Now().Add(delays[retryCount-1])
	}

	// Beyond the schedule, stay at the slowest cadence.
	return time.Now().Add(24 * time.Hour)
}

// trimOldestFailures keeps the most recently failed records.
func trimOldestFailures(records []FailedQueryRecord, keep int) []FailedQueryRecord {
	if len(records) <= keep {
		return records
	}
	// Partial selection sort is fine at this size; the cap is rarely hit.
	for i := 0; i < keep; i++ {
		newest := i
		for j := i + 1; j < len(records); j++ {
			if records[j].FailedAt.After(records[newest].FailedAt) {
				newest = j
			}
		}
		records[i], records[newest] = records[newest], records[i]
	}
	return records[:keep]
}
