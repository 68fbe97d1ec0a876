package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"visibility-go/pkg/logger"
)

// batchWork represents a batch submission task
type batchWork struct {
	records      []VisibilityRecord
	batchNum     int
	totalBatches int
}

// batchResult represents the result of a batch submission
type batchResult struct {
	batchNum int
	err      error
}

// ConcurrentSubmitter submits batches in parallel with bounded concurrency.
// Used for large exports where the sequential client would take too long.
type ConcurrentSubmitter struct {
	client BackendClient
	log    *logger.Logger
}

// NewConcurrentSubmitter creates a new concurrent submitter
func NewConcurrentSubmitter(client BackendClient) *ConcurrentSubmitter {
	return &ConcurrentSubmitter{
		client: client,
		log:    logger.GetLogger().WithField("component", "concurrent_submitter"),
	}
}

// SubmitBatchesConcurrently submits batches with controlled concurrency
func (cs *ConcurrentSubmitter) SubmitBatchesConcurrently(records []VisibilityRecord, batchSize int) error {
	if len(records) == 0 {
		cs.log.Debug("No records to submit")
		return nil
	}

	totalBatches := (len(records) + batchSize - 1) / batchSize

	cs.log.WithFields(map[string]interface{}{
		"total_records": len(records),
		"batch_size":    batchSize,
		"total_batches": totalBatches,
	}).Info("Starting concurrent batch submission")

	// Three in flight is enough; more just moves the bottleneck backend-side.
	maxConcurrency := min(3, totalBatches)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	batchChan := make(chan batchWork, totalBatches)
	resultChan := make(chan batchResult, totalBatches)

	var wg sync.WaitGroup
	for i := 0; i < maxConcurrency; i++ {
		wg.Add(1)
		go cs.batchWorker(ctx, &wg, batchChan, resultChan)
	}

	go func() {
		defer close(batchChan)
		for i := 0; i < len(records); i += batchSize {
			end := min(i+batchSize, len(records))

			select {
			case batchChan <- batchWork{
				records:      records[i:end],
				batchNum:     i/batchSize + 1,
				totalBatches: totalBatches,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	successCount := 0
	failureCount := 0
	var firstError error

	for result := range resultChan {
		if result.err != nil {
			failureCount++
			if firstError == nil {
				firstError = result.err
			}
			cs.log.WithError(result.err).WithField("batch_number", result.batchNum).Error("Batch submission failed")
		} else {
			successCount++
		}

		completed := successCount + failureCount
		shouldLog := completed == totalBatches ||
			(totalBatches > 50 && completed%25 == 0) ||
			(totalBatches <= 50 && totalBatches > 10 && completed%10 == 0)

		if shouldLog {
			cs.log.WithField("progress", fmt.Sprintf("%d/%d batches", completed, totalBatches)).Info("Backend submission progress")
		}
	}

	cs.log.WithFields(map[string]interface{}{
		"total_batches":      totalBatches,
		"successful_batches": successCount,
		"failed_batches":     failureCount,
		"success_rate":       fmt.Sprintf("%.1f%%", float64(successCount)/float64(totalBatches)*100),
		"concurrency":        maxConcurrency,
	}).Info("Concurrent batch submission completed")

	if failureCount > 0 {
		return fmt.Errorf("failed to submit %d out of %d batches (first error: %v)", failureCount, totalBatches, firstError)
	}

	return nil
}

// batchWorker processes batch submission tasks concurrently
func (cs *ConcurrentSubmitter) batchWorker(ctx context.Context, wg *sync.WaitGroup, batchChan <-chan batchWork, resultChan chan<- batchResult) {
	defer wg.Done()

	for {
		select {
		case work, ok := <-batchChan:
			if !ok {
				return
			}

			_, err := cs.client.SubmitBatch(VisibilityBatch(work.records))

			select {
			case resultChan <- batchResult{batchNum: work.batchNum, err: err}:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
