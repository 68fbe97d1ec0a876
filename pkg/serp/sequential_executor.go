package serp

import (
	"context"
	"sync"
	"time"
)

// SequentialExecutor serializes outbound API calls and enforces a minimum
// interval between them. Comprehensive mode runs every engine call through
// one executor so the upstream usage policy holds across the whole batch.
type SequentialExecutor struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastRequest time.Time
}

// NewSequentialExecutor creates an executor with the given minimum
// inter-request interval. Zero disables the delay but keeps serialization.
func NewSequentialExecutor(minInterval time.Duration) *SequentialExecutor {
	return &SequentialExecutor{minInterval: minInterval}
}

// Execute runs fn after the previous call has finished and the interval
// since it has elapsed. Waiting respects context cancellation.
func (se *SequentialExecutor) Execute(ctx context.Context, fn func() error) error {
	se.mu.Lock()
	defer se.mu.Unlock()

	if se.minInterval > 0 && !se.lastRequest.IsZero() {
		if remaining := se.minInterval - time.Since(se.lastRequest); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := fn()
	se.lastRequest = time.Now()
	return err
}
