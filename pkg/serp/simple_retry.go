package serp

import (
	"context"
	"time"

	"visibility-go/pkg/logger"
)

// SimpleRetry retries an operation with exponential backoff. Only errors
// the taxonomy marks retryable (network, rate_limited) trigger another
// attempt; malformed payloads and unsupported parameters fail immediately.
type SimpleRetry struct {
	maxRetries        int
	retryDelay        time.Duration
	backoffMultiplier float64
	log               *logger.Logger
}

// NewSimpleRetry creates a retry helper.
// maxRetries is the number of retries after the first attempt.
func NewSimpleRetry(maxRetries int, retryDelay time.Duration) *SimpleRetry {
	return &SimpleRetry{
		maxRetries:        maxRetries,
		retryDelay:        retryDelay,
		backoffMultiplier: 2.0,
		log:               logger.GetLogger().WithField("component", "simple_retry"),
	}
}

// Execute runs the operation, retrying retryable failures until the
// attempt budget or the context runs out. The last error is returned.
func (sr *SimpleRetry) Execute(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= sr.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := operation(); err == nil {
			if attempt > 0 {
				sr.log.WithField("attempt", attempt+1).Debug("Operation succeeded after retry")
			}
			return nil
		} else {
			lastErr = err
		}

		if !sr.isRetryable(lastErr) {
			sr.log.WithError(lastErr).Debug("Error not retryable, giving up")
			return lastErr
		}

		if attempt < sr.maxRetries {
			delay := sr.delayFor(attempt)
			sr.log.WithFields(map[string]interface{}{
				"attempt": attempt + 1,
				"delay":   delay.String(),
			}).Debug("Retrying after delay")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

// isRetryable consults the typed error taxonomy. Untyped errors are not
// retried: if the client could not classify a failure we cannot assume
// repeating it is safe, the upstream bills per request.
func (sr *SimpleRetry) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ue, ok := AsUpstreamError(err); ok {
		return ue.IsRetryable()
	}
	return false
}

// delayFor computes the backoff delay for the given zero-based attempt.
func (sr *SimpleRetry) delayFor(attempt int) time.Duration {
	delay := float64(sr.retryDelay)
	for i := 0; i < attempt; i++ {
		delay *= sr.backoffMultiplier
	}
	return time.Duration(delay)
}
