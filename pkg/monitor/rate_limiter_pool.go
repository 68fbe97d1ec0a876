package monitor

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterPool hands out one shared token-bucket limiter per engine so
// every worker pacing requests at the same engine draws from the same
// bucket. Implements Resource Pool pattern to prevent limiter leakage.
type RateLimiterPool struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rps      rate.Limit
	burst    int
}

// NewRateLimiterPool creates a pool issuing limiters at requestsPerSecond
// with the given burst. Burst below 1 is raised to 1 so Wait can ever
// succeed.
func NewRateLimiterPool(requestsPerSecond float64, burst int) *RateLimiterPool {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterPool{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// GetOrCreate returns the engine's shared limiter, creating it on first use.
func (p *RateLimiterPool) GetOrCreate(engine string) *rate.Limiter {
	// Try read lock first for better performance
	p.mu.RLock()
	if limiter, exists := p.limiters[engine]; exists {
		p.mu.RUnlock()
		return limiter
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check pattern to prevent race condition
	if limiter, exists := p.limiters[engine]; exists {
		return limiter
	}

	limiter := rate.NewLimiter(p.rps, p.burst)
	p.limiters[engine] = limiter
	return limiter
}

// Wait blocks until the engine's bucket grants a token or ctx ends.
func (p *RateLimiterPool) Wait(ctx context.Context, engine string) error {
	return p.GetOrCreate(engine).Wait(ctx)
}

// SetRate updates the refill rate on every limiter in the pool. New
// limiters created afterwards also use the new rate.
func (p *RateLimiterPool) SetRate(requestsPerSecond float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rps = rate.Limit(requestsPerSecond)
	for _, limiter := range p.limiters {
		limiter.SetLimit(p.rps)
	}
}

// Count returns the number of engine limiters in the pool.
func (p *RateLimiterPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.limiters)
}
