package monitor

import (
	"sync"
	"time"

	"visibility-go/pkg/logger"
)

// ConcurrencyConfig defines concurrency parameters for the analysis pipeline
type ConcurrencyConfig struct {
	// 关键词分析层 (每个worker跑一个完整的关键词流水线)
	KeywordWorkers int `json:"keyword_workers"`

	// SERP API查询控制 (真正的瓶颈，需要严格控制)
	EngineRequestsPerSecond float64 `json:"engine_requests_per_second"` // per-engine token bucket refill
	EngineBurst             int     `json:"engine_burst"`               // token bucket burst
	MaxInFlight             int     `json:"max_in_flight"`              // concurrent keyword lookups cap

	// Timeout settings
	AcquireTimeout time.Duration `json:"acquire_timeout"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultConcurrencyConfig returns settings tuned for live SERP lookups:
// cheap local scoring, expensive metered upstream calls.
func DefaultConcurrencyConfig() ConcurrencyConfig {
	return ConcurrencyConfig{
		KeywordWorkers: FastKeywordLimit,

		// 🎯 严格的API频率控制，防止429限流
		EngineRequestsPerSecond: 2.0,
		EngineBurst:             2,
		MaxInFlight:             5,

		AcquireTimeout: 10 * time.Second,
		RequestTimeout: 45 * time.Second,
	}
}

// AdaptiveConcurrencyManager manages dynamic concurrency adjustment
type AdaptiveConcurrencyManager struct {
	config       ConcurrencyConfig
	mu           sync.RWMutex
	errorRate    float64
	responseTime time.Duration
	log          *logger.Logger

	// Metrics for adjustment
	totalRequests  int64
	failedRequests int64
	lastAdjustment time.Time
}

// NewAdaptiveConcurrencyManager creates a new adaptive concurrency manager
func NewAdaptiveConcurrencyManager(config ConcurrencyConfig) *AdaptiveConcurrencyManager {
	return &AdaptiveConcurrencyManager{
		config:         config,
		log:            logger.GetLogger().WithField("component", "concurrency_manager"),
		lastAdjustment: time.Now(),
	}
}

// GetCurrentConfig returns current concurrency configuration
func (acm *AdaptiveConcurrencyManager) GetCurrentConfig() ConcurrencyConfig {
	acm.mu.RLock()
	defer acm.mu.RUnlock()
	return acm.config
}

// UpdateMetrics updates performance metrics for adaptive adjustment
func (acm *AdaptiveConcurrencyManager) UpdateMetrics(responseTime time.Duration, success bool) {
	acm.mu.Lock()
	defer acm.mu.Unlock()

	acm.totalRequests++
	if !success {
		acm.failedRequests++
	}

	// Running average of response time
	acm.responseTime = (acm.responseTime + responseTime) / 2
	acm.errorRate = float64(acm.failedRequests) / float64(acm.totalRequests)

	// 每分钟最多调整一次
	if time.Since(acm.lastAdjustment) > time.Minute {
		acm.adjustConcurrency()
		acm.lastAdjustment = time.Now()
	}
}

// adjustConcurrency dynamically adjusts limits based on observed upstream
// behavior. The API layer backs off hard on errors (rate limiting is the
// dominant failure) and recovers slowly.
func (acm *AdaptiveConcurrencyManager) adjustConcurrency() {
	originalRate := acm.config.EngineRequestsPerSecond
	originalInFlight := acm.config.MaxInFlight

	if acm.errorRate > 0.2 {
		acm.config.MaxInFlight = max(1, acm.config.MaxInFlight-1)
		acm.config.EngineRequestsPerSecond = max(0.5, acm.config.EngineRequestsPerSecond*0.7)

		acm.log.WithFields(map[string]interface{}{
			"error_rate":    acm.errorRate,
			"old_rate":      originalRate,
			"new_rate":      acm.config.EngineRequestsPerSecond,
			"old_in_flight": originalInFlight,
			"new_in_flight": acm.config.MaxInFlight,
		}).Warn("Reducing SERP API concurrency due to high error rate")

	} else if acm.errorRate < 0.01 && acm.responseTime < 10*time.Second {
		// 谨慎增加API并发
		acm.config.MaxInFlight = min(8, acm.config.MaxInFlight+1)
		acm.config.EngineRequestsPerSecond = min(4.0, acm.config.EngineRequestsPerSecond*1.1)

		acm.log.WithFields(map[string]interface{}{
			"error_rate":    acm.errorRate,
			"old_rate":      originalRate,
			"new_rate":      acm.config.EngineRequestsPerSecond,
			"old_in_flight": originalInFlight,
			"new_in_flight": acm.config.MaxInFlight,
		}).Info("Carefully increasing SERP API concurrency")
	}
}

// Snapshot returns the current observed performance numbers.
func (acm *AdaptiveConcurrencyManager) Snapshot() (errorRate float64, responseTime time.Duration, total int64) {
	acm.mu.RLock()
	defer acm.mu.RUnlock()
	return acm.errorRate, acm.responseTime, acm.totalRequests
}
