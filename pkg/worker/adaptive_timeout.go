package worker

import (
	"context"
	"time"

	"visibility-go/pkg/logger"
)

// AdaptiveTimeout derives a per-task timeout from the task's estimated cost:
// the number of outbound SERP requests it will issue plus the entities it
// scores. Sequential tasks pay an extra unit per request for the enforced
// inter-request delay.
type AdaptiveTimeout struct {
	baseTimeout    time.Duration
	maxTimeout     time.Duration
	sizeMultiplier float64
	log            *logger.Logger
}

// TimeoutConfig holds configuration for adaptive timeout
type TimeoutConfig struct {
	BaseTimeout    time.Duration `json:"base_timeout"`    // Timeout for a minimal task (one engine, no competitors)
	MaxTimeout     time.Duration `json:"max_timeout"`     // Maximum allowed timeout
	SizeMultiplier float64       `json:"size_multiplier"` // Growth per unit of estimated cost
}

// NewAdaptiveTimeout creates a new adaptive timeout manager
func NewAdaptiveTimeout(config TimeoutConfig) *AdaptiveTimeout {
	if config.BaseTimeout == 0 {
		config.BaseTimeout = 30 * time.Second
	}
	if config.MaxTimeout == 0 {
		config.MaxTimeout = 3 * time.Minute
	}
	if config.SizeMultiplier == 0 {
		config.SizeMultiplier = 1.5
	}

	return &AdaptiveTimeout{
		baseTimeout:    config.BaseTimeout,
		maxTimeout:     config.MaxTimeout,
		sizeMultiplier: config.SizeMultiplier,
		log:            logger.GetLogger().WithField("component", "adaptive_timeout"),
	}
}

// CalculateTimeout scales the base timeout by the task's estimated cost.
// Cost 2 is the floor (one request per engine); every unit above that adds
// sizeMultiplier-weighted headroom.
func (at *AdaptiveTimeout) CalculateTimeout(estimatedCost int) time.Duration {
	if estimatedCost < 2 {
		estimatedCost = 2
	}

	growth := 1.0 + at.sizeMultiplier*float64(estimatedCost-2)/10.0
	timeout := time.Duration(float64(at.baseTimeout) * growth)

	if timeout > at.maxTimeout {
		timeout = at.maxTimeout
	}
	if timeout < at.baseTimeout {
		timeout = at.baseTimeout
	}

	return timeout
}

// CreateContextWithAdaptiveTimeout creates a context with calculated timeout
func (at *AdaptiveTimeout) CreateContextWithAdaptiveTimeout(parent context.Context, estimatedCost int) (context.Context, context.CancelFunc) {
	timeout := at.CalculateTimeout(estimatedCost)
	return context.WithTimeout(parent, timeout)
}

// ProgressiveTimeout implements a staged timeout strategy
type ProgressiveTimeout struct {
	stages []TimeoutStage
	log    *logger.Logger
}

// TimeoutStage represents a stage in progressive timeout
type TimeoutStage struct {
	Duration time.Duration
	MaxCost  int    // Maximum estimated cost covered by this stage
	Name     string // Stage name for logging
}

// NewProgressiveTimeout creates a new progressive timeout manager.
// Stages map typical analysis shapes: a bare brand check, a fast-mode
// keyword with a few competitors, a comprehensive keyword with many.
func NewProgressiveTimeout() *ProgressiveTimeout {
	return &ProgressiveTimeout{
		stages: []TimeoutStage{
			{Duration: 30 * time.Second, MaxCost: 4, Name: "brand_only"},
			{Duration: 60 * time.Second, MaxCost: 8, Name: "fast_keyword"},
			{Duration: 2 * time.Minute, MaxCost: 24, Name: "comprehensive_keyword"},
			{Duration: 3 * time.Minute, MaxCost: -1, Name: "unbounded_competitors"}, // -1 = no limit
		},
		log: logger.GetLogger().WithField("component", "progressive_timeout"),
	}
}

// GetTimeoutForStage returns the timeout stage covering the estimated cost
func (pt *ProgressiveTimeout) GetTimeoutForStage(estimatedCost int) time.Duration {
	for _, stage := range pt.stages {
		if stage.MaxCost == -1 || estimatedCost <= stage.MaxCost {
			return stage.Duration
		}
	}

	lastStage := pt.stages[len(pt.stages)-1]
	return lastStage.Duration
}

// SmartTimeoutCalculator combines both timeout strategies
type SmartTimeoutCalculator struct {
	adaptive    *AdaptiveTimeout
	progressive *ProgressiveTimeout
	log         *logger.Logger
}

// NewSmartTimeoutCalculator creates a comprehensive timeout calculator
func NewSmartTimeoutCalculator(config TimeoutConfig) *SmartTimeoutCalculator {
	return &SmartTimeoutCalculator{
		adaptive:    NewAdaptiveTimeout(config),
		progressive: NewProgressiveTimeout(),
		log:         logger.GetLogger().WithField("component", "smart_timeout"),
	}
}

// CalculateOptimalTimeout takes the larger of the two strategies so a task
// never gets cut off by the more aggressive one.
func (stc *SmartTimeoutCalculator) CalculateOptimalTimeout(estimatedCost int) time.Duration {
	adaptiveTimeout := stc.adaptive.CalculateTimeout(estimatedCost)
	progressiveTimeout := stc.progressive.GetTimeoutForStage(estimatedCost)

	optimalTimeout := adaptiveTimeout
	if progressiveTimeout > adaptiveTimeout {
		optimalTimeout = progressiveTimeout
	}

	stc.log.WithFields(map[string]interface{}{
		"estimated_cost":      estimatedCost,
		"adaptive_timeout":    adaptiveTimeout,
		"progressive_timeout": progressiveTimeout,
		"optimal_timeout":     optimalTimeout,
	}).Debug("Calculated optimal timeout")

	return optimalTimeout
}

// CreateSmartContext creates a context with optimal timeout
func (stc *SmartTimeoutCalculator) CreateSmartContext(parent context.Context, estimatedCost int) (context.Context, context.CancelFunc) {
	timeout := stc.CalculateOptimalTimeout(estimatedCost)
	return context.WithTimeout(parent, timeout)
}
