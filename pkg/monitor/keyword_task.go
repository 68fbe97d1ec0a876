package monitor

import (
	"context"
	"fmt"
	"time"

	"visibility-go/pkg/serp"
)

// KeywordTask adapts one keyword lookup to the worker pool so fast-mode
// batches get per-keyword adaptive timeouts and panic isolation.
type KeywordTask struct {
	id       string
	keyword  string
	monitor  *VisibilityMonitor
	priority int

	result *KeywordResult
}

// NewKeywordTask builds a pool task for one keyword. The ID is fixed at
// construction so submit-time and result-time lookups agree.
func NewKeywordTask(seq int, keyword string, vm *VisibilityMonitor) *KeywordTask {
	return &KeywordTask{
		id:      fmt.Sprintf("keyword_%03d_%s", seq, vm.secureLog.GenerateHash(keyword)),
		keyword: keyword,
		monitor: vm,
	}
}

// Execute runs the full pipeline for the keyword. Upstream failures are
// degraded to zero records inside the monitor; only cancellation comes
// back as an error.
func (kt *KeywordTask) Execute(ctx context.Context) error {
	record, _, err := kt.monitor.analyzeOne(ctx, kt.keyword)
	if err != nil {
		return fmt.Errorf("keyword task %s: %w", kt.id, err)
	}
	kt.result = record
	return nil
}

func (kt *KeywordTask) GetID() string { return kt.id }

func (kt *KeywordTask) GetPriority() int { return kt.priority }

// GetAdaptiveTimeout sizes the task deadline from its estimated cost.
func (kt *KeywordTask) GetAdaptiveTimeout() time.Duration {
	return kt.monitor.timeoutCalculator.CalculateOptimalTimeout(kt.EstimateComplexity())
}

// EstimateComplexity counts outbound requests plus entities scored: one
// lookup per engine and one scoring pass per configured competitor.
func (kt *KeywordTask) EstimateComplexity() int {
	return len(serp.Engines) + len(kt.monitor.config.Competitors)
}

// GetResult exposes the finished record to the pool's result channel.
func (kt *KeywordTask) GetResult() interface{} {
	if kt.result == nil {
		return nil
	}
	return kt.result
}
