package serp

import (
	"context"

	"visibility-go/pkg/parser"
)

// EngineClient is the upstream boundary the analysis pipeline depends on.
// Implementations own transport, auth, caching, and retry; callers get a
// typed page or a typed error.
type EngineClient interface {
	Query(ctx context.Context, engine string, query KeywordQuery) (*parser.SERPPage, error)
	QueryBoth(ctx context.Context, query KeywordQuery) *EnginePair
	GetMetrics() ClientMetrics
	Close() error
}

// EnginePair holds both engines' outcomes for one keyword. Either side may
// carry an error; the orchestrator degrades per engine, not per pair.
type EnginePair struct {
	Google    *parser.SERPPage
	GoogleErr error
	Bing      *parser.SERPPage
	BingErr   error
}

// ResponseCache caches raw SERP payloads keyed by query hash. Live SERP
// lookups are billed per request, so replays within the TTL window are
// served locally.
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, payload []byte)
}

// ClientMetrics is a point-in-time snapshot of client activity.
type ClientMetrics struct {
	TotalRequests  uint64  `json:"total_requests"`
	FailedRequests uint64  `json:"failed_requests"`
	CacheHits      uint64  `json:"cache_hits"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	LastError      string  `json:"last_error,omitempty"`
}
