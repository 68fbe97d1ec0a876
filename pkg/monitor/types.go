package monitor

import (
	"time"
)

// Analysis modes. Fast trades competitor depth for latency: both engines
// queried concurrently, keywords fanned out across the worker pool.
// Comprehensive runs every engine call sequentially with a minimum delay,
// which keeps long batches inside the upstream usage policy.
const (
	ModeFast          = "fast"
	ModeComprehensive = "comprehensive"
)

// Mode limits, matching the service contract. Inputs over the limit are
// truncated, not rejected.
const (
	FastKeywordLimit          = 5
	FastCompetitorLimit       = 3
	ComprehensiveKeywordLimit = 20
)

// ValidMode reports whether mode names a supported analysis mode.
func ValidMode(mode string) bool {
	return mode == ModeFast || mode == ModeComprehensive
}

// KeywordResult is one keyword's full visibility record. Field names are a
// wire contract: exporters, the HTTP service, and downstream tooling all
// consume this exact JSON shape. A keyword whose engine queries failed still
// produces a record, zero-valued, so batch outputs stay positional-complete.
type KeywordResult struct {
	Query     string    `json:"query"`
	Location  string    `json:"location"`
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`

	// Google AI Overview signals.
	GoogleAIOverviewPresent   bool           `json:"google_ai_overview_present"`
	GoogleBrandCited          bool           `json:"google_brand_cited"`
	GoogleAICitations         []string       `json:"google_ai_citations"`
	GoogleCompetitorCitations map[string]int `json:"google_competitor_citations"`

	// Bing AI-surface signals. BingAIFeatures lists the answer blocks seen
	// (answer_box, instant_answer, knowledge_graph).
	BingAIFeatures      []string `json:"bing_ai_features"`
	BingBrandVisibility bool     `json:"bing_brand_visibility"`

	// Classic Google SERP features.
	FeaturedSnippetPresent bool     `json:"featured_snippet_present"`
	KnowledgeGraphPresent  bool     `json:"knowledge_graph_present"`
	PeopleAlsoAskPresent   bool     `json:"people_also_ask_present"`
	PeopleAlsoAskQueries   []string `json:"people_also_ask_queries"`

	BingPeopleAlsoAskPresent bool     `json:"bing_people_also_ask_present"`
	BingPeopleAlsoAskQueries []string `json:"bing_people_also_ask_queries"`

	// Merged scoring over both engines.
	AIVisibilityScore  float64            `json:"ai_visibility_score"`
	CompetitorAIScores map[string]float64 `json:"competitor_ai_scores"`
	AIDominanceRank    int                `json:"ai_dominance_rank"`
}

// newEmptyResult returns the zero-valued record shape: slices and maps
// allocated so the JSON contract emits [] and {} rather than null.
func newEmptyResult(query, location, device string) *KeywordResult {
	return &KeywordResult{
		Query:                     query,
		Location:                  location,
		Device:                    device,
		Timestamp:                 time.Now().UTC(),
		GoogleAICitations:         make([]string, 0),
		GoogleCompetitorCitations: make(map[string]int),
		BingAIFeatures:            make([]string, 0),
		PeopleAlsoAskQueries:      make([]string, 0),
		BingPeopleAlsoAskQueries:  make([]string, 0),
		CompetitorAIScores:        make(map[string]float64),
	}
}

// MonitorConfig holds the full configuration for a visibility monitor.
type MonitorConfig struct {
	// DataForSEO credentials.
	Login    string `json:"login"`
	Password string `json:"-"`

	// What to watch.
	BrandDomain string   `json:"brand_domain"`
	Competitors []string `json:"competitors"`

	// Query context applied to every keyword.
	Location string `json:"location"`
	Device   string `json:"device"`
	Language string `json:"language"`

	Mode string `json:"mode"`

	// Worker pool size for fast mode; comprehensive mode is sequential.
	WorkerPoolSize int `json:"worker_pool_size"`

	// Minimum delay between outbound calls in comprehensive mode.
	MinRequestInterval time.Duration `json:"min_request_interval"`

	// Local state: failed-query tracking and optional encryption at rest.
	DataDir       string `json:"data_dir"`
	EncryptionKey string `json:"-"`

	// Response cache sizing for the SERP client.
	CacheSize int           `json:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl"`
}

// DefaultMonitorConfig returns the baseline the builder starts from.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Location:           "United States",
		Device:             "desktop",
		Language:           "English",
		Mode:               ModeFast,
		WorkerPoolSize:     FastKeywordLimit,
		MinRequestInterval: time.Second,
		DataDir:            "./data",
		CacheSize:          256,
		CacheTTL:           15 * time.Minute,
	}
}

// KeywordLimit returns the keyword cap for the configured mode.
func (c MonitorConfig) KeywordLimit() int {
	if c.Mode == ModeComprehensive {
		return ComprehensiveKeywordLimit
	}
	return FastKeywordLimit
}

// CompetitorLimit returns the competitor cap for the configured mode;
// 0 means unlimited.
func (c MonitorConfig) CompetitorLimit() int {
	if c.Mode == ModeComprehensive {
		return 0
	}
	return FastCompetitorLimit
}
