package backend

import "time"

// VisibilityBatch represents one batch submission request
type VisibilityBatch []VisibilityRecord

// VisibilityRecord is a single keyword's visibility data in submission form
type VisibilityRecord struct {
	AnalysisID string            `json:"analysis_id,omitempty"`
	Brand      string            `json:"brand"`
	Keyword    string            `json:"keyword"`
	Mode       string            `json:"mode,omitempty"`
	Location   string            `json:"location,omitempty"`
	Device     string            `json:"device,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
	Metrics    VisibilityMetrics `json:"metrics"`
}

// VisibilityMetrics carries the per-keyword signals the backend ingests
type VisibilityMetrics struct {
	AIOverviewPresent   bool           `json:"ai_overview_present"`
	BrandCited          bool           `json:"brand_cited"`
	CitationCount       int            `json:"citation_count"`
	CompetitorCitations map[string]int `json:"competitor_citations"`

	BingAIFeatures   []string `json:"bing_ai_features"`
	BingBrandVisible bool     `json:"bing_brand_visible"`

	FeaturedSnippet   bool `json:"featured_snippet"`
	KnowledgeGraph    bool `json:"knowledge_graph"`
	PAAQuestionCount  int  `json:"paa_question_count"`

	VisibilityScore float64 `json:"visibility_score"`
	DominanceRank   int     `json:"dominance_rank"`
}

// BackendResponse represents the API response from the backend
type BackendResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// BackendConfig holds backend webhook configuration
type BackendConfig struct {
	BaseURL    string        `json:"base_url"`
	APIKey     string        `json:"api_key"`
	BatchSize  int           `json:"batch_size"` // Records per batch (default: 50)
	EnableGzip bool          `json:"enable_gzip"`
	Timeout    time.Duration `json:"timeout"`
}

// BackendClient interface for submitting visibility data
type BackendClient interface {
	SubmitBatch(batch VisibilityBatch) (*BackendResponse, error)
	SubmitBatches(records []VisibilityRecord) error
}
