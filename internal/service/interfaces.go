package service

import (
	"context"

	"visibility-go/pkg/monitor"
	"visibility-go/pkg/report"
)

// AnalysisRequest carries one analysis run's parameters. Zero-valued fields
// fall back to the service defaults from configuration.
type AnalysisRequest struct {
	BrandDomain string   `json:"brand_domain"`
	Competitors []string `json:"competitors"`
	Keywords    []string `json:"keywords"`
	Location    string   `json:"location"`
	Device      string   `json:"device"`
	Language    string   `json:"language"`
	Mode        string   `json:"mode"`
}

// AnalysisOutcome bundles one finished analysis run.
type AnalysisOutcome struct {
	Results []*monitor.KeywordResult `json:"results"`
	Summary *report.AnalysisSummary  `json:"summary"`
}

// AnalysisRunner executes one analysis run end to end: SERP queries,
// feature extraction, scoring, summary.
type AnalysisRunner interface {
	Run(ctx context.Context, req AnalysisRequest) (*AnalysisOutcome, error)
}

// ResultSink receives a finished run for side processing (export, change
// detection, webhook submission). Sinks must not block the caller for long.
type ResultSink interface {
	Consume(ctx context.Context, req AnalysisRequest, outcome *AnalysisOutcome)
}
