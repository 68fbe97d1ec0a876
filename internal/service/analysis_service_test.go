package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"visibility-go/internal/config"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/parser"
	"visibility-go/pkg/serp"
)

type fakeEngineClient struct {
	pages  map[string]*parser.SERPPage // keyed by "engine:keyword"
	closed bool
}

func (f *fakeEngineClient) Query(ctx context.Context, engine string, query serp.KeywordQuery) (*parser.SERPPage, error) {
	if page, ok := f.pages[engine+":"+query.Text]; ok {
		return page, nil
	}
	return &parser.SERPPage{Engine: engine, Keyword: query.Text}, nil
}

func (f *fakeEngineClient) QueryBoth(ctx context.Context, query serp.KeywordQuery) *serp.EnginePair {
	google, _ := f.Query(ctx, serp.EngineGoogle, query)
	bing, _ := f.Query(ctx, serp.EngineBing, query)
	return &serp.EnginePair{Google: google, Bing: bing}
}

func (f *fakeEngineClient) GetMetrics() serp.ClientMetrics { return serp.ClientMetrics{} }

func (f *fakeEngineClient) Close() error {
	f.closed = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		DataForSEO: config.DataForSEOConfig{Login: "user@example.com", Password: "secret"},
		Monitor: config.MonitorConfig{
			BrandDomain:     "brand.com",
			Competitors:     []string{"rival.com"},
			Location:        "United States",
			Device:          "desktop",
			Language:        "English",
			Mode:            monitor.ModeFast,
			Workers:         2,
			RequestInterval: time.Millisecond,
		},
		Storage: config.StorageConfig{CacheSize: 16, CacheTTL: time.Minute},
	}
}

// newTestService wires the service to a fake engine client through the
// builder's testing path, so the full builder validation still runs.
func newTestService(cfg *config.Config, client serp.EngineClient) *AnalysisService {
	svc := NewAnalysisService(cfg)
	svc.build = func(b *monitor.MonitorConfigBuilder) (analysisMonitor, error) {
		return b.BuildForTesting(client)
	}
	return svc
}

func TestAnalysisService_RunProducesResultsAndSummary(t *testing.T) {
	client := &fakeEngineClient{
		pages: map[string]*parser.SERPPage{
			"google:ai search": {
				Engine:  serp.EngineGoogle,
				Keyword: "ai search",
				AIOverview: &parser.AIOverview{
					Text:       "answer",
					References: []parser.Reference{{Domain: "brand.com", URL: "https://brand.com/post"}},
				},
			},
		},
	}
	svc := newTestService(testConfig(), client)

	outcome, err := svc.Run(context.Background(), AnalysisRequest{Keywords: []string{"ai search"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(outcome.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(outcome.Results))
	}
	r := outcome.Results[0]
	if !r.GoogleAIOverviewPresent || !r.GoogleBrandCited {
		t.Errorf("expected brand citation in AI overview, got %+v", r)
	}
	if outcome.Summary == nil || outcome.Summary.TotalQueries != 1 {
		t.Fatalf("expected summary over 1 query, got %+v", outcome.Summary)
	}
	if outcome.Summary.AIOverviewPresence.Count != 1 {
		t.Errorf("expected 1 AI overview in summary, got %d", outcome.Summary.AIOverviewPresence.Count)
	}
	if !client.closed {
		t.Error("expected the per-run monitor to be closed after Run")
	}
}

func TestAnalysisService_AppliesConfigDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.Keywords = []string{"default keyword"}
	svc := NewAnalysisService(cfg)

	merged := svc.applyDefaults(AnalysisRequest{})

	if merged.BrandDomain != "brand.com" {
		t.Errorf("expected default brand, got %q", merged.BrandDomain)
	}
	if len(merged.Keywords) != 1 || merged.Keywords[0] != "default keyword" {
		t.Errorf("expected default keywords, got %v", merged.Keywords)
	}
	if merged.Mode != monitor.ModeFast || merged.Device != "desktop" {
		t.Errorf("expected default query context, got %+v", merged)
	}

	// Request values win over defaults.
	merged = svc.applyDefaults(AnalysisRequest{
		BrandDomain: "other.io",
		Keywords:    []string{"explicit"},
		Mode:        monitor.ModeComprehensive,
	})
	if merged.BrandDomain != "other.io" || merged.Mode != monitor.ModeComprehensive {
		t.Errorf("request fields should override defaults, got %+v", merged)
	}
	if len(merged.Keywords) != 1 || merged.Keywords[0] != "explicit" {
		t.Errorf("request keywords should override defaults, got %v", merged.Keywords)
	}
}

func TestAnalysisService_SurfacesConfigurationErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.BrandDomain = "" // no brand anywhere
	svc := newTestService(cfg, &fakeEngineClient{})

	_, err := svc.Run(context.Background(), AnalysisRequest{Keywords: []string{"ai search"}})
	if err == nil {
		t.Fatal("expected configuration error without a brand")
	}
	if !strings.Contains(err.Error(), "brand") {
		t.Errorf("expected the error to name the missing brand, got %v", err)
	}
}
