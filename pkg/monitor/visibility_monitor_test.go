package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"visibility-go/pkg/parser"
	"visibility-go/pkg/serp"
	"visibility-go/pkg/storage"
)

// fakeEngineClient serves canned pages per engine and keyword, recording
// call order. Unconfigured keywords get an empty page, like a SERP with
// no AI surface.
type fakeEngineClient struct {
	mu        sync.Mutex
	google    map[string]*parser.SERPPage
	bing      map[string]*parser.SERPPage
	googleErr error
	bingErr   error
	calls     []string
	closed    bool
}

func newFakeEngineClient() *fakeEngineClient {
	return &fakeEngineClient{
		google: make(map[string]*parser.SERPPage),
		bing:   make(map[string]*parser.SERPPage),
	}
}

func (f *fakeEngineClient) Query(ctx context.Context, engine string, query serp.KeywordQuery) (*parser.SERPPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, engine+":"+query.Text)
	f.mu.Unlock()

	switch engine {
	case serp.EngineGoogle:
		if f.googleErr != nil {
			return nil, f.googleErr
		}
		if page, ok := f.google[query.Text]; ok {
			return page, nil
		}
	case serp.EngineBing:
		if f.bingErr != nil {
			return nil, f.bingErr
		}
		if page, ok := f.bing[query.Text]; ok {
			return page, nil
		}
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
	return &parser.SERPPage{Engine: engine, Keyword: query.Text}, nil
}

func (f *fakeEngineClient) QueryBoth(ctx context.Context, query serp.KeywordQuery) *serp.EnginePair {
	pair := &serp.EnginePair{}
	pair.Google, pair.GoogleErr = f.Query(ctx, serp.EngineGoogle, query)
	pair.Bing, pair.BingErr = f.Query(ctx, serp.EngineBing, query)
	return pair
}

func (f *fakeEngineClient) GetMetrics() serp.ClientMetrics { return serp.ClientMetrics{} }

func (f *fakeEngineClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngineClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeEngineClient) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// googlePageWithAIO builds a page whose AI overview cites the given
// domains in order.
func googlePageWithAIO(keyword string, cited ...string) *parser.SERPPage {
	refs := make([]parser.Reference, 0, len(cited))
	for _, d := range cited {
		refs = append(refs, parser.Reference{Domain: d})
	}
	return &parser.SERPPage{
		Engine:     serp.EngineGoogle,
		Keyword:    keyword,
		AIOverview: &parser.AIOverview{Text: "answer", References: refs},
	}
}

func bingPageWithAnswerBox(keyword string, sourceURL string) *parser.SERPPage {
	return &parser.SERPPage{
		Engine:    serp.EngineBing,
		Keyword:   keyword,
		AnswerBox: &parser.AnswerBox{Text: "answer", URL: sourceURL},
	}
}

func newTestMonitor(t *testing.T, fake *fakeEngineClient, mode string) *VisibilityMonitor {
	t.Helper()
	vm, err := NewMonitorConfigBuilder().
		WithBrand("brand.com").
		WithCompetitors([]string{"competitor.com"}).
		WithMode(mode).
		WithRequestInterval(time.Millisecond).
		BuildForTesting(fake)
	if err != nil {
		t.Fatalf("Failed to build test monitor: %v", err)
	}
	t.Cleanup(func() { vm.Close() })
	return vm
}

func TestConfigBuilder_AccumulatesValidationErrors(t *testing.T) {
	builder := NewMonitorConfigBuilder().
		WithBrand("").
		WithMode("turbo").
		WithDevice("tablet").
		WithWorkers(0)

	if !builder.HasErrors() {
		t.Fatal("Expected validation errors, got none")
	}
	if got := len(builder.GetErrors()); got != 4 {
		t.Errorf("Expected 4 accumulated errors, got %d", got)
	}

	err := builder.Validate()
	if err == nil {
		t.Fatal("Expected aggregated validation error, got nil")
	}
	if !strings.Contains(err.Error(), "turbo") {
		t.Errorf("Expected aggregated error to mention the bad mode, got: %v", err)
	}
}

func TestConfigBuilder_RejectsBeforeAnyQuery(t *testing.T) {
	fake := newFakeEngineClient()
	_, err := NewMonitorConfigBuilder().
		WithBrand("brand.com").
		WithMode("bogus").
		BuildForTesting(fake)
	if err == nil {
		t.Fatal("Expected build failure for invalid mode, got nil")
	}
	if fake.callCount() != 0 {
		t.Errorf("Expected zero upstream calls on invalid config, got %d", fake.callCount())
	}
}

func TestMonitor_RejectsUnnormalizableBrand(t *testing.T) {
	config := DefaultMonitorConfig()
	config.BrandDomain = "https://"
	config.DataDir = ""

	_, err := newVisibilityMonitorInternal(config, newFakeEngineClient())
	if err == nil {
		t.Fatal("Expected configuration error for unnormalizable brand, got nil")
	}
	if !serp.IsConfigurationError(err) {
		t.Errorf("Expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestMonitor_TruncatesCompetitorsInFastMode(t *testing.T) {
	fake := newFakeEngineClient()
	vm, err := NewMonitorConfigBuilder().
		WithBrand("brand.com").
		WithCompetitors([]string{"a.com", "b.com", "c.com", "d.com", "e.com"}).
		WithMode(ModeFast).
		BuildForTesting(fake)
	if err != nil {
		t.Fatalf("Failed to build monitor: %v", err)
	}
	defer vm.Close()

	if got := len(vm.Config().Competitors); got != FastCompetitorLimit {
		t.Errorf("Expected %d competitors after fast-mode truncation, got %d", FastCompetitorLimit, got)
	}
}

func TestAnalyzeAll_RequiresKeywords(t *testing.T) {
	vm := newTestMonitor(t, newFakeEngineClient(), ModeFast)

	for _, keywords := range [][]string{nil, {}, {"", "   "}} {
		_, err := vm.AnalyzeAll(context.Background(), keywords)
		if err == nil {
			t.Fatalf("Expected error for keywords %v, got nil", keywords)
		}
		if !serp.IsConfigurationError(err) {
			t.Errorf("Expected ConfigurationError for keywords %v, got %T: %v", keywords, err, err)
		}
	}
}

func TestAnalyzeAll_FastModeScoresBrandAndCompetitors(t *testing.T) {
	fake := newFakeEngineClient()
	fake.google["best crm"] = googlePageWithAIO("best crm", "brand.com", "competitor.com")

	vm := newTestMonitor(t, fake, ModeFast)

	results, err := vm.AnalyzeAll(context.Background(), []string{"best crm", "crm pricing"})
	if err != nil {
		t.Fatalf("AnalyzeAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	// Input order survives concurrent execution.
	if results[0].Query != "best crm" || results[1].Query != "crm pricing" {
		t.Fatalf("Expected input order, got %q then %q", results[0].Query, results[1].Query)
	}

	first := results[0]
	if !first.GoogleAIOverviewPresent {
		t.Error("Expected AI overview present on first keyword")
	}
	if !first.GoogleBrandCited {
		t.Error("Expected brand cited on first keyword")
	}
	// Google: presence 25 + position-0 citation 45 = 70; bing empty.
	if want := 49.0; first.AIVisibilityScore != want {
		t.Errorf("Expected merged score %.1f, got %.1f", want, first.AIVisibilityScore)
	}
	// Competitor cited at position 1: google 25 + 40 = 65, merged 45.5.
	if want := 45.5; first.CompetitorAIScores["competitor.com"] != want {
		t.Errorf("Expected competitor score %.1f, got %.1f", want, first.CompetitorAIScores["competitor.com"])
	}
	if first.AIDominanceRank != 1 {
		t.Errorf("Expected dominance rank 1, got %d", first.AIDominanceRank)
	}
	if first.GoogleCompetitorCitations["competitor.com"] != 1 {
		t.Errorf("Expected 1 competitor citation, got %d", first.GoogleCompetitorCitations["competitor.com"])
	}
	if first.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	second := results[1]
	if second.AIVisibilityScore != 0 {
		t.Errorf("Expected zero score for keyword without signals, got %.1f", second.AIVisibilityScore)
	}
	if second.AIDominanceRank == 0 {
		t.Error("Expected a dominance rank even with zero scores")
	}
}

func TestAnalyzeAll_TruncatesKeywordsToModeLimit(t *testing.T) {
	fake := newFakeEngineClient()
	vm := newTestMonitor(t, fake, ModeFast)

	keywords := []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7"}
	results, err := vm.AnalyzeAll(context.Background(), keywords)
	if err != nil {
		t.Fatalf("AnalyzeAll failed: %v", err)
	}
	if len(results) != FastKeywordLimit {
		t.Fatalf("Expected %d results after truncation, got %d", FastKeywordLimit, len(results))
	}
	for i, record := range results {
		if record.Query != keywords[i] {
			t.Errorf("Expected result %d to be %q, got %q", i, keywords[i], record.Query)
		}
	}
	// Two engine calls per kept keyword, none for the truncated tail.
	if got := fake.callCount(); got != FastKeywordLimit*2 {
		t.Errorf("Expected %d upstream calls, got %d", FastKeywordLimit*2, got)
	}
}

func TestAnalyzeAll_ComprehensiveModeIsSequential(t *testing.T) {
	fake := newFakeEngineClient()
	vm := newTestMonitor(t, fake, ModeComprehensive)

	results, err := vm.AnalyzeAll(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("AnalyzeAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	want := []string{"google:alpha", "bing:alpha", "google:beta", "bing:beta"}
	got := fake.callLog()
	if len(got) != len(want) {
		t.Fatalf("Expected %d calls, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected call order %v, got %v", want, got)
		}
	}
}

func TestAnalyzeAll_DeduplicatesKeywords(t *testing.T) {
	fake := newFakeEngineClient()
	vm := newTestMonitor(t, fake, ModeFast)

	results, err := vm.AnalyzeAll(context.Background(), []string{"same", "same", " same "})
	if err != nil {
		t.Fatalf("AnalyzeAll failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result after dedupe, got %d", len(results))
	}
	if got := fake.callCount(); got != 2 {
		t.Errorf("Expected 2 upstream calls for one unique keyword, got %d", got)
	}
}

func TestAnalyzeKeyword_DegradesToZeroRecordOnTotalFailure(t *testing.T) {
	fake := newFakeEngineClient()
	fake.googleErr = &serp.UpstreamError{Kind: serp.KindNetwork, Engine: serp.EngineGoogle, Message: "connect refused"}
	fake.bingErr = &serp.UpstreamError{Kind: serp.KindNetwork, Engine: serp.EngineBing, Message: "connect refused"}

	vm := newTestMonitor(t, fake, ModeFast)

	record, err := vm.AnalyzeKeyword(context.Background(), "down keyword")
	if err != nil {
		t.Fatalf("Expected degraded record, got error: %v", err)
	}
	if record.Query != "down keyword" {
		t.Errorf("Expected query to survive degradation, got %q", record.Query)
	}
	if record.AIVisibilityScore != 0 || record.GoogleAIOverviewPresent || record.GoogleBrandCited {
		t.Error("Expected zero-signal record on total failure")
	}
	if record.GoogleAICitations == nil || record.CompetitorAIScores == nil {
		t.Error("Expected allocated slices and maps on degraded record")
	}
	if record.Timestamp.IsZero() {
		t.Error("Expected timestamp on degraded record")
	}

	// The failure lands in the tracker for the next startup retry pass.
	var tracked []storage.FailedQueryRecord
	if err := vm.storageService.Load(context.Background(), "failed_queries", &tracked); err != nil {
		t.Fatalf("Failed to load tracked queries: %v", err)
	}
	if len(tracked) != 1 || tracked[0].Keyword != "down keyword" {
		t.Fatalf("Expected the keyword tracked for retry, got %+v", tracked)
	}
	if tracked[0].RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", tracked[0].RetryCount)
	}
}

func TestAnalyzeKeyword_ScoresSurvivingEngineOnPartialFailure(t *testing.T) {
	fake := newFakeEngineClient()
	fake.googleErr = &serp.UpstreamError{Kind: serp.KindNetwork, Engine: serp.EngineGoogle, Message: "timeout"}
	fake.bing["brand terms"] = bingPageWithAnswerBox("brand terms", "https://brand.com/answer")

	vm := newTestMonitor(t, fake, ModeFast)

	record, err := vm.AnalyzeKeyword(context.Background(), "brand terms")
	if err != nil {
		t.Fatalf("AnalyzeKeyword failed: %v", err)
	}

	if record.GoogleAIOverviewPresent || record.GoogleBrandCited || len(record.GoogleAICitations) != 0 {
		t.Error("Expected zero google signals when google failed")
	}
	if len(record.BingAIFeatures) != 1 || record.BingAIFeatures[0] != "answer_box" {
		t.Errorf("Expected bing answer_box feature, got %v", record.BingAIFeatures)
	}
	if !record.BingBrandVisibility {
		t.Error("Expected brand visible on bing")
	}
	// Bing: presence 25 + position-0 citation 45 = 70; google contributes 0.
	if want := 21.0; record.AIVisibilityScore != want {
		t.Errorf("Expected merged score %.1f, got %.1f", want, record.AIVisibilityScore)
	}
}

func TestAnalyzeKeyword_RejectsEmptyKeyword(t *testing.T) {
	vm := newTestMonitor(t, newFakeEngineClient(), ModeFast)

	_, err := vm.AnalyzeKeyword(context.Background(), "   ")
	if err == nil {
		t.Fatal("Expected error for blank keyword, got nil")
	}
	if !serp.IsConfigurationError(err) {
		t.Errorf("Expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestAnalyzeAll_CancelledContextDropsUnfinishedKeywords(t *testing.T) {
	fake := newFakeEngineClient()
	vm := newTestMonitor(t, fake, ModeComprehensive)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := vm.AnalyzeAll(ctx, []string{"k1", "k2"})
	if err != nil {
		t.Fatalf("Expected partial results without error, got: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no records for keywords unfinished at deadline, got %d", len(results))
	}
}

// The record's field names are a wire contract; renames break consumers.
func TestKeywordResult_WireContract(t *testing.T) {
	payload, err := json.Marshal(newEmptyResult("q", "United States", "desktop"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	wantKeys := []string{
		"query", "location", "device", "timestamp",
		"google_ai_overview_present", "google_brand_cited", "google_ai_citations", "google_competitor_citations",
		"bing_ai_features", "bing_brand_visibility",
		"featured_snippet_present", "knowledge_graph_present",
		"people_also_ask_present", "people_also_ask_queries",
		"bing_people_also_ask_present", "bing_people_also_ask_queries",
		"ai_visibility_score", "competitor_ai_scores", "ai_dominance_rank",
	}
	for _, key := range wantKeys {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Expected key %q in serialized record", key)
		}
	}
	if len(decoded) != len(wantKeys) {
		t.Errorf("Expected exactly %d keys, got %d", len(wantKeys), len(decoded))
	}

	// Empty collections serialize as [] and {}, never null.
	for _, key := range []string{"google_ai_citations", "bing_ai_features", "people_also_ask_queries", "bing_people_also_ask_queries"} {
		if string(decoded[key]) != "[]" {
			t.Errorf("Expected %q to serialize as [], got %s", key, decoded[key])
		}
	}
	for _, key := range []string{"google_competitor_citations", "competitor_ai_scores"} {
		if string(decoded[key]) != "{}" {
			t.Errorf("Expected %q to serialize as {}, got %s", key, decoded[key])
		}
	}
}

func TestRetryProcessor_ClearsBacklogOnSuccess(t *testing.T) {
	fake := newFakeEngineClient()
	vm := newTestMonitor(t, fake, ModeFast)

	// Seed a record that is already due for retry.
	seed := []storage.FailedQueryRecord{{
		Keyword:     "stale keyword",
		Location:    "United States",
		Device:      "desktop",
		FailedAt:    time.Now().Add(-time.Hour),
		RetryCount:  1,
		NextRetryAt: time.Now().Add(-time.Minute),
	}}
	if err := vm.storageService.Save(context.Background(), "failed_queries", seed); err != nil {
		t.Fatalf("Failed to seed tracker: %v", err)
	}

	var sinkMu sync.Mutex
	var retried []*KeywordResult
	vm.retryProcessor.SetSink(func(records []*KeywordResult) {
		sinkMu.Lock()
		retried = append(retried, records...)
		sinkMu.Unlock()
	})

	vm.retryProcessor.ProcessFailedQueriesAtStartup(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for {
		var remaining []storage.FailedQueryRecord
		_ = vm.storageService.Load(context.Background(), "failed_queries", &remaining)
		if len(remaining) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Retry pass did not clear the backlog, still tracked: %+v", remaining)
		}
		time.Sleep(20 * time.Millisecond)
	}

	sinkMu.Lock()
	defer sinkMu.Unlock()
	if len(retried) != 1 || retried[0].Query != "stale keyword" {
		t.Fatalf("Expected one retried record for the stale keyword, got %+v", retried)
	}
}

func TestScheduler_ValidatesExpressionAndTracksRuns(t *testing.T) {
	if _, err := NewScheduler("not a cron", 0, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("Expected error for invalid cron expression, got nil")
	}

	ran := 0
	s, err := NewScheduler("@hourly", time.Second, func(ctx context.Context) error {
		ran++
		if ran == 1 {
			return fmt.Errorf("first run fails")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	// Drive runs directly; waiting for a real cron tick is not a unit test.
	s.executeRun()
	s.executeRun()

	status := s.Status()
	if status["runs"] != int64(2) {
		t.Errorf("Expected 2 runs, got %v", status["runs"])
	}
	if _, hasErr := status["last_error"]; hasErr {
		t.Errorf("Expected last_error cleared after successful run, got %v", status["last_error"])
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.NextRun().IsZero() {
		t.Error("Expected a next-run time after Start")
	}
	s.Stop()
}
