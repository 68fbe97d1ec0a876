package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"visibility-go/pkg/backend"
	"visibility-go/pkg/detector"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/storage"
)

type fakeRunner struct {
	outcome *AnalysisOutcome
	err     error
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context, req AnalysisRequest) (*AnalysisOutcome, error) {
	f.calls++
	return f.outcome, f.err
}

type countingBackend struct {
	mu      sync.Mutex
	batches int
}

func (c *countingBackend) SubmitBatch(batch backend.VisibilityBatch) (*backend.BackendResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches++
	return &backend.BackendResponse{}, nil
}

func (c *countingBackend) SubmitBatches(records []backend.VisibilityRecord) error {
	_, err := c.SubmitBatch(backend.VisibilityBatch(records))
	return err
}

func (c *countingBackend) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches
}

func outcomeWith(score float64, cited bool) *AnalysisOutcome {
	results := []*monitor.KeywordResult{
		{
			Query:                     "ai search",
			GoogleAIOverviewPresent:   cited,
			GoogleBrandCited:          cited,
			GoogleAICitations:         []string{},
			GoogleCompetitorCitations: map[string]int{},
			BingAIFeatures:            []string{},
			PeopleAlsoAskQueries:      []string{},
			BingPeopleAlsoAskQueries:  []string{},
			AIVisibilityScore:         score,
		},
	}
	return &AnalysisOutcome{Results: results}
}

func TestMonitoringPipeline_ConsumeExportsSnapshotsAndSubmits(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.ExportDir = t.TempDir()

	store := storage.NewMemoryStorage()
	client := &countingBackend{}
	pool := backend.NewSubmissionPool(client, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	pipeline := NewMonitoringPipeline(cfg, &fakeRunner{}, store, pool)

	pipeline.Consume(ctx, AnalysisRequest{}, outcomeWith(10.0, false))

	// Export file written.
	files, err := filepath.Glob(filepath.Join(cfg.Storage.ExportDir, "ai_visibility_results_*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected 1 export file, got %v (err %v)", files, err)
	}

	// Snapshot saved under the default brand.
	history := detector.NewSnapshotHistoryManager(store)
	snapshot, err := history.GetLatestSnapshot(ctx, "brand.com")
	if err != nil {
		t.Fatalf("expected a snapshot after consume: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].Query != "ai search" {
		t.Errorf("unexpected snapshot contents: %+v", snapshot)
	}

	// Second run with movement records a change set.
	pipeline.Consume(ctx, AnalysisRequest{}, outcomeWith(49.0, true))

	changes := detector.NewVisibilityChangeDetector(store)
	changeHistory, err := changes.GetChangeHistory(ctx, "brand.com", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changeHistory) != 1 {
		t.Fatalf("expected 1 change set, got %d", len(changeHistory))
	}
	if changeHistory[0].TotalImproved == 0 {
		t.Errorf("expected improvements in the change set, got %+v", changeHistory[0])
	}

	// Webhook submissions drain asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for client.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if client.count() != 2 {
		t.Errorf("expected 2 webhook batches, got %d", client.count())
	}
}

func TestMonitoringPipeline_NilPoolSkipsWebhook(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.ExportDir = t.TempDir()

	pipeline := NewMonitoringPipeline(cfg, &fakeRunner{}, storage.NewMemoryStorage(), nil)

	// Must not panic without a pool.
	pipeline.Consume(context.Background(), AnalysisRequest{}, outcomeWith(10.0, false))
}

func TestMonitoringPipeline_RunOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.ExportDir = t.TempDir()

	runner := &fakeRunner{outcome: outcomeWith(25.0, false)}
	pipeline := NewMonitoringPipeline(cfg, runner, storage.NewMemoryStorage(), nil)

	if err := pipeline.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("expected 1 runner call, got %d", runner.calls)
	}

	files, _ := filepath.Glob(filepath.Join(cfg.Storage.ExportDir, "ai_visibility_results_*.json"))
	if len(files) != 1 {
		t.Errorf("expected 1 export file after scheduled run, got %d", len(files))
	}
}

func TestMonitoringPipeline_RunOncePropagatesRunnerError(t *testing.T) {
	cfg := testConfig()
	runner := &fakeRunner{err: errors.New("upstream down")}
	pipeline := NewMonitoringPipeline(cfg, runner, storage.NewMemoryStorage(), nil)

	if err := pipeline.RunOnce(context.Background()); err == nil {
		t.Error("expected runner error to propagate")
	}
}

func TestMonitoringPipeline_IgnoresEmptyOutcome(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.ExportDir = t.TempDir()
	pipeline := NewMonitoringPipeline(cfg, &fakeRunner{}, storage.NewMemoryStorage(), nil)

	pipeline.Consume(context.Background(), AnalysisRequest{}, nil)
	pipeline.Consume(context.Background(), AnalysisRequest{}, &AnalysisOutcome{})

	files, _ := filepath.Glob(filepath.Join(cfg.Storage.ExportDir, "*.json"))
	if len(files) != 0 {
		t.Errorf("expected no exports for empty outcomes, got %d", len(files))
	}
}
