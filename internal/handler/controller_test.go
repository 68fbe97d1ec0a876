package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"visibility-go/internal/service"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/report"
	"visibility-go/pkg/storage"
)

type fakeRunner struct {
	mu      sync.Mutex
	outcome *service.AnalysisOutcome
	err     error
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context, req service.AnalysisRequest) (*service.AnalysisOutcome, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSink) Consume(ctx context.Context, req service.AnalysisRequest, outcome *service.AnalysisOutcome) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testOutcome() *service.AnalysisOutcome {
	result := &monitor.KeywordResult{
		Query:                     "ai search visibility",
		Timestamp:                 time.Now().UTC(),
		GoogleAIOverviewPresent:   true,
		GoogleBrandCited:          true,
		GoogleAICitations:         []string{"https://brand.com/guide"},
		GoogleCompetitorCitations: map[string]int{},
		PeopleAlsoAskQueries:      []string{"what is ai search"},
		BingPeopleAlsoAskQueries:  []string{},
		BingAIFeatures:            []string{},
		AIVisibilityScore:         61.5,
		AIDominanceRank:           1,
	}
	results := []*monitor.KeywordResult{result}
	return &service.AnalysisOutcome{
		Results: results,
		Summary: report.Summarize(results),
	}
}

func newTestApp(t *testing.T, runner service.AnalysisRunner, sink service.ResultSink) (*fiber.App, *storage.JobStore) {
	t.Helper()
	jobs := storage.NewJobStore(storage.NewMemoryStorage())
	ctrl := NewAnalysisController(runner, jobs, sink, time.Minute)
	app := fiber.New()
	ctrl.RegisterRoutes(app)
	return app, jobs
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading %s %s body: %v", method, path, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("decoding %s %s body %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, payload
}

func waitForStatus(t *testing.T, app *fiber.App, id, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last map[string]interface{}
	for time.Now().Before(deadline) {
		status, body := doRequest(t, app, http.MethodGet, "/api/v1/analysis/"+id+"/status", "")
		if status != http.StatusOK {
			t.Fatalf("status endpoint returned %d, want 200", status)
		}
		last = body
		if body["status"] == want {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q, last seen %v", id, want, last)
	return nil
}

func TestAnalyze_RunsJobToCompletion(t *testing.T) {
	runner := &fakeRunner{outcome: testOutcome()}
	sink := &fakeSink{}
	app, _ := newTestApp(t, runner, sink)

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/analyze",
		`{"brand_domain":"brand.com","keywords":["ai search visibility"]}`)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %v", status, body)
	}
	id, _ := body["analysis_id"].(string)
	if id == "" {
		t.Fatalf("expected analysis_id in response, got %v", body)
	}
	if body["status"] != storage.JobPending {
		t.Errorf("expected initial status pending, got %v", body["status"])
	}

	waitForStatus(t, app, id, storage.JobCompleted)

	status, job := doRequest(t, app, http.MethodGet, "/api/v1/analysis/"+id, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200 for completed analysis, got %d", status)
	}
	if job["results"] == nil {
		t.Error("completed analysis should carry results")
	}
	if job["summary"] == nil {
		t.Error("completed analysis should carry a summary")
	}
	if runner.callCount() != 1 {
		t.Errorf("expected exactly one run, got %d", runner.callCount())
	}

	// The sink fires after the job flips to completed.
	deadline := time.Now().Add(time.Second)
	for sink.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sink.callCount() != 1 {
		t.Errorf("expected sink to consume the outcome once, got %d", sink.callCount())
	}
}

func TestAnalyze_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing brand", `{"keywords":["ai search"]}`},
		{"missing keywords", `{"brand_domain":"brand.com"}`},
		{"blank keywords", `{"brand_domain":"brand.com","keywords":["   ",""]}`},
		{"invalid mode", `{"brand_domain":"brand.com","keywords":["ai search"],"mode":"turbo"}`},
		{"malformed json", `{"brand_domain":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{outcome: testOutcome()}
			app, _ := newTestApp(t, runner, nil)

			status, body := doRequest(t, app, http.MethodPost, "/api/v1/analyze", tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %v", status, body)
			}
			if body["error"] == nil {
				t.Error("expected an error message in the response")
			}
			if runner.callCount() != 0 {
				t.Errorf("rejected request must not start a run, got %d calls", runner.callCount())
			}
		})
	}
}

func TestAnalyze_FailedRunMarksJobFailed(t *testing.T) {
	runner := &fakeRunner{err: errors.New("dataforseo unavailable")}
	app, _ := newTestApp(t, runner, nil)

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/analyze",
		`{"brand_domain":"brand.com","keywords":["ai search"]}`)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %v", status, body)
	}
	id, _ := body["analysis_id"].(string)

	final := waitForStatus(t, app, id, storage.JobFailed)
	errMsg, _ := final["error"].(string)
	if !strings.Contains(errMsg, "dataforseo unavailable") {
		t.Errorf("expected failure reason in status view, got %q", errMsg)
	}
}

func TestGetAnalysis_UnknownID(t *testing.T) {
	app, _ := newTestApp(t, &fakeRunner{outcome: testOutcome()}, nil)

	for _, path := range []string{
		"/api/v1/analysis/no-such-id",
		"/api/v1/analysis/no-such-id/status",
	} {
		status, body := doRequest(t, app, http.MethodGet, path, "")
		if status != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d: %v", path, status, body)
		}
	}
}

func TestListAnalyses(t *testing.T) {
	app, jobs := newTestApp(t, &fakeRunner{outcome: testOutcome()}, nil)

	ctx := context.Background()
	if _, err := jobs.Create(ctx, "brand.com", monitor.ModeFast, []string{"kw one"}); err != nil {
		t.Fatalf("creating job: %v", err)
	}
	if _, err := jobs.Create(ctx, "other.io", "", []string{"kw two"}); err != nil {
		t.Fatalf("creating job: %v", err)
	}

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/analyses", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if total, _ := body["total"].(float64); total != 2 {
		t.Errorf("expected total 2, got %v", body["total"])
	}
	views, ok := body["analyses"].([]interface{})
	if !ok || len(views) != 2 {
		t.Fatalf("expected 2 analyses, got %v", body["analyses"])
	}
	for _, raw := range views {
		view := raw.(map[string]interface{})
		if view["analysis_id"] == nil || view["status"] == nil {
			t.Errorf("list entry missing id or status: %v", view)
		}
		if _, hasResults := view["results"]; hasResults {
			t.Error("list entries must not inline full results")
		}
	}
}

func TestServiceEndpoints(t *testing.T) {
	app, _ := newTestApp(t, &fakeRunner{outcome: testOutcome()}, nil)

	status, body := doRequest(t, app, http.MethodGet, "/health", "")
	if status != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health check: got %d %v", status, body)
	}

	status, body = doRequest(t, app, http.MethodGet, "/", "")
	if status != http.StatusOK {
		t.Errorf("root: expected 200, got %d", status)
	}
	if _, ok := body["endpoints"].([]interface{}); !ok {
		t.Errorf("root should enumerate endpoints, got %v", body["endpoints"])
	}

	status, body = doRequest(t, app, http.MethodGet, "/api/v1/status", "")
	if status != http.StatusOK {
		t.Errorf("service status: expected 200, got %d", status)
	}
	if body["service"] == nil || body["uptime"] == nil {
		t.Errorf("service status missing fields: %v", body)
	}
}
