package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"visibility-go/pkg/logger"
)

// Job lifecycle states. Transitions only move forward:
// pending → running → completed | failed.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ErrJobNotFound is returned when an analysis id has no stored job.
var ErrJobNotFound = errors.New("analysis not found")

const (
	jobKeyPrefix = "analysis:"
	jobIndexKey  = "analysis_index"

	// The index is capped; jobs that fall off stay loadable by id until
	// deleted but disappear from listings.
	maxIndexedJobs = 100
)

// AnalysisJob tracks one analysis request through its lifecycle. Results
// and Summary are opaque here: the store persists whatever the pipeline
// produced without depending on its types.
type AnalysisJob struct {
	ID          string      `json:"analysis_id"`
	Status      string      `json:"status"`
	BrandDomain string      `json:"brand_domain"`
	Mode        string      `json:"mode,omitempty"`
	Keywords    []string    `json:"keywords,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Progress    int         `json:"progress"`
	Total       int         `json:"total"`
	Results     interface{} `json:"results,omitempty"`
	Summary     interface{} `json:"summary,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// JobStore manages analysis jobs over a Storage backend. One mutex
// serializes the load-modify-save cycles; job volume is human-scale.
type JobStore struct {
	storage Storage
	log     *logger.Logger
	mu      sync.Mutex
}

// NewJobStore creates a job store over the given storage backend.
func NewJobStore(storage Storage) *JobStore {
	return &JobStore{
		storage: storage,
		log:     logger.GetLogger().WithField("component", "job_store"),
	}
}

// Create registers a new pending job and returns it with a fresh id.
func (js *JobStore) Create(ctx context.Context, brandDomain, mode string, keywords []string) (*AnalysisJob, error) {
	job := &AnalysisJob{
		ID:          uuid.NewString(),
		Status:      JobPending,
		BrandDomain: brandDomain,
		Mode:        mode,
		Keywords:    keywords,
		CreatedAt:   time.Now().UTC(),
		Total:       len(keywords),
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if err := js.storage.Save(ctx, jobKey(job.ID), job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	if err := js.addToIndex(ctx, job.ID); err != nil {
		js.log.WithError(err).Warn("Failed to update job index")
	}

	js.log.WithFields(map[string]interface{}{
		"analysis_id": job.ID,
		"keywords":    len(keywords),
		"mode":        mode,
	}).Info("Analysis job created")

	return job, nil
}

// Get loads a job by id.
func (js *JobStore) Get(ctx context.Context, id string) (*AnalysisJob, error) {
	var job AnalysisJob
	if err := js.storage.Load(ctx, jobKey(id), &job); err != nil {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

// List returns indexed jobs, newest first.
func (js *JobStore) List(ctx context.Context) ([]*AnalysisJob, error) {
	var ids []string
	if err := js.storage.Load(ctx, jobIndexKey, &ids); err != nil {
		return []*AnalysisJob{}, nil
	}

	jobs := make([]*AnalysisJob, 0, len(ids))
	for _, id := range ids {
		var job AnalysisJob
		if err := js.storage.Load(ctx, jobKey(id), &job); err != nil {
			js.log.WithError(err).WithField("analysis_id", id).Warn("Failed to load job")
			continue
		}
		jobs = append(jobs, &job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// MarkRunning transitions a pending job to running.
func (js *JobStore) MarkRunning(ctx context.Context, id string) error {
	return js.update(ctx, id, func(job *AnalysisJob) {
		job.Status = JobRunning
	})
}

// UpdateProgress records how many keywords have finished.
func (js *JobStore) UpdateProgress(ctx context.Context, id string, done int) error {
	return js.update(ctx, id, func(job *AnalysisJob) {
		job.Progress = done
	})
}

// Complete attaches results and summary and marks the job completed.
func (js *JobStore) Complete(ctx context.Context, id string, results, summary interface{}) error {
	now := time.Now().UTC()
	return js.update(ctx, id, func(job *AnalysisJob) {
		job.Status = JobCompleted
		job.CompletedAt = &now
		job.Progress = job.Total
		job.Results = results
		job.Summary = summary
	})
}

// Fail marks the job failed with its cause.
func (js *JobStore) Fail(ctx context.Context, id string, cause error) error {
	now := time.Now().UTC()
	return js.update(ctx, id, func(job *AnalysisJob) {
		job.Status = JobFailed
		job.CompletedAt = &now
		if cause != nil {
			job.Error = cause.Error()
		}
	})
}

// Delete removes a job and its index entry.
func (js *JobStore) Delete(ctx context.Context, id string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if err := js.storage.Delete(ctx, jobKey(id)); err != nil {
		return err
	}

	var ids []string
	if err := js.storage.Load(ctx, jobIndexKey, &ids); err != nil {
		return nil
	}
	remaining := ids[:0]
	for _, existing := range ids {
		if existing != id {
			remaining = append(remaining, existing)
		}
	}
	return js.storage.Save(ctx, jobIndexKey, remaining)
}

func (js *JobStore) update(ctx context.Context, id string, mutate func(*AnalysisJob)) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	var job AnalysisJob
	if err := js.storage.Load(ctx, jobKey(id), &job); err != nil {
		return ErrJobNotFound
	}

	mutate(&job)

	if err := js.storage.Save(ctx, jobKey(id), &job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// addToIndex prepends the id to the job index, newest first.
func (js *JobStore) addToIndex(ctx context.Context, id string) error {
	var ids []string
	_ = js.storage.Load(ctx, jobIndexKey, &ids)

	ids = append([]string{id}, ids...)
	if len(ids) > maxIndexedJobs {
		ids = ids[:maxIndexedJobs]
	}

	return js.storage.Save(ctx, jobIndexKey, ids)
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
