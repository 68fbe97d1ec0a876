package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimpleTracker_FailedQueryLifecycle(t *testing.T) {
	storage := NewMemoryStorage()
	tracker := NewSimpleTracker(storage)
	ctx := context.Background()

	records := []FailedQueryRecord{
		{Keyword: "best diabetes treatment", Location: "United States", Device: "desktop"},
		{Keyword: "diabetes symptoms", Location: "United States", Device: "desktop"},
	}

	// Test 1: Save failed queries
	err := tracker.SaveFailedQueries(ctx, records, errors.New("rate limited"))
	if err != nil {
		t.Fatalf("Expected no error saving failed queries, got: %v", err)
	}

	// Test 2: First-attempt records are not yet retryable (5m backoff)
	retryable, err := tracker.GetRetryableQueries(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(retryable) != 0 {
		t.Errorf("Expected 0 retryable queries inside the backoff window, got %d", len(retryable))
	}

	// Test 3: Re-failing the same keyword bumps the retry count
	err = tracker.SaveFailedQueries(ctx, records[:1], errors.New("rate limited again"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var stored []FailedQueryRecord
	if err := storage.Load(ctx, failedQueriesKey, &stored); err != nil {
		t.Fatalf("Expected stored records, got: %v", err)
	}
	for _, rec := range stored {
		if rec.Keyword == "best diabetes treatment" && rec.RetryCount != 2 {
			t.Errorf("Expected retry count 2 after second failure, got %d", rec.RetryCount)
		}
		if rec.Keyword == "diabetes symptoms" && rec.RetryCount != 1 {
			t.Errorf("Expected retry count 1 for untouched record, got %d", rec.RetryCount)
		}
	}

	// Test 4: Successful keywords are removed
	err = tracker.RemoveSuccessfulQueries(ctx, []string{"best diabetes treatment"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	stored = nil
	if err := storage.Load(ctx, failedQueriesKey, &stored); err != nil {
		t.Fatalf("Expected stored records, got: %v", err)
	}
	if len(stored) != 1 || stored[0].Keyword != "diabetes symptoms" {
		t.Errorf("Expected only the unresolved keyword to remain, got %+v", stored)
	}
}

func TestSimpleTracker_RetryableAfterBackoff(t *testing.T) {
	storage := NewMemoryStorage()
	tracker := NewSimpleTracker(storage)
	ctx := context.Background()

	// Plant a record whose retry window has already elapsed.
	past := time.Now().Add(-time.Minute)
	planted := []FailedQueryRecord{{
		Keyword:     "ai visibility tools",
		Location:    "United Kingdom",
		Device:      "mobile",
		FailedAt:    past.Add(-5 * time.Minute),
		RetryCount:  1,
		NextRetryAt: past,
	}}
	if err := storage.Save(ctx, failedQueriesKey, planted); err != nil {
		t.Fatalf("Expected no error planting record, got: %v", err)
	}

	retryable, err := tracker.GetRetryableQueries(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(retryable) != 1 {
		t.Fatalf("Expected 1 retryable query, got %d", len(retryable))
	}
	if retryable[0].Keyword != "ai visibility tools" {
		t.Errorf("Expected planted keyword, got %q", retryable[0].Keyword)
	}
	if retryable[0].Device != "mobile" {
		t.Errorf("Expected original device to survive, got %q", retryable[0].Device)
	}
}

func TestNextRetryTime_BackoffSchedule(t *testing.T) {
	// Each attempt pushes the retry further out; attempts beyond the
	// schedule stay at the slowest cadence.
	prev := time.Duration(0)
	for attempt := 1; attempt <= 6; attempt++ {
		delay := time.Until(nextRetryTime(attempt))
		if delay < prev {
			t.Errorf("attempt %d delay %v is shorter than attempt %d", attempt, delay, attempt-1)
		}
		prev = delay
	}

	if delay := time.Until(nextRetryTime(20)); delay > 25*time.Hour {
		t.Errorf("deep retry delay %v exceeds the slowest cadence", delay)
	}
}
