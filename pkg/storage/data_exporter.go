package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"visibility-go/pkg/logger"
)

// DataExporter writes completed analyses to plain JSON files for
// downstream tooling. Exports are snapshots; the storage backend stays
// the system of record.
type DataExporter struct {
	outputDir string
	log       *logger.Logger
}

// NewDataExporter creates an exporter rooted at outputDir.
func NewDataExporter(outputDir string) *DataExporter {
	return &DataExporter{
		outputDir: outputDir,
		log:       logger.GetLogger().WithField("component", "data_exporter"),
	}
}

// ExportPayload is the stable export file shape.
type ExportPayload struct {
	Results  interface{}            `json:"results"`
	Summary  interface{}            `json:"summary,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ExportResults writes one analysis run to
// ai_visibility_results_<timestamp>.json and returns the written path.
func (de *DataExporter) ExportResults(results, summary interface{}, metadata map[string]interface{}) (string, error) {
	if err := os.MkdirAll(de.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	payload := ExportPayload{
		Results:  results,
		Summary:  summary,
		Metadata: metadata,
	}
	if payload.Metadata == nil {
		payload.Metadata = map[string]interface{}{}
	}
	payload.Metadata["exported_at"] = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export payload: %w", err)
	}

	filename := fmt.Sprintf("ai_visibility_results_%s.json", time.Now().Format("20060102_150405"))
	filePath := filepath.Join(de.outputDir, filename)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	de.log.WithFields(map[string]interface{}{
		"file": filePath,
		"size": len(data),
	}).Info("Results exported")

	return filePath, nil
}

// ExportFailedQueries writes a human-readable summary of queries still
// awaiting retry.
func (de *DataExporter) ExportFailedQueries(ctx context.Context, storage Storage) (string, error) {
	if err := os.MkdirAll(de.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var records []FailedQueryRecord
	_ = storage.Load(ctx, failedQueriesKey, &records)

	summary := map[string]interface{}{
		"total_failed": len(records),
		"export_time":  time.Now().Format(time.RFC3339),
		"records":      records,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(de.outputDir, "failed_queries_summary.json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write failed-queries file: %w", err)
	}
	return filePath, nil
}
