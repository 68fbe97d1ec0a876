package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"visibility-go/internal/config"
	"visibility-go/pkg/backend"
	"visibility-go/pkg/detector"
	"visibility-go/pkg/logger"
	"visibility-go/pkg/storage"
)

// MonitoringPipeline fans a finished run out to its side channels: JSON
// export, change detection against the previous snapshot, and optional
// webhook submission. Side-channel failures are logged, never fatal; the
// analysis already succeeded.
type MonitoringPipeline struct {
	cfg       *config.Config
	runner    AnalysisRunner
	exporter  *storage.DataExporter
	history   detector.HistoryManager
	changes   detector.ChangeDetector
	converter *backend.DataConverter
	pool      *backend.SubmissionPool // nil when the webhook is disabled
	log       *logger.Logger
}

// NewMonitoringPipeline wires the pipeline over a shared storage backend.
// pool may be nil; webhook submission is skipped then.
func NewMonitoringPipeline(cfg *config.Config, runner AnalysisRunner, store storage.Storage, pool *backend.SubmissionPool) *MonitoringPipeline {
	return &MonitoringPipeline{
		cfg:       cfg,
		runner:    runner,
		exporter:  storage.NewDataExporter(cfg.Storage.ExportDir),
		history:   detector.NewSnapshotHistoryManager(store),
		changes:   detector.NewVisibilityChangeDetector(store),
		converter: backend.NewDataConverter(),
		pool:      pool,
		log:       logger.GetLogger().WithField("component", "monitoring_pipeline"),
	}
}

// RunOnce executes one scheduled run with the configured defaults and
// processes the outcome. This is what the cron scheduler calls.
func (p *MonitoringPipeline) RunOnce(ctx context.Context) error {
	req := AnalysisRequest{} // all defaults from config

	outcome, err := p.runner.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("scheduled analysis failed: %w", err)
	}

	p.Consume(ctx, req, outcome)
	return nil
}

// Consume processes one finished run: export, diff against the previous
// snapshot, snapshot, submit. Implements ResultSink.
func (p *MonitoringPipeline) Consume(ctx context.Context, req AnalysisRequest, outcome *AnalysisOutcome) {
	if outcome == nil || len(outcome.Results) == 0 {
		return
	}

	brand := req.BrandDomain
	if brand == "" {
		brand = p.cfg.Monitor.BrandDomain
	}
	mode := req.Mode
	if mode == "" {
		mode = p.cfg.Monitor.Mode
	}

	p.export(brand, mode, outcome)
	p.detectAndSnapshot(ctx, brand, outcome)
	p.submit(brand, mode, outcome)
}

func (p *MonitoringPipeline) export(brand, mode string, outcome *AnalysisOutcome) {
	path, err := p.exporter.ExportResults(outcome.Results, outcome.Summary, map[string]interface{}{
		"brand": brand,
		"mode":  mode,
	})
	if err != nil {
		p.log.WithError(err).Warn("Results export failed")
		return
	}
	p.log.WithField("file", path).Debug("Results exported")
}

func (p *MonitoringPipeline) detectAndSnapshot(ctx context.Context, brand string, outcome *AnalysisOutcome) {
	// Diff against the previous snapshot before overwriting it. A missing
	// snapshot just means this is the first run for the brand.
	previous, err := p.history.GetLatestSnapshot(ctx, brand)
	if err == nil {
		changeSet, detectErr := p.changes.DetectChanges(ctx, brand, previous, outcome.Results)
		if detectErr != nil {
			p.log.WithError(detectErr).Warn("Change detection failed")
		} else {
			if saveErr := p.changes.SaveChangeSet(ctx, changeSet); saveErr != nil {
				p.log.WithError(saveErr).Warn("Failed to record change set")
			}
			if len(changeSet.Changes) > 0 {
				p.log.WithFields(map[string]interface{}{
					"brand":    brand,
					"improved": changeSet.TotalImproved,
					"degraded": changeSet.TotalDegraded,
					"neutral":  changeSet.TotalNeutral,
				}).Info("Visibility changes detected")
			}
		}
	}

	if err := p.history.SaveSnapshot(ctx, brand, outcome.Results); err != nil {
		p.log.WithError(err).Warn("Failed to save snapshot")
	}
}

func (p *MonitoringPipeline) submit(brand, mode string, outcome *AnalysisOutcome) {
	if p.pool == nil {
		return
	}

	records := p.converter.ConvertResults(uuid.NewString(), brand, mode, outcome.Results)
	if len(records) == 0 {
		return
	}
	if !p.pool.Submit(records, nil) {
		p.log.WithField("record_count", len(records)).Warn("Webhook submission rejected, queue full or stopping")
	}
}
