package service

import (
	"context"
	"fmt"

	"visibility-go/internal/config"
	"visibility-go/pkg/logger"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/report"
)

// analysisMonitor is the slice of *monitor.VisibilityMonitor the service
// actually uses. Narrowing it here keeps the run path testable with a
// builder that injects a fake engine client.
type analysisMonitor interface {
	AnalyzeAll(ctx context.Context, keywords []string) ([]*monitor.KeywordResult, error)
	Close() error
}

// AnalysisService runs analyses against the configured SERP provider. Each
// run gets its own monitor: brand, competitors, and query context vary per
// request, and monitors carry per-run state (rate limiters, trackers).
type AnalysisService struct {
	cfg *config.Config
	log *logger.Logger

	// build turns a prepared builder into a monitor; tests swap it for
	// BuildForTesting with a fake client.
	build func(*monitor.MonitorConfigBuilder) (analysisMonitor, error)
}

// NewAnalysisService creates an analysis service over the given config.
func NewAnalysisService(cfg *config.Config) *AnalysisService {
	return &AnalysisService{
		cfg: cfg,
		log: logger.GetLogger().WithField("component", "analysis_service"),
		build: func(b *monitor.MonitorConfigBuilder) (analysisMonitor, error) {
			return b.Build()
		},
	}
}

// Run executes one analysis run end to end.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*AnalysisOutcome, error) {
	merged := s.applyDefaults(req)

	vm, err := s.build(s.configureBuilder(merged))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare analysis: %w", err)
	}
	defer func() {
		if closeErr := vm.Close(); closeErr != nil {
			s.log.WithError(closeErr).Warn("Monitor close failed")
		}
	}()

	results, err := vm.AnalyzeAll(ctx, merged.Keywords)
	if err != nil {
		return nil, err
	}

	return &AnalysisOutcome{
		Results: results,
		Summary: report.Summarize(results),
	}, nil
}

// applyDefaults fills request gaps from the service configuration.
func (s *AnalysisService) applyDefaults(req AnalysisRequest) AnalysisRequest {
	defaults := s.cfg.Monitor

	if req.BrandDomain == "" {
		req.BrandDomain = defaults.BrandDomain
	}
	if req.Competitors == nil {
		req.Competitors = defaults.Competitors
	}
	if len(req.Keywords) == 0 {
		req.Keywords = defaults.Keywords
	}
	if req.Location == "" {
		req.Location = defaults.Location
	}
	if req.Device == "" {
		req.Device = defaults.Device
	}
	if req.Language == "" {
		req.Language = defaults.Language
	}
	if req.Mode == "" {
		req.Mode = defaults.Mode
	}
	return req
}

func (s *AnalysisService) configureBuilder(req AnalysisRequest) *monitor.MonitorConfigBuilder {
	builder := monitor.NewMonitorConfigBuilder().
		WithCredentials(s.cfg.DataForSEO.Login, s.cfg.DataForSEO.Password).
		WithBrand(req.BrandDomain).
		WithCompetitors(req.Competitors).
		WithMode(req.Mode).
		WithLocation(req.Location).
		WithDevice(req.Device).
		WithLanguage(req.Language).
		WithWorkers(s.cfg.Monitor.Workers).
		WithRequestInterval(s.cfg.Monitor.RequestInterval).
		WithCacheConfig(s.cfg.Storage.CacheSize, s.cfg.Storage.CacheTTL)

	// Empty means the service runs on memory storage; the monitor keeps its
	// default dir for failed-query state.
	if s.cfg.Storage.DataDir != "" {
		builder = builder.WithDataDir(s.cfg.Storage.DataDir)
	}
	if s.cfg.Security.EncryptionKey != "" {
		builder = builder.WithEncryptionKey(s.cfg.Security.EncryptionKey)
	}
	return builder
}
