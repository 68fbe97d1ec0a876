// Package monitor orchestrates SERP visibility analysis: it drives the
// DataForSEO client across both engines, runs feature extraction,
// citation matching and scoring, and assembles the per-keyword records.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"visibility-go/pkg/domain"
	"visibility-go/pkg/extractor"
	"visibility-go/pkg/logger"
	"visibility-go/pkg/matcher"
	"visibility-go/pkg/parser"
	"visibility-go/pkg/scorer"
	"visibility-go/pkg/serp"
	"visibility-go/pkg/storage"
	"visibility-go/pkg/worker"
)

// VisibilityMonitor coordinates one brand's visibility analysis. Safe for
// concurrent use; a server can run many batches against one instance.
type VisibilityMonitor struct {
	client           serp.EngineClient
	featureExtractor *extractor.FeatureExtractor
	storageService   storage.Storage
	failedTracker    *storage.SimpleTracker
	retryProcessor   *RetryProcessor

	// 并发控制：令牌桶按引擎限速，inFlight 限制同时进行的关键词数
	rateLimiters       *RateLimiterPool
	inFlight           *AtomicConcurrencyLimiter
	serpExecutor       *serp.SequentialExecutor
	concurrencyManager *AdaptiveConcurrencyManager
	timeoutCalculator  *worker.SmartTimeoutCalculator

	config    MonitorConfig
	log       *logger.Logger
	secureLog *logger.SecurityLogger

	closeOnce sync.Once
	closeErr  error
}

// MonitorMetrics aggregates the health counters exposed by /status.
type MonitorMetrics struct {
	Client      serp.ClientMetrics `json:"client"`
	Concurrency ConcurrencyStats   `json:"concurrency"`
	ErrorRate   float64            `json:"error_rate"`
	AvgResponse time.Duration      `json:"avg_response"`
	Lookups     int64              `json:"lookups"`
}

// NewVisibilityMonitor builds a monitor with a live DataForSEO client.
// Response caching is attached when the config enables it.
func NewVisibilityMonitor(config MonitorConfig) (*VisibilityMonitor, error) {
	client, err := serp.NewClient(config.Login, config.Password)
	if err != nil {
		return nil, err
	}
	if config.CacheSize > 0 {
		// SetCache lives on the concrete client, not the interface.
		if c, ok := client.(interface{ SetCache(serp.ResponseCache) }); ok {
			c.SetCache(storage.NewResponseCache(config.CacheSize, config.CacheTTL))
		}
	}
	return newVisibilityMonitorInternal(config, client)
}

// newVisibilityMonitorInternal wires the monitor around an injected engine
// client so tests can substitute a fake upstream.
func newVisibilityMonitorInternal(config MonitorConfig, client serp.EngineClient) (*VisibilityMonitor, error) {
	if client == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	if err := validateMonitorConfig(config); err != nil {
		return nil, err
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = DefaultMonitorConfig().WorkerPoolSize
	}
	if config.MinRequestInterval <= 0 {
		config.MinRequestInterval = DefaultMonitorConfig().MinRequestInterval
	}
	if limit := config.CompetitorLimit(); limit > 0 && len(config.Competitors) > limit {
		logger.GetLogger().WithFields(map[string]interface{}{
			"configured": len(config.Competitors),
			"kept":       limit,
		}).Warn("Competitor list truncated to mode limit")
		config.Competitors = config.Competitors[:limit]
	}

	log := logger.GetLogger().WithField("component", "visibility_monitor")

	// 存储层：优先加密文件存储，失败时回退内存存储
	var storageService storage.Storage
	storageConfig := storage.StorageConfig{
		DataDir:     config.DataDir,
		CacheSize:   100,
		EncryptData: config.EncryptionKey != "",
	}
	switch {
	case config.DataDir == "":
		storageService = storage.NewMemoryStorage()
	case config.EncryptionKey != "":
		encrypted, err := storage.NewEncryptedFileStorage(storageConfig, config.EncryptionKey)
		if err != nil {
			log.WithError(err).Warn("Encrypted storage unavailable, using in-memory storage")
			storageService = storage.NewMemoryStorage()
		} else {
			storageService = encrypted
		}
	default:
		files, err := storage.NewFileStorage(config.DataDir)
		if err != nil {
			log.WithError(err).Warn("File storage unavailable, using in-memory storage")
			storageService = storage.NewMemoryStorage()
		} else {
			storageService = files
		}
	}

	concurrency := DefaultConcurrencyConfig()
	concurrency.KeywordWorkers = config.WorkerPoolSize

	vm := &VisibilityMonitor{
		client:             client,
		featureExtractor:   extractor.NewFeatureExtractor(),
		storageService:     storageService,
		failedTracker:      storage.NewSimpleTracker(storageService),
		rateLimiters:       NewRateLimiterPool(concurrency.EngineRequestsPerSecond, concurrency.EngineBurst),
		inFlight:           NewAtomicConcurrencyLimiter(int(concurrency.MaxInFlight), concurrency.AcquireTimeout),
		serpExecutor:       serp.NewSequentialExecutor(config.MinRequestInterval),
		concurrencyManager: NewAdaptiveConcurrencyManager(concurrency),
		timeoutCalculator:  worker.NewSmartTimeoutCalculator(worker.DefaultPoolConfig().TimeoutConfig),
		config:             config,
		log:                log,
		secureLog:          logger.GetSecurityLogger(),
	}
	vm.retryProcessor = NewRetryProcessor(vm)

	log.WithFields(map[string]interface{}{
		"mode":        config.Mode,
		"brand":       domain.Normalize(config.BrandDomain),
		"competitors": len(config.Competitors),
		"workers":     config.WorkerPoolSize,
	}).Info("Visibility monitor initialized")

	return vm, nil
}

// Config returns a copy of the effective configuration after limit
// truncation and default filling.
func (vm *VisibilityMonitor) Config() MonitorConfig {
	cfg := vm.config
	cfg.Competitors = append([]string(nil), vm.config.Competitors...)
	return cfg
}

// AnalyzeKeyword analyzes a single keyword across both engines. Upstream
// failures degrade to a zero-signal record rather than an error; only
// configuration problems and context cancellation surface as errors.
func (vm *VisibilityMonitor) AnalyzeKeyword(ctx context.Context, keyword string) (*KeywordResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, &serp.ConfigurationError{Field: "keyword", Reason: "must not be empty"}
	}
	record, _, err := vm.analyzeOne(ctx, keyword)
	return record, err
}

// AnalyzeAll analyzes a keyword batch per the configured mode. Fast mode
// fans keywords out over the worker pool; comprehensive mode walks them
// sequentially with paced engine calls. Every attempted keyword yields
// exactly one record; keywords still unfinished when ctx expires yield
// none.
func (vm *VisibilityMonitor) AnalyzeAll(ctx context.Context, keywords []string) ([]*KeywordResult, error) {
	kws, err := vm.prepareKeywords(keywords)
	if err != nil {
		return nil, err
	}

	vm.retryProcessor.ProcessFailedQueriesAtStartup(ctx)

	vm.secureLog.SafeInfo("Starting keyword batch", map[string]interface{}{
		"keywords": vm.secureLog.MaskKeywords(kws),
		"count":    len(kws),
		"mode":     vm.config.Mode,
	})

	start := time.Now()
	var results []*KeywordResult
	if vm.config.Mode == ModeComprehensive {
		results = vm.analyzeSequentially(ctx, kws)
	} else {
		results = vm.analyzeConcurrently(ctx, kws)
	}

	vm.applyAdaptiveLimits()

	vm.log.WithFields(map[string]interface{}{
		"requested": len(kws),
		"completed": len(results),
		"duration":  time.Since(start).String(),
	}).Info("Keyword batch finished")

	return results, nil
}

// analyzeConcurrently runs fast-mode batches on the worker pool. Each
// keyword becomes one task; results are reassembled in input order.
func (vm *VisibilityMonitor) analyzeConcurrently(ctx context.Context, keywords []string) []*KeywordResult {
	poolConfig := worker.DefaultPoolConfig()
	poolConfig.Workers = min(vm.config.WorkerPoolSize, len(keywords))
	poolConfig.MaxQueueSize = max(poolConfig.MaxQueueSize, len(keywords))
	poolConfig.BufferSize = max(poolConfig.BufferSize, len(keywords))

	pool := worker.NewConcurrentPool(poolConfig)
	pool.Start()
	defer pool.Stop()

	progress := logger.NewProgressReporter(len(keywords), "Keyword analysis")
	byKeyword := make(map[string]*KeywordResult, len(keywords))
	taskKeyword := make(map[string]string, len(keywords))
	pending := 0
	for i, kw := range keywords {
		task := NewKeywordTask(i, kw, vm)
		if err := pool.Submit(task); err != nil {
			vm.secureLog.SafeError("Keyword task rejected", err, map[string]interface{}{
				"keyword_hash": vm.secureLog.GenerateHash(kw),
			})
			progress.Fail()
			byKeyword[kw] = newEmptyResult(kw, vm.config.Location, vm.config.Device)
			continue
		}
		taskKeyword[task.GetID()] = kw
		pending++
	}

	resultCh := pool.GetResultChannel()
	for pending > 0 {
		select {
		case res, ok := <-resultCh:
			if !ok {
				pending = 0
				break
			}
			pending--
			kw := taskKeyword[res.TaskID]
			if res.Success {
				if record, okData := res.Data.(*KeywordResult); okData && record != nil {
					progress.Update(1)
					byKeyword[record.Query] = record
					continue
				}
			}
			if kw == "" {
				continue
			}
			// Task-level failure (timeout, panic). The batch keeps going;
			// the keyword degrades to a zero record like an upstream error.
			if ctx.Err() == nil {
				progress.Fail()
				vm.trackFailure(ctx, kw, res.Error)
				byKeyword[kw] = newEmptyResult(kw, vm.config.Location, vm.config.Device)
			}
		case <-ctx.Done():
			pending = 0
		}
	}

	results := make([]*KeywordResult, 0, len(keywords))
	for _, kw := range keywords {
		if record, ok := byKeyword[kw]; ok {
			results = append(results, record)
		}
	}
	return results
}

// analyzeSequentially runs comprehensive-mode batches one keyword at a
// time; inter-request pacing happens in querySequential.
func (vm *VisibilityMonitor) analyzeSequentially(ctx context.Context, keywords []string) []*KeywordResult {
	progress := logger.NewProgressReporter(len(keywords), "Keyword analysis")
	results := make([]*KeywordResult, 0, len(keywords))
	for i, kw := range keywords {
		if ctx.Err() != nil {
			vm.log.WithFields(map[string]interface{}{
				"completed": len(results),
				"remaining": len(keywords) - i,
			}).Warn("Batch deadline reached, dropping unfinished keywords")
			break
		}
		record, answered, err := vm.analyzeOne(ctx, kw)
		if err != nil {
			// Only cancellation surfaces here.
			break
		}
		if answered {
			progress.Update(1)
		} else {
			progress.Fail()
		}
		results = append(results, record)
	}
	return results
}

// analyzeOne performs the full pipeline for one keyword: query both
// engines, extract features, match citations, score. Both engines failing
// degrades to a zero record and the keyword is queued for retry; answered
// reports whether at least one engine returned a page.
func (vm *VisibilityMonitor) analyzeOne(ctx context.Context, keyword string) (record *KeywordResult, answered bool, err error) {
	query := serp.KeywordQuery{
		Text:     keyword,
		Location: vm.config.Location,
		Device:   vm.config.Device,
		Language: vm.config.Language,
	}
	if verr := query.Validate(); verr != nil {
		return nil, false, verr
	}

	start := time.Now()
	var pair *serp.EnginePair
	if vm.config.Mode == ModeComprehensive {
		pair = vm.querySequential(ctx, query)
	} else {
		pair = vm.queryConcurrent(ctx, query)
	}
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	vm.concurrencyManager.UpdateMetrics(time.Since(start), pair.GoogleErr == nil && pair.BingErr == nil)

	if pair.GoogleErr != nil && pair.BingErr != nil {
		vm.trackFailure(ctx, keyword, pair.GoogleErr)
		vm.secureLog.SafeWarn("Both engines failed, emitting zero-signal record", map[string]interface{}{
			"keyword_hash": vm.secureLog.GenerateHash(keyword),
			"google_error": pair.GoogleErr.Error(),
			"bing_error":   pair.BingErr.Error(),
		})
		return newEmptyResult(keyword, vm.config.Location, vm.config.Device), false, nil
	}
	if pair.GoogleErr != nil {
		vm.log.WithError(pair.GoogleErr).WithEngine(serp.EngineGoogle).Warn("Engine lookup failed, scoring without it")
	}
	if pair.BingErr != nil {
		vm.log.WithError(pair.BingErr).WithEngine(serp.EngineBing).Warn("Engine lookup failed, scoring without it")
	}

	return vm.buildResult(keyword, pair), true, nil
}

// queryConcurrent reserves one token per engine up front, then lets the
// client fire both lookups together. The in-flight permit counts keyword
// pairs, not individual requests.
func (vm *VisibilityMonitor) queryConcurrent(ctx context.Context, query serp.KeywordQuery) *serp.EnginePair {
	for _, engine := range serp.Engines {
		if err := vm.rateLimiters.Wait(ctx, engine); err != nil {
			return &serp.EnginePair{GoogleErr: err, BingErr: err}
		}
	}
	if err := vm.inFlight.Acquire(ctx); err != nil {
		return &serp.EnginePair{GoogleErr: err, BingErr: err}
	}
	defer vm.inFlight.Release()

	return vm.client.QueryBoth(ctx, query)
}

// querySequential paces the two engine lookups through the shared
// executor so consecutive API calls keep the configured minimum gap.
func (vm *VisibilityMonitor) querySequential(ctx context.Context, query serp.KeywordQuery) *serp.EnginePair {
	pair := &serp.EnginePair{}
	for _, engine := range serp.Engines {
		var page *parser.SERPPage
		err := vm.serpExecutor.Execute(ctx, func() error {
			if werr := vm.rateLimiters.Wait(ctx, engine); werr != nil {
				return werr
			}
			if werr := vm.inFlight.Acquire(ctx); werr != nil {
				return werr
			}
			defer vm.inFlight.Release()

			var qerr error
			page, qerr = vm.client.Query(ctx, engine, query)
			return qerr
		})
		switch engine {
		case serp.EngineGoogle:
			pair.Google, pair.GoogleErr = page, err
		case serp.EngineBing:
			pair.Bing, pair.BingErr = page, err
		}
	}
	return pair
}

// buildResult assembles the wire record from both engines' extracted
// signals. A failed engine contributes zero-value signals only.
func (vm *VisibilityMonitor) buildResult(keyword string, pair *serp.EnginePair) *KeywordResult {
	res := newEmptyResult(keyword, vm.config.Location, vm.config.Device)

	gFlags, gCites := vm.featureExtractor.Extract(pair.Google)
	bFlags, bCites := vm.featureExtractor.Extract(pair.Bing)
	gMatch := matcher.Match(gCites, vm.config.BrandDomain, vm.config.Competitors)
	bMatch := matcher.Match(bCites, vm.config.BrandDomain, vm.config.Competitors)

	card := scorer.ScoreKeyword(
		scorer.EngineSignals{Flags: gFlags, Citations: gCites, Match: gMatch},
		scorer.EngineSignals{Flags: bFlags, Citations: bCites, Match: bMatch},
	)

	res.GoogleAIOverviewPresent = gFlags.AIOverviewPresent
	res.GoogleBrandCited = gMatch.BrandCited
	res.GoogleAICitations = append(res.GoogleAICitations, gCites...)
	for _, comp := range gMatch.Competitors {
		res.GoogleCompetitorCitations[comp] = gMatch.CompetitorCounts[comp]
	}

	res.BingAIFeatures = append(res.BingAIFeatures, bFlags.AIFeatures...)
	res.BingBrandVisibility = bMatch.BrandCited

	res.FeaturedSnippetPresent = gFlags.FeaturedSnippetPresent
	res.KnowledgeGraphPresent = gFlags.KnowledgeGraphPresent
	res.PeopleAlsoAskPresent = gFlags.PeopleAlsoAskPresent
	res.PeopleAlsoAskQueries = append(res.PeopleAlsoAskQueries, gFlags.PAAQuestions...)
	res.BingPeopleAlsoAskPresent = bFlags.PeopleAlsoAskPresent
	res.BingPeopleAlsoAskQueries = append(res.BingPeopleAlsoAskQueries, bFlags.PAAQuestions...)

	res.AIVisibilityScore = card.Brand
	for comp, score := range card.Competitors {
		res.CompetitorAIScores[comp] = score
	}
	res.AIDominanceRank = card.DominanceRank

	return res
}

// prepareKeywords trims, deduplicates, and truncates the batch to the
// mode's keyword limit.
func (vm *VisibilityMonitor) prepareKeywords(keywords []string) ([]string, error) {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	if len(out) == 0 {
		return nil, &serp.ConfigurationError{Field: "keywords", Reason: "at least one keyword is required"}
	}
	if limit := vm.config.KeywordLimit(); limit > 0 && len(out) > limit {
		vm.log.WithFields(map[string]interface{}{
			"requested": len(out),
			"kept":      limit,
			"mode":      vm.config.Mode,
		}).Warn("Keyword list truncated to mode limit")
		out = out[:limit]
	}
	return out, nil
}

// trackFailure queues a keyword for the startup retry pass.
func (vm *VisibilityMonitor) trackFailure(ctx context.Context, keyword string, cause error) {
	record := storage.FailedQueryRecord{
		Keyword:  keyword,
		Location: vm.config.Location,
		Device:   vm.config.Device,
		Language: vm.config.Language,
	}
	if err := vm.failedTracker.SaveFailedQueries(ctx, []storage.FailedQueryRecord{record}, cause); err != nil {
		vm.secureLog.SafeError("Failed to persist failed query", err, map[string]interface{}{
			"keyword_hash": vm.secureLog.GenerateHash(keyword),
		})
	}
}

// applyAdaptiveLimits pushes the manager's post-batch tuning into the
// live limiters.
func (vm *VisibilityMonitor) applyAdaptiveLimits() {
	cfg := vm.concurrencyManager.GetCurrentConfig()
	vm.rateLimiters.SetRate(cfg.EngineRequestsPerSecond)
	vm.inFlight.UpdateMaxConcurrent(int(cfg.MaxInFlight))
}

// GetMetrics reports client and concurrency health for the status
// endpoint.
func (vm *VisibilityMonitor) GetMetrics() MonitorMetrics {
	errorRate, avgResponse, lookups := vm.concurrencyManager.Snapshot()
	return MonitorMetrics{
		Client:      vm.client.GetMetrics(),
		Concurrency: vm.inFlight.GetStats(),
		ErrorRate:   errorRate,
		AvgResponse: avgResponse,
		Lookups:     lookups,
	}
}

// RetryStatus reports the failed-query backlog and retry progress.
func (vm *VisibilityMonitor) RetryStatus(ctx context.Context) map[string]interface{} {
	return vm.retryProcessor.GetStatus(ctx)
}

// Close releases the monitor's resources. Idempotent.
func (vm *VisibilityMonitor) Close() error {
	vm.closeOnce.Do(func() {
		var errs []string

		vm.retryProcessor.Stop()

		if err := safeClose("serp client", vm.client.Close); err != nil {
			errs = append(errs, err.Error())
		}
		if closer, ok := vm.storageService.(interface{ Close() error }); ok {
			if err := safeClose("storage", closer.Close); err != nil {
				errs = append(errs, err.Error())
			}
		}

		if len(errs) > 0 {
			vm.closeErr = fmt.Errorf("monitor close: %s", strings.Join(errs, "; "))
		}
		vm.log.Info("Visibility monitor closed")
	})
	return vm.closeErr
}

// safeClose shields shutdown from a panicking closer so one component
// cannot abort the rest of the teardown.
func safeClose(name string, closeFn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s close panicked: %v", name, r)
		}
	}()
	if cerr := closeFn(); cerr != nil {
		return fmt.Errorf("%s: %w", name, cerr)
	}
	return nil
}

// validateMonitorConfig rejects configurations that would make every
// lookup fail, before any API spend.
func validateMonitorConfig(config MonitorConfig) error {
	if domain.Normalize(config.BrandDomain) == domain.Empty {
		return &serp.ConfigurationError{Field: "brand_domain", Reason: "must normalize to a non-empty domain"}
	}
	if !ValidMode(config.Mode) {
		return &serp.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q, want %q or %q", config.Mode, ModeFast, ModeComprehensive)}
	}
	if !serp.ValidDevice(config.Device) {
		return &serp.ConfigurationError{Field: "device", Reason: fmt.Sprintf("unknown device %q", config.Device)}
	}
	if _, ok := serp.LocationCode(config.Location); !ok {
		return &serp.ConfigurationError{Field: "location", Reason: fmt.Sprintf("unsupported location %q", config.Location)}
	}
	if _, ok := serp.LanguageCode(config.Language); !ok {
		return &serp.ConfigurationError{Field: "language", Reason: fmt.Sprintf("unsupported language %q", config.Language)}
	}
	return nil
}
