package serp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"visibility-go/pkg/logger"
	"visibility-go/pkg/parser"
	"visibility-go/pkg/utils"
)

const (
	defaultBaseURL = "https://api.dataforseo.com"
	defaultTimeout = 30 * time.Second

	googlePath = "/v3/serp/google/organic/live/advanced"
	bingPath   = "/v3/serp/bing/organic/live/advanced"
)

// ClientConfig configures the SERP API client. Login/Password are the
// account's basic-auth credentials.
type ClientConfig struct {
	BaseURL         string        `json:"base_url"`
	Login           string        `json:"login"`
	Password        string        `json:"password"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	MaxConnsPerHost int           `json:"max_conns_per_host"`
	MaxRetries      int           `json:"max_retries"`
	RetryDelay      time.Duration `json:"retry_delay"`
}

// DefaultClientConfig returns settings tuned for live-SERP endpoints,
// which routinely take 5-15s per lookup.
func DefaultClientConfig(login, password string) ClientConfig {
	return ClientConfig{
		BaseURL:         defaultBaseURL,
		Login:           login,
		Password:        password,
		RequestTimeout:  defaultTimeout,
		MaxConnsPerHost: 20,
		MaxRetries:      1,
		RetryDelay:      2 * time.Second,
	}
}

type httpEngineClient struct {
	httpClient *fasthttp.Client
	baseURL    string
	authHeader string
	timeout    time.Duration
	retry      *SimpleRetry
	parsers    parser.ParserFactory
	cache      ResponseCache
	log        *logger.Logger
	secureLog  *logger.SecurityLogger

	// Metrics
	totalRequests  uint64
	failedRequests uint64
	cacheHits      uint64
	totalLatency   uint64
	lastError      atomic.Value
}

// NewClient creates a SERP API client with default settings
func NewClient(login, password string) (EngineClient, error) {
	return NewClientWithConfig(DefaultClientConfig(login, password))
}

// NewClientWithConfig creates a SERP API client with custom settings
func NewClientWithConfig(config ClientConfig) (EngineClient, error) {
	if config.Login == "" || config.Password == "" {
		return nil, &ConfigurationError{Field: "credentials", Reason: "login and password are required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultTimeout
	}
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = 20
	}

	auth := base64.StdEncoding.EncodeToString([]byte(config.Login + ":" + config.Password))

	return &httpEngineClient{
		httpClient: &fasthttp.Client{
			Name:                "visibility-go/1.0",
			MaxConnsPerHost:     config.MaxConnsPerHost,
			ReadTimeout:         config.RequestTimeout,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 90 * time.Second,
		},
		baseURL:    config.BaseURL,
		authHeader: "Basic " + auth,
		timeout:    config.RequestTimeout,
		retry:      NewSimpleRetry(config.MaxRetries, config.RetryDelay),
		parsers:    parser.GetParserFactory(),
		log:        logger.GetLogger().WithField("component", "serp_client"),
		secureLog:  logger.GetSecurityLogger(),
	}, nil
}

// SetCache attaches a response cache. Must be called before the client is
// shared across goroutines.
func (c *httpEngineClient) SetCache(cache ResponseCache) {
	c.cache = cache
}

func (c *httpEngineClient) Query(ctx context.Context, engine string, query KeywordQuery) (*parser.SERPPage, error) {
	if !ValidEngine(engine) {
		return nil, &ConfigurationError{Field: "engine", Reason: fmt.Sprintf("unknown engine %q", engine)}
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	atomic.AddUint64(&c.totalRequests, 1)
	start := time.Now()
	defer func() {
		atomic.AddUint64(&c.totalLatency, uint64(time.Since(start).Milliseconds()))
	}()

	cacheKey := utils.CalculateQueryHash(engine, query.Text, query.Location, query.Device, query.Language)
	if c.cache != nil {
		if payload, ok := c.cache.Get(cacheKey); ok {
			page, err := c.parsePayload(engine, payload)
			if err == nil {
				atomic.AddUint64(&c.cacheHits, 1)
				c.log.WithEngine(engine).WithField("keyword", query.Text).Debug("Served SERP from cache")
				return page, nil
			}
			// A cached payload that no longer parses is dropped silently;
			// the live request below replaces it.
		}
	}

	var page *parser.SERPPage
	err := c.retry.Execute(ctx, func() error {
		return c.doQuery(ctx, engine, query, cacheKey, &page)
	})

	if err != nil {
		atomic.AddUint64(&c.failedRequests, 1)
		c.lastError.Store(err.Error())
		c.secureLog.SafeError("SERP query failed", err, map[string]interface{}{
			"engine":  engine,
			"keyword": query.Text,
		})
		return nil, err
	}

	c.log.WithEngine(engine).WithFields(map[string]interface{}{
		"keyword":     query.Text,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("SERP query completed")
	return page, nil
}

// QueryBoth issues the Google and Bing lookups for one keyword
// concurrently and waits for both. Each side fails independently.
func (c *httpEngineClient) QueryBoth(ctx context.Context, query KeywordQuery) *EnginePair {
	pair := &EnginePair{}
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		pair.Google, pair.GoogleErr = c.Query(ctx, EngineGoogle, query)
	}()
	go func() {
		defer wg.Done()
		pair.Bing, pair.BingErr = c.Query(ctx, EngineBing, query)
	}()

	wg.Wait()
	return pair
}

func (c *httpEngineClient) doQuery(ctx context.Context, engine string, query KeywordQuery, cacheKey string, result **parser.SERPPage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	locationCode, knownLocation := LocationCode(query.Location)
	if !knownLocation {
		c.log.WithField("location", query.Location).Debug("Unknown location, defaulting to United States")
	}
	languageCode, _ := LanguageCode(query.Language)

	// The API takes an array of tasks; live lookups send exactly one.
	payload, err := json.Marshal([]taskRequest{{
		Keyword:      query.Text,
		LocationCode: locationCode,
		LanguageCode: languageCode,
		Device:       query.Device,
		OS:           osForDevice(query.Device),
	}})
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	req.SetRequestURI(c.baseURL + enginePath(engine))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)
	req.SetBody(payload)

	if err := c.httpClient.DoTimeout(req, resp, c.timeout); err != nil {
		return &UpstreamError{
			Kind:    classifyTransportError(err),
			Engine:  engine,
			Message: "transport failure",
			Err:     err,
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return &UpstreamError{
			Kind:       classifyHTTPStatus(resp.StatusCode()),
			Engine:     engine,
			StatusCode: resp.StatusCode(),
			Message:    truncate(string(resp.Body()), 200),
		}
	}

	// fasthttp reuses response buffers after release
	body := append([]byte(nil), resp.Body()...)

	page, err := c.parsePayload(engine, body)
	if err != nil {
		return err
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, body)
	}

	*result = page
	return nil
}

// parsePayload runs the engine's parser and maps its typed failures into
// the upstream error taxonomy.
func (c *httpEngineClient) parsePayload(engine string, payload []byte) (*parser.SERPPage, error) {
	p := c.parsers.GetParser(engine)
	if p == nil {
		return nil, &ConfigurationError{Field: "engine", Reason: fmt.Sprintf("no parser registered for %q", engine)}
	}

	page, err := p.Parse(payload)
	if err == nil {
		return page, nil
	}

	var taskErr *parser.TaskError
	if errors.As(err, &taskErr) {
		return nil, &UpstreamError{
			Kind:       classifyTaskStatus(taskErr.Code),
			Engine:     engine,
			StatusCode: taskErr.Code,
			Message:    taskErr.Message,
			Err:        err,
		}
	}

	return nil, &UpstreamError{
		Kind:    KindMalformed,
		Engine:  engine,
		Message: "undecodable payload",
		Err:     err,
	}
}

func (c *httpEngineClient) GetMetrics() ClientMetrics {
	total := atomic.LoadUint64(&c.totalRequests)
	latency := atomic.LoadUint64(&c.totalLatency)

	metrics := ClientMetrics{
		TotalRequests:  total,
		FailedRequests: atomic.LoadUint64(&c.failedRequests),
		CacheHits:      atomic.LoadUint64(&c.cacheHits),
	}
	if total > 0 {
		metrics.AvgLatencyMs = float64(latency) / float64(total)
	}
	if lastErr, ok := c.lastError.Load().(string); ok {
		metrics.LastError = lastErr
	}
	return metrics
}

func (c *httpEngineClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func enginePath(engine string) string {
	if engine == EngineBing {
		return bingPath
	}
	return googlePath
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
