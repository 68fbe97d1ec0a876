package backend

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"visibility-go/pkg/logger"
)

type httpBackendClient struct {
	config BackendConfig
	client *fasthttp.Client
	log    *logger.Logger
}

// NewBackendClient creates a new backend webhook client
func NewBackendClient(config BackendConfig) (BackendClient, error) {
	if config.BatchSize == 0 {
		config.BatchSize = 50 // Default batch size
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second // Default timeout
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("backend API key is required - set VISIBILITY_BACKEND_API_KEY environment variable")
	}

	// Create reusable client with optimized settings
	client := &fasthttp.Client{
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxConnsPerHost:     100,
		MaxIdleConnDuration: 90 * time.Second,
	}

	return &httpBackendClient{
		config: config,
		client: client,
		log:    logger.GetLogger().WithField("component", "backend_client"),
	}, nil
}

// SubmitBatch submits a single batch of visibility records with optional
// GZIP compression
func (c *httpBackendClient) SubmitBatch(batch VisibilityBatch) (*BackendResponse, error) {
	c.log.WithField("batch_size", len(batch)).Debug("Submitting visibility batch")

	jsonData, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch data: %w", err)
	}

	var requestBody []byte
	var contentEncoding string

	if c.config.EnableGzip {
		var buf bytes.Buffer
		gzipWriter := gzip.NewWriter(&buf)

		if _, err := gzipWriter.Write(jsonData); err != nil {
			gzipWriter.Close()
			return nil, fmt.Errorf("failed to write to gzip: %w", err)
		}
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}

		requestBody = buf.Bytes()
		contentEncoding = "gzip"

		c.log.WithFields(map[string]interface{}{
			"original_size":     len(jsonData),
			"compressed_size":   len(requestBody),
			"compression_ratio": fmt.Sprintf("%.2f%%", float64(len(requestBody))/float64(len(jsonData))*100),
		}).Debug("Data compressed with GZIP")
	} else {
		requestBody = jsonData
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	url := c.config.BaseURL + "/api/v1/visibility-results/batch"
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-API-Key", c.config.APIKey)

	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}

	req.SetBody(requestBody)

	c.log.WithFields(map[string]interface{}{
		"url":              url,
		"content_encoding": contentEncoding,
		"request_size":     len(requestBody),
	}).Debug("Sending request to backend")

	err = c.client.DoTimeout(req, resp, c.config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var backendResp BackendResponse
	if err := json.Unmarshal(resp.Body(), &backendResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.log.WithFields(map[string]interface{}{
		"response_code":    backendResp.Code,
		"response_message": backendResp.Message,
		"batch_size":       len(batch),
	}).Info("Backend submission completed")

	return &backendResp, nil
}

// SubmitBatches splits records into batches and submits them sequentially
func (c *httpBackendClient) SubmitBatches(records []VisibilityRecord) error {
	if len(records) == 0 {
		c.log.Debug("No records to submit")
		return nil
	}

	totalBatches := (len(records) + c.config.BatchSize - 1) / c.config.BatchSize

	c.log.WithFields(map[string]interface{}{
		"total_records": len(records),
		"batch_size":    c.config.BatchSize,
		"total_batches": totalBatches,
	}).Info("Starting batch submission")

	successCount := 0
	failureCount := 0

	for i := 0; i < len(records); i += c.config.BatchSize {
		end := min(i+c.config.BatchSize, len(records))

		batchData := records[i:end]
		batchNum := i/c.config.BatchSize + 1

		resp, err := c.SubmitBatch(VisibilityBatch(batchData))
		if err != nil {
			c.log.WithError(err).WithField("batch_number", batchNum).Error("Batch submission failed")
			failureCount++
			continue
		}

		if resp.Code != 0 {
			c.log.WithFields(map[string]interface{}{
				"batch_number":     batchNum,
				"response_code":    resp.Code,
				"response_message": resp.Message,
			}).Error("Backend returned error")
			failureCount++
			continue
		}

		successCount++

		// Small delay between batches to avoid overwhelming the backend
		time.Sleep(100 * time.Millisecond)
	}

	c.log.WithFields(map[string]interface{}{
		"total_batches":      totalBatches,
		"successful_batches": successCount,
		"failed_batches":     failureCount,
		"success_rate":       fmt.Sprintf("%.1f%%", float64(successCount)/float64(totalBatches)*100),
	}).Info("Batch submission completed")

	if failureCount > 0 {
		return fmt.Errorf("failed to submit %d out of %d batches", failureCount, totalBatches)
	}

	return nil
}
