package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"visibility-go/internal/service"
	"visibility-go/pkg/logger"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/storage"
)

const serviceVersion = "1.0.0"

// AnalysisController exposes the analysis pipeline over HTTP. Analyze is
// asynchronous: the handler registers a job, kicks off a background run,
// and returns 202 with the job id; clients poll the analysis endpoints.
type AnalysisController struct {
	runner service.AnalysisRunner
	jobs   *storage.JobStore
	sink   service.ResultSink // optional, may be nil
	log    *logger.Logger

	runTimeout time.Duration
	startedAt  time.Time
}

// NewAnalysisController creates the controller. sink may be nil; completed
// runs are then only stored on the job.
func NewAnalysisController(runner service.AnalysisRunner, jobs *storage.JobStore, sink service.ResultSink, runTimeout time.Duration) *AnalysisController {
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &AnalysisController{
		runner:     runner,
		jobs:       jobs,
		sink:       sink,
		log:        logger.GetLogger().WithField("component", "analysis_controller"),
		runTimeout: runTimeout,
		startedAt:  time.Now(),
	}
}

// RegisterRoutes mounts all endpoints on the app.
func (h *AnalysisController) RegisterRoutes(app *fiber.App) {
	app.Get("/", h.Root)
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	v1.Post("/analyze", h.Analyze)
	v1.Get("/analysis/:id", h.GetAnalysis)
	v1.Get("/analysis/:id/status", h.GetAnalysisStatus)
	v1.Get("/analyses", h.ListAnalyses)
	v1.Get("/status", h.ServiceStatus)
}

// Analyze accepts an analysis request and starts a background run.
func (h *AnalysisController) Analyze(c *fiber.Ctx) error {
	var req service.AnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid request body",
			"details": err.Error(),
		})
	}

	if strings.TrimSpace(req.BrandDomain) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "brand_domain is required",
		})
	}
	keywords := cleanKeywords(req.Keywords)
	if len(keywords) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "at least one keyword is required",
		})
	}
	req.Keywords = keywords
	if req.Mode != "" && !monitor.ValidMode(req.Mode) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be 'fast' or 'comprehensive'",
		})
	}

	job, err := h.jobs.Create(c.Context(), req.BrandDomain, req.Mode, req.Keywords)
	if err != nil {
		h.log.WithError(err).Error("Failed to create analysis job")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create analysis job",
		})
	}

	go h.runJob(job.ID, req)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"analysis_id": job.ID,
		"status":      job.Status,
		"message":     "Analysis started. Poll /api/v1/analysis/{id} for results.",
	})
}

// runJob executes the analysis outside the request lifecycle. The job
// record is the only communication channel back to clients.
func (h *AnalysisController) runJob(jobID string, req service.AnalysisRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), h.runTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			h.log.WithFields(map[string]interface{}{
				"analysis_id": jobID,
				"panic":       r,
			}).Error("Analysis run panicked")
			_ = h.jobs.Fail(ctx, jobID, errors.New("internal error during analysis"))
		}
	}()

	if err := h.jobs.MarkRunning(ctx, jobID); err != nil {
		h.log.WithError(err).WithField("analysis_id", jobID).Warn("Failed to mark job running")
	}

	outcome, err := h.runner.Run(ctx, req)
	if err != nil {
		h.log.WithError(err).WithField("analysis_id", jobID).Error("Analysis run failed")
		_ = h.jobs.Fail(ctx, jobID, err)
		return
	}

	if err := h.jobs.Complete(ctx, jobID, outcome.Results, outcome.Summary); err != nil {
		h.log.WithError(err).WithField("analysis_id", jobID).Error("Failed to store analysis results")
		return
	}

	h.log.WithFields(map[string]interface{}{
		"analysis_id": jobID,
		"keywords":    len(outcome.Results),
	}).Info("Analysis completed")

	if h.sink != nil {
		h.sink.Consume(ctx, req, outcome)
	}
}

// GetAnalysis returns the full job record, results included once complete.
func (h *AnalysisController) GetAnalysis(c *fiber.Ctx) error {
	job, err := h.jobs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "analysis not found",
		})
	}
	return c.JSON(job)
}

// GetAnalysisStatus returns the lifecycle view of a job, without results.
func (h *AnalysisController) GetAnalysisStatus(c *fiber.Ctx) error {
	job, err := h.jobs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "analysis not found",
		})
	}
	return c.JSON(jobStatusView(job))
}

// ListAnalyses returns recent jobs, newest first, without results.
func (h *AnalysisController) ListAnalyses(c *fiber.Ctx) error {
	jobs, err := h.jobs.List(c.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list analyses")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list analyses",
		})
	}

	views := make([]fiber.Map, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobStatusView(job))
	}
	return c.JSON(fiber.Map{
		"analyses": views,
		"total":    len(views),
	})
}

// ServiceStatus reports uptime and job counts.
func (h *AnalysisController) ServiceStatus(c *fiber.Ctx) error {
	jobs, err := h.jobs.List(c.Context())
	if err != nil {
		jobs = nil
	}

	byStatus := map[string]int{}
	for _, job := range jobs {
		byStatus[job.Status]++
	}

	return c.JSON(fiber.Map{
		"service":   "ai-visibility-monitor",
		"version":   serviceVersion,
		"status":    "running",
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"jobs": fiber.Map{
			"total":     len(jobs),
			"by_status": byStatus,
		},
	})
}

func (h *AnalysisController) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *AnalysisController) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "AI Search Visibility Monitor API",
		"version": serviceVersion,
		"endpoints": []string{
			"POST /api/v1/analyze",
			"GET /api/v1/analysis/{id}",
			"GET /api/v1/analysis/{id}/status",
			"GET /api/v1/analyses",
			"GET /api/v1/status",
			"GET /health",
		},
	})
}

func jobStatusView(job *storage.AnalysisJob) fiber.Map {
	view := fiber.Map{
		"analysis_id": job.ID,
		"status":      job.Status,
		"brand":       job.BrandDomain,
		"progress":    job.Progress,
		"total":       job.Total,
		"created_at":  job.CreatedAt,
	}
	if job.Mode != "" {
		view["mode"] = job.Mode
	}
	if job.CompletedAt != nil {
		view["completed_at"] = job.CompletedAt
	}
	if job.Error != "" {
		view["error"] = job.Error
	}
	return view
}

func cleanKeywords(keywords []string) []string {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if trimmed := strings.TrimSpace(kw); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
