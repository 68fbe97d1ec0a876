package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"visibility-go/internal/config"
	"visibility-go/internal/handler"
	"visibility-go/internal/service"
	"visibility-go/pkg/backend"
	"visibility-go/pkg/logger"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/storage"
)

type Application struct {
	configPath string
}

func main() {
	app := &Application{}

	flag.StringVar(&app.configPath, "config", "", "Configuration file path (optional, environment variables work without one)")
	flag.Parse()

	if err := app.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (app *Application) Run() error {
	cfg, err := config.NewManager().Load(app.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.SetLogger(logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		TimeFormat: cfg.Logger.TimeFormat,
	}))
	srvLog := logger.GetLogger().WithField("component", "server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	jobs := storage.NewJobStore(store)
	runner := service.NewAnalysisService(cfg)

	var pool *backend.SubmissionPool
	if cfg.Backend.Enabled() {
		client, err := backend.NewBackendClient(backend.BackendConfig{
			BaseURL:    cfg.Backend.URL,
			APIKey:     cfg.Backend.APIKey,
			BatchSize:  cfg.Backend.BatchSize,
			EnableGzip: cfg.Backend.EnableGzip,
			Timeout:    cfg.Backend.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to configure backend submission: %w", err)
		}
		pool = backend.NewSubmissionPool(client, 3)
		pool.Start(ctx)
		defer pool.Stop()
		srvLog.WithField("url", cfg.Backend.URL).Info("Backend submission enabled")
	}

	pipeline := service.NewMonitoringPipeline(cfg, runner, store, pool)

	if cfg.Scheduler.Enabled {
		scheduler, err := monitor.NewScheduler(cfg.Scheduler.Cron, cfg.Scheduler.RunTimeout, pipeline.RunOnce)
		if err != nil {
			return fmt.Errorf("failed to configure scheduler: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer scheduler.Stop()
		srvLog.WithFields(map[string]interface{}{
			"cron":     cfg.Scheduler.Cron,
			"next_run": scheduler.NextRun(),
		}).Info("Scheduler enabled")
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:               "ai-visibility-monitor",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
	})
	fiberApp.Use(fiberrecover.New())
	fiberApp.Use(accessLog())

	controller := handler.NewAnalysisController(runner, jobs, pipeline, cfg.Scheduler.RunTimeout)
	controller.RegisterRoutes(fiberApp)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- fiberApp.Listen(addr)
	}()
	srvLog.WithField("addr", addr).Info("HTTP server listening")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigChan:
		srvLog.WithField("signal", sig.String()).Info("Shutdown signal received")
		if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
			srvLog.WithError(err).Warn("Forced shutdown after timeout")
		}
	}

	srvLog.Info("Server stopped")
	return nil
}

// newStore picks the persistence backend. An encryption key upgrades the
// file store to AES-GCM; an empty data dir keeps everything in memory.
func newStore(cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.DataDir == "" {
		return storage.NewMemoryStorage(), nil
	}
	if cfg.Security.EncryptionKey != "" {
		return storage.NewEncryptedFileStorage(storage.StorageConfig{
			DataDir:     cfg.Storage.DataDir,
			CacheSize:   cfg.Storage.CacheSize,
			EncryptData: true,
		}, cfg.Security.EncryptionKey)
	}
	return storage.NewFileStorage(cfg.Storage.DataDir)
}

// accessLog records one line per request through the structured logger.
func accessLog() fiber.Handler {
	accessLogger := logger.GetLogger().WithField("component", "http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		entry := accessLogger.WithFields(map[string]interface{}{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   status,
			"duration": time.Since(start).String(),
		})
		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
		return err
	}
}
