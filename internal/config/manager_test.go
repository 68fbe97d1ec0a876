package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := NewManager().Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Monitor.Mode != "fast" {
		t.Errorf("expected default mode fast, got %q", cfg.Monitor.Mode)
	}
	if cfg.Monitor.RequestInterval != time.Second {
		t.Errorf("expected default request interval 1s, got %v", cfg.Monitor.RequestInterval)
	}
	if cfg.Storage.CacheTTL != 15*time.Minute {
		t.Errorf("expected default cache TTL 15m, got %v", cfg.Storage.CacheTTL)
	}
	if cfg.Backend.Enabled() {
		t.Error("backend should be disabled by default")
	}
	if cfg.Scheduler.Enabled {
		t.Error("scheduler should be disabled by default")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("VISIBILITY_SERVER_PORT", "9191")
	t.Setenv("VISIBILITY_MONITOR_MODE", "comprehensive")
	t.Setenv("VISIBILITY_MONITOR_COMPETITORS", "rival.com,other.io")
	t.Setenv("DATAFORSEO_LOGIN", "user@example.com")
	t.Setenv("DATAFORSEO_PASSWORD", "secret")

	cfg, err := NewManager().Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("expected port 9191 from env, got %d", cfg.Server.Port)
	}
	if cfg.Monitor.Mode != "comprehensive" {
		t.Errorf("expected mode comprehensive from env, got %q", cfg.Monitor.Mode)
	}
	if len(cfg.Monitor.Competitors) != 2 || cfg.Monitor.Competitors[0] != "rival.com" {
		t.Errorf("expected competitors from env, got %v", cfg.Monitor.Competitors)
	}
	// Bare provider variables work without the VISIBILITY prefix.
	if cfg.DataForSEO.Login != "user@example.com" || cfg.DataForSEO.Password != "secret" {
		t.Errorf("expected credentials from bare env vars, got %+v", cfg.DataForSEO)
	}
}

func TestLoad_RejectsInvalidMode(t *testing.T) {
	t.Setenv("VISIBILITY_MONITOR_MODE", "turbo")

	if _, err := NewManager().Load(""); err == nil {
		t.Error("expected error for invalid analysis mode")
	}
}

func TestLoad_BackendURLRequiresAPIKey(t *testing.T) {
	t.Setenv("VISIBILITY_BACKEND_URL", "https://backend.example")

	if _, err := NewManager().Load(""); err == nil {
		t.Error("expected error when backend URL is set without an API key")
	}
}

func TestLoad_SchedulerRequiresCronBrandAndKeywords(t *testing.T) {
	t.Setenv("VISIBILITY_SCHEDULER_ENABLED", "true")

	if _, err := NewManager().Load(""); err == nil {
		t.Fatal("expected error when scheduler is enabled without a cron expression")
	}

	t.Setenv("VISIBILITY_SCHEDULER_CRON", "0 * * * *")
	if _, err := NewManager().Load(""); err == nil {
		t.Fatal("expected error when scheduler is enabled without a brand")
	}

	t.Setenv("VISIBILITY_MONITOR_BRAND_DOMAIN", "brand.com")
	if _, err := NewManager().Load(""); err == nil {
		t.Fatal("expected error when scheduler is enabled without keywords")
	}

	t.Setenv("VISIBILITY_MONITOR_KEYWORDS", "ai search,serp monitoring")
	cfg, err := NewManager().Load("")
	if err != nil {
		t.Fatalf("unexpected error with full scheduler config: %v", err)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Cron != "0 * * * *" {
		t.Errorf("scheduler config not loaded: %+v", cfg.Scheduler)
	}
	if len(cfg.Monitor.Keywords) != 2 {
		t.Errorf("expected 2 keywords, got %v", cfg.Monitor.Keywords)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9999
monitor:
  mode: comprehensive
  request_interval: 2s
storage:
  data_dir: /tmp/visibility-test
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	manager := NewManager()
	cfg, err := manager.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999 from file, got %d", cfg.Server.Port)
	}
	if cfg.Monitor.Mode != "comprehensive" {
		t.Errorf("expected mode from file, got %q", cfg.Monitor.Mode)
	}
	if cfg.Monitor.RequestInterval != 2*time.Second {
		t.Errorf("expected request interval 2s, got %v", cfg.Monitor.RequestInterval)
	}
	if cfg.Storage.DataDir != "/tmp/visibility-test" {
		t.Errorf("expected data dir from file, got %q", cfg.Storage.DataDir)
	}
	// Untouched keys keep their defaults.
	if cfg.Monitor.Location != "United States" {
		t.Errorf("expected default location, got %q", cfg.Monitor.Location)
	}

	if got := manager.GetConfig(); got == nil || got.Server.Port != 9999 {
		t.Error("GetConfig should return the loaded config")
	}
	if err := manager.Reload(); err != nil {
		t.Errorf("unexpected reload error: %v", err)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	if _, err := NewManager().Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for explicitly named missing config file")
	}
}

func TestReload_WithoutLoad(t *testing.T) {
	if err := NewManager().Reload(); err == nil {
		t.Error("expected error when reloading before load")
	}
}
