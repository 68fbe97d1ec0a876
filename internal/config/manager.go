package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"visibility-go/pkg/monitor"
	"visibility-go/pkg/serp"
)

type manager struct {
	mu     sync.RWMutex
	config *Config
	viper  *viper.Viper
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

// Load reads configuration. configPath may be empty: environment variables
// and defaults are enough to run. A .env file in the working directory is
// loaded first so DATAFORSEO_LOGIN/PASSWORD deployments keep working.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Missing .env is fine.
	_ = godotenv.Load()

	m.setupViper()

	if configPath != "" {
		m.viper.SetConfigFile(configPath)
		if err := m.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	config, err := m.unmarshalAndValidate()
	if err != nil {
		return nil, err
	}

	m.config = config
	return config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		return fmt.Errorf("config not loaded")
	}

	if m.viper.ConfigFileUsed() != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to reload config: %w", err)
		}
	}

	config, err := m.unmarshalAndValidate()
	if err != nil {
		return err
	}

	m.config = config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (m *manager) setupViper() {
	m.viper.SetEnvPrefix("VISIBILITY")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	// Bare credential variables, matching the upstream provider's naming.
	_ = m.viper.BindEnv("dataforseo.login", "VISIBILITY_DATAFORSEO_LOGIN", "DATAFORSEO_LOGIN")
	_ = m.viper.BindEnv("dataforseo.password", "VISIBILITY_DATAFORSEO_PASSWORD", "DATAFORSEO_PASSWORD")

	// Defaults register every key with viper, which is what lets
	// AutomaticEnv values reach Unmarshal.
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)

	m.viper.SetDefault("dataforseo.login", "")
	m.viper.SetDefault("dataforseo.password", "")

	m.viper.SetDefault("monitor.brand_domain", "")
	m.viper.SetDefault("monitor.competitors", []string{})
	m.viper.SetDefault("monitor.keywords", []string{})
	m.viper.SetDefault("monitor.location", "United States")
	m.viper.SetDefault("monitor.device", "desktop")
	m.viper.SetDefault("monitor.language", "English")
	m.viper.SetDefault("monitor.mode", monitor.ModeFast)
	m.viper.SetDefault("monitor.workers", monitor.FastKeywordLimit)
	m.viper.SetDefault("monitor.request_interval", "1s")

	m.viper.SetDefault("storage.data_dir", "./data")
	m.viper.SetDefault("storage.export_dir", "./exports")
	m.viper.SetDefault("storage.cache_size", 256)
	m.viper.SetDefault("storage.cache_ttl", "15m")

	m.viper.SetDefault("security.encryption_key", "")
	m.viper.SetDefault("security.log_sensitive", false)

	m.viper.SetDefault("backend.url", "")
	m.viper.SetDefault("backend.api_key", "")
	m.viper.SetDefault("backend.batch_size", 50)
	m.viper.SetDefault("backend.enable_gzip", true)
	m.viper.SetDefault("backend.timeout", "60s")

	m.viper.SetDefault("scheduler.enabled", false)
	m.viper.SetDefault("scheduler.cron", "")
	m.viper.SetDefault("scheduler.run_timeout", "10m")

	m.viper.SetDefault("logger.level", getEnvOrDefault("LOG_LEVEL", "info"))
	m.viper.SetDefault("logger.format", "json")
	m.viper.SetDefault("logger.output", "stdout")
	m.viper.SetDefault("logger.time_format", "")
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if !monitor.ValidMode(config.Monitor.Mode) {
		return fmt.Errorf("invalid analysis mode: %q", config.Monitor.Mode)
	}
	if !serp.ValidDevice(config.Monitor.Device) {
		return fmt.Errorf("invalid device: %q", config.Monitor.Device)
	}
	if config.Monitor.Workers <= 0 {
		return fmt.Errorf("monitor workers must be positive")
	}
	if config.Monitor.RequestInterval <= 0 {
		return fmt.Errorf("request interval must be positive")
	}
	if config.Backend.Enabled() && config.Backend.APIKey == "" {
		return fmt.Errorf("backend.api_key is required when backend.url is set")
	}
	if config.Scheduler.Enabled {
		if config.Scheduler.Cron == "" {
			return fmt.Errorf("scheduler.cron is required when the scheduler is enabled")
		}
		if config.Monitor.BrandDomain == "" {
			return fmt.Errorf("monitor.brand_domain is required when the scheduler is enabled")
		}
		if len(config.Monitor.Keywords) == 0 {
			return fmt.Errorf("monitor.keywords is required when the scheduler is enabled")
		}
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
