package config

import "time"

// Config is the full service configuration. Values come from an optional
// config file, VISIBILITY_-prefixed environment variables, and built-in
// defaults, in that order of precedence.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	DataForSEO DataForSEOConfig `mapstructure:"dataforseo"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Security   SecurityConfig   `mapstructure:"security"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DataForSEOConfig holds SERP API credentials. Also read from the bare
// DATAFORSEO_LOGIN / DATAFORSEO_PASSWORD variables (and .env) for
// compatibility with existing deployments.
type DataForSEOConfig struct {
	Login    string `mapstructure:"login"`
	Password string `mapstructure:"password"`
}

// MonitorConfig holds the default analysis parameters. HTTP requests may
// override brand, competitors, and query context per call; scheduled runs
// use these values as-is.
type MonitorConfig struct {
	BrandDomain     string        `mapstructure:"brand_domain"`
	Competitors     []string      `mapstructure:"competitors"`
	Keywords        []string      `mapstructure:"keywords"`
	Location        string        `mapstructure:"location"`
	Device          string        `mapstructure:"device"`
	Language        string        `mapstructure:"language"`
	Mode            string        `mapstructure:"mode"`
	Workers         int           `mapstructure:"workers"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
}

type StorageConfig struct {
	DataDir   string        `mapstructure:"data_dir"`
	ExportDir string        `mapstructure:"export_dir"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	LogSensitive  bool   `mapstructure:"log_sensitive"`
}

// BackendConfig configures the optional results webhook. Submission is
// enabled when URL is non-empty.
type BackendConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	BatchSize  int           `mapstructure:"batch_size"`
	EnableGzip bool          `mapstructure:"enable_gzip"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (b BackendConfig) Enabled() bool {
	return b.URL != ""
}

// SchedulerConfig configures recurring analysis runs.
type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
