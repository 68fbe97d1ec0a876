package monitor

import (
	"fmt"
	"strings"
	"time"

	"visibility-go/pkg/domain"
	"visibility-go/pkg/serp"
)

// MonitorConfigBuilder implements Builder pattern for creating VisibilityMonitor
// Follows Single Responsibility Principle - only handles configuration building
type MonitorConfigBuilder struct {
	config MonitorConfig
	errors []error
}

// NewMonitorConfigBuilder creates a new configuration builder seeded with
// the package defaults (US, desktop, English, fast mode).
func NewMonitorConfigBuilder() *MonitorConfigBuilder {
	return &MonitorConfigBuilder{
		config: DefaultMonitorConfig(),
		errors: make([]error, 0),
	}
}

// WithCredentials sets the DataForSEO basic-auth credentials with validation
func (b *MonitorConfigBuilder) WithCredentials(login, password string) *MonitorConfigBuilder {
	if login == "" {
		b.errors = append(b.errors, fmt.Errorf("API login cannot be empty"))
		return b
	}
	if password == "" {
		b.errors = append(b.errors, fmt.Errorf("API password cannot be empty"))
		return b
	}

	b.config.Login = login
	b.config.Password = password
	return b
}

// WithBrand sets the brand domain that citation matching tracks. The raw
// value may be a bare domain or a full URL; it must survive normalization.
func (b *MonitorConfigBuilder) WithBrand(brandDomain string) *MonitorConfigBuilder {
	if brandDomain == "" {
		b.errors = append(b.errors, fmt.Errorf("brand domain cannot be empty"))
		return b
	}
	if domain.Normalize(brandDomain) == domain.Empty {
		b.errors = append(b.errors, fmt.Errorf("brand domain %q does not normalize to a usable domain", brandDomain))
		return b
	}

	b.config.BrandDomain = brandDomain
	return b
}

// WithCompetitors sets the competitor domains. Entries that fail to
// normalize are rejected here rather than silently dropped at match time.
func (b *MonitorConfigBuilder) WithCompetitors(competitors []string) *MonitorConfigBuilder {
	for i, comp := range competitors {
		if strings.TrimSpace(comp) == "" {
			b.errors = append(b.errors, fmt.Errorf("competitor #%d is empty", i+1))
			return b
		}
		if domain.Normalize(comp) == domain.Empty {
			b.errors = append(b.errors, fmt.Errorf("competitor #%d (%s) does not normalize to a usable domain", i+1, comp))
			return b
		}
	}

	b.config.Competitors = competitors
	return b
}

// WithMode selects the analysis mode with validation
func (b *MonitorConfigBuilder) WithMode(mode string) *MonitorConfigBuilder {
	if !ValidMode(mode) {
		b.errors = append(b.errors, fmt.Errorf("invalid mode %q (want %q or %q)", mode, ModeFast, ModeComprehensive))
		return b
	}

	b.config.Mode = mode
	return b
}

// WithLocation sets the SERP location with validation against the known
// location table.
func (b *MonitorConfigBuilder) WithLocation(location string) *MonitorConfigBuilder {
	if location == "" {
		b.errors = append(b.errors, fmt.Errorf("location cannot be empty"))
		return b
	}
	if _, ok := serp.LocationCode(location); !ok {
		b.errors = append(b.errors, fmt.Errorf("unsupported location: %s", location))
		return b
	}

	b.config.Location = location
	return b
}

// WithDevice sets the device profile with validation
func (b *MonitorConfigBuilder) WithDevice(device string) *MonitorConfigBuilder {
	if !serp.ValidDevice(device) {
		b.errors = append(b.errors, fmt.Errorf("invalid device %q (want desktop or mobile)", device))
		return b
	}

	b.config.Device = device
	return b
}

// WithLanguage sets the SERP language with validation
func (b *MonitorConfigBuilder) WithLanguage(language string) *MonitorConfigBuilder {
	if language == "" {
		b.errors = append(b.errors, fmt.Errorf("language cannot be empty"))
		return b
	}
	if _, ok := serp.LanguageCode(language); !ok {
		b.errors = append(b.errors, fmt.Errorf("unsupported language: %s", language))
		return b
	}

	b.config.Language = language
	return b
}

// WithWorkers sets the fast-mode worker count with validation
func (b *MonitorConfigBuilder) WithWorkers(count int) *MonitorConfigBuilder {
	if count <= 0 {
		b.errors = append(b.errors, fmt.Errorf("worker count must be positive, got: %d", count))
		return b
	}
	if count > 50 {
		b.errors = append(b.errors, fmt.Errorf("worker count too high (max 50), got: %d", count))
		return b
	}

	b.config.WorkerPoolSize = count
	return b
}

// WithRequestInterval sets the comprehensive-mode minimum gap between
// consecutive API calls.
func (b *MonitorConfigBuilder) WithRequestInterval(interval time.Duration) *MonitorConfigBuilder {
	if interval <= 0 {
		b.errors = append(b.errors, fmt.Errorf("request interval must be positive, got: %s", interval))
		return b
	}

	b.config.MinRequestInterval = interval
	return b
}

// WithDataDir sets where failed-query and history records are stored
func (b *MonitorConfigBuilder) WithDataDir(dir string) *MonitorConfigBuilder {
	if dir == "" {
		b.errors = append(b.errors, fmt.Errorf("data directory cannot be empty"))
		return b
	}

	b.config.DataDir = dir
	return b
}

// WithEncryptionKey sets the encryption key for securing stored data
func (b *MonitorConfigBuilder) WithEncryptionKey(key string) *MonitorConfigBuilder {
	if key == "" {
		b.errors = append(b.errors, fmt.Errorf("encryption key cannot be empty"))
		return b
	}
	if len(key) < 16 {
		b.errors = append(b.errors, fmt.Errorf("encryption key must be at least 16 characters long, got: %d", len(key)))
		return b
	}

	// Warn about weak keys
	if key == "default-visibility-key" || key == "test-encryption-key" {
		b.errors = append(b.errors, fmt.Errorf("using default encryption key is insecure - generate a strong random key"))
		return b
	}

	b.config.EncryptionKey = key
	return b
}

// WithCacheConfig sets the SERP response cache size and TTL
func (b *MonitorConfigBuilder) WithCacheConfig(size int, ttl time.Duration) *MonitorConfigBuilder {
	if size < 0 {
		b.errors = append(b.errors, fmt.Errorf("cache size cannot be negative, got: %d", size))
		return b
	}
	if size > 0 && ttl <= 0 {
		b.errors = append(b.errors, fmt.Errorf("cache TTL must be positive when caching is enabled, got: %s", ttl))
		return b
	}

	b.config.CacheSize = size
	b.config.CacheTTL = ttl
	return b
}

// Validate checks all configuration and returns any validation errors
func (b *MonitorConfigBuilder) Validate() error {
	if len(b.errors) == 0 {
		return nil
	}

	// Aggregate all errors into a single error message
	var errorMessages []string
	for _, err := range b.errors {
		errorMessages = append(errorMessages, err.Error())
	}

	return fmt.Errorf("configuration validation failed: %s", strings.Join(errorMessages, "; "))
}

// Build creates a VisibilityMonitor with validated configuration
// Returns error instead of panic - follows proper error handling
func (b *MonitorConfigBuilder) Build() (*VisibilityMonitor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	monitor, err := NewVisibilityMonitor(b.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create visibility monitor: %w", err)
	}
	return monitor, nil
}

// BuildForTesting creates a monitor over an injected engine client so
// tests never touch the live API. Credentials are not required.
func (b *MonitorConfigBuilder) BuildForTesting(client serp.EngineClient) (*VisibilityMonitor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	// Tests get in-memory storage and never touch the working tree.
	config := b.config
	config.DataDir = ""
	config.EncryptionKey = ""

	monitor, err := newVisibilityMonitorInternal(config, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create test monitor: %w", err)
	}
	return monitor, nil
}

// HasErrors returns true if there are any validation errors
func (b *MonitorConfigBuilder) HasErrors() bool {
	return len(b.errors) > 0
}

// GetErrors returns all validation errors
func (b *MonitorConfigBuilder) GetErrors() []error {
	return b.errors
}
