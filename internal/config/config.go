package config

import (
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

// Config is the full migrator configuration.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    logger.Config    `yaml:"logging"`
	LLM        LLMConfig        `yaml:"llm"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	VTEX       VTEXConfig       `yaml:"vtex"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AppConfig holds run-level settings.
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `env:"APP_ENV" yaml:"environment"`
	// StateDir holds file checkpoints and the report artifacts.
	StateDir string `env:"STATE_DIR" yaml:"state_dir"`
}

// RetryConfig is the backoff contract for calls to an external service.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	// InitialDelay is the base for rate-limit (429-class) backoff.
	InitialDelay time.Duration `yaml:"initial_delay"`
	// TransientDelay is the base for other retryable failures.
	TransientDelay time.Duration `yaml:"transient_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	Multiplier     float64       `yaml:"multiplier"`
	// SchemaAttempts bounds retries of responses that fail validation.
	SchemaAttempts int `yaml:"schema_attempts"`
}

// LLMConfig selects and configures the classification service provider.
type LLMConfig struct {
	Provider        string        `env:"LLM_PROVIDER"               yaml:"provider"`
	Model           string        `env:"LLM_MODEL,GEMINI_MODEL"     yaml:"model"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"          yaml:"anthropic_api_key"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"             yaml:"gemini_api_key"`
	GeminiBaseURL   string        `env:"GEMINI_BASE_URL"            yaml:"gemini_base_url"`
	MaxTokens       int64         `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	// RequestDelay paces consecutive model calls.
	RequestDelay time.Duration `yaml:"request_delay"`
	Retry        RetryConfig   `yaml:"retry"`
}

// DiscoveryConfig bounds URL discovery.
type DiscoveryConfig struct {
	MaxPages       int           `env:"DISCOVERY_MAX_PAGES" yaml:"max_pages"`
	MaxQueue       int           `yaml:"max_queue"`
	CrawlDelay     time.Duration `yaml:"crawl_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`
	BatchSize      int           `yaml:"batch_size"`
	BatchDelay     time.Duration `yaml:"batch_delay"`
	// IncludeURLs are operator overrides that are always selected.
	IncludeURLs      []string `yaml:"include_urls"`
	FetchMaxAttempts int      `yaml:"fetch_max_attempts"`
}

// ExtractionConfig bounds extraction payloads.
type ExtractionConfig struct {
	MaxHTMLBytes int `yaml:"max_html_bytes"`
	MaxImages    int `yaml:"max_images"`
	MinImageSize int `yaml:"min_image_size"`
	// DefaultBulkCount is used when the operator's quantity answer is invalid.
	DefaultBulkCount int `yaml:"default_bulk_count"`
}

// ReconcileConfig configures hierarchy reconciliation.
type ReconcileConfig struct {
	DefaultDepartment string `yaml:"default_department"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	// Backend is one of file, sqlite, postgres, redis.
	Backend   string `env:"CHECKPOINT_BACKEND" yaml:"backend"`
	DSN       string `env:"CHECKPOINT_DSN"     yaml:"dsn"`
	RedisURL  string `env:"REDIS_URL"          yaml:"redis_url"`
	Password  string `env:"REDIS_PASSWORD"     yaml:"redis_password"`
	RedisDB   int    `yaml:"redis_db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// VTEXConfig holds target catalog credentials and execution settings.
type VTEXConfig struct {
	Account     string `env:"VTEX_ACCOUNT_NAME" yaml:"account"`
	Environment string `env:"VTEX_ENVIRONMENT"  yaml:"environment"`
	AppKey      string `env:"VTEX_APP_KEY"      yaml:"app_key"`
	AppToken    string `env:"VTEX_APP_TOKEN"    yaml:"app_token"`
	// BaseURL and PricingBaseURL override the derived endpoints.
	BaseURL           string        `env:"VTEX_BASE_URL"     yaml:"base_url"`
	PricingBaseURL    string        `yaml:"pricing_base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	WarehouseID       string        `env:"VTEX_WAREHOUSE_ID" yaml:"warehouse_id"`
	InventoryQuantity int           `yaml:"inventory_quantity"`
	// DefaultBrand is assigned to products extracted without a brand.
	DefaultBrand string `yaml:"default_brand"`
	// Specifications enables writing product specification values.
	Specifications     bool        `yaml:"specifications"`
	SpecificationGroup string      `yaml:"specification_group"`
	Retry              RetryConfig `yaml:"retry"`
	// BreakerThreshold is the consecutive transport failure count that
	// stops further catalog calls for BreakerTimeout.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout"`
}

// MetricsConfig configures the optional metrics endpoint.
type MetricsConfig struct {
	Address string `env:"METRICS_ADDRESS" yaml:"address"`
}

// Load reads configuration from path with defaults and env overrides.
func Load(path string) (*Config, error) {
	return LoadWithDefaults[Config](path, SetDefaults)
}

// SetDefaults fills every unset field with its default.
func SetDefaults(c *Config) {
	setString(&c.App.Name, "catalog-migrator")
	setString(&c.App.Environment, "production")
	setString(&c.App.StateDir, "state")

	c.Logging.SetDefaults()

	setString(&c.LLM.Provider, "anthropic")
	if c.LLM.Model == "" {
		if c.LLM.Provider == ProviderGemini {
			c.LLM.Model = "gemini-2.5-flash"
		} else {
			c.LLM.Model = "claude-sonnet-4-5"
		}
	}
	setString(&c.LLM.GeminiBaseURL, "https://generativelanguage.googleapis.com/v1beta")
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 8192
	}
	setDuration(&c.LLM.Timeout, 2*time.Minute)
	setDuration(&c.LLM.RequestDelay, 500*time.Millisecond)
	setInt(&c.LLM.Retry.MaxAttempts, 5)
	setDuration(&c.LLM.Retry.InitialDelay, 2*time.Second)
	setDuration(&c.LLM.Retry.TransientDelay, time.Second)
	setDuration(&c.LLM.Retry.MaxDelay, 120*time.Second)
	if c.LLM.Retry.Multiplier == 0 {
		c.LLM.Retry.Multiplier = 2
	}
	setInt(&c.LLM.Retry.SchemaAttempts, 3)

	setInt(&c.Discovery.MaxPages, 100)
	setInt(&c.Discovery.MaxQueue, 500)
	setDuration(&c.Discovery.CrawlDelay, time.Second)
	setDuration(&c.Discovery.RequestTimeout, 30*time.Second)
	setInt(&c.Discovery.BatchSize, 50)
	setDuration(&c.Discovery.BatchDelay, 2*time.Second)
	setInt(&c.Discovery.FetchMaxAttempts, 3)

	setInt(&c.Extraction.MaxHTMLBytes, 200_000)
	setInt(&c.Extraction.MaxImages, 10)
	setInt(&c.Extraction.MinImageSize, 200)
	setInt(&c.Extraction.DefaultBulkCount, 10)

	setString(&c.Reconcile.DefaultDepartment, "General")

	setString(&c.Checkpoint.Backend, BackendFile)
	setString(&c.Checkpoint.RedisURL, "localhost:6379")
	setString(&c.Checkpoint.KeyPrefix, "catalog-migrator")

	setString(&c.VTEX.Environment, "vtexcommercestable")
	setDuration(&c.VTEX.Timeout, 30*time.Second)
	setString(&c.VTEX.WarehouseID, "1_1")
	setInt(&c.VTEX.InventoryQuantity, 100)
	setString(&c.VTEX.DefaultBrand, "Default")
	setString(&c.VTEX.SpecificationGroup, "Specifications")
	setInt(&c.VTEX.Retry.MaxAttempts, 5)
	setDuration(&c.VTEX.Retry.InitialDelay, 2*time.Second)
	setDuration(&c.VTEX.Retry.TransientDelay, time.Second)
	setDuration(&c.VTEX.Retry.MaxDelay, 120*time.Second)
	if c.VTEX.Retry.Multiplier == 0 {
		c.VTEX.Retry.Multiplier = 2
	}
	setInt(&c.VTEX.BreakerThreshold, 5)
	setDuration(&c.VTEX.BreakerTimeout, 30*time.Second)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}
