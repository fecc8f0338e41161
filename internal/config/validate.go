package config

import (
	"errors"
	"fmt"
	"strings"
)

// LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Checkpoint backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// ValidationError describes an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s", e.Field, e.Message)
}

// FatalConfigError reports credentials or settings that are required by the
// command being run and are missing. No work starts when it is returned.
type FatalConfigError struct {
	Missing []string
	Purpose string
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("missing configuration for %s: %s", e.Purpose, strings.Join(e.Missing, ", "))
}

// IsFatal reports whether err is a FatalConfigError.
func IsFatal(err error) bool {
	var fatal *FatalConfigError
	return errors.As(err, &fatal)
}

// Validate checks structural settings. Credentials are checked per command
// by RequireLLM and RequireVTEX.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return &ValidationError{Field: "llm.provider", Message: fmt.Sprintf("unsupported provider %q", c.LLM.Provider)}
	}

	if c.LLM.Retry.MaxAttempts < 1 {
		return &ValidationError{Field: "llm.retry.max_attempts", Message: "must be at least 1"}
	}
	if c.LLM.Retry.SchemaAttempts < 1 {
		return &ValidationError{Field: "llm.retry.schema_attempts", Message: "must be at least 1"}
	}
	if c.LLM.Retry.Multiplier < 1 {
		return &ValidationError{Field: "llm.retry.multiplier", Message: "must be at least 1"}
	}

	if c.Discovery.MaxPages < 1 {
		return &ValidationError{Field: "discovery.max_pages", Message: "must be positive"}
	}
	if c.Discovery.MaxQueue < c.Discovery.MaxPages {
		return &ValidationError{Field: "discovery.max_queue", Message: "must be at least max_pages"}
	}
	if c.Discovery.BatchSize < 1 {
		return &ValidationError{Field: "discovery.batch_size", Message: "must be positive"}
	}

	if c.Extraction.MaxHTMLBytes < 1 {
		return &ValidationError{Field: "extraction.max_html_bytes", Message: "must be positive"}
	}
	if c.Extraction.MaxImages < 0 {
		return &ValidationError{Field: "extraction.max_images", Message: "must not be negative"}
	}

	if strings.TrimSpace(c.Reconcile.DefaultDepartment) == "" {
		return &ValidationError{Field: "reconcile.default_department", Message: "is required"}
	}

	switch c.Checkpoint.Backend {
	case BackendFile, BackendRedis:
	case BackendSQLite, BackendPostgres:
		if c.Checkpoint.DSN == "" {
			return &ValidationError{Field: "checkpoint.dsn", Message: "is required for " + c.Checkpoint.Backend}
		}
	default:
		return &ValidationError{Field: "checkpoint.backend", Message: fmt.Sprintf("unsupported backend %q", c.Checkpoint.Backend)}
	}

	if c.VTEX.InventoryQuantity < 0 {
		return &ValidationError{Field: "vtex.inventory_quantity", Message: "must not be negative"}
	}
	if c.VTEX.Retry.MaxAttempts < 1 {
		return &ValidationError{Field: "vtex.retry.max_attempts", Message: "must be at least 1"}
	}

	return nil
}

// RequireLLM returns a FatalConfigError when the selected provider has no key.
func (c *Config) RequireLLM() error {
	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return &FatalConfigError{Missing: []string{"GEMINI_API_KEY"}, Purpose: "the gemini classification service"}
		}
	default:
		if c.LLM.AnthropicAPIKey == "" {
			return &FatalConfigError{Missing: []string{"ANTHROPIC_API_KEY"}, Purpose: "the anthropic classification service"}
		}
	}
	return nil
}

// RequireVTEX returns a FatalConfigError listing every missing VTEX credential.
func (c *Config) RequireVTEX() error {
	var missing []string
	if c.VTEX.Account == "" && c.VTEX.BaseURL == "" {
		missing = append(missing, "VTEX_ACCOUNT_NAME")
	}
	if c.VTEX.AppKey == "" {
		missing = append(missing, "VTEX_APP_KEY")
	}
	if c.VTEX.AppToken == "" {
		missing = append(missing, "VTEX_APP_TOKEN")
	}
	if len(missing) > 0 {
		return &FatalConfigError{Missing: missing, Purpose: "the VTEX catalog"}
	}
	return nil
}
