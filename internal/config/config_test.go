package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
)

const sampleYAML = `
llm:
  provider: gemini
  retry:
    max_attempts: 4
discovery:
  max_pages: 20
  include_urls:
    - https://shop.test/p/featured
checkpoint:
  backend: sqlite
  dsn: state/checkpoints.db
vtex:
  account: fromfile
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)

	assert.Equal(t, config.ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LLM.Retry.InitialDelay)
	assert.Equal(t, 120*time.Second, cfg.LLM.Retry.MaxDelay)
	assert.Equal(t, 100, cfg.Discovery.MaxPages)
	assert.Equal(t, 500, cfg.Discovery.MaxQueue)
	assert.Equal(t, 50, cfg.Discovery.BatchSize)
	assert.Equal(t, 200_000, cfg.Extraction.MaxHTMLBytes)
	assert.Equal(t, "General", cfg.Reconcile.DefaultDepartment)
	assert.Equal(t, config.BackendFile, cfg.Checkpoint.Backend)
	assert.Equal(t, "1_1", cfg.VTEX.WarehouseID)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	t.Setenv("VTEX_ACCOUNT_NAME", "fromenv")
	t.Setenv("DISCOVERY_MAX_PAGES", "30")

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, config.ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 30, cfg.Discovery.MaxPages)
	assert.Equal(t, []string{"https://shop.test/p/featured"}, cfg.Discovery.IncludeURLs)
	assert.Equal(t, "fromenv", cfg.VTEX.Account)
	require.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"bad provider", func(c *config.Config) { c.LLM.Provider = "other" }, "llm.provider"},
		{"queue below pages", func(c *config.Config) { c.Discovery.MaxQueue = 10 }, "discovery.max_queue"},
		{"sql without dsn", func(c *config.Config) { c.Checkpoint.Backend = config.BackendPostgres }, "checkpoint.dsn"},
		{"unknown backend", func(c *config.Config) { c.Checkpoint.Backend = "s3" }, "checkpoint.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{}
			config.SetDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			var verr *config.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRequireVTEX_ListsMissing(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.SetDefaults(cfg)
	cfg.VTEX.Account = "store"

	err := cfg.RequireVTEX()
	require.Error(t, err)
	assert.True(t, config.IsFatal(err))

	var fatal *config.FatalConfigError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, []string{"VTEX_APP_KEY", "VTEX_APP_TOKEN"}, fatal.Missing)

	cfg.VTEX.AppKey, cfg.VTEX.AppToken = "k", "t"
	assert.NoError(t, cfg.RequireVTEX())
}

func TestRequireLLM(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.SetDefaults(cfg)
	assert.True(t, config.IsFatal(cfg.RequireLLM()))

	cfg.LLM.AnthropicAPIKey = "key"
	assert.NoError(t, cfg.RequireLLM())
}
