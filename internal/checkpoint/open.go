package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
)

// Open returns the store selected by cfg.Checkpoint.Backend. File checkpoints
// live under stateDir.
func Open(ctx context.Context, cfg *config.Config, stateDir string) (Store, error) {
	switch cfg.Checkpoint.Backend {
	case config.BackendSQLite:
		dsn := cfg.Checkpoint.DSN
		if !filepath.IsAbs(dsn) && dsn != ":memory:" {
			dsn = filepath.Join(stateDir, dsn)
		}
		return OpenSQL(ctx, "sqlite3", dsn)
	case config.BackendPostgres:
		return OpenSQL(ctx, "postgres", cfg.Checkpoint.DSN)
	case config.BackendRedis:
		return OpenRedis(ctx, RedisConfig{
			Address:   cfg.Checkpoint.RedisURL,
			Password:  cfg.Checkpoint.Password,
			DB:        cfg.Checkpoint.RedisDB,
			KeyPrefix: cfg.Checkpoint.KeyPrefix,
		})
	case config.BackendFile, "":
		return NewFileStore(stateDir)
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend %q", cfg.Checkpoint.Backend)
	}
}

// Instrumented wraps a Store with save logging and metrics.
type Instrumented struct {
	Store
	logger  logger.Logger
	metrics *metrics.Metrics
}

// WithInstrumentation decorates s.
func WithInstrumentation(s Store, log logger.Logger, m *metrics.Metrics) *Instrumented {
	return &Instrumented{Store: s, logger: log, metrics: m}
}

// Save records the outcome of every save.
func (i *Instrumented) Save(ctx context.Context, name string, v any) error {
	if err := i.Store.Save(ctx, name, v); err != nil {
		i.metrics.CheckpointWrite(name, metrics.OutcomeFailure)
		i.logger.Error("Checkpoint save failed", logger.String("checkpoint", name), logger.Error(err))
		return err
	}
	i.metrics.CheckpointWrite(name, metrics.OutcomeSuccess)
	i.logger.Debug("Checkpoint saved", logger.String("checkpoint", name))
	return nil
}
