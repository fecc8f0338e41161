// Package common provides shared construction for the migrator commands.
package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/catalog"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/discovery"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/extraction"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/llm"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/migration"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/operator"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/orchestrator"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/reconcile"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/refinement"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/report"
)

// Viper keys bound by the root command.
const (
	KeyConfig   = "config"
	KeyDebug    = "app.debug"
	KeyStateDir = "app.state_dir"
	KeyMetrics  = "metrics.address"
)

// CommandDeps holds the dependencies shared by every command.
type CommandDeps struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// Needs lists the external services a command talks to. Their credentials
// are checked before any work starts.
type Needs struct {
	LLM  bool
	VTEX bool
}

// NewCommandDeps loads configuration, applies flag overrides bound in viper
// and builds the logger.
func NewCommandDeps() (*CommandDeps, error) {
	cfg, err := config.Load(viper.GetString(KeyConfig))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if viper.GetBool(KeyDebug) {
		cfg.Logging.Level = "debug"
	}
	if dir := viper.GetString(KeyStateDir); dir != "" {
		cfg.App.StateDir = dir
	}
	if addr := viper.GetString(KeyMetrics); addr != "" {
		cfg.Metrics.Address = addr
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(logger.String("service", cfg.App.Name))

	return &CommandDeps{Config: cfg, Logger: log, Metrics: metrics.New()}, nil
}

// Check returns a FatalConfigError when credentials for needs are missing.
func (d *CommandDeps) Check(needs Needs) error {
	if needs.LLM {
		if err := d.Config.RequireLLM(); err != nil {
			return err
		}
	}
	if needs.VTEX {
		if err := d.Config.RequireVTEX(); err != nil {
			return err
		}
	}
	return nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// OpenStore opens the configured checkpoint store.
func (d *CommandDeps) OpenStore(ctx context.Context) (checkpoint.Store, error) {
	store, err := checkpoint.Open(ctx, d.Config, d.Config.App.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return checkpoint.WithInstrumentation(store, d.Logger, d.Metrics), nil
}

// StartMetrics serves /metrics when an address is configured. The returned
// function stops the server.
func (d *CommandDeps) StartMetrics(ctx context.Context) func() {
	if d.Config.Metrics.Address == "" {
		return func() {}
	}

	srv := metrics.NewServer(d.Config.Metrics.Address, d.Metrics, d.Logger)
	errCh := srv.StartAsync()
	go func() {
		for err := range errCh {
			d.Logger.Error("Metrics server failed", logger.Error(err))
		}
	}()

	return func() {
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			d.Logger.Warn("Metrics server shutdown failed", logger.Error(err))
		}
	}
}

func (d *CommandDeps) fetcher(stage string) *fetcher.Fetcher {
	return fetcher.New(fetcher.Config{
		Timeout:     d.Config.Discovery.RequestTimeout,
		UserAgent:   d.Config.Discovery.UserAgent,
		MaxAttempts: d.Config.Discovery.FetchMaxAttempts,
		Stage:       stage,
	}, d.Logger.With(logger.String("component", stage+"_fetcher")), d.Metrics)
}

// Pipeline builds a migration pipeline with the stages needs allows. The
// console answers every operator prompt. Callers run Check first.
func (d *CommandDeps) Pipeline(
	store checkpoint.Store,
	console *operator.Console,
	needs Needs,
	opts migration.Options,
) (*migration.Pipeline, error) {
	cfg := d.Config
	log := d.Logger

	opts.Include = append(slices.Clone(cfg.Discovery.IncludeURLs), opts.Include...)
	if opts.DefaultBulkCount == 0 {
		opts.DefaultBulkCount = cfg.Extraction.DefaultBulkCount
	}

	deps := migration.Deps{
		Store:      store,
		Reconciler: reconcile.New(cfg.Reconcile, log.With(logger.String("component", "reconcile"))),
		Writer:     report.NewWriter(cfg.App.StateDir, log),
		Operator:   console,
		Logger:     log,
		Out:        os.Stdout,
	}

	if needs.LLM {
		service, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, err
		}
		invoker := llm.NewInvoker(service, cfg.LLM, log.With(logger.String("component", "llm")), d.Metrics)

		deps.Discoverer = discovery.NewEngine(
			cfg.Discovery,
			d.fetcher("discovery"),
			invoker,
			log.With(logger.String("component", "discovery")),
			d.Metrics,
		)

		extractLog := log.With(logger.String("component", "extraction"))
		engine := extraction.NewEngine(d.fetcher("extraction"), invoker, cfg.Extraction, extractLog, d.Metrics)
		deps.Sampler = refinement.NewMachine(engine, console, store, extractLog)
		deps.Bulk = refinement.NewBulk(engine, store, extractLog, d.Metrics)
	}

	if needs.VTEX {
		client, err := catalog.NewClient(cfg.VTEX, log, d.Metrics)
		if err != nil {
			return nil, fmt.Errorf("create catalog client: %w", err)
		}
		deps.Executor = orchestrator.New(
			client,
			store,
			cfg.VTEX,
			log.With(logger.String("component", "orchestrator")),
			d.Metrics,
		)
	}

	return migration.New(deps, opts), nil
}
