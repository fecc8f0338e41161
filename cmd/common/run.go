package common

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/migration"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/operator"
)

// StageFunc is the body of a pipeline command.
type StageFunc func(ctx context.Context, store checkpoint.Store, p *migration.Pipeline) error

// RunStage wires dependencies for a pipeline command and runs fn with a
// signal-aware context. The checkpoint store is closed and the logger synced
// afterwards.
func RunStage(cmd *cobra.Command, needs Needs, opts migration.Options, fn StageFunc) error {
	deps, err := NewCommandDeps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.Logger.Sync() }()

	if err = deps.Check(needs); err != nil {
		return err
	}

	ctx, cancel := SignalContext(cmd.Context())
	defer cancel()
	ctx = logger.WithContext(ctx, deps.Logger)

	stopMetrics := deps.StartMetrics(ctx)
	defer stopMetrics()

	store, err := deps.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			deps.Logger.Warn("Closing checkpoint store failed", logger.Error(closeErr))
		}
	}()

	if !operator.IsTerminal(os.Stdin) {
		deps.Logger.Info("Standard input is not a terminal; prompts read piped answers")
	}
	console := operator.NewConsole(os.Stdin, os.Stdout)

	pipeline, err := deps.Pipeline(store, console, needs, opts)
	if err != nil {
		return err
	}

	err = fn(ctx, store, pipeline)
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted; checkpoints are saved, re-run to resume: %w", err)
	}
	return err
}
