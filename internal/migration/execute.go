package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/orchestrator"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/reconcile"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/report"
)

const (
	answerRetry  = "RETRY"
	answerCancel = "CANCEL"
)

// Confirm writes the plan and asks the operator to approve it. RETRY writes
// the plan again and re-asks; CANCEL returns ErrCancelled. A preset
// ConfirmToken skips the prompt unless discovery flagged the run for review.
func (p *Pipeline) Confirm(
	ctx context.Context,
	disc *domain.DiscoveryResult,
	batch *domain.ExtractionBatch,
	cat *domain.ReconciledCatalog,
) (orchestrator.Confirmation, error) {
	log := p.deps.Logger

	reviewRequired := disc != nil && disc.ReviewRequired
	if p.opts.ConfirmToken != "" {
		if !reviewRequired {
			if _, err := p.Report(disc, batch, cat); err != nil {
				return orchestrator.Confirmation{}, err
			}
			return orchestrator.Confirm(p.opts.ConfirmToken)
		}
		log.Warn("Ignoring preset confirmation: discovery requires operator review")
	}

	for {
		artifacts, err := p.Report(disc, batch, cat)
		if err != nil {
			return orchestrator.Confirmation{}, err
		}

		regenerate := false
		for !regenerate {
			answer, askErr := p.deps.Operator.Confirm(ctx, artifacts.Markdown)
			if askErr != nil {
				return orchestrator.Confirmation{}, fmt.Errorf("confirmation: %w", askErr)
			}

			if confirmation, confirmErr := orchestrator.Confirm(answer); confirmErr == nil {
				log.Info("Execution approved")
				return confirmation, nil
			}

			switch strings.ToUpper(strings.TrimSpace(answer)) {
			case answerRetry:
				log.Info("Regenerating migration plan")
				regenerate = true
			case answerCancel:
				log.Info("Migration cancelled at confirmation")
				return orchestrator.Confirmation{}, ErrCancelled
			default:
				p.deps.Operator.Notify("Invalid choice. Type exactly 'APPROVED' (case-sensitive), 'RETRY' or 'CANCEL'.")
			}
		}
	}
}

// Execute writes cat to the target catalog and prints the outcome. A saved
// execution checkpoint keeps its run ID; otherwise a new one is assigned.
func (p *Pipeline) Execute(
	ctx context.Context,
	confirmation orchestrator.Confirmation,
	cat *domain.ReconciledCatalog,
) (*domain.ExecutionResult, error) {
	runID := uuid.NewString()

	result, err := p.deps.Executor.Execute(ctx, confirmation, cat, runID)
	if result != nil {
		report.RenderExecution(p.deps.Out, result)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.deps.Logger.Warn("Execution interrupted; re-run to resume", logger.String("run_id", runID))
		}
		return result, fmt.Errorf("execute: %w", err)
	}

	p.deps.Logger.Info("Execution finished",
		logger.String("run_id", result.RunID),
		logger.Int("entities", result.EntityCount()),
		logger.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// LoadDiscovery reads the discovery checkpoint.
func LoadDiscovery(ctx context.Context, store checkpoint.Store) (*domain.DiscoveryResult, error) {
	out := &domain.DiscoveryResult{}
	return out, load(ctx, store, checkpoint.Discovery, out)
}

// LoadExtraction reads the bulk extraction checkpoint.
func LoadExtraction(ctx context.Context, store checkpoint.Store) (*domain.ExtractionBatch, error) {
	out := &domain.ExtractionBatch{}
	return out, load(ctx, store, checkpoint.Extraction, out)
}

// LoadCatalog reads the reconciled catalog checkpoint and checks its
// category tree, which may have been edited by hand.
func LoadCatalog(ctx context.Context, store checkpoint.Store) (*domain.ReconciledCatalog, error) {
	out := &domain.ReconciledCatalog{}
	if err := load(ctx, store, checkpoint.ReconciledCatalog, out); err != nil {
		return nil, err
	}
	if err := reconcile.Validate(&out.Tree); err != nil {
		return nil, fmt.Errorf("%s checkpoint: %w", checkpoint.ReconciledCatalog, err)
	}
	return out, nil
}

func load(ctx context.Context, store checkpoint.Store, name string, v any) error {
	found, err := store.Load(ctx, name, v)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrMissingCheckpoint, name)
	}
	return nil
}
