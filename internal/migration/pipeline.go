// Package migration runs the catalog migration stages in order, persisting a
// checkpoint between each so any stage can be re-run or resumed on its own.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/discovery"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/orchestrator"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/refinement"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/report"
)

var (
	// ErrCancelled is returned when the operator cancels at confirmation.
	ErrCancelled = errors.New("migration cancelled by operator")
	// ErrNoSelection is returned when discovery selected no URL to extract.
	ErrNoSelection = errors.New("no product URLs selected")
	// ErrMissingCheckpoint is returned when a stage runs before the stage
	// that produces its input.
	ErrMissingCheckpoint = errors.New("checkpoint not found")
)

// Discoverer finds candidate product pages.
type Discoverer interface {
	Discover(ctx context.Context, rootURL string) (*domain.DiscoveryResult, error)
}

// Sampler runs the refinement loop on one sample page.
type Sampler interface {
	Run(ctx context.Context, sampleURL, instructions string) (refinement.Approval, error)
}

// BulkExtractor extracts the remaining pages with approved instructions.
type BulkExtractor interface {
	Run(ctx context.Context, approval refinement.Approval, urls []string) (*domain.ExtractionBatch, error)
}

// Reconciler builds the target catalog from extraction records.
type Reconciler interface {
	Reconcile(records []domain.ExtractionRecord) (*domain.ReconciledCatalog, error)
}

// Executor writes a reconciled catalog to the target.
type Executor interface {
	Execute(
		ctx context.Context,
		confirmation orchestrator.Confirmation,
		cat *domain.ReconciledCatalog,
		runID string,
	) (*domain.ExecutionResult, error)
}

// PlanWriter persists the migration plan artifacts.
type PlanWriter interface {
	Write(p *report.Plan) (report.Artifacts, error)
}

// Operator answers the prompts that sit between stages.
type Operator interface {
	BulkQuantity(ctx context.Context, available int) (string, error)
	ReviewPossible(ctx context.Context, urls []string) ([]string, error)
	Confirm(ctx context.Context, planPath string) (string, error)
	Notify(format string, args ...any)
}

// Deps are the stage implementations a Pipeline drives. Only the ones used
// by the stages being run need to be set.
type Deps struct {
	Store      checkpoint.Store
	Discoverer Discoverer
	Sampler    Sampler
	Bulk       BulkExtractor
	Reconciler Reconciler
	Executor   Executor
	Writer     PlanWriter
	Operator   Operator
	Logger     logger.Logger
	// Out receives console tables. Nil discards them.
	Out io.Writer
}

// Options tune a run.
type Options struct {
	// Include are URLs always selected for extraction.
	Include []string
	// Rediscover ignores a saved discovery checkpoint for the same root.
	Rediscover bool
	// Quantity answers the bulk quantity prompt without asking.
	Quantity string
	// DefaultBulkCount is used when the quantity answer is invalid.
	DefaultBulkCount int
	// Instructions seed the sample extraction when no custom prompt was saved.
	Instructions string
	// ConfirmToken answers the confirmation prompt without asking. It is
	// ignored when discovery flagged the run for review.
	ConfirmToken string
}

// Pipeline runs migration stages.
type Pipeline struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &Pipeline{deps: deps, opts: opts, now: time.Now}
}

// Run executes every stage for rootURL. Stages with a saved checkpoint
// resume from it.
func (p *Pipeline) Run(ctx context.Context, rootURL string) (*domain.ExecutionResult, error) {
	disc, err := p.Discover(ctx, rootURL)
	if err != nil {
		return nil, err
	}

	batch, err := p.Extract(ctx, disc)
	if err != nil {
		return nil, err
	}

	cat, err := p.Reconcile(ctx, batch)
	if err != nil {
		return nil, err
	}

	confirmation, err := p.Confirm(ctx, disc, batch, cat)
	if err != nil {
		return nil, err
	}

	return p.Execute(ctx, confirmation, cat)
}

// Discover produces the discovery checkpoint for rootURL. A saved result for
// the same root is reused unless Rediscover is set. Possible product pages
// are offered to the operator, and their picks are selected.
func (p *Pipeline) Discover(ctx context.Context, rootURL string) (*domain.DiscoveryResult, error) {
	log := p.deps.Logger

	root, err := discovery.ParseRoot(rootURL)
	if err != nil {
		return nil, err
	}

	if !p.opts.Rediscover {
		saved := &domain.DiscoveryResult{}
		found, loadErr := p.deps.Store.Load(ctx, checkpoint.Discovery, saved)
		if loadErr != nil {
			return nil, fmt.Errorf("load discovery: %w", loadErr)
		}
		if found && saved.RootURL == root.String() {
			log.Info("Reusing discovery checkpoint",
				logger.URL(saved.RootURL),
				logger.Int("selected", len(saved.Selected)),
			)
			if len(p.opts.Include) > 0 {
				discovery.Select(saved, append(slices.Clone(saved.Selected), p.opts.Include...))
				if err = p.deps.Store.Save(ctx, checkpoint.Discovery, saved); err != nil {
					return nil, fmt.Errorf("save discovery: %w", err)
				}
			}
			return saved, nil
		}
	}

	result, err := p.deps.Discoverer.Discover(ctx, root.String())
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	overrides := slices.Clone(p.opts.Include)
	if len(p.opts.Include) > 0 {
		discovery.Select(result, overrides)
	}

	if len(result.Review) > 0 {
		picked, reviewErr := p.deps.Operator.ReviewPossible(ctx, result.Review)
		if reviewErr != nil {
			return nil, fmt.Errorf("review possible product pages: %w", reviewErr)
		}
		if len(picked) > 0 {
			discovery.Select(result, append(overrides, picked...))
			log.Info("Operator included possible product pages", logger.Int("count", len(picked)))
		}
	}

	if result.ReviewRequired {
		p.deps.Operator.Notify("Classification failed for every batch. All %d URLs were selected unclassified; "+
			"execution will require explicit confirmation.", len(result.Selected))
	}

	if err = p.deps.Store.Save(ctx, checkpoint.Discovery, result); err != nil {
		return nil, fmt.Errorf("save discovery: %w", err)
	}
	return result, nil
}

// Extract runs the refinement loop on the first selected URL and then bulk
// extraction over the operator's chosen share of the selection.
func (p *Pipeline) Extract(ctx context.Context, disc *domain.DiscoveryResult) (*domain.ExtractionBatch, error) {
	if len(disc.Selected) == 0 {
		return nil, ErrNoSelection
	}

	instructions, err := refinement.LoadInstructions(ctx, p.deps.Store, p.opts.Instructions)
	if err != nil {
		return nil, err
	}

	sampleURL := disc.Selected[0]
	approval, err := p.deps.Sampler.Run(ctx, sampleURL, instructions)
	if err != nil {
		return nil, fmt.Errorf("sample refinement: %w", err)
	}

	answer := p.opts.Quantity
	if answer == "" {
		answer, err = p.deps.Operator.BulkQuantity(ctx, len(disc.Selected))
		if err != nil {
			return nil, fmt.Errorf("bulk quantity: %w", err)
		}
	}
	urls := SelectForImport(disc.Selected, answer, p.opts.DefaultBulkCount)
	p.deps.Logger.Info("Starting bulk extraction",
		logger.Int("selected", len(disc.Selected)),
		logger.Int("importing", len(urls)),
		logger.String("answer", answer),
	)

	batch, err := p.deps.Bulk.Run(ctx, approval, urls)
	if err != nil {
		return batch, fmt.Errorf("bulk extraction: %w", err)
	}
	return batch, nil
}

// Reconcile builds the reconciled catalog and saves it.
func (p *Pipeline) Reconcile(ctx context.Context, batch *domain.ExtractionBatch) (*domain.ReconciledCatalog, error) {
	cat, err := p.deps.Reconciler.Reconcile(batch.Records)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if err = p.deps.Store.Save(ctx, checkpoint.ReconciledCatalog, cat); err != nil {
		return nil, fmt.Errorf("save reconciled catalog: %w", err)
	}
	return cat, nil
}

// Report writes the plan artifacts and prints the console summary.
func (p *Pipeline) Report(
	disc *domain.DiscoveryResult,
	batch *domain.ExtractionBatch,
	cat *domain.ReconciledCatalog,
) (report.Artifacts, error) {
	plan := &report.Plan{
		GeneratedAt: p.now().UTC(),
		Discovery:   disc,
		Extraction:  batch,
		Catalog:     cat,
	}
	if disc != nil {
		plan.RootURL = disc.RootURL
	}

	artifacts, err := p.deps.Writer.Write(plan)
	if err != nil {
		return report.Artifacts{}, fmt.Errorf("write plan: %w", err)
	}
	report.RenderTable(p.deps.Out, plan)
	return artifacts, nil
}
