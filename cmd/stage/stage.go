// Package stage implements one command per migration stage. Each reads its
// input from the previous stage's checkpoint, so a run can be driven step by
// step or a single stage re-run after editing a checkpoint by hand.
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/north-cloud/catalog-migrator/cmd/common"
	"github.com/jonesrussell/north-cloud/catalog-migrator/cmd/migrate"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/migration"
)

// Commands returns the per-stage commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		discoverCommand(),
		extractCommand(),
		reconcileCommand(),
		reportCommand(),
		executeCommand(),
	}
}

func discoverCommand() *cobra.Command {
	var flags migrate.Flags

	cmd := &cobra.Command{
		Use:   "discover <storefront-url>",
		Short: "Find and classify product pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdcommon.RunStage(cmd, cmdcommon.Needs{LLM: true}, flags.Options(),
				func(ctx context.Context, _ checkpoint.Store, p *migration.Pipeline) error {
					result, err := p.Discover(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Discovered %d URLs: %d selected, %d for review\n",
						len(result.URLs), len(result.Selected), len(result.Review))
					return nil
				})
		},
	}
	flags.RegisterDiscovery(cmd)

	return cmd
}

func extractCommand() *cobra.Command {
	var flags migrate.Flags

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Review a sample extraction, then extract the selected pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdcommon.RunStage(cmd, cmdcommon.Needs{LLM: true}, flags.Options(),
				func(ctx context.Context, store checkpoint.Store, p *migration.Pipeline) error {
					disc, err := migration.LoadDiscovery(ctx, store)
					if err != nil {
						return err
					}
					batch, err := p.Extract(ctx, disc)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d records, %d failures\n",
						len(batch.Records), len(batch.Failures))
					return nil
				})
		},
	}
	flags.RegisterExtraction(cmd)

	return cmd
}

func reconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Build the category tree, brands and specification fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdcommon.RunStage(cmd, cmdcommon.Needs{}, migration.Options{},
				func(ctx context.Context, store checkpoint.Store, p *migration.Pipeline) error {
					batch, err := migration.LoadExtraction(ctx, store)
					if err != nil {
						return err
					}
					cat, err := p.Reconcile(ctx, batch)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d products into %d categories and %d brands\n",
						len(cat.Products), len(cat.Tree.Nodes), len(cat.Brands))
					return nil
				})
		},
	}
}

func reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Write final_plan.md and final_plan.xlsx from the saved checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdcommon.RunStage(cmd, cmdcommon.Needs{}, migration.Options{},
				func(ctx context.Context, store checkpoint.Store, p *migration.Pipeline) error {
					in, err := loadPlanInputs(ctx, store)
					if err != nil {
						return err
					}
					artifacts, err := p.Report(in.discovery, in.extraction, in.catalog)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Plan written to %s and %s\n", artifacts.Markdown, artifacts.Workbook)
					return nil
				})
		},
	}
}

func executeCommand() *cobra.Command {
	var flags migrate.Flags

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Confirm the plan and create the catalog in VTEX",
		Long: `Writes the plan, asks for confirmation and replays the reconciled catalog
into VTEX. Nothing is written unless the answer is exactly APPROVED. A saved
execution checkpoint is resumed: finished products are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdcommon.RunStage(cmd, cmdcommon.Needs{VTEX: true}, flags.Options(),
				func(ctx context.Context, store checkpoint.Store, p *migration.Pipeline) error {
					in, err := loadPlanInputs(ctx, store)
					if err != nil {
						return err
					}
					confirmation, err := p.Confirm(ctx, in.discovery, in.extraction, in.catalog)
					if err != nil {
						return err
					}
					_, err = p.Execute(ctx, confirmation, in.catalog)
					return err
				})
		},
	}
	flags.RegisterConfirm(cmd)

	return cmd
}

type planInputs struct {
	discovery  *domain.DiscoveryResult
	extraction *domain.ExtractionBatch
	catalog    *domain.ReconciledCatalog
}

// loadPlanInputs requires the reconciled catalog. Discovery and extraction
// only enrich the report and may be missing.
func loadPlanInputs(ctx context.Context, store checkpoint.Store) (planInputs, error) {
	var in planInputs

	cat, err := migration.LoadCatalog(ctx, store)
	if err != nil {
		return in, err
	}
	in.catalog = cat

	log := logger.FromContext(ctx)

	switch disc, discErr := migration.LoadDiscovery(ctx, store); {
	case discErr == nil:
		in.discovery = disc
	case errors.Is(discErr, migration.ErrMissingCheckpoint):
		log.Info("No discovery checkpoint; the plan omits URL counts")
	default:
		return in, discErr
	}

	switch batch, batchErr := migration.LoadExtraction(ctx, store); {
	case batchErr == nil:
		in.extraction = batch
	case errors.Is(batchErr, migration.ErrMissingCheckpoint):
		log.Info("No extraction checkpoint; the plan omits extraction failures")
	default:
		return in, batchErr
	}

	return in, nil
}
