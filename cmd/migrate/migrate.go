// Package migrate implements the migrate command, which runs every stage of
// a catalog migration in order.
package migrate

import (
	"context"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/north-cloud/catalog-migrator/cmd/common"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/migration"
)

// Flags holds the options shared by the pipeline commands.
type Flags struct {
	Include      []string
	Rediscover   bool
	Quantity     string
	Instructions string
	Confirm      string
}

// RegisterDiscovery adds the discovery flags to cmd.
func (f *Flags) RegisterDiscovery(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.Include, "include", nil, "URL to always extract (repeatable)")
	cmd.Flags().BoolVar(&f.Rediscover, "rediscover", false, "ignore a saved discovery checkpoint for the same storefront")
}

// RegisterExtraction adds the extraction flags to cmd.
func (f *Flags) RegisterExtraction(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Quantity, "quantity", "", "number of products to import, or 'all' (skips the prompt)")
	cmd.Flags().StringVar(&f.Instructions, "instructions", "",
		"initial extraction instructions when no custom prompt is saved")
}

// RegisterConfirm adds the confirmation flag to cmd.
func (f *Flags) RegisterConfirm(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Confirm, "confirm", "",
		"confirmation token for unattended execution; ignored when discovery requires review")
}

// Options converts the flags into pipeline options.
func (f *Flags) Options() migration.Options {
	return migration.Options{
		Include:      f.Include,
		Rediscover:   f.Rediscover,
		Quantity:     f.Quantity,
		Instructions: f.Instructions,
		ConfirmToken: f.Confirm,
	}
}

// Command returns the migrate command.
func Command() *cobra.Command {
	var flags Flags

	cmd := &cobra.Command{
		Use:   "migrate <storefront-url>",
		Short: "Run discovery, extraction, reconciliation and execution",
		Long: `Runs the whole migration for one storefront:

  1. discover product pages (sitemaps, then a bounded crawl) and classify them
  2. extract one sample page and review it until accepted
  3. extract the remaining pages with the accepted instructions
  4. reconcile departments, categories, brands and specifications
  5. write final_plan.md and final_plan.xlsx
  6. wait for the operator to type APPROVED
  7. create the catalog in VTEX

Each stage resumes from its checkpoint when re-run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			needs := cmdcommon.Needs{LLM: true, VTEX: true}
			return cmdcommon.RunStage(cmd, needs, flags.Options(),
				func(ctx context.Context, _ checkpoint.Store, p *migration.Pipeline) error {
					_, err := p.Run(ctx, args[0])
					return err
				})
		},
	}
	flags.RegisterDiscovery(cmd)
	flags.RegisterExtraction(cmd)
	flags.RegisterConfirm(cmd)

	return cmd
}
