// Package status implements the status command, which lists the saved
// checkpoints and the progress they record.
package status

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/north-cloud/catalog-migrator/cmd/common"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

const missing = "-"

// Command returns the status command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show saved checkpoints and stage progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			store, err := deps.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil {
					deps.Logger.Warn("Closing checkpoint store failed", logger.Error(closeErr))
				}
			}()

			return Render(cmd.Context(), cmd.OutOrStdout(), store)
		},
	}
}

// Render writes one row per pipeline checkpoint, in pipeline order.
func Render(ctx context.Context, w io.Writer, store checkpoint.Store) error {
	infos, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	byName := make(map[string]checkpoint.Info, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Checkpoints")
	t.AppendHeader(table.Row{"Stage", "Updated", "Size", "Progress"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})

	for _, name := range checkpoint.Names {
		info, ok := byName[name]
		if !ok {
			t.AppendRow(table.Row{name, missing, missing, "not started"})
			continue
		}
		progress, progressErr := describe(ctx, store, name)
		if progressErr != nil {
			progress = "unreadable: " + progressErr.Error()
		}
		t.AppendRow(table.Row{
			name,
			info.UpdatedAt.Local().Format(time.DateTime),
			info.Size,
			progress,
		})
	}
	t.Render()
	return nil
}

func describe(ctx context.Context, store checkpoint.Store, name string) (string, error) {
	switch name {
	case checkpoint.Discovery:
		var r domain.DiscoveryResult
		if _, err := store.Load(ctx, name, &r); err != nil {
			return "", err
		}
		s := fmt.Sprintf("%d URLs, %d selected, %d for review", len(r.URLs), len(r.Selected), len(r.Review))
		if r.ReviewRequired {
			s += " (review required)"
		}
		return s, nil
	case checkpoint.Extraction:
		var b domain.ExtractionBatch
		if _, err := store.Load(ctx, name, &b); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d records, %d failures", len(b.Records), len(b.Failures)), nil
	case checkpoint.ReconciledCatalog:
		var c domain.ReconciledCatalog
		if _, err := store.Load(ctx, name, &c); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d nodes, %d brands, %d products", len(c.Tree.Nodes), len(c.Brands), len(c.Products)), nil
	case checkpoint.Execution:
		var r domain.ExecutionResult
		if _, err := store.Load(ctx, name, &r); err != nil {
			return "", err
		}
		state := "in progress"
		if r.FinishedAt != nil {
			state = "finished"
		}
		return fmt.Sprintf("%s, %d units done, %d errors", state, len(r.Completed), len(r.Errors)), nil
	default:
		return "saved", nil
	}
}
