package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

// maxErrorRows bounds the failures listed under an execution summary.
const maxErrorRows = 20

// RenderTable writes the console summary of p to w.
func RenderTable(w io.Writer, p *Plan) {
	s := p.Summary()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Migration Plan")
	t.AppendHeader(table.Row{"Item", "Count"})
	t.AppendRows([]table.Row{
		{"URLs found", s.URLsFound},
		{"URLs selected", s.URLsSelected},
		{"Products extracted", s.Extracted},
		{"Extraction failures", s.ExtractionFailures},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Departments", s.Departments},
		{"Categories", s.Categories},
		{"Brands", s.Brands},
		{"Products", s.Products},
		{"SKUs", s.SKUs},
		{"Images", s.Images},
		{"Specification fields", s.SpecFields},
	})
	if s.IDCollisions > 0 {
		t.AppendRow(table.Row{"Shared product IDs", s.IDCollisions})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()

	rows := p.Categories()
	if len(rows) == 0 {
		return
	}
	c := table.NewWriter()
	c.SetOutputMirror(w)
	c.SetStyle(table.StyleLight)
	c.AppendHeader(table.Row{"Category", "Level", "Products"})
	for _, r := range rows {
		c.AppendRow(table.Row{r.Path, r.Level, r.Products})
	}
	c.Render()
}

// RenderExecution writes the outcome of an execution run to w.
func RenderExecution(w io.Writer, r *domain.ExecutionResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Execution " + r.RunID)
	t.AppendHeader(table.Row{"Entity", "Count"})
	t.AppendRows([]table.Row{
		{"Departments", len(r.Departments)},
		{"Categories", len(r.Categories)},
		{"Brands", len(r.Brands)},
		{"Products", len(r.Products)},
		{"SKUs", len(r.SKUs)},
		{"Images associated", r.ImagesAssociated},
		{"Prices set", r.PricesSet},
		{"Inventory updates", r.InventoryUpdates},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Reused existing", r.Reused},
		{"Errors", len(r.Errors)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()

	if len(r.Errors) == 0 {
		return
	}
	e := table.NewWriter()
	e.SetOutputMirror(w)
	e.SetStyle(table.StyleLight)
	e.AppendHeader(table.Row{"Entity", "Reference", "Reason"})
	e.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	for i, fl := range r.Errors {
		if i == maxErrorRows {
			e.AppendFooter(table.Row{"", "", fmt.Sprintf("... and %d more", len(r.Errors)-maxErrorRows)})
			break
		}
		e.AppendRow(table.Row{fl.Entity, fl.Reference, fl.Reason})
	}
	e.Render()
}
