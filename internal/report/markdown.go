package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/orchestrator"
)

const maxListedFailures = 50

// Markdown renders final_plan.md.
func (p *Plan) Markdown() string {
	s := p.Summary()
	var b strings.Builder

	b.WriteString("# VTEX Catalog Migration Plan\n\n")
	fmt.Fprintf(&b, "**Target Website:** %s\n", orDefault(p.RootURL, "N/A"))
	fmt.Fprintf(&b, "**Generated:** %s\n\n", p.GeneratedAt.UTC().Format(time.RFC3339))

	b.WriteString("## Summary\n\n")
	summary := table.NewWriter()
	summary.AppendHeader(table.Row{"Item", "Count"})
	summary.AppendRows([]table.Row{
		{"Product URLs found", s.URLsFound},
		{"URLs selected", s.URLsSelected},
		{"URLs needing review", s.URLsForReview},
		{"Products extracted", s.Extracted},
		{"Extraction failures", s.ExtractionFailures},
		{"Departments", s.Departments},
		{"Categories", s.Categories},
		{"Brands", s.Brands},
		{"Products", s.Products},
		{"SKUs", s.SKUs},
		{"Products with variations", s.WithVariants},
		{"Images", s.Images},
		{"Specification fields", s.SpecFields},
		{"Shared product IDs", s.IDCollisions},
	})
	b.WriteString(summary.RenderMarkdown())
	b.WriteString("\n\n")

	if p.Discovery != nil && p.Discovery.ReviewRequired {
		b.WriteString("> **Review required:** URL classification failed for every batch. ")
		b.WriteString("All discovered URLs were selected unclassified.\n\n")
	}

	b.WriteString("## Catalog Structure\n\n### Departments and Categories\n\n")
	rows := p.Categories()
	if len(rows) == 0 {
		b.WriteString("_None._\n\n")
	} else {
		categories := table.NewWriter()
		categories.AppendHeader(table.Row{"Path", "Level", "Department", "Products"})
		for _, r := range rows {
			categories.AppendRow(table.Row{r.Path, r.Level, r.Department, r.Products})
		}
		b.WriteString(categories.RenderMarkdown())
		b.WriteString("\n\n")
	}

	b.WriteString("### Brands\n\n")
	if p.Catalog == nil || len(p.Catalog.Brands) == 0 {
		b.WriteString("_None._\n")
	} else {
		for _, brand := range p.Catalog.Brands {
			fmt.Fprintf(&b, "- %s\n", brand.Name)
		}
	}

	b.WriteString("\n### Specification Fields\n\n")
	fields := p.SpecificationFields()
	if len(fields) == 0 {
		b.WriteString("_None._\n")
	} else {
		paths := make([]string, 0, len(fields))
		for path := range fields {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Fprintf(&b, "- **%s:** %s\n", path, strings.Join(fields[path], ", "))
		}
	}

	if p.Catalog != nil && len(p.Catalog.Collisions) > 0 {
		b.WriteString("\n## Shared Product IDs\n\n")
		b.WriteString("These pages carry the same product ID. Each becomes its own product and VTEX assigns the IDs.\n\n")
		for _, c := range p.Catalog.Collisions {
			fmt.Fprintf(&b, "- %d: %s\n", c.ExternalProductID, strings.Join(c.URLs, ", "))
		}
	}

	if p.Extraction != nil && len(p.Extraction.Failures) > 0 {
		b.WriteString("\n## Extraction Failures\n\n")
		for i, f := range p.Extraction.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "- ... and %d more\n", len(p.Extraction.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", f.URL, f.Reason)
		}
	}

	b.WriteString("\n## Next Steps\n\n")
	b.WriteString("1. Review the catalog structure above.\n")
	b.WriteString("2. Confirm the specification fields match your VTEX setup.\n")
	fmt.Fprintf(&b, "3. Type '%s' to begin execution, 'RETRY' to regenerate this plan or 'CANCEL' to stop.\n",
		orchestrator.ConfirmationToken)

	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
