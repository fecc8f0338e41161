// Package report renders the migration plan an operator reviews before
// confirming execution: final_plan.md, a final_plan.xlsx workbook and a
// console summary table.
package report

import (
	"sort"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

// Artifact file names under the state directory.
const (
	MarkdownFile = "final_plan.md"
	WorkbookFile = "final_plan.xlsx"
)

// Plan is everything the report shows. Discovery and Extraction are optional.
type Plan struct {
	RootURL     string
	GeneratedAt time.Time
	Discovery   *domain.DiscoveryResult
	Extraction  *domain.ExtractionBatch
	Catalog     *domain.ReconciledCatalog
}

// CategoryRow is one node of the tree with its product count.
type CategoryRow struct {
	Path       string
	Level      int
	Department string
	Products   int
}

// Summary holds the headline counts.
type Summary struct {
	URLsFound          int
	URLsSelected       int
	URLsForReview      int
	Extracted          int
	ExtractionFailures int
	Departments        int
	Categories         int
	Brands             int
	Products           int
	SKUs               int
	Images             int
	SpecFields         int
	WithVariants       int
	IDCollisions       int
}

// Summary computes the headline counts.
func (p *Plan) Summary() Summary {
	var s Summary
	if p.Discovery != nil {
		s.URLsFound = len(p.Discovery.URLs)
		s.URLsSelected = len(p.Discovery.Selected)
		s.URLsForReview = len(p.Discovery.Review)
	}
	if p.Extraction != nil {
		s.Extracted = len(p.Extraction.Records)
		s.ExtractionFailures = len(p.Extraction.Failures)
	}
	if p.Catalog == nil {
		return s
	}

	for _, n := range p.Catalog.Tree.Nodes {
		if n.IsDepartment() {
			s.Departments++
		} else {
			s.Categories++
		}
	}
	s.Brands = len(p.Catalog.Brands)
	s.Products = len(p.Catalog.Products)
	s.SKUs = p.Catalog.SKUCount()
	s.SpecFields = len(p.Catalog.SpecificationFields)
	s.IDCollisions = len(p.Catalog.Collisions)
	for i := range p.Catalog.Products {
		rec := &p.Catalog.Products[i].Record
		s.Images += len(rec.Images)
		if len(rec.SKUs) > 1 {
			s.WithVariants++
		}
	}
	return s
}

// Categories lists every tree node ordered by path, with the number of
// products assigned directly to it.
func (p *Plan) Categories() []CategoryRow {
	if p.Catalog == nil {
		return nil
	}
	tree := &p.Catalog.Tree
	counts := make(map[domain.NodeID]int, len(tree.Nodes))
	for i := range p.Catalog.Products {
		counts[p.Catalog.Products[i].Category]++
	}

	rows := make([]CategoryRow, 0, len(tree.Nodes))
	for _, n := range tree.Nodes {
		dept, _ := tree.Node(n.Department)
		rows = append(rows, CategoryRow{
			Path:       tree.PathKey(n.ID),
			Level:      n.Level,
			Department: dept.Name,
			Products:   counts[n.ID],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows
}

// SpecificationFields groups field names by the category path that owns them.
func (p *Plan) SpecificationFields() map[string][]string {
	if p.Catalog == nil {
		return nil
	}
	out := make(map[string][]string)
	for _, f := range p.Catalog.SpecificationFields {
		path := p.Catalog.Tree.PathKey(f.CategoryScope)
		out[path] = append(out[path], f.Name)
	}
	return out
}
