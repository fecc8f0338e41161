// Package reconcile reduces accepted extraction records to one
// deduplicated catalog: a category tree, a brand set and scoped
// specification fields.
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

// ErrInvalidHierarchy is returned when the category tree is not a forest of
// departments with strictly increasing levels.
var ErrInvalidHierarchy = errors.New("invalid category hierarchy")

const defaultDepartment = "General"

// pathSep joins folded names into node keys. It cannot occur in a name
// after whitespace collapsing.
const pathSep = "\x1f"

// Reconciler builds a ReconciledCatalog.
type Reconciler struct {
	defaultDepartment string
	logger            logger.Logger
}

// New creates a Reconciler.
func New(cfg config.ReconcileConfig, log logger.Logger) *Reconciler {
	dept := collapse(cfg.DefaultDepartment)
	if dept == "" {
		dept = defaultDepartment
	}
	return &Reconciler{defaultDepartment: dept, logger: log}
}

// draft is a node before canonical IDs are assigned. Its key is the folded
// name path from the department down, so the department and the whole
// parent chain are part of its identity.
type draft struct {
	key       string
	parentKey string
	deptKey   string
	name      string
	level     int
	path      string
}

// Reconcile builds the catalog. The result does not depend on record order.
func (r *Reconciler) Reconcile(records []domain.ExtractionRecord) (*domain.ReconciledCatalog, error) {
	records = latestPerPage(records)
	collisions := releaseCollidingIDs(records)
	for _, c := range collisions {
		r.logger.Warn("External product ID shared by several pages; creating them without it",
			logger.Int64("external_product_id", c.ExternalProductID),
			logger.Strings("urls", c.URLs),
		)
	}

	drafts := make(map[string]*draft)
	leafKeys := make([]string, len(records))
	votes := newBrandVotes()
	brandKeys := make([]string, len(records))

	for i := range records {
		path := r.categoryPath(&records[i])
		leafKeys[i] = addPath(drafts, path)
		brandKeys[i] = votes.add(records[i].Brand.Name)
	}

	tree, ids := canonicalTree(drafts)
	if err := Validate(&tree); err != nil {
		return nil, err
	}

	catalog := &domain.ReconciledCatalog{Tree: tree, Collisions: collisions}

	brandSet := make(map[string]bool)
	for _, key := range brandKeys {
		if key != "" && !brandSet[key] {
			brandSet[key] = true
			catalog.Brands = append(catalog.Brands, domain.Named{Name: votes.winner(key)})
		}
	}
	sort.Slice(catalog.Brands, func(i, j int) bool { return catalog.Brands[i].Name < catalog.Brands[j].Name })

	fieldSet := make(map[domain.SpecificationField]bool)
	for i := range records {
		rec := records[i]
		category := ids[leafKeys[i]]
		dept, _ := tree.Node(tree.Nodes[category].Department)

		rec.Department = domain.Named{Name: dept.Name}
		rec.Specifications = normalizeSpecifications(rec.Specifications)
		for _, spec := range rec.Specifications {
			field := domain.SpecificationField{Name: spec.Name, CategoryScope: category}
			if !fieldSet[field] {
				fieldSet[field] = true
				catalog.SpecificationFields = append(catalog.SpecificationFields, field)
			}
		}

		brand := ""
		if brandKeys[i] != "" {
			brand = votes.winner(brandKeys[i])
		}
		catalog.Products = append(catalog.Products, domain.ResolvedProduct{
			Record:   rec,
			Category: category,
			Brand:    brand,
		})
	}
	sort.Slice(catalog.SpecificationFields, func(i, j int) bool {
		a, b := catalog.SpecificationFields[i], catalog.SpecificationFields[j]
		if a.CategoryScope != b.CategoryScope {
			return a.CategoryScope < b.CategoryScope
		}
		return a.Name < b.Name
	})

	r.logger.Info("Catalog reconciled",
		logger.Int("records", len(records)),
		logger.Int("categories", len(tree.Nodes)),
		logger.Int("brands", len(catalog.Brands)),
		logger.Int("specification_fields", len(catalog.SpecificationFields)),
		logger.Int("id_collisions", len(collisions)),
	)

	return catalog, nil
}

// categoryPath returns the record's category names from the department
// down. The record department is prepended when the categories do not
// already name it; a record with neither goes under the default department.
func (r *Reconciler) categoryPath(rec *domain.ExtractionRecord) []string {
	cats := append([]domain.CategoryRef(nil), rec.Categories...)
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Level < cats[j].Level })

	var path []string
	seen := make(map[string]bool)
	for _, c := range cats {
		if name := collapse(c.Name); name != "" {
			path = append(path, name)
			seen[foldKey(name)] = true
		}
	}

	if dept := collapse(rec.Department.Name); dept != "" && !seen[foldKey(dept)] {
		path = append([]string{dept}, path...)
	}
	if len(path) == 0 {
		path = []string{r.defaultDepartment}
	}
	return path
}

// addPath inserts every prefix of path and returns the leaf key.
func addPath(drafts map[string]*draft, path []string) string {
	var key, parentKey, deptKey string
	var display []string
	for i, name := range path {
		parentKey = key
		display = append(display, CategoryName(name))
		if i == 0 {
			key = foldKey(name)
			deptKey = key
		} else {
			key = key + pathSep + foldKey(name)
		}
		if _, ok := drafts[key]; !ok {
			drafts[key] = &draft{
				key:       key,
				parentKey: parentKey,
				deptKey:   deptKey,
				name:      display[i],
				level:     i + 1,
				path:      strings.Join(display, pathSep),
			}
		}
	}
	return key
}

// canonicalTree assigns node IDs ordered by level, then by name path, and
// returns the tree with a key to ID map.
func canonicalTree(drafts map[string]*draft) (domain.CategoryTree, map[string]domain.NodeID) {
	ordered := make([]*draft, 0, len(drafts))
	for _, d := range drafts {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.level != b.level {
			return a.level < b.level
		}
		if a.path != b.path {
			return a.path < b.path
		}
		return a.key < b.key
	})

	ids := make(map[string]domain.NodeID, len(ordered))
	for i, d := range ordered {
		ids[d.key] = domain.NodeID(i)
	}

	tree := domain.CategoryTree{Nodes: make([]domain.CategoryNode, len(ordered))}
	for i, d := range ordered {
		parent := domain.NoParent
		if d.parentKey != "" {
			parent = ids[d.parentKey]
		}
		tree.Nodes[i] = domain.CategoryNode{
			ID:         domain.NodeID(i),
			Name:       d.name,
			Level:      d.level,
			Parent:     parent,
			Department: ids[d.deptKey],
		}
	}
	return tree, ids
}

// Validate asserts that every node's parent chain strictly decreases in
// level and ends at a level-1 department matching the node's department.
func Validate(tree *domain.CategoryTree) error {
	for i, n := range tree.Nodes {
		if n.ID != domain.NodeID(i) {
			return fmt.Errorf("%w: node at %d has id %d", ErrInvalidHierarchy, i, n.ID)
		}
		if n.IsDepartment() {
			if n.Level != 1 || n.Department != n.ID {
				return fmt.Errorf("%w: department %q has level %d and department %d", ErrInvalidHierarchy, n.Name, n.Level, n.Department)
			}
			continue
		}

		cur := n
		for steps := 0; !cur.IsDepartment(); steps++ {
			parent, ok := tree.Node(cur.Parent)
			if !ok {
				return fmt.Errorf("%w: %q has unknown parent %d", ErrInvalidHierarchy, cur.Name, cur.Parent)
			}
			if parent.Level >= cur.Level {
				return fmt.Errorf("%w: %q (level %d) under %q (level %d)", ErrInvalidHierarchy, cur.Name, cur.Level, parent.Name, parent.Level)
			}
			if steps > len(tree.Nodes) {
				return fmt.Errorf("%w: cycle at %q", ErrInvalidHierarchy, n.Name)
			}
			cur = parent
		}
		if cur.Level != 1 || cur.ID != n.Department {
			return fmt.Errorf("%w: %q reaches department %q, expected %d", ErrInvalidHierarchy, n.Name, cur.Name, n.Department)
		}
	}
	return nil
}

// latestPerPage keeps one record per source URL, preferring the most
// recent extraction, and orders the result by URL.
func latestPerPage(records []domain.ExtractionRecord) []domain.ExtractionRecord {
	sorted := append([]domain.ExtractionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]
		if a.SourceURL != b.SourceURL {
			return a.SourceURL < b.SourceURL
		}
		return a.ExtractedAt.Before(b.ExtractedAt)
	})

	out := sorted[:0]
	for i := range sorted {
		if n := len(out); n > 0 && out[n-1].SourceURL == sorted[i].SourceURL {
			out[n-1] = sorted[i]
			continue
		}
		out = append(out, sorted[i])
	}
	return out
}

// releaseCollidingIDs clears the external product ID of every record whose
// ID another page also carries, so each page still becomes its own product.
// records must be ordered by URL.
func releaseCollidingIDs(records []domain.ExtractionRecord) []domain.IDCollision {
	byID := make(map[int64][]int)
	for i := range records {
		if id := records[i].Product.ExternalProductID; id != nil {
			byID[*id] = append(byID[*id], i)
		}
	}

	var collisions []domain.IDCollision
	for id, idx := range byID {
		if len(idx) < 2 {
			continue
		}
		c := domain.IDCollision{ExternalProductID: id}
		for _, i := range idx {
			c.URLs = append(c.URLs, records[i].SourceURL)
			records[i].Product.ExternalProductID = nil
		}
		collisions = append(collisions, c)
	}
	sort.Slice(collisions, func(i, j int) bool {
		return collisions[i].ExternalProductID < collisions[j].ExternalProductID
	})
	return collisions
}

func normalizeSpecifications(specs []domain.Specification) []domain.Specification {
	if len(specs) == 0 {
		return nil
	}
	out := make([]domain.Specification, 0, len(specs))
	for _, s := range specs {
		name := FieldName(s.Name)
		if name == "" {
			continue
		}
		out = append(out, domain.Specification{Name: name, Value: collapse(s.Value)})
	}
	return out
}
