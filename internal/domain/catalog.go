package domain

import (
	"sort"
	"strconv"
	"strings"
)

// NodeID indexes a CategoryNode inside a CategoryTree.
type NodeID int

// NoParent marks a department (root) node.
const NoParent NodeID = -1

// CategoryNode is a department (level 1) or category in the reconciled tree.
// Parent and Department are arena indices, never embedded nodes.
type CategoryNode struct {
	ID         NodeID `json:"id"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Parent     NodeID `json:"parent"`
	Department NodeID `json:"department"`
}

// IsDepartment reports whether the node is a root.
func (n CategoryNode) IsDepartment() bool {
	return n.Parent == NoParent
}

// CategoryTree is arena storage for every CategoryNode of a run.
type CategoryTree struct {
	Nodes []CategoryNode `json:"nodes"`
}

// Node returns the node with the given id.
func (t *CategoryTree) Node(id NodeID) (CategoryNode, bool) {
	if id < 0 || int(id) >= len(t.Nodes) {
		return CategoryNode{}, false
	}
	return t.Nodes[id], true
}

// Departments returns the root nodes ordered by name.
func (t *CategoryTree) Departments() []CategoryNode {
	var out []CategoryNode
	for _, n := range t.Nodes {
		if n.IsDepartment() {
			out = append(out, n)
		}
	}
	sortByName(out)
	return out
}

// Children returns the direct children of parent ordered by name.
func (t *CategoryTree) Children(parent NodeID) []CategoryNode {
	var out []CategoryNode
	for _, n := range t.Nodes {
		if n.Parent == parent && !n.IsDepartment() {
			out = append(out, n)
		}
	}
	sortByName(out)
	return out
}

// Path returns the node names from its department down to id.
func (t *CategoryTree) Path(id NodeID) []string {
	var names []string
	for cur, ok := t.Node(id); ok; cur, ok = t.Node(cur.Parent) {
		names = append(names, cur.Name)
		if cur.IsDepartment() || len(names) > len(t.Nodes) {
			break
		}
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// PathKey joins Path with " > ".
func (t *CategoryTree) PathKey(id NodeID) string {
	return strings.Join(t.Path(id), " > ")
}

// SpecificationField is a field identity scoped to the category that owns it.
type SpecificationField struct {
	Name          string `json:"name"`
	CategoryScope NodeID `json:"category_scope"`
}

// ResolvedProduct pairs a record with its reconciled category and brand.
type ResolvedProduct struct {
	Record   ExtractionRecord `json:"record"`
	Category NodeID           `json:"category"`
	Brand    string           `json:"brand"`
}

// ReconciledCatalog is the read-only input to execution.
type ReconciledCatalog struct {
	Tree                CategoryTree         `json:"tree"`
	Brands              []Named              `json:"brands"`
	SpecificationFields []SpecificationField `json:"specification_fields"`
	Products            []ResolvedProduct    `json:"products"`
	Collisions          []IDCollision        `json:"collisions,omitempty"`
}

// IDCollision is an external product ID extracted from more than one page.
// The affected products keep their records but are created without the ID.
type IDCollision struct {
	ExternalProductID int64    `json:"external_product_id"`
	URLs              []string `json:"urls"`
}

// SKUCount returns the number of SKUs across all products.
func (c *ReconciledCatalog) SKUCount() int {
	total := 0
	for i := range c.Products {
		total += len(c.Products[i].Record.SKUs)
	}
	return total
}

func sortByName(nodes []CategoryNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name == nodes[j].Name {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].Name < nodes[j].Name
	})
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
