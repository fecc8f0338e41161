package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/reconcile"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/report"
)

func plan(t *testing.T) *report.Plan {
	t.Helper()

	id := int64(55)
	records := []domain.ExtractionRecord{
		{
			SourceURL:      "https://shop.test/p/runner",
			Categories:     []domain.CategoryRef{{Name: "Fashion", Level: 1}, {Name: "Shoes", Level: 2}},
			Brand:          domain.Named{Name: "Acme"},
			Product:        domain.Product{Name: "Runner", ExternalProductID: &id},
			SKUs:           []domain.SKU{{Name: "40", Price: 10}, {Name: "41", Price: 10}},
			Images:         []string{"https://cdn.test/a.jpg"},
			Specifications: []domain.Specification{{Name: "Color", Value: "Red"}},
		},
		{
			SourceURL:  "https://shop.test/p/lamp",
			Categories: []domain.CategoryRef{{Name: "Home", Level: 1}},
			Product:    domain.Product{Name: "Lamp"},
		},
	}
	cat, err := reconcile.New(config.ReconcileConfig{DefaultDepartment: "General"}, logger.NewNop()).Reconcile(records)
	require.NoError(t, err)

	return &report.Plan{
		RootURL:     "https://shop.test/",
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Discovery: &domain.DiscoveryResult{
			URLs:     make([]domain.DiscoveredURL, 7),
			Selected: []string{"https://shop.test/p/runner", "https://shop.test/p/lamp", "https://shop.test/p/gone"},
		},
		Extraction: &domain.ExtractionBatch{
			Records:  records,
			Failures: []domain.ExtractionFailureRecord{{URL: "https://shop.test/p/gone", Reason: "fetch"}},
		},
		Catalog: cat,
	}
}

func TestPlan_Summary(t *testing.T) {
	t.Parallel()

	s := plan(t).Summary()
	assert.Equal(t, report.Summary{
		URLsFound:          7,
		URLsSelected:       3,
		Extracted:          2,
		ExtractionFailures: 1,
		Departments:        2,
		Categories:         1,
		Brands:             1,
		Products:           2,
		SKUs:               2,
		Images:             1,
		SpecFields:         1,
		WithVariants:       1,
	}, s)
}

func TestPlan_Markdown(t *testing.T) {
	t.Parallel()

	md := plan(t).Markdown()
	assert.Contains(t, md, "# VTEX Catalog Migration Plan")
	assert.Contains(t, md, "**Target Website:** https://shop.test/")
	assert.Contains(t, md, "Fashion > Shoes")
	assert.Contains(t, md, "## Summary")
	assert.Contains(t, md, "- Acme\n")
	assert.Contains(t, md, "- **Fashion > Shoes:** Color\n")
	assert.Contains(t, md, "- https://shop.test/p/gone: fetch\n")
	assert.Contains(t, md, "Type 'APPROVED'")
	assert.NotContains(t, md, "Review required")
	assert.NotContains(t, md, "## Shared Product IDs")
}

func TestPlan_MarkdownListsSharedProductIDs(t *testing.T) {
	t.Parallel()

	p := plan(t)
	p.Catalog.Collisions = []domain.IDCollision{{
		ExternalProductID: 7,
		URLs:              []string{"https://shop.test/p/blue-hat", "https://shop.test/p/red-shoe"},
	}}

	assert.Equal(t, 1, p.Summary().IDCollisions)
	assert.Contains(t, p.Markdown(), "## Shared Product IDs")
	assert.Contains(t, p.Markdown(), "- 7: https://shop.test/p/blue-hat, https://shop.test/p/red-shoe\n")

	var buf bytes.Buffer
	report.RenderTable(&buf, p)
	assert.Contains(t, buf.String(), "Shared product IDs")
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	report.RenderTable(&buf, plan(t))
	out := buf.String()
	assert.Contains(t, out, "Migration Plan")
	assert.Contains(t, out, "Fashion > Shoes")
	assert.Contains(t, out, "Products extracted")
}

func TestWriter_WritesArtifacts(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "state")
	artifacts, err := report.NewWriter(dir, logger.NewNop()).Write(plan(t))
	require.NoError(t, err)

	md, err := os.ReadFile(artifacts.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "VTEX Catalog Migration Plan")
	assert.Equal(t, report.MarkdownFile, filepath.Base(artifacts.Markdown))

	f, err := excelize.OpenFile(artifacts.Workbook)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Equal(t, []string{"Summary", "Categories", "Products", "SKUs", "Failures"}, f.GetSheetList())

	products, err := f.GetRows("Products")
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "Source URL", products[0][0])
	assert.Equal(t, []string{"https://shop.test/p/runner", "Runner", "Fashion > Shoes", "Acme", "55", "2", "1", "Color: Red"}, products[1])

	skus, err := f.GetRows("SKUs")
	require.NoError(t, err)
	assert.Len(t, skus, 3)
}

func TestRenderExecution(t *testing.T) {
	t.Parallel()

	result := domain.NewExecutionResult("run-1", time.Now())
	result.Products["id:1"] = 10
	result.PricesSet = 3
	result.Errors = append(result.Errors, domain.EntityError{
		Entity:    domain.EntitySKU,
		Reference: "id:1/sku:7",
		Reason:    "status 500",
	})

	var buf bytes.Buffer
	report.RenderExecution(&buf, result)
	out := buf.String()
	assert.Contains(t, out, "Execution run-1")
	assert.Contains(t, out, "Prices set")
	assert.Contains(t, out, "id:1/sku:7")
}
