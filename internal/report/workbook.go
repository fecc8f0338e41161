package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

const (
	sheetSummary    = "Summary"
	sheetCategories = "Categories"
	sheetProducts   = "Products"
	sheetSKUs       = "SKUs"
	sheetFailures   = "Failures"
)

// Workbook builds final_plan.xlsx. The caller closes the returned file.
func (p *Plan) Workbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		_ = f.Close()
		return nil, err
	}

	s := p.Summary()
	summary := [][]any{
		{"Item", "Count"},
		{"Target website", orDefault(p.RootURL, "N/A")},
		{"URLs found", s.URLsFound},
		{"URLs selected", s.URLsSelected},
		{"Products extracted", s.Extracted},
		{"Extraction failures", s.ExtractionFailures},
		{"Departments", s.Departments},
		{"Categories", s.Categories},
		{"Brands", s.Brands},
		{"Products", s.Products},
		{"SKUs", s.SKUs},
		{"Images", s.Images},
		{"Specification fields", s.SpecFields},
	}

	categories := [][]any{{"Path", "Level", "Department", "Products"}}
	for _, r := range p.Categories() {
		categories = append(categories, []any{r.Path, r.Level, r.Department, r.Products})
	}

	products := [][]any{{"Source URL", "Name", "Category", "Brand", "External ID", "SKUs", "Images", "Specifications"}}
	skus := [][]any{{"Source URL", "SKU", "External ID", "Price", "List Price", "Ref ID", "EAN"}}
	if p.Catalog != nil {
		for i := range p.Catalog.Products {
			prod := &p.Catalog.Products[i]
			rec := &prod.Record
			products = append(products, []any{
				rec.SourceURL,
				rec.Product.Name,
				p.Catalog.Tree.PathKey(prod.Category),
				prod.Brand,
				optionalID(rec.Product.ExternalProductID),
				len(rec.SKUs),
				len(rec.Images),
				specText(rec.Specifications),
			})
			for _, sku := range rec.SKUs {
				var list any
				if sku.ListPrice != nil {
					list = *sku.ListPrice
				}
				skus = append(skus, []any{
					rec.SourceURL, sku.Name, optionalID(sku.ExternalSKUID), sku.Price, list, sku.RefID, sku.EAN,
				})
			}
		}
	}

	failures := [][]any{{"URL", "Reason", "At"}}
	if p.Extraction != nil {
		for _, fl := range p.Extraction.Failures {
			failures = append(failures, []any{fl.URL, fl.Reason, fl.At})
		}
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{sheetSummary, summary},
		{sheetCategories, categories},
		{sheetProducts, products},
		{sheetSKUs, skus},
		{sheetFailures, failures},
	}
	for _, sh := range sheets {
		if err := writeSheet(f, sh.name, sh.rows); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet %s: %w", sh.name, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, name string, rows [][]any) error {
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func specText(specs []domain.Specification) string {
	parts := make([]string, len(specs))
	for i, sp := range specs {
		parts[i] = sp.Name + ": " + sp.Value
	}
	return strings.Join(parts, "; ")
}
