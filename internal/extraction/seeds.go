package extraction

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

// homeCrumbs are leading breadcrumb labels that point at the storefront root.
var homeCrumbs = map[string]bool{
	"home":           true,
	"homepage":       true,
	"início":         true,
	"inicio":         true,
	"página inicial": true,
	"pagina inicial": true,
}

// breadcrumbSeparators are crumb texts that only separate links.
var breadcrumbSeparators = map[string]bool{">": true, "/": true, "»": true, "›": true, "|": true}

// breadcrumbSelectors are tried in order; the first that yields crumbs wins.
var breadcrumbSelectors = []string{
	`nav[aria-label*="readcrumb"] li`,
	`ol.breadcrumb li`,
	`ul.breadcrumb li`,
	`.breadcrumbs li`,
	`.breadcrumb li`,
	`nav.breadcrumb a`,
	`.breadcrumbs a`,
	`.breadcrumb a`,
	`[class*="breadcrumb"] a`,
}

// Seeds are deterministic hints read from the page before the model call.
type Seeds struct {
	URLCategories []domain.CategoryRef
	Breadcrumbs   []domain.CategoryRef
	Brand         string
	ProductName   string
}

// Categories returns breadcrumbs when present, otherwise URL path categories.
func (s Seeds) Categories() []domain.CategoryRef {
	if len(s.Breadcrumbs) > 0 {
		return s.Breadcrumbs
	}
	return s.URLCategories
}

// ReadSeeds collects every seed from the document.
func ReadSeeds(doc *goquery.Selection, pageURL string) Seeds {
	objs := jsonLDObjects(doc)
	name := productNameHint(doc, objs)

	return Seeds{
		URLCategories: CategoriesFromURL(pageURL),
		Breadcrumbs:   breadcrumbs(doc, objs, name),
		Brand:         brandHint(doc, objs),
		ProductName:   name,
	}
}

// Breadcrumbs reads the page breadcrumb trail: JSON-LD first, then
// microdata, then common breadcrumb markup.
func Breadcrumbs(doc *goquery.Selection, productName string) []domain.CategoryRef {
	return breadcrumbs(doc, jsonLDObjects(doc), productName)
}

func breadcrumbs(doc *goquery.Selection, objs []map[string]any, productName string) []domain.CategoryRef {
	for _, read := range []func() []string{
		func() []string { return jsonLDCrumbs(objs) },
		func() []string { return microdataCrumbs(doc) },
		func() []string { return markupCrumbs(doc) },
	} {
		if crumbs := cleanCrumbs(read(), productName); len(crumbs) > 0 {
			refs := make([]domain.CategoryRef, len(crumbs))
			for i, c := range crumbs {
				refs[i] = domain.CategoryRef{Name: c, Level: i + 1}
			}
			return refs
		}
	}
	return nil
}

func jsonLDCrumbs(objs []map[string]any) []string {
	list := firstOfType(objs, "BreadcrumbList")
	if list == nil {
		return nil
	}
	items, _ := list["itemListElement"].([]any)

	type crumb struct {
		pos  float64
		name string
	}
	crumbs := make([]crumb, 0, len(items))
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := item["name"].(string)
		if name == "" {
			name = nameOf(item["item"])
		}
		pos, ok := item["position"].(float64)
		if !ok {
			pos = float64(i + 1)
		}
		crumbs = append(crumbs, crumb{pos: pos, name: name})
	}
	sort.SliceStable(crumbs, func(i, j int) bool { return crumbs[i].pos < crumbs[j].pos })

	out := make([]string, len(crumbs))
	for i, c := range crumbs {
		out[i] = c.name
	}
	return out
}

func microdataCrumbs(doc *goquery.Selection) []string {
	var out []string
	doc.Find(`[itemtype*="BreadcrumbList"] [itemprop="itemListElement"]`).Each(func(_ int, s *goquery.Selection) {
		name := s.Find(`[itemprop="name"]`).First()
		if content, ok := name.Attr("content"); ok {
			out = append(out, content)
			return
		}
		out = append(out, name.Text())
	})
	return out
}

func markupCrumbs(doc *goquery.Selection) []string {
	for _, sel := range breadcrumbSelectors {
		var out []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			out = append(out, s.Text())
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// cleanCrumbs trims labels, drops separators and empties, a leading home
// crumb and a trailing crumb naming the product itself.
func cleanCrumbs(raw []string, productName string) []string {
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.Join(strings.Fields(c), " ")
		if c == "" || breadcrumbSeparators[c] {
			continue
		}
		out = append(out, c)
	}

	if len(out) > 0 && homeCrumbs[strings.ToLower(out[0])] {
		out = out[1:]
	}
	if n := len(out); n > 0 && productName != "" && strings.EqualFold(out[n-1], strings.TrimSpace(productName)) {
		out = out[:n-1]
	}
	return out
}

// brandHint reads the brand from JSON-LD, product meta tags or microdata.
func brandHint(doc *goquery.Selection, objs []map[string]any) string {
	if product := firstOfType(objs, "Product"); product != nil {
		if b := nameOf(product["brand"]); b != "" {
			return b
		}
	}

	for _, sel := range []string{`meta[property="product:brand"]`, `meta[name="brand"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	brand := doc.Find(`[itemprop="brand"]`).First()
	if brand.Length() == 0 {
		return ""
	}
	if v, ok := brand.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if name := brand.Find(`[itemprop="name"]`).First(); name.Length() > 0 {
		if v, ok := name.Attr("content"); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(name.Text())
	}
	return strings.Join(strings.Fields(brand.Text()), " ")
}

func productNameHint(doc *goquery.Selection, objs []map[string]any) string {
	if product := firstOfType(objs, "Product"); product != nil {
		if name, ok := product["name"].(string); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	if h1 := strings.Join(strings.Fields(doc.Find("h1").First().Text()), " "); h1 != "" {
		return h1
	}
	v, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	return strings.TrimSpace(v)
}
