package extraction

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

const maxCategorySegmentLen = 20

// productSegments are path segments that mark product routes, not categories.
var productSegments = map[string]bool{
	"p":       true,
	"product": true,
	"produto": true,
	"item":    true,
}

// productSlug matches a segment ending in a long numeric identifier.
var productSlug = regexp.MustCompile(`-\d{5,}$`)

// titleCase returns s in title case. Casers are stateful, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// CategoriesFromURL derives a category path from the URL path. Parsing stops at
// the first segment that looks like a product slug.
func CategoriesFromURL(rawURL string) []domain.CategoryRef {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	var out []domain.CategoryRef
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if seg == "" || productSegments[strings.ToLower(seg)] {
			continue
		}
		if decoded, decErr := url.PathUnescape(seg); decErr == nil {
			seg = decoded
		}
		if len(seg) > maxCategorySegmentLen || productSlug.MatchString(seg) {
			break
		}

		name := strings.NewReplacer("-", " ", "_", " ").Replace(seg)
		out = append(out, domain.CategoryRef{
			Name:  titleCase(strings.Join(strings.Fields(name), " ")),
			Level: len(out) + 1,
		})
	}
	return out
}
