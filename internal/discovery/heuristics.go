package discovery

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pdpPatterns match URL shapes storefront platforms use for product pages.
var pdpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[-/](p|product|item|prod)[-/]`),
	regexp.MustCompile(`[-/]\d{5,}\.html?$`),
	regexp.MustCompile(`/p/[^/]+$`),
	regexp.MustCompile(`(?i)/produto/`),
	regexp.MustCompile(`(?i)/product/`),
	regexp.MustCompile(`(?i)/p$`),
}

// nonPageSegments are path segments that never lead to product pages.
var nonPageSegments = map[string]bool{
	"login":    true,
	"signin":   true,
	"signup":   true,
	"register": true,
	"logout":   true,
	"account":  true,
	"cart":     true,
	"carrinho": true,
	"checkout": true,
	"wishlist": true,
	"admin":    true,
	"wp-admin": true,
	"api":      true,
	"feed":     true,
	"rss":      true,
}

// nonPageExtensions are resources that are not HTML pages.
var nonPageExtensions = map[string]bool{
	".pdf":   true,
	".xml":   true,
	".gz":    true,
	".json":  true,
	".css":   true,
	".js":    true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".webp":  true,
	".avif":  true,
	".svg":   true,
	".ico":   true,
	".woff":  true,
	".woff2": true,
	".ttf":   true,
	".zip":   true,
	".mp3":   true,
	".mp4":   true,
	".txt":   true,
}

// productJSONLDType matches a JSON-LD Product declaration.
var productJSONLDType = regexp.MustCompile(`"@type"\s*:\s*\[?\s*"Product"`)

// LooksLikePDP reports whether the URL path matches a product page pattern.
func LooksLikePDP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := u.Path
	for _, re := range pdpPatterns {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// IsPageLike reports whether the URL could be an HTML page worth visiting.
func IsPageLike(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if nonPageExtensions[strings.ToLower(path.Ext(u.Path))] {
		return false
	}

	for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
		if nonPageSegments[seg] {
			return false
		}
	}
	return true
}

// skipLink reports hrefs that are not navigable links.
func skipLink(href string) bool {
	for _, prefix := range []string{"#", "javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

// HasProductSignals reports whether the page markup looks like a product page.
func HasProductSignals(doc *goquery.Selection) bool {
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if productJSONLDType.MatchString(s.Text()) {
			found = true
		}
		return !found
	})
	if found {
		return true
	}

	if og, ok := doc.Find(`meta[property="og:type"]`).Attr("content"); ok && strings.Contains(strings.ToLower(og), "product") {
		return true
	}

	selectors := []string{
		`[itemprop="price"]`,
		`[itemtype*="schema.org/Product"]`,
		`form[action*="cart"]`,
		`button[class*="add-to-cart"]`,
		`button[class*="buy"]`,
	}
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
