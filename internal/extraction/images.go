package extraction

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// excludedImageWords mark decorative images.
var excludedImageWords = []string{"logo", "icon", "sprite", "placeholder", "favicon"}

// galleryAttrs hold full-size image URLs on lazy or zoomable gallery images.
var galleryAttrs = []string{"data-zoom-image", "data-large", "data-large-image", "data-src", "data-lazy-src", "data-image", "src"}

var gallerySelectors = []string{
	`img[itemprop="image"]`,
	`img.product-image`,
	`.product-gallery img`,
	`.product-images img`,
	`.product-image-gallery img`,
	`.product-photos img`,
	`.product-carousel img`,
	`[class*="product-image"] img`,
	`[class*="product-gallery"] img`,
	`[id*="product-image"] img`,
	`img[data-zoom-image]`,
	`img[data-large]`,
}

// ImageSource reads candidate image URLs from a parsed page, in page order.
type ImageSource func(doc *goquery.Selection, minSize int) []string

// ImageSources are applied in priority order.
var ImageSources = []ImageSource{
	jsonLDImages,
	metaImages,
	galleryImages,
	srcsetImages,
	sizedImages,
}

// CollectImages runs every source in priority order and merges the results.
func CollectImages(doc *goquery.Selection, pageURL string, minSize, limit int) []string {
	lists := make([][]string, 0, len(ImageSources))
	for _, source := range ImageSources {
		lists = append(lists, source(doc, minSize))
	}
	return MergeImages(pageURL, limit, lists...)
}

// MergeImages is an ordered set union of the lists keyed by absolute URL.
// Relative URLs resolve against pageURL, fragments are dropped and
// decorative images are excluded. A limit <= 0 keeps everything.
func MergeImages(pageURL string, limit int, lists ...[]string) []string {
	base, _ := url.Parse(pageURL)

	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, raw := range list {
			abs := absoluteImageURL(base, raw)
			if abs == "" || seen[abs] || decorativeImage(abs) {
				continue
			}
			seen[abs] = true
			out = append(out, abs)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}

func absoluteImageURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func decorativeImage(u string) bool {
	lower := strings.ToLower(u)
	for _, w := range excludedImageWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func jsonLDImages(doc *goquery.Selection, _ int) []string {
	product := firstOfType(jsonLDObjects(doc), "Product")
	if product == nil {
		return nil
	}
	return imageValues(product["image"])
}

func imageValues(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, imageValues(item)...)
		}
		return out
	case map[string]any:
		for _, key := range []string{"url", "contentUrl", "@id"} {
			if s, ok := val[key].(string); ok && s != "" {
				return []string{s}
			}
		}
	}
	return nil
}

func metaImages(doc *goquery.Selection, _ int) []string {
	var out []string
	doc.Find(`meta[property="og:image"], meta[property="og:image:secure_url"], meta[name="twitter:image"], meta[property="twitter:image"]`).
		Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr("content"); ok {
				out = append(out, v)
			}
		})
	return out
}

func galleryImages(doc *goquery.Selection, _ int) []string {
	var out []string
	for _, sel := range gallerySelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			for _, attr := range galleryAttrs {
				if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
					out = append(out, v)
					return
				}
			}
		})
	}
	return out
}

func srcsetImages(doc *goquery.Selection, _ int) []string {
	var out []string
	doc.Find("img[srcset], source[srcset], img[data-srcset]").Each(func(_ int, s *goquery.Selection) {
		srcset, ok := s.Attr("srcset")
		if !ok {
			srcset, _ = s.Attr("data-srcset")
		}
		if best := largestSrcsetEntry(srcset); best != "" {
			out = append(out, best)
		}
	})
	return out
}

type srcsetEntry struct {
	url   string
	width float64
}

// largestSrcsetEntry returns the candidate with the highest width or density
// descriptor. Entries without a descriptor count as 1x.
func largestSrcsetEntry(srcset string) string {
	var entries []srcsetEntry
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		e := srcsetEntry{url: fields[0], width: 1}
		if len(fields) > 1 {
			d := strings.ToLower(fields[1])
			if n, err := strconv.ParseFloat(strings.TrimRight(d, "wx"), 64); err == nil {
				e.width = n
			}
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return ""
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].width > entries[j].width })
	return entries[0].url
}

func sizedImages(doc *goquery.Selection, minSize int) []string {
	var out []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		w, wOK := intAttr(s, "width")
		h, hOK := intAttr(s, "height")
		if !wOK || !hOK || w < minSize || h < minSize {
			return
		}
		src, _ := s.Attr("src")
		out = append(out, src)
	})
	return out
}

func intAttr(s *goquery.Selection, name string) (int, bool) {
	v, ok := s.Attr(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0, false
	}
	return n, true
}
