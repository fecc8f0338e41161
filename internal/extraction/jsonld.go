package extraction

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDObjects returns every JSON-LD object on the page. Top-level arrays
// and @graph containers are flattened; invalid scripts are skipped.
func jsonLDObjects(doc *goquery.Selection) []map[string]any {
	var out []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		var data any
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			return
		}
		out = appendJSONLD(out, data)
	})

	return out
}

func appendJSONLD(out []map[string]any, data any) []map[string]any {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			out = appendJSONLD(out, item)
		}
	case map[string]any:
		out = append(out, v)
		if graph, ok := v["@graph"]; ok {
			out = appendJSONLD(out, graph)
		}
	}
	return out
}

// hasType reports whether obj declares the schema.org type t.
func hasType(obj map[string]any, t string) bool {
	switch v := obj["@type"].(type) {
	case string:
		return strings.EqualFold(v, t)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, t) {
				return true
			}
		}
	}
	return false
}

// firstOfType returns the first JSON-LD object declaring type t.
func firstOfType(objs []map[string]any, t string) map[string]any {
	for _, obj := range objs {
		if hasType(obj, t) {
			return obj
		}
	}
	return nil
}

// nameOf reads a string value or the name/@id of a nested object.
func nameOf(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		if name, ok := val["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	case []any:
		if len(val) > 0 {
			return nameOf(val[0])
		}
	}
	return ""
}
