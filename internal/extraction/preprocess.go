package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// strippedElements never carry product data.
const strippedElements = `script:not([type="application/ld+json"]), style, noscript, iframe, svg, template`

var whitespaceRun = regexp.MustCompile(`\s+`)

// Preprocess removes non-content markup from doc, collapses whitespace and
// truncates the HTML to maxBytes on a rune boundary. doc is modified.
func Preprocess(doc *goquery.Document, maxBytes int) (string, error) {
	doc.Find(strippedElements).Remove()
	removeComments(doc.Selection)

	html, err := doc.Html()
	if err != nil {
		return "", err
	}

	html = strings.TrimSpace(whitespaceRun.ReplaceAllString(html, " "))
	return truncateUTF8(html, maxBytes), nil
}

func removeComments(s *goquery.Selection) {
	s.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#comment" {
			node.Remove()
			return
		}
		removeComments(node)
	})
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
