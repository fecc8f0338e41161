package extraction

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

const (
	fallbackDescriptionRunes = 500
	shortDescriptionRunes    = 200
)

// readableText returns the main text of the page, or "" when readability
// finds nothing.
func readableText(documentHTML, pageURL string) string {
	documentHTML = strings.TrimSpace(documentHTML)
	if documentHTML == "" {
		return ""
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(documentHTML), parsedURL)
	if err != nil {
		return ""
	}

	return strings.Join(strings.Fields(article.TextContent), " ")
}

// fillDescriptions falls back to readable page text for a missing
// description and derives a missing short description from it.
func fillDescriptions(p *domain.Product, documentHTML, pageURL string) {
	if p.Description == "" {
		p.Description = truncateRunes(readableText(documentHTML, pageURL), fallbackDescriptionRunes)
	}
	if p.ShortDescription == "" && p.Description != "" {
		p.ShortDescription = truncateRunes(p.Description, shortDescriptionRunes)
	}
}
