// Package domain holds the records passed between migration stages and
// persisted in checkpoints.
package domain

// URLSource records how a URL was discovered.
type URLSource string

const (
	SourceSitemap  URLSource = "sitemap"
	SourceCrawl    URLSource = "crawl"
	// SourceOverride marks a URL an operator included by hand.
	SourceOverride URLSource = "override"
)

// Classification is the product-page verdict for a discovered URL.
type Classification string

const (
	Unclassified Classification = "unclassified"
	DefinitePDP  Classification = "definite_pdp"
	PossiblePDP  Classification = "possible_pdp"
	NotPDP       Classification = "not_pdp"
)

// Valid reports whether c is one of the known classifications.
func (c Classification) Valid() bool {
	switch c {
	case Unclassified, DefinitePDP, PossiblePDP, NotPDP:
		return true
	default:
		return false
	}
}

// DiscoveredURL is a candidate product page. Entries are filtered, never deleted.
type DiscoveredURL struct {
	URL            string         `json:"url"`
	Source         URLSource      `json:"source"`
	Classification Classification `json:"classification"`
	// HeuristicPDP is set when URL patterns or page markup suggest a product page.
	HeuristicPDP bool `json:"heuristic_pdp,omitempty"`
}

// DiscoveryResult is the discovery checkpoint.
type DiscoveryResult struct {
	RootURL string          `json:"root_url"`
	URLs    []DiscoveredURL `json:"urls"`
	// Selected are the URLs that proceed to extraction.
	Selected []string `json:"selected"`
	// Review lists URLs that need an operator decision (possible or unclassified).
	Review []string `json:"review,omitempty"`
	// ReviewRequired is set when classification failed entirely and every
	// URL was selected unclassified.
	ReviewRequired bool `json:"review_required,omitempty"`
	FailedBatches  int  `json:"failed_batches,omitempty"`
}
