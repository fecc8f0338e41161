package domain

import "time"

// Named is a single-name entity such as a department or brand.
type Named struct {
	Name string `json:"name"`
}

// CategoryRef is one level of a record's category path. Level 1 is the top.
type CategoryRef struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// Specification is a named attribute and its value.
type Specification struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Product is the product section of an extraction.
type Product struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description,omitempty"`
	Title            string `json:"title,omitempty"`
	Keywords         string `json:"keywords,omitempty"`
	// ExternalProductID is kept only when the source exposes a numeric ID.
	ExternalProductID *int64            `json:"external_product_id,omitempty"`
	RawAttributes     map[string]string `json:"raw_attributes,omitempty"`
}

// SKU is a purchasable variant owned by exactly one ExtractionRecord.
type SKU struct {
	Name                string            `json:"name"`
	ExternalSKUID       *int64            `json:"external_sku_id,omitempty"`
	Price               float64           `json:"price"`
	ListPrice           *float64          `json:"list_price,omitempty"`
	RefID               string            `json:"ref_id,omitempty"`
	EAN                 string            `json:"ean,omitempty"`
	VariationAttributes map[string]string `json:"variation_attributes,omitempty"`
}

// ExtractionRecord is one extracted product page. Records are replaced, not
// mutated, when a page is re-extracted.
type ExtractionRecord struct {
	SourceURL      string          `json:"source_url"`
	Department     Named           `json:"department"`
	Categories     []CategoryRef   `json:"categories"`
	Brand          Named           `json:"brand"`
	Product        Product         `json:"product"`
	SKUs           []SKU           `json:"skus"`
	Images         []string        `json:"images"`
	Specifications []Specification `json:"specifications"`
	ExtractedAt    time.Time       `json:"extracted_at"`
}

// ExternalKey identifies the record's product across runs: the numeric
// external ID when present, otherwise the source URL.
func (r *ExtractionRecord) ExternalKey() string {
	if r.Product.ExternalProductID != nil {
		return "id:" + formatInt(*r.Product.ExternalProductID)
	}

	return "url:" + r.SourceURL
}

// ExtractionFailureRecord is a persisted unit failure from bulk extraction.
type ExtractionFailureRecord struct {
	URL    string    `json:"url"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// ExtractionBatch is the bulk extraction checkpoint.
type ExtractionBatch struct {
	Records  []ExtractionRecord        `json:"records"`
	Failures []ExtractionFailureRecord `json:"failures,omitempty"`
	// Done lists every URL whose unit finished, successfully or not.
	Done []string `json:"done"`
}

// IsDone reports whether url already has a finished unit.
func (b *ExtractionBatch) IsDone(url string) bool {
	for _, u := range b.Done {
		if u == url {
			return true
		}
	}
	return false
}
