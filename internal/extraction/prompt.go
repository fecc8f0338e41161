package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

const baseInstruction = `You are a VTEX catalog integration specialist. Extract the product on the
page below and map it to the VTEX catalog fields described by the JSON schema.

Guidelines:
- ProductId and SkuId: copy identifiers exactly as shown (data attributes,
  hidden inputs, JSON-LD, URL). Leave them empty when none exist.
- Name: the main product title, preserving capitalization.
- Description: the full product description. ShortDescription: its first
  200 characters.
- KeyWords: comma-separated, from meta keywords or the name, brand and categories.
- Title: the meta title, otherwise "Name | Category | Brand".
- categories: the hierarchy from breadcrumbs or navigation, Level 1 at the top.
  Use the category hints when the page shows nothing better.
- skus: one entry per purchasable variation. Price and ListPrice are numbers
  without currency symbols. Put variation attributes such as size or color
  in Variations.
- images: only product photos, full size, absolute URLs. No logos, banners or icons.
- specifications: every technical attribute as {Name, Value}.
- Return only the JSON object.`

const customRulesHeader = `CUSTOM EXTRACTION RULES (take priority over the guidelines above)
====================================================================`

const customRulesFooter = `====================================================================`

// Instruction returns the model instruction, with custom rules appended
// under their own block when present.
func Instruction(custom string) string {
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return baseInstruction
	}
	return baseInstruction + "\n\n" + customRulesHeader + "\n" + custom + "\n" + customRulesFooter
}

type promptPayload struct {
	SourceURL       string               `json:"source_url"`
	CategoryHints   []domain.CategoryRef `json:"category_hints,omitempty"`
	BrandHint       string               `json:"brand_hint,omitempty"`
	ProductNameHint string               `json:"product_name_hint,omitempty"`
	HTML            string               `json:"html"`
}

// Payload encodes the page and its seeds for the model.
func Payload(pageURL, html string, seeds Seeds) (string, error) {
	b, err := json.Marshal(promptPayload{
		SourceURL:       pageURL,
		CategoryHints:   seeds.Categories(),
		BrandHint:       seeds.Brand,
		ProductNameHint: seeds.ProductName,
		HTML:            html,
	})
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// Schema is the VTEX field set requested from the model.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"department": namedSchema,
		"categories": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"Name":  map[string]any{"type": "string"},
					"Level": map[string]any{"type": "integer"},
				},
				"required": []string{"Name", "Level"},
			},
		},
		"brand": namedSchema,
		"product": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"Name":             map[string]any{"type": "string"},
				"ProductId":        map[string]any{"type": []string{"string", "integer", "null"}},
				"Description":      map[string]any{"type": "string"},
				"ShortDescription": map[string]any{"type": "string"},
				"KeyWords":         map[string]any{"type": "string"},
				"Title":            map[string]any{"type": "string"},
				"Attributes":       map[string]any{"type": "object"},
			},
			"required": []string{"Name"},
		},
		"skus": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"Name":       map[string]any{"type": "string"},
					"SkuId":      map[string]any{"type": []string{"string", "integer", "null"}},
					"EAN":        map[string]any{"type": "string"},
					"RefId":      map[string]any{"type": "string"},
					"Price":      map[string]any{"type": "number"},
					"ListPrice":  map[string]any{"type": []string{"number", "null"}},
					"Variations": map[string]any{"type": "object"},
				},
				"required": []string{"Name", "Price"},
			},
		},
		"images": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"specifications": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"Name":  map[string]any{"type": "string"},
					"Value": map[string]any{"type": "string"},
				},
				"required": []string{"Name", "Value"},
			},
		},
	},
	"required": []string{"product", "skus"},
}

var namedSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"Name": map[string]any{"type": "string"}},
}

var errMissingProduct = errors.New("missing product object")

// ValidateResponse checks the parts of the response decoding depends on.
func ValidateResponse(obj map[string]any) error {
	product, ok := lookup(obj, "product").(map[string]any)
	if !ok {
		return errMissingProduct
	}
	if name, _ := lookup(product, "Name").(string); strings.TrimSpace(name) == "" {
		return errors.New("product name is empty")
	}

	for _, key := range []string{"skus", "categories", "images", "specifications"} {
		v := lookup(obj, key)
		if v == nil {
			continue
		}
		if _, isList := v.([]any); !isList {
			return fmt.Errorf("%s is not an array", key)
		}
	}
	return nil
}

// lookup reads key from m, falling back to a case-insensitive match.
func lookup(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}
