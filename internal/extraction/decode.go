package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

type rawNamed struct {
	Name string `mapstructure:"Name"`
}

type rawCategory struct {
	Name  string `mapstructure:"Name"`
	Level int    `mapstructure:"Level"`
}

type rawProduct struct {
	Name             string         `mapstructure:"Name"`
	ProductID        any            `mapstructure:"ProductId"`
	Description      string         `mapstructure:"Description"`
	ShortDescription string         `mapstructure:"ShortDescription"`
	KeyWords         string         `mapstructure:"KeyWords"`
	Title            string         `mapstructure:"Title"`
	Attributes       map[string]any `mapstructure:"Attributes"`
}

type rawSKU struct {
	Name       string         `mapstructure:"Name"`
	SkuID      any            `mapstructure:"SkuId"`
	EAN        string         `mapstructure:"EAN"`
	RefID      string         `mapstructure:"RefId"`
	Price      float64        `mapstructure:"Price"`
	ListPrice  *float64       `mapstructure:"ListPrice"`
	Variations map[string]any `mapstructure:"Variations"`
}

type rawSpecification struct {
	Name  string `mapstructure:"Name"`
	Value string `mapstructure:"Value"`
}

type rawExtraction struct {
	Department     rawNamed           `mapstructure:"department"`
	Categories     []rawCategory      `mapstructure:"categories"`
	Brand          rawNamed           `mapstructure:"brand"`
	Product        rawProduct         `mapstructure:"product"`
	SKUs           []rawSKU           `mapstructure:"skus"`
	Images         []string           `mapstructure:"images"`
	Specifications []rawSpecification `mapstructure:"specifications"`
}

// priceNoise is everything that is not a digit or separator.
var priceNoise = regexp.MustCompile(`[^\d.,\-]`)

// decodeResponse maps a model response onto the raw extraction shape.
// Numbers arrive as json.Number and numeric strings are accepted.
func decodeResponse(obj map[string]any) (*rawExtraction, error) {
	var out rawExtraction
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		DecodeHook:       priceHook,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	if decodeErr := decoder.Decode(obj); decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return &out, nil
}

// priceHook turns formatted prices such as "R$ 1.299,90" into float64.
func priceHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Float64 || from.Kind() != reflect.String {
		return data, nil
	}
	if n, ok := data.(json.Number); ok {
		return n.Float64()
	}
	s := reflect.ValueOf(data).String()
	if s == "" {
		return 0.0, nil
	}
	return ParsePrice(s)
}

// ParsePrice parses a price written with any common thousands and decimal
// separators. The last separator followed by one or two digits is taken as
// the decimal point.
func ParsePrice(s string) (float64, error) {
	clean := priceNoise.ReplaceAllString(strings.TrimSpace(s), "")
	if clean == "" {
		return 0, fmt.Errorf("price %q has no digits", s)
	}

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")
	sep := max(lastDot, lastComma)

	if sep >= 0 && len(clean)-sep-1 > 0 && len(clean)-sep-1 <= 2 {
		whole := strings.NewReplacer(".", "", ",", "").Replace(clean[:sep])
		clean = whole + "." + clean[sep+1:]
	} else {
		clean = strings.NewReplacer(".", "", ",", "").Replace(clean)
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return v, nil
}

// NumericID returns the identifier when v is a whole JSON number or a string
// of digits only. Anything else yields nil so the target assigns an ID.
func NumericID(v any) *int64 {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case float64:
		if val != math.Trunc(val) || val < 0 || val > math.MaxInt64 {
			return nil
		}
		n := int64(val)
		return &n
	case int:
		n := int64(val)
		return &n
	case int64:
		return &val
	case string:
		s = strings.TrimSpace(val)
	default:
		return nil
	}

	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func stringMap(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// toRecord converts the decoded response to an ExtractionRecord. Seeds and
// page images are merged in by the caller.
func (r *rawExtraction) toRecord(sourceURL string) domain.ExtractionRecord {
	rec := domain.ExtractionRecord{
		SourceURL:  sourceURL,
		Department: domain.Named{Name: strings.TrimSpace(r.Department.Name)},
		Brand:      domain.Named{Name: strings.TrimSpace(r.Brand.Name)},
		Product: domain.Product{
			Name:              strings.TrimSpace(r.Product.Name),
			Description:       strings.TrimSpace(r.Product.Description),
			ShortDescription:  strings.TrimSpace(r.Product.ShortDescription),
			Title:             strings.TrimSpace(r.Product.Title),
			Keywords:          strings.TrimSpace(r.Product.KeyWords),
			ExternalProductID: NumericID(r.Product.ProductID),
			RawAttributes:     stringMap(r.Product.Attributes),
		},
		Images: r.Images,
	}

	for _, c := range r.Categories {
		if name := strings.TrimSpace(c.Name); name != "" {
			rec.Categories = append(rec.Categories, domain.CategoryRef{Name: name, Level: c.Level})
		}
	}
	normalizeLevels(rec.Categories)

	for _, s := range r.SKUs {
		rec.SKUs = append(rec.SKUs, domain.SKU{
			Name:                strings.TrimSpace(s.Name),
			ExternalSKUID:       NumericID(s.SkuID),
			Price:               s.Price,
			ListPrice:           s.ListPrice,
			RefID:               strings.TrimSpace(s.RefID),
			EAN:                 strings.TrimSpace(s.EAN),
			VariationAttributes: stringMap(s.Variations),
		})
	}

	for _, s := range r.Specifications {
		name, value := strings.TrimSpace(s.Name), strings.TrimSpace(s.Value)
		if name != "" && value != "" {
			rec.Specifications = append(rec.Specifications, domain.Specification{Name: name, Value: value})
		}
	}

	return rec
}

// normalizeLevels renumbers categories 1..n in their level order.
func normalizeLevels(cats []domain.CategoryRef) {
	for i := 1; i < len(cats); i++ {
		for j := i; j > 0 && cats[j].Level < cats[j-1].Level; j-- {
			cats[j], cats[j-1] = cats[j-1], cats[j]
		}
	}
	for i := range cats {
		cats[i].Level = i + 1
	}
}
