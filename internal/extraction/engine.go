// Package extraction turns one product page into an ExtractionRecord.
//
// Deterministic seeds (URL path categories, breadcrumbs, brand) and page
// images are read from the HTML before the model call and merged with the
// model's answer afterwards.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/llm"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
)

// Reason classifies an extraction failure.
type Reason string

const (
	ReasonFetch    Reason = "fetch"
	ReasonParse    Reason = "parse"
	ReasonModel    Reason = "model"
	ReasonSchema   Reason = "schema"
	ReasonCanceled Reason = "canceled"
)

// ExtractionFailure is a failed unit. It is recorded, never fatal to a batch.
type ExtractionFailure struct {
	URL    string
	Reason Reason
	Err    error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *ExtractionFailure) Unwrap() error {
	return e.Err
}

// PageFetcher downloads a page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// ModelCaller is the part of llm.Invoker extraction needs.
type ModelCaller interface {
	Call(ctx context.Context, req llm.Request, validate llm.Validator) (map[string]any, error)
}

// Input is everything one extraction needs.
type Input struct {
	URL  string
	HTML string
	// Instructions are the operator's custom extraction rules.
	Instructions string
}

// Engine extracts product pages.
type Engine struct {
	fetcher PageFetcher
	caller  ModelCaller
	cfg     config.ExtractionConfig
	logger  logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(f PageFetcher, caller ModelCaller, cfg config.ExtractionConfig, log logger.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		fetcher: f,
		caller:  caller,
		cfg:     cfg,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// ExtractURL fetches pageURL and extracts it.
func (e *Engine) ExtractURL(ctx context.Context, pageURL, instructions string) (*domain.ExtractionRecord, error) {
	page, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		e.metrics.ExtractionUnit(metrics.OutcomeFailure)
		return nil, e.fail(ctx, pageURL, ReasonFetch, err)
	}
	return e.Extract(ctx, Input{URL: pageURL, HTML: string(page.Body), Instructions: instructions})
}

// Extract maps one page to an ExtractionRecord. Every error is an
// *ExtractionFailure.
func (e *Engine) Extract(ctx context.Context, in Input) (*domain.ExtractionRecord, error) {
	rec, err := e.extract(ctx, in)
	if err != nil {
		e.metrics.ExtractionUnit(metrics.OutcomeFailure)
		return nil, err
	}
	e.metrics.ExtractionUnit(metrics.OutcomeSuccess)
	return rec, nil
}

func (e *Engine) extract(ctx context.Context, in Input) (*domain.ExtractionRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.HTML))
	if err != nil {
		return nil, e.fail(ctx, in.URL, ReasonParse, err)
	}

	seeds := ReadSeeds(doc.Selection, in.URL)
	// Preprocess strips the JSON-LD and meta tags the image sources read.
	pageImages := CollectImages(doc.Selection, in.URL, e.cfg.MinImageSize, 0)

	cleaned, err := Preprocess(doc, e.cfg.MaxHTMLBytes)
	if err != nil {
		return nil, e.fail(ctx, in.URL, ReasonParse, err)
	}
	payload, err := Payload(in.URL, cleaned, seeds)
	if err != nil {
		return nil, e.fail(ctx, in.URL, ReasonParse, err)
	}

	var raw *rawExtraction
	_, err = e.caller.Call(ctx, llm.Request{
		Job:         llm.JobExtract,
		Instruction: Instruction(in.Instructions),
		Schema:      Schema,
		Payload:     payload,
	}, func(obj map[string]any) error {
		if vErr := ValidateResponse(obj); vErr != nil {
			return vErr
		}
		decoded, decErr := decodeResponse(obj)
		if decErr != nil {
			return decErr
		}
		raw = decoded
		return nil
	})
	if err != nil {
		var sve *llm.SchemaValidationError
		if errors.As(err, &sve) {
			return nil, e.fail(ctx, in.URL, ReasonSchema, err)
		}
		return nil, e.fail(ctx, in.URL, ReasonModel, err)
	}

	rec := raw.toRecord(in.URL)
	applySeeds(&rec, seeds)
	rec.Images = MergeImages(in.URL, e.cfg.MaxImages, pageImages, rec.Images)
	fillDescriptions(&rec.Product, in.HTML, in.URL)
	rec.ExtractedAt = e.now().UTC()

	e.logger.Info("Product extracted",
		logger.URL(in.URL),
		logger.String("name", rec.Product.Name),
		logger.Int("categories", len(rec.Categories)),
		logger.Int("skus", len(rec.SKUs)),
		logger.Int("images", len(rec.Images)),
	)

	return &rec, nil
}

// applySeeds fills gaps in the model answer from the page seeds. Seed
// categories replace the model's when the model found fewer levels.
func applySeeds(rec *domain.ExtractionRecord, seeds Seeds) {
	if seedCats := seeds.Categories(); len(rec.Categories) < len(seedCats) {
		rec.Categories = append([]domain.CategoryRef(nil), seedCats...)
		rec.Department = domain.Named{Name: seedCats[0].Name}
	}
	if rec.Department.Name == "" && len(rec.Categories) > 0 {
		rec.Department = domain.Named{Name: rec.Categories[0].Name}
	}
	if rec.Brand.Name == "" {
		rec.Brand.Name = seeds.Brand
	}
	if rec.Product.Name == "" {
		rec.Product.Name = seeds.ProductName
	}
}

func (e *Engine) fail(ctx context.Context, pageURL string, reason Reason, err error) error {
	if ctx.Err() != nil {
		reason = ReasonCanceled
	}
	e.logger.Warn("Extraction failed",
		logger.URL(pageURL),
		logger.String("reason", string(reason)),
		logger.Error(err),
	)
	return &ExtractionFailure{URL: pageURL, Reason: reason, Err: err}
}
