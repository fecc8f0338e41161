package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/llm"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

// ModelCaller is the part of llm.Invoker the classifier needs.
type ModelCaller interface {
	Call(ctx context.Context, req llm.Request, validate llm.Validator) (map[string]any, error)
}

const classifyInstruction = `You are classifying URLs from an e-commerce website.
For each URL decide whether it is a product detail page (a page for exactly one
purchasable product), using the URL shape and the heuristic hint.

Use one of these classifications:
- definite_pdp: certainly a single product page
- possible_pdp: might be a product page
- not_pdp: category, listing, search, content, account or any other page

Return one entry for every input URL, copying the URL exactly.`

var classificationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"classifications": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string"},
					"classification": map[string]any{
						"type": "string",
						"enum": []string{
							string(domain.DefinitePDP),
							string(domain.PossiblePDP),
							string(domain.NotPDP),
						},
					},
				},
				"required": []string{"url", "classification"},
			},
		},
	},
	"required": []string{"classifications"},
}

type classifyInput struct {
	URL          string `json:"url"`
	HeuristicPDP bool   `json:"heuristic_pdp"`
}

// Classifier labels discovered URLs in sequential, paced batches.
type Classifier struct {
	caller    ModelCaller
	batchSize int
	limiter   *rate.Limiter
	logger    logger.Logger
}

// NewClassifier creates a Classifier. batchDelay is the minimum gap between
// the start of consecutive batches.
func NewClassifier(caller ModelCaller, batchSize int, batchDelay time.Duration, log logger.Logger) *Classifier {
	limit := rate.Inf
	if batchDelay > 0 {
		limit = rate.Every(batchDelay)
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	return &Classifier{
		caller:    caller,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    log,
	}
}

// Classify sets Classification on urls in place. A batch whose call fails
// leaves its URLs unclassified and is counted in the returned failed count.
// Only context cancellation is returned as an error.
func (c *Classifier) Classify(ctx context.Context, urls []domain.DiscoveredURL) (batches, failed int, err error) {
	for start := 0; start < len(urls); start += c.batchSize {
		end := min(start+c.batchSize, len(urls))
		batches++

		if err = c.limiter.Wait(ctx); err != nil {
			return batches, failed, fmt.Errorf("wait for batch: %w", err)
		}

		if batchErr := c.classifyBatch(ctx, urls[start:end]); batchErr != nil {
			if ctx.Err() != nil {
				return batches, failed, ctx.Err()
			}
			failed++
			c.logger.Warn("Classification batch failed",
				logger.Int("batch", batches),
				logger.Int("size", end-start),
				logger.Error(batchErr),
			)
			continue
		}

		c.logger.Info("Classification batch done",
			logger.Int("batch", batches),
			logger.Int("size", end-start),
		)
	}

	return batches, failed, nil
}

func (c *Classifier) classifyBatch(ctx context.Context, batch []domain.DiscoveredURL) error {
	inputs := make([]classifyInput, len(batch))
	for i, u := range batch {
		inputs[i] = classifyInput{URL: u.URL, HeuristicPDP: u.HeuristicPDP}
	}
	payload, err := json.Marshal(map[string]any{"urls": inputs})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	obj, err := c.caller.Call(ctx, llm.Request{
		Job:         llm.JobClassify,
		Instruction: classifyInstruction,
		Schema:      classificationSchema,
		Payload:     string(payload),
	}, validateClassifications)
	if err != nil {
		return err
	}

	verdicts := make(map[string]domain.Classification)
	for _, entry := range obj["classifications"].([]any) {
		m := entry.(map[string]any)
		if key, keyErr := DedupKey(m["url"].(string)); keyErr == nil {
			verdicts[key] = domain.Classification(m["classification"].(string))
		}
	}

	for i := range batch {
		key, keyErr := DedupKey(batch[i].URL)
		if keyErr != nil {
			continue
		}
		if v, ok := verdicts[key]; ok {
			batch[i].Classification = v
		}
	}
	return nil
}

var errNoClassifications = errors.New("missing classifications array")

// validateClassifications checks the shape classifyBatch relies on.
func validateClassifications(obj map[string]any) error {
	list, ok := obj["classifications"].([]any)
	if !ok {
		return errNoClassifications
	}

	for i, entry := range list {
		m, isObj := entry.(map[string]any)
		if !isObj {
			return fmt.Errorf("classification %d is not an object", i)
		}
		if u, isStr := m["url"].(string); !isStr || u == "" {
			return fmt.Errorf("classification %d has no url", i)
		}
		label, isStr := m["classification"].(string)
		if !isStr {
			return fmt.Errorf("classification %d has no label", i)
		}
		if cl := domain.Classification(label); !cl.Valid() || cl == domain.Unclassified {
			return fmt.Errorf("classification %d has unknown label %q", i, label)
		}
	}
	return nil
}
