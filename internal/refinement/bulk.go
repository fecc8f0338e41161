package refinement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/extraction"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
)

// ErrNotApproved is returned when bulk extraction runs without an accepted
// sample.
var ErrNotApproved = errors.New("bulk extraction requires an accepted sample")

const unknownReason = "unknown"

// Bulk extracts the remaining selected URLs unattended.
type Bulk struct {
	extractor Extractor
	store     checkpoint.Store
	logger    logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewBulk creates a Bulk runner.
func NewBulk(ex Extractor, store checkpoint.Store, log logger.Logger, m *metrics.Metrics) *Bulk {
	return &Bulk{extractor: ex, store: store, logger: log, metrics: m, now: time.Now}
}

// Run extracts every URL with the approved instructions. The extraction
// checkpoint is saved after each unit, and units already done in a saved
// batch are skipped. Unit failures are recorded in the batch; only
// cancellation and checkpoint errors stop the run.
func (b *Bulk) Run(ctx context.Context, approval Approval, urls []string) (*domain.ExtractionBatch, error) {
	if !approval.Valid() {
		return nil, ErrNotApproved
	}

	batch := &domain.ExtractionBatch{}
	found, err := b.store.Load(ctx, checkpoint.Extraction, batch)
	if err != nil {
		return nil, fmt.Errorf("load extraction batch: %w", err)
	}
	if found {
		b.logger.Info("Resuming bulk extraction",
			logger.Int("done", len(batch.Done)),
			logger.Int("records", len(batch.Records)),
		)
	}

	if sample := approval.Record(); sample != nil && !batch.IsDone(sample.SourceURL) {
		batch.Records = append(batch.Records, *sample)
		batch.Done = append(batch.Done, sample.SourceURL)
		if saveErr := b.save(ctx, batch); saveErr != nil {
			return batch, saveErr
		}
	}

	instructions := approval.Instructions()
	for i, pageURL := range urls {
		if ctxErr := ctx.Err(); ctxErr != nil {
			b.logger.Warn("Bulk extraction interrupted", logger.Int("remaining", len(urls)-i))
			return batch, ctxErr
		}
		if batch.IsDone(pageURL) {
			b.metrics.ExtractionUnit(metrics.OutcomeSkipped)
			continue
		}

		rec, extractErr := b.extractor.ExtractURL(ctx, pageURL, instructions)
		if extractErr != nil && ctx.Err() != nil {
			return batch, ctx.Err()
		}

		if extractErr != nil {
			batch.Failures = append(batch.Failures, domain.ExtractionFailureRecord{
				URL:    pageURL,
				Reason: failureReason(extractErr),
				At:     b.now().UTC(),
			})
		} else {
			batch.Records = append(batch.Records, *rec)
		}
		batch.Done = append(batch.Done, pageURL)

		if saveErr := b.save(ctx, batch); saveErr != nil {
			return batch, saveErr
		}

		b.logger.Debug("Bulk unit finished",
			logger.URL(pageURL),
			logger.Int("position", i+1),
			logger.Int("total", len(urls)),
			logger.Bool("failed", extractErr != nil),
		)
	}

	b.logger.Info("Bulk extraction complete",
		logger.Int("records", len(batch.Records)),
		logger.Int("failures", len(batch.Failures)),
	)
	return batch, nil
}

func (b *Bulk) save(ctx context.Context, batch *domain.ExtractionBatch) error {
	if err := b.store.Save(ctx, checkpoint.Extraction, batch); err != nil {
		return fmt.Errorf("save extraction batch: %w", err)
	}
	return nil
}

func failureReason(err error) string {
	var failure *extraction.ExtractionFailure
	if errors.As(err, &failure) {
		return string(failure.Reason)
	}
	return unknownReason
}
