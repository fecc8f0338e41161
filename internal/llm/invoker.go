package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/retry"
)

// Validator checks a decoded response object. A returned error is treated
// as a schema failure and retried within the schema budget.
type Validator func(obj map[string]any) error

// Invoker calls a Service under the shared retry contract:
//
//   - rate-limited failures back off from retry.initial_delay
//   - other transient failures back off from retry.transient_delay
//   - schema failures are retried at most retry.schema_attempts times
//   - nothing exceeds retry.max_attempts in total
type Invoker struct {
	service      Service
	retry        config.RetryConfig
	requestDelay time.Duration
	logger       logger.Logger
	metrics      *metrics.Metrics

	// Sleep is used for backoff and request pacing.
	Sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu       sync.Mutex
	lastCall time.Time
}

// NewInvoker wraps service.
func NewInvoker(service Service, cfg config.LLMConfig, log logger.Logger, m *metrics.Metrics) *Invoker {
	return &Invoker{
		service:      service,
		retry:        cfg.Retry,
		requestDelay: cfg.RequestDelay,
		logger:       log.With(logger.String("provider", service.Name())),
		metrics:      m,
		now:          time.Now,
	}
}

// Call sends req and returns the decoded response object.
func (i *Invoker) Call(ctx context.Context, req Request, validate Validator) (map[string]any, error) {
	var (
		result         map[string]any
		schemaFailures int
	)

	cfg := retry.Config{
		MaxAttempts:  i.retry.MaxAttempts,
		InitialDelay: i.retry.TransientDelay,
		MaxDelay:     i.retry.MaxDelay,
		Multiplier:   i.retry.Multiplier,
		Sleep:        i.Sleep,
		IsRetryable: func(err error) bool {
			var se *ServiceError
			if errors.As(err, &se) {
				return se.Transient()
			}
			var sve *SchemaValidationError
			if errors.As(err, &sve) {
				return schemaFailures < i.retry.SchemaAttempts
			}
			return false
		},
		DelayFor: func(err error) time.Duration {
			if IsRateLimited(err) {
				return i.retry.InitialDelay
			}
			return i.retry.TransientDelay
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			reason := retryReason(err)
			i.metrics.Retry(reason)
			i.logger.Warn("Retrying model call",
				logger.String("job", req.Job),
				logger.String("reason", reason),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Error(err),
			)
		},
	}

	err := retry.Retry(ctx, cfg, func() error {
		if paceErr := i.pace(ctx); paceErr != nil {
			return paceErr
		}

		start := i.now()
		raw, genErr := i.service.Generate(ctx, req)
		elapsed := i.now().Sub(start).Seconds()
		if genErr != nil {
			i.metrics.LLMCall(req.Job, metrics.OutcomeFailure, elapsed)
			return genErr
		}

		obj, decodeErr := DecodeObject(raw)
		if decodeErr == nil && validate != nil {
			if vErr := validate(obj); vErr != nil {
				decodeErr = asSchemaError(vErr, raw)
			}
		}
		if decodeErr != nil {
			schemaFailures++
			i.metrics.LLMCall(req.Job, "invalid", elapsed)
			return decodeErr
		}

		i.metrics.LLMCall(req.Job, metrics.OutcomeSuccess, elapsed)
		result = obj
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// pace holds calls at least requestDelay apart.
func (i *Invoker) pace(ctx context.Context) error {
	if i.requestDelay <= 0 {
		return nil
	}

	i.mu.Lock()
	var wait time.Duration
	if !i.lastCall.IsZero() {
		wait = i.requestDelay - i.now().Sub(i.lastCall)
	}
	i.mu.Unlock()

	if wait > 0 {
		sleep := i.Sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	i.mu.Lock()
	i.lastCall = i.now()
	i.mu.Unlock()
	return nil
}

func asSchemaError(err error, raw string) error {
	var sve *SchemaValidationError
	if errors.As(err, &sve) {
		return err
	}
	return &SchemaValidationError{Reason: err.Error(), Raw: raw}
}

func retryReason(err error) string {
	var sve *SchemaValidationError
	switch {
	case IsRateLimited(err):
		return "rate_limited"
	case errors.As(err, &sve):
		return "schema"
	default:
		return "transient"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
