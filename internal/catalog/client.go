// Package catalog is a client for the VTEX catalog, pricing and logistics
// APIs. Every call goes through a circuit breaker and the shared retry
// contract; entities that already exist surface as *ConflictError carrying
// the existing identity.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/httpclient"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/retry"
)

const (
	maxResponseBytes = 4 << 20
	maxErrorBody     = 300
)

// Client talks to one VTEX account.
type Client struct {
	baseURL    string
	pricingURL string
	appKey     string
	appToken   string
	cfg        config.VTEXConfig
	http       *http.Client
	breaker    *circuitbreaker.Breaker
	logger     logger.Logger
	metrics    *metrics.Metrics

	// Sleep overrides the backoff wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error

	groups map[int64]int64
	fields map[fieldKey]int64
}

type fieldKey struct {
	category int64
	name     string
}

// NewClient creates a Client. Base URLs are derived from the account and
// environment unless overridden.
func NewClient(cfg config.VTEXConfig, log logger.Logger, m *metrics.Metrics) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		if cfg.Account == "" {
			return nil, errors.New("vtex account is required")
		}
		baseURL = fmt.Sprintf("https://%s.%s.com.br", cfg.Account, cfg.Environment)
	}
	pricingURL := strings.TrimRight(cfg.PricingBaseURL, "/")
	if pricingURL == "" {
		pricingURL = "https://api.vtex.com/" + cfg.Account
	}

	log = log.With(logger.String("component", "vtex_client"))
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerThreshold,
		Timeout:          cfg.BreakerTimeout,
		IsFailure:        countsAgainstBreaker,
		OnStateChange: func(from, to circuitbreaker.State) {
			log.Warn("Catalog circuit breaker changed state",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL:    baseURL,
		pricingURL: pricingURL,
		appKey:     cfg.AppKey,
		appToken:   cfg.AppToken,
		cfg:        cfg,
		http: httpclient.NewClient(&httpclient.ClientConfig{
			Timeout: cfg.Timeout,
			Headers: map[string]string{
				"Accept":       "application/json",
				"Content-Type": "application/json",
			},
		}),
		breaker: breaker,
		logger:  log,
		metrics: m,
		groups:  make(map[int64]int64),
		fields:  make(map[fieldKey]int64),
	}, nil
}

// countsAgainstBreaker is true for transport failures and 5xx responses.
// Client errors say nothing about the health of the API.
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

// IsRetryable reports whether err from this client was transient. An open
// breaker and cancellation are final.
func IsRetryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return retry.DefaultIsRetryable(err)
}

// do sends a JSON request to base+path and decodes the response into out.
func (c *Client) do(ctx context.Context, method, base, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	cfg := retry.Config{
		MaxAttempts:  c.cfg.Retry.MaxAttempts,
		InitialDelay: c.cfg.Retry.TransientDelay,
		MaxDelay:     c.cfg.Retry.MaxDelay,
		Multiplier:   c.cfg.Retry.Multiplier,
		IsRetryable:  IsRetryable,
		Sleep:        c.Sleep,
		DelayFor: func(err error) time.Duration {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RateLimited() {
				return c.cfg.Retry.InitialDelay
			}
			return c.cfg.Retry.TransientDelay
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			reason := "catalog_transient"
			if isStatus(err, http.StatusTooManyRequests) {
				reason = "catalog_rate_limited"
			}
			c.metrics.Retry(reason)
			c.logger.Warn("Retrying catalog call",
				logger.String("method", method),
				logger.String("path", path),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Error(err),
			)
		},
	}

	var respBody []byte
	err := retry.Retry(ctx, cfg, func() error {
		return c.breaker.Execute(func() error {
			b, sendErr := c.send(ctx, method, base+path, path, payload)
			respBody = b
			return sendErr
		})
	})
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if decodeErr := json.Unmarshal(respBody, out); decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, url, path string, payload []byte) ([]byte, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-VTEX-API-AppKey", c.appKey)
	req.Header.Set("X-VTEX-API-AppToken", c.appToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(respBody))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: text}
	}

	return respBody, nil
}

func alreadyExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != http.StatusBadRequest && apiErr.StatusCode != http.StatusConflict {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	return strings.Contains(body, "already exists") || strings.Contains(body, "duplicate")
}
