// Package fetcher downloads storefront pages, sitemaps and robots.txt with
// classified errors and bounded retries.
package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/httpclient"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/retry"
)

const (
	defaultMaxBodyBytes = 20 << 20
	defaultMaxAttempts  = 3
	defaultRetryDelay   = time.Second
	maxRetryDelay       = 30 * time.Second
)

// Config configures a Fetcher.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxAttempts  int
	RetryDelay   time.Duration
	MaxBodyBytes int64
	// Stage labels metrics, e.g. "discovery" or "extraction".
	Stage string
}

// Page is a fetched document.
type Page struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher performs GETs with retries on 429, 5xx and network failures.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	logger  logger.Logger
	metrics *metrics.Metrics

	// Sleep overrides the backoff wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher. An empty UserAgent uses a desktop browser agent.
func New(cfg Config, log logger.Logger, m *metrics.Metrics) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = httpclient.BrowserUserAgent
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	client := httpclient.NewClient(&httpclient.ClientConfig{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9,pt-BR;q=0.8",
		},
	})

	return &Fetcher{client: client, cfg: cfg, logger: log, metrics: m}
}

// UserAgent returns the agent sent with every request.
func (f *Fetcher) UserAgent() string {
	return f.cfg.UserAgent
}

// Client returns the underlying HTTP client.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch GETs rawURL. Non-2xx responses are returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	var page *Page

	err := retry.Retry(ctx, retry.Config{
		MaxAttempts:  f.cfg.MaxAttempts,
		InitialDelay: f.cfg.RetryDelay,
		MaxDelay:     maxRetryDelay,
		Multiplier:   2,
		Sleep:        f.Sleep,
		IsRetryable: func(err error) bool {
			var fe *FetchError
			return errors.As(err, &fe) && fe.Retryable()
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			f.metrics.Retry("fetch")
			f.logger.Debug("Retrying fetch",
				logger.URL(rawURL),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Error(err),
			)
		},
	}, func() error {
		p, fetchErr := f.do(ctx, rawURL)
		if fetchErr != nil {
			return fetchErr
		}
		page = p
		return nil
	})
	if err != nil {
		f.metrics.PageFetched(f.cfg.Stage, metrics.OutcomeFailure)
		return nil, err
	}

	f.metrics.PageFetched(f.cfg.Stage, metrics.OutcomeSuccess)
	return page, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ClassifyNetworkError(err, rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, ClassifyHTTPStatus(resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, ClassifyNetworkError(err, rawURL)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, &FetchError{Type: ErrTypeTooLarge, URL: rawURL, Cause: fmt.Errorf("body exceeds %d bytes", f.cfg.MaxBodyBytes)}
	}

	body, err = maybeGunzip(body)
	if err != nil {
		return nil, &FetchError{Type: ErrTypeUnexpected, URL: rawURL, Cause: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// maybeGunzip decompresses bodies that are still gzip framed, as served
// for .xml.gz sitemaps.
func maybeGunzip(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open gzip body: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, defaultMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read gzip body: %w", err)
	}
	return out, nil
}
