package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
)

var (
	// ErrNoCandidates is returned when neither sitemaps nor the crawl found a page.
	ErrNoCandidates = errors.New("no candidate URLs discovered")
	// ErrInvalidRoot is returned for a root URL without a host.
	ErrInvalidRoot = errors.New("invalid root URL")
)

// Engine runs discovery for one storefront.
type Engine struct {
	cfg        config.DiscoveryConfig
	fetcher    *fetcher.Fetcher
	classifier *Classifier
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// NewEngine creates an Engine.
func NewEngine(
	cfg config.DiscoveryConfig,
	f *fetcher.Fetcher,
	caller ModelCaller,
	log logger.Logger,
	m *metrics.Metrics,
) *Engine {
	return &Engine{
		cfg:        cfg,
		fetcher:    f,
		classifier: NewClassifier(caller, cfg.BatchSize, cfg.BatchDelay, log),
		logger:     log,
		metrics:    m,
	}
}

// ParseRoot accepts a storefront root with or without a scheme.
func ParseRoot(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoot, raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// Discover finds, classifies and selects candidate product pages under rootURL.
func (e *Engine) Discover(ctx context.Context, rootURL string) (*domain.DiscoveryResult, error) {
	root, err := ParseRoot(rootURL)
	if err != nil {
		return nil, err
	}

	robots := e.fetcher.FetchRobots(ctx, root.String())

	urls := e.fromSitemaps(ctx, root, robots)
	if len(urls) == 0 {
		e.logger.Info("No sitemap URLs, falling back to crawl", logger.URL(root.String()))
		urls, err = crawlSite(ctx, e.cfg, e.fetcher, robots, root, e.logger, e.metrics)
		if err != nil {
			return nil, fmt.Errorf("crawl: %w", err)
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(urls) == 0 {
		return nil, ErrNoCandidates
	}

	batches, failed, err := e.classifier.Classify(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	result := &domain.DiscoveryResult{
		RootURL:        root.String(),
		URLs:           urls,
		FailedBatches:  failed,
		ReviewRequired: batches > 0 && failed == batches,
	}
	Select(result, e.cfg.IncludeURLs)

	e.logger.Info("Discovery finished",
		logger.URL(root.String()),
		logger.Int("urls", len(result.URLs)),
		logger.Int("selected", len(result.Selected)),
		logger.Int("review", len(result.Review)),
		logger.Int("failed_batches", failed),
		logger.Bool("review_required", result.ReviewRequired),
	)

	return result, nil
}

func (e *Engine) fromSitemaps(ctx context.Context, root *url.URL, robots *fetcher.Robots) []domain.DiscoveredURL {
	reader := newSitemapReader(e.fetcher, e.logger, root)
	locs := discoverSitemapURLs(ctx, reader, root, robots)

	urls := make([]domain.DiscoveredURL, 0, len(locs))
	for _, loc := range locs {
		urls = append(urls, domain.DiscoveredURL{
			URL:            loc,
			Source:         domain.SourceSitemap,
			Classification: domain.Unclassified,
			HeuristicPDP:   LooksLikePDP(loc),
		})
	}
	return urls
}

// Select rebuilds result.Selected and result.Review.
//
// Selected holds definite product pages plus overrides. Possible and
// unclassified pages go to Review. When ReviewRequired is set every URL is
// selected. Overrides that were never discovered are appended with source
// "override".
func Select(result *domain.DiscoveryResult, overrides []string) {
	known := newURLSet()
	for i, u := range result.URLs {
		known.add(u.URL, i)
	}

	forced := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		o = strings.TrimSpace(o)
		key, err := DedupKey(o)
		if err != nil {
			continue
		}
		if _, isNew := known.add(o, len(result.URLs)); isNew {
			result.URLs = append(result.URLs, domain.DiscoveredURL{
				URL:            o,
				Source:         domain.SourceOverride,
				Classification: domain.Unclassified,
			})
		}
		forced[key] = true
	}

	result.Selected = nil
	result.Review = nil
	for _, u := range result.URLs {
		key, _ := DedupKey(u.URL)
		switch {
		case result.ReviewRequired, forced[key], u.Classification == domain.DefinitePDP:
			result.Selected = append(result.Selected, u.URL)
		case u.Classification == domain.PossiblePDP, u.Classification == domain.Unclassified:
			result.Review = append(result.Review, u.URL)
		}
	}
}
