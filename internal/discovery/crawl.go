package discovery

import (
	"context"
	"fmt"
	"net/url"

	colly "github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/queue"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
)

const crawlThreads = 1

// crawlState collects the URLs found during one crawl. The queue runs a
// single worker, so callbacks never overlap.
type crawlState struct {
	found   *urlSet
	queued  *urlSet
	urls    []domain.DiscoveredURL
	visited int
	full    bool
}

func (s *crawlState) record(raw string, hint bool) {
	if idx, ok := s.found.index(raw); ok {
		if hint {
			s.urls[idx].HeuristicPDP = true
		}
		return
	}
	if _, isNew := s.found.add(raw, len(s.urls)); isNew {
		s.urls = append(s.urls, domain.DiscoveredURL{
			URL:            raw,
			Source:         domain.SourceCrawl,
			Classification: domain.Unclassified,
			HeuristicPDP:   hint,
		})
	}
}

// crawlSite runs a breadth-first crawl of the root host. Links that match a
// product URL pattern are recorded without being visited; other page links
// are queued while the queue has room.
func crawlSite(
	ctx context.Context,
	cfg config.DiscoveryConfig,
	f *fetcher.Fetcher,
	robots *fetcher.Robots,
	root *url.URL,
	log logger.Logger,
	m *metrics.Metrics,
) ([]domain.DiscoveredURL, error) {
	rootHost := root.Hostname()
	bare := bareHost(rootHost)

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowedDomains(bare, "www."+bare),
		colly.UserAgent(f.UserAgent()),
	)
	c.WithTransport(f.Client().Transport)
	c.SetRequestTimeout(cfg.RequestTimeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       cfg.CrawlDelay,
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("set crawl limit: %w", err)
	}

	q, err := queue.New(crawlThreads, &queue.InMemoryQueueStorage{MaxSize: cfg.MaxQueue})
	if err != nil {
		return nil, fmt.Errorf("create crawl queue: %w", err)
	}

	state := &crawlState{found: newURLSet(), queued: newURLSet()}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || state.visited >= cfg.MaxPages {
			r.Abort()
			return
		}
		state.visited++
	})

	c.OnResponse(func(r *colly.Response) {
		m.PageFetched("discovery", metrics.OutcomeSuccess)
		page := r.Request.URL.String()
		if IsPageLike(page) {
			state.record(page, LooksLikePDP(page))
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		m.PageFetched("discovery", metrics.OutcomeFailure)
		log.Debug("Crawl request failed",
			logger.URL(r.Request.URL.String()),
			logger.Int("status", r.StatusCode),
			logger.Error(err),
		)
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		if HasProductSignals(e.DOM) {
			state.record(e.Request.URL.String(), true)
		}
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if href == "" || skipLink(href) {
			return
		}

		abs := e.Request.AbsoluteURL(href)
		u, parseErr := url.Parse(abs)
		if abs == "" || parseErr != nil || !sameSite(rootHost, u) || !IsPageLike(abs) {
			return
		}
		if !robots.Allowed(u.EscapedPath()) {
			return
		}

		if LooksLikePDP(abs) {
			state.record(abs, true)
			return
		}

		if state.full || state.queued.seen(abs) {
			return
		}
		state.queued.add(abs, 0)
		if addErr := q.AddURL(abs); addErr != nil {
			state.full = true
			log.Debug("Crawl queue full", logger.Int("max_queue", cfg.MaxQueue))
		}
	})

	state.queued.add(root.String(), 0)
	if err = q.AddURL(root.String()); err != nil {
		return nil, fmt.Errorf("queue root: %w", err)
	}
	if err = q.Run(c); err != nil {
		return nil, fmt.Errorf("run crawl: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	log.Info("Crawl finished",
		logger.URL(root.String()),
		logger.Int("pages_visited", state.visited),
		logger.Int("urls_found", len(state.urls)),
	)

	return state.urls, nil
}
