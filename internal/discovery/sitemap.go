package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

// defaultSitemapPaths are probed when robots.txt lists no sitemaps.
var defaultSitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemaps.xml"}

// xmlURLSet is the root element of a standard sitemap.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc string `xml:"loc"`
}

// xmlSitemapIndex is the root element of a sitemap index.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// ParseSitemap returns the page URLs of a urlset and the child sitemaps of a
// sitemap index. Exactly one of the two is non-empty for a valid document.
func ParseSitemap(body []byte) (pages, children []string, err error) {
	var urlset xmlURLSet
	if xml.Unmarshal(body, &urlset) == nil {
		for _, u := range urlset.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				pages = append(pages, loc)
			}
		}
		return pages, nil, nil
	}

	var index xmlSitemapIndex
	if indexErr := xml.Unmarshal(body, &index); indexErr != nil {
		return nil, nil, fmt.Errorf("parse sitemap: %w", indexErr)
	}
	for _, s := range index.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			children = append(children, loc)
		}
	}
	return nil, children, nil
}

// sitemapReader walks sitemaps and sitemap indexes for one root. Indexes
// are expanded at any depth; visited stops cycles.
type sitemapReader struct {
	fetcher  *fetcher.Fetcher
	logger   logger.Logger
	rootHost string

	visited map[string]bool
	found   *urlSet
	urls    []string
}

func newSitemapReader(f *fetcher.Fetcher, log logger.Logger, root *url.URL) *sitemapReader {
	return &sitemapReader{
		fetcher:  f,
		logger:   log,
		rootHost: root.Hostname(),
		visited:  make(map[string]bool),
		found:    newURLSet(),
	}
}

// discoverSitemapURLs reads every sitemap robots.txt lists, then the default
// locations in order until one yields pages.
func discoverSitemapURLs(ctx context.Context, r *sitemapReader, root *url.URL, robots *fetcher.Robots) []string {
	for _, loc := range robots.Sitemaps() {
		r.read(ctx, loc, 0)
	}

	if len(r.urls) > 0 {
		return r.urls
	}

	for _, p := range defaultSitemapPaths {
		if ctx.Err() != nil {
			break
		}
		loc := (&url.URL{Scheme: root.Scheme, Host: root.Host, Path: p}).String()
		r.read(ctx, loc, 0)
		if len(r.urls) > 0 {
			break
		}
	}
	return r.urls
}

func (r *sitemapReader) read(ctx context.Context, loc string, depth int) {
	if ctx.Err() != nil {
		return
	}
	key, err := DedupKey(loc)
	if err != nil || r.visited[key] {
		return
	}
	r.visited[key] = true

	page, err := r.fetcher.Fetch(ctx, loc)
	if err != nil {
		r.logger.Debug("Sitemap unavailable", logger.URL(loc), logger.Error(err))
		return
	}

	pages, children, err := ParseSitemap(page.Body)
	if err != nil {
		r.logger.Debug("Not a sitemap", logger.URL(loc), logger.Error(err))
		return
	}

	for _, child := range children {
		r.read(ctx, child, depth+1)
	}

	for _, p := range pages {
		u, parseErr := url.Parse(p)
		if parseErr != nil || !sameSite(r.rootHost, u) || !IsPageLike(p) {
			continue
		}
		if _, isNew := r.found.add(p, len(r.urls)); isNew {
			r.urls = append(r.urls, p)
		}
	}

	r.logger.Info("Sitemap read",
		logger.URL(loc),
		logger.Int("depth", depth),
		logger.Int("pages", len(pages)),
		logger.Int("children", len(children)),
	)
}
