package fetcher

import (
	"context"
	"net/url"

	"github.com/temoto/robotstxt"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

const robotsTxtPath = "/robots.txt"

// Robots holds a parsed robots.txt. A missing or unreadable file allows
// everything and lists no sitemaps.
type Robots struct {
	data      *robotstxt.RobotsData
	userAgent string
}

// FetchRobots loads robots.txt for the host of rootURL.
func (f *Fetcher) FetchRobots(ctx context.Context, rootURL string) *Robots {
	r := &Robots{userAgent: f.cfg.UserAgent}

	u, err := url.Parse(rootURL)
	if err != nil || u.Host == "" {
		return r
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: robotsTxtPath}).String()

	page, err := f.Fetch(ctx, robotsURL)
	if err != nil {
		f.logger.Debug("robots.txt unavailable, allowing all", logger.URL(robotsURL), logger.Error(err))
		return r
	}

	data, err := robotstxt.FromBytes(page.Body)
	if err != nil {
		return r
	}
	r.data = data
	return r
}

// ParseRobots parses a robots.txt body.
func ParseRobots(body []byte, userAgent string) *Robots {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return &Robots{userAgent: userAgent}
	}
	return &Robots{data: data, userAgent: userAgent}
}

// Allowed reports whether path may be crawled.
func (r *Robots) Allowed(path string) bool {
	if r == nil || r.data == nil {
		return true
	}
	return r.data.TestAgent(path, r.userAgent)
}

// Sitemaps returns the Sitemap: entries in file order.
func (r *Robots) Sitemaps() []string {
	if r == nil || r.data == nil {
		return nil
	}
	return r.data.Sitemaps
}
