// Package discovery finds candidate product pages on a legacy storefront
// and classifies them before extraction.
//
// Sitemaps are tried first; a bounded same-host crawl runs only when no
// sitemap yields URLs. Every candidate is then classified in sequential,
// paced batches.
package discovery

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	errEmptyInput          = errors.New("dedup key: empty input")
	errMissingSchemeOrHost = errors.New("dedup key: missing scheme or host")
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// DedupKey maps equivalent storefront URLs to one key:
//
//   - scheme forced to https
//   - host lowercased, default port removed
//   - path lowercased, dot segments resolved, trailing slash removed (root stays "/")
//   - query and fragment dropped
//
// The key is only used for identity; the first-seen URL string is what gets stored.
func DedupKey(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("dedup key: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}

	host := strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" && port != defaultPorts[strings.ToLower(parsed.Scheme)] && port != "443" {
		host += ":" + port
	}

	return "https://" + host + normalizePath(parsed.Path), nil
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	cleaned := path.Clean("/" + strings.ToLower(p))
	if cleaned == "/" {
		return cleaned
	}
	return strings.TrimRight(cleaned, "/")
}

// sameSite reports whether u is on the root host. A leading "www." is ignored
// on both sides.
func sameSite(rootHost string, u *url.URL) bool {
	return bareHost(rootHost) == bareHost(u.Hostname())
}

func bareHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}

// urlSet keeps first-seen URLs keyed by DedupKey.
type urlSet struct {
	keys map[string]int
}

func newURLSet() *urlSet {
	return &urlSet{keys: make(map[string]int)}
}

// add records raw and returns its key and whether it was new.
func (s *urlSet) add(raw string, idx int) (string, bool) {
	key, err := DedupKey(raw)
	if err != nil {
		return "", false
	}
	if _, seen := s.keys[key]; seen {
		return key, false
	}
	s.keys[key] = idx
	return key, true
}

func (s *urlSet) index(raw string) (int, bool) {
	key, err := DedupKey(raw)
	if err != nil {
		return 0, false
	}
	i, ok := s.keys[key]
	return i, ok
}

func (s *urlSet) seen(raw string) bool {
	_, ok := s.index(raw)
	return ok
}
