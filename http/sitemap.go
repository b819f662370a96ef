package http

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/webcrawl"
)

// maxSitemapURLs bounds how many URLs one discovery returns.
const maxSitemapURLs = 50000

// Ensure SitemapService implements webcrawl.SitemapService.
var _ webcrawl.SitemapService = (*SitemapService)(nil)

// SitemapService discovers URLs from sitemaps fetched through a webcrawl.Fetcher.
type SitemapService struct {
	fetcher webcrawl.Fetcher
}

// NewSitemapService creates a SitemapService that downloads through fetcher.
func NewSitemapService(fetcher webcrawl.Fetcher) *SitemapService {
	return &SitemapService{fetcher: fetcher}
}

// DiscoverURLs returns the normalized URLs listed in the site's sitemaps.
// Returns an empty slice (not nil) if no sitemaps are found.
//
// When baseURL has a non-root path (e.g., https://example.com/docs),
// only URLs under that path are returned.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, webcrawl.Errorf(webcrawl.EINVALIDURL, "invalid base URL %q", baseURL)
	}
	prefix := strings.TrimSuffix(base.Path, "/")
	root := base.Scheme + "://" + base.Host

	sitemaps := s.sitemapsFromRobots(ctx, root+"/robots.txt")
	if len(sitemaps) == 0 {
		sitemaps = []string{root + "/sitemap.xml"}
	}

	urls := []string{}
	seenURLs := make(map[string]bool)
	seenSitemaps := make(map[string]bool)
	for _, sm := range sitemaps {
		locs, err := s.process(ctx, sm, seenSitemaps)
		if err != nil {
			return nil, err
		}
		for _, loc := range locs {
			u, err := webcrawl.Normalize(loc)
			if err != nil || seenURLs[u] || !underPath(u, prefix) {
				continue
			}
			seenURLs[u] = true
			urls = append(urls, u)
			if len(urls) == maxSitemapURLs {
				return urls, nil
			}
		}
	}
	return urls, nil
}

// underPath reports whether rawURL's path equals prefix or lies below it.
func underPath(rawURL, prefix string) bool {
	if prefix == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}

// sitemapsFromRobots extracts Sitemap: directives from robots.txt.
func (s *SitemapService) sitemapsFromRobots(ctx context.Context, robotsURL string) []string {
	body, err := s.get(ctx, robotsURL)
	if err != nil {
		return nil
	}

	var sitemaps []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) > len("sitemap:") && strings.EqualFold(line[:len("sitemap:")], "sitemap:") {
			if loc := strings.TrimSpace(line[len("sitemap:"):]); loc != "" {
				sitemaps = append(sitemaps, loc)
			}
		}
	}
	return sitemaps
}

// process fetches a sitemap and returns its locations, descending into
// sitemap indexes. A missing or unreadable sitemap contributes nothing.
func (s *SitemapService) process(ctx context.Context, sitemapURL string, seen map[string]bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seen[sitemapURL] {
		return nil, nil
	}
	seen[sitemapURL] = true

	body, err := s.get(ctx, sitemapURL)
	if err != nil {
		return nil, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, nil
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}

	if root.Tag != "sitemapindex" {
		return locs(root, "url"), nil
	}

	var urls []string
	for _, child := range locs(root, "sitemap") {
		found, err := s.process(ctx, child, seen)
		if err != nil {
			return nil, err
		}
		urls = append(urls, found...)
	}
	return urls, nil
}

// locs returns the trimmed <loc> text of each child element named tag.
func locs(root *etree.Element, tag string) []string {
	var out []string
	for _, el := range root.SelectElements(tag) {
		loc := el.SelectElement("loc")
		if loc == nil {
			continue
		}
		if u := strings.TrimSpace(loc.Text()); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (s *SitemapService) get(ctx context.Context, target string) ([]byte, error) {
	resp, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response for %s", target)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, target)
	}
	return resp.Body, nil
}
