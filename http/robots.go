package http

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/webcrawl"
	"github.com/temoto/robotstxt"
)

// DefaultRobotsTimeout bounds a single robots.txt fetch.
const DefaultRobotsTimeout = 5 * time.Second

// Ensure RobotsChecker implements webcrawl.RobotsChecker at compile time.
var (
	_ webcrawl.RobotsChecker       = (*RobotsChecker)(nil)
	_ webcrawl.RobotsErrorReporter = (*RobotsChecker)(nil)
)

// RobotsChecker evaluates robots.txt rules, caching one parsed file per
// scheme and host. Hosts whose robots.txt cannot be fetched or parsed, or
// that answer with a non-2xx status, are treated as allowing everything.
// Failures other than a 4xx status are recorded as EROBOTS errors and
// reported by RobotsError.
type RobotsChecker struct {
	fetcher webcrawl.Fetcher
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

type robotsEntry struct {
	ready     chan struct{}
	data      *robotstxt.RobotsData
	err       error
	fetchedAt time.Time
}

// RobotsOption configures a RobotsChecker.
type RobotsOption func(*RobotsChecker)

// WithRobotsTimeout sets the timeout for robots.txt requests.
func WithRobotsTimeout(d time.Duration) RobotsOption {
	return func(c *RobotsChecker) {
		c.timeout = d
	}
}

// WithRobotsTTL makes cached entries expire after d. Zero keeps entries
// for the lifetime of the checker.
func WithRobotsTTL(d time.Duration) RobotsOption {
	return func(c *RobotsChecker) {
		c.ttl = d
	}
}

// WithRobotsClock overrides the clock used for TTL expiry.
func WithRobotsClock(now func() time.Time) RobotsOption {
	return func(c *RobotsChecker) {
		c.now = now
	}
}

// NewRobotsChecker returns a checker that downloads robots.txt through fetcher.
func NewRobotsChecker(fetcher webcrawl.Fetcher, opts ...RobotsOption) *RobotsChecker {
	c := &RobotsChecker{
		fetcher: fetcher,
		timeout: DefaultRobotsTimeout,
		now:     time.Now,
		hosts:   make(map[string]*robotsEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allowed reports whether userAgent may fetch rawURL.
func (c *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	data := c.lookup(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.RequestURI(), userAgent)
}

// CrawlDelay returns the Crawl-delay of the group matching userAgent.
func (c *RobotsChecker) CrawlDelay(ctx context.Context, rawURL, userAgent string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0
	}
	data := c.lookup(ctx, u)
	if data == nil {
		return 0
	}
	group := data.FindGroup(userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// lookup returns cached robots data for the host of u, fetching it on first
// use. Concurrent callers for one host share a single fetch.
func (c *RobotsChecker) lookup(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	c.mu.Lock()
	entry, ok := c.hosts[key]
	if ok && c.expired(entry) {
		ok = false
	}
	if !ok {
		entry = &robotsEntry{ready: make(chan struct{})}
		c.hosts[key] = entry
		c.mu.Unlock()

		entry.data, entry.err = c.fetch(ctx, key+"/robots.txt")
		entry.fetchedAt = c.now()
		close(entry.ready)
		return entry.data
	}
	c.mu.Unlock()

	select {
	case <-entry.ready:
		return entry.data
	case <-ctx.Done():
		return nil
	}
}

// expired must be called with mu held.
func (c *RobotsChecker) expired(entry *robotsEntry) bool {
	if c.ttl <= 0 {
		return false
	}
	select {
	case <-entry.ready:
		return c.now().Sub(entry.fetchedAt) >= c.ttl
	default:
		return false
	}
}

// RobotsError returns the error that made the host of rawURL fail open, or
// nil when its robots.txt was usable, absent or not fetched yet.
func (c *RobotsChecker) RobotsError(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	c.mu.Lock()
	entry, ok := c.hosts[u.Scheme+"://"+u.Host]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-entry.ready:
		return entry.err
	default:
		return nil
	}
}

// fetch downloads and parses robotsURL. A 4xx status means there is no
// robots.txt and yields neither data nor an error.
func (c *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.fetcher.Fetch(ctx, robotsURL)
	switch {
	case err != nil:
		return nil, webcrawl.Errorf(webcrawl.EROBOTS, "fetch %s: %s", robotsURL, describe(err))
	case resp == nil:
		return nil, webcrawl.Errorf(webcrawl.EROBOTS, "fetch %s: empty response", robotsURL)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, nil
	case !resp.OK():
		return nil, webcrawl.Errorf(webcrawl.EROBOTS, "fetch %s: HTTP %d", robotsURL, resp.StatusCode)
	}

	data, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		return nil, webcrawl.Errorf(webcrawl.EROBOTS, "parse %s: %v", robotsURL, err)
	}
	return data, nil
}

// describe returns the message of an application error or the text of any
// other error.
func describe(err error) string {
	var e *webcrawl.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
