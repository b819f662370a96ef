package mock

import (
	"context"
	"time"

	"github.com/fwojciec/webcrawl"
)

var (
	_ webcrawl.RobotsChecker       = (*RobotsChecker)(nil)
	_ webcrawl.RobotsErrorReporter = (*RobotsChecker)(nil)
)

// RobotsChecker is a mock implementation of webcrawl.RobotsChecker.
type RobotsChecker struct {
	AllowedFn    func(ctx context.Context, rawURL, userAgent string) bool
	CrawlDelayFn func(ctx context.Context, rawURL, userAgent string) time.Duration

	// RobotsErrorFn is optional; a nil func reports no error.
	RobotsErrorFn func(rawURL string) error
}

func (c *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) bool {
	return c.AllowedFn(ctx, rawURL, userAgent)
}

func (c *RobotsChecker) CrawlDelay(ctx context.Context, rawURL, userAgent string) time.Duration {
	return c.CrawlDelayFn(ctx, rawURL, userAgent)
}

func (c *RobotsChecker) RobotsError(rawURL string) error {
	if c.RobotsErrorFn == nil {
		return nil
	}
	return c.RobotsErrorFn(rawURL)
}
