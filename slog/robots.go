package slog

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/webcrawl"
)

// Ensure LoggingRobotsChecker implements the robots interfaces.
var (
	_ webcrawl.RobotsChecker       = (*LoggingRobotsChecker)(nil)
	_ webcrawl.RobotsErrorReporter = (*LoggingRobotsChecker)(nil)
)

// LoggingRobotsChecker wraps a RobotsChecker, logging disallowed URLs,
// declared crawl delays and, once per host, robots.txt failures that made
// the host fail open.
type LoggingRobotsChecker struct {
	next   webcrawl.RobotsChecker
	logger *slog.Logger

	warned sync.Map
}

// NewLoggingRobotsChecker creates a new LoggingRobotsChecker.
func NewLoggingRobotsChecker(next webcrawl.RobotsChecker, logger *slog.Logger) *LoggingRobotsChecker {
	return &LoggingRobotsChecker{next: next, logger: logger}
}

func (c *LoggingRobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) bool {
	allowed := c.next.Allowed(ctx, rawURL, userAgent)
	if !allowed {
		c.logger.Info("robots disallowed", "url", rawURL, "agent", userAgent)
		return false
	}
	if err := c.RobotsError(rawURL); err != nil {
		c.warnOnce(rawURL, err)
	}
	return true
}

func (c *LoggingRobotsChecker) CrawlDelay(ctx context.Context, rawURL, userAgent string) time.Duration {
	delay := c.next.CrawlDelay(ctx, rawURL, userAgent)
	if delay > 0 {
		c.logger.Debug("robots crawl delay", "url", rawURL, "delay", delay)
	}
	return delay
}

// RobotsError delegates to the wrapped checker when it reports errors.
func (c *LoggingRobotsChecker) RobotsError(rawURL string) error {
	r, ok := c.next.(webcrawl.RobotsErrorReporter)
	if !ok {
		return nil
	}
	return r.RobotsError(rawURL)
}

func (c *LoggingRobotsChecker) warnOnce(rawURL string, err error) {
	u, perr := url.Parse(rawURL)
	if perr != nil {
		return
	}
	if _, seen := c.warned.LoadOrStore(u.Scheme+"://"+u.Host, struct{}{}); seen {
		return
	}
	c.logger.Warn("robots unavailable, allowing all",
		"host", u.Host,
		"code", webcrawl.ErrorCode(err),
		"err", webcrawl.ErrorMessage(err),
	)
}
