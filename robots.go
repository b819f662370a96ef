package webcrawl

import (
	"context"
	"time"
)

// RobotsChecker answers robots.txt policy questions for a user agent.
type RobotsChecker interface {
	// Allowed reports whether rawURL may be fetched. Hosts whose
	// robots.txt cannot be retrieved are allowed.
	Allowed(ctx context.Context, rawURL, userAgent string) bool

	// CrawlDelay returns the Crawl-delay declared for userAgent on the
	// host of rawURL, or zero.
	CrawlDelay(ctx context.Context, rawURL, userAgent string) time.Duration
}

// RobotsErrorReporter is implemented by checkers that can report why a host
// fell back to allowing everything.
type RobotsErrorReporter interface {
	// RobotsError returns the error recorded for the host of rawURL, or nil.
	RobotsError(rawURL string) error
}

// AllowAll is a RobotsChecker that permits everything. It is used when a
// job ignores robots.txt.
type AllowAll struct{}

func (AllowAll) Allowed(context.Context, string, string) bool { return true }

func (AllowAll) CrawlDelay(context.Context, string, string) time.Duration { return 0 }
