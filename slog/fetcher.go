// Package slog provides logging decorators for the crawler's collaborators.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/webcrawl"
)

// Ensure LoggingFetcher implements webcrawl.Fetcher.
var _ webcrawl.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with debug logging.
type LoggingFetcher struct {
	next   webcrawl.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next webcrawl.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch delegates to the wrapped fetcher and logs the request.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (resp *webcrawl.Response, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", url}
		if resp != nil {
			attrs = append(attrs, "status", resp.StatusCode, "bytes", len(resp.Body))
			if resp.Redirects > 0 {
				attrs = append(attrs, "final", resp.URL, "redirects", resp.Redirects)
			}
		}
		attrs = append(attrs, "duration", time.Since(begin))
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		f.logger.Debug("fetch", attrs...)
	}(time.Now())
	return f.next.Fetch(ctx, url)
}
