package slog

import (
	"context"
	"log/slog"

	"github.com/fwojciec/webcrawl"
)

// Ensure LoggingSink implements webcrawl.ResultSink.
var _ webcrawl.ResultSink = (*LoggingSink)(nil)

// LoggingSink wraps a ResultSink, logging job transitions and page results.
// A nil next sink only logs.
type LoggingSink struct {
	next   webcrawl.ResultSink
	logger *slog.Logger
}

// NewLoggingSink creates a new LoggingSink.
func NewLoggingSink(next webcrawl.ResultSink, logger *slog.Logger) *LoggingSink {
	return &LoggingSink{next: next, logger: logger}
}

func (s *LoggingSink) WriteJob(ctx context.Context, job *webcrawl.Job) error {
	attrs := []any{"job", job.ID, "status", job.Status, "seed", job.Spec.SeedURL}
	if job.Status.Terminal() {
		attrs = append(attrs,
			"pages", job.Stats.Pages,
			"failed", job.Stats.Failed,
			"skipped", job.Stats.Skipped,
			"elapsed", job.Elapsed(job.EndedAt),
		)
	}
	if job.Message != "" {
		attrs = append(attrs, "message", job.Message)
	}
	s.logger.Info("job", attrs...)

	if s.next == nil {
		return nil
	}
	return s.next.WriteJob(ctx, job)
}

func (s *LoggingSink) WritePage(ctx context.Context, result *webcrawl.PageResult) error {
	level := slog.LevelDebug
	attrs := []any{"job", result.JobID, "url", result.URL, "depth", result.Depth, "status", result.StatusCode}
	if result.Failed() {
		level = slog.LevelWarn
		attrs = append(attrs, "kind", result.ErrorKind, "err", result.Error)
	}
	if result.Matched() {
		attrs = append(attrs, "matches", result.MatchCount)
	}
	s.logger.Log(ctx, level, "page", attrs...)

	if s.next == nil {
		return nil
	}
	return s.next.WritePage(ctx, result)
}
