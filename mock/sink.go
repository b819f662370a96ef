package mock

import (
	"context"

	"github.com/fwojciec/webcrawl"
)

var _ webcrawl.ResultSink = (*ResultSink)(nil)

// ResultSink is a mock implementation of webcrawl.ResultSink.
type ResultSink struct {
	WriteJobFn  func(ctx context.Context, job *webcrawl.Job) error
	WritePageFn func(ctx context.Context, result *webcrawl.PageResult) error
}

func (s *ResultSink) WriteJob(ctx context.Context, job *webcrawl.Job) error {
	return s.WriteJobFn(ctx, job)
}

func (s *ResultSink) WritePage(ctx context.Context, result *webcrawl.PageResult) error {
	return s.WritePageFn(ctx, result)
}
