package crawl

import (
	"context"
	"errors"

	"github.com/fwojciec/webcrawl"
)

var _ webcrawl.ResultSink = MultiSink(nil)

// MultiSink writes to every sink in order and joins their errors.
type MultiSink []webcrawl.ResultSink

func (m MultiSink) WriteJob(ctx context.Context, job *webcrawl.Job) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteJob(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) WritePage(ctx context.Context, result *webcrawl.PageResult) error {
	var errs []error
	for _, s := range m {
		if err := s.WritePage(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
