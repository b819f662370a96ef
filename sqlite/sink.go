package sqlite

import (
	"context"

	"github.com/fwojciec/webcrawl"
)

var _ webcrawl.ResultSink = (*Sink)(nil)

// Sink persists crawl progress: jobs are upserted on every status change and
// page results are appended as they are emitted.
type Sink struct {
	Jobs  *JobService
	Pages *PageService
}

// NewSink returns a Sink writing to db.
func NewSink(db *DB) *Sink {
	return &Sink{Jobs: NewJobService(db), Pages: NewPageService(db)}
}

func (s *Sink) WriteJob(ctx context.Context, job *webcrawl.Job) error {
	err := s.Jobs.UpdateJob(ctx, job)
	if webcrawl.ErrorCode(err) == webcrawl.ENOTFOUND {
		return s.Jobs.CreateJob(ctx, job)
	}
	return err
}

func (s *Sink) WritePage(ctx context.Context, result *webcrawl.PageResult) error {
	return s.Pages.CreatePage(ctx, result)
}
