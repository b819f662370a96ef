package mock

import (
	"context"

	"github.com/fwojciec/webcrawl"
)

var _ webcrawl.JobService = (*JobService)(nil)

// JobService is a mock implementation of webcrawl.JobService.
type JobService struct {
	CreateJobFn   func(ctx context.Context, job *webcrawl.Job) error
	UpdateJobFn   func(ctx context.Context, job *webcrawl.Job) error
	FindJobByIDFn func(ctx context.Context, id string) (*webcrawl.Job, error)
	FindJobsFn    func(ctx context.Context, filter webcrawl.JobFilter) ([]*webcrawl.Job, error)
}

func (s *JobService) CreateJob(ctx context.Context, job *webcrawl.Job) error {
	return s.CreateJobFn(ctx, job)
}

func (s *JobService) UpdateJob(ctx context.Context, job *webcrawl.Job) error {
	return s.UpdateJobFn(ctx, job)
}

func (s *JobService) FindJobByID(ctx context.Context, id string) (*webcrawl.Job, error) {
	return s.FindJobByIDFn(ctx, id)
}

func (s *JobService) FindJobs(ctx context.Context, filter webcrawl.JobFilter) ([]*webcrawl.Job, error) {
	return s.FindJobsFn(ctx, filter)
}

var _ webcrawl.PageService = (*PageService)(nil)

// PageService is a mock implementation of webcrawl.PageService.
type PageService struct {
	FindPagesFn func(ctx context.Context, filter webcrawl.PageFilter) ([]*webcrawl.PageResult, error)
}

func (s *PageService) FindPages(ctx context.Context, filter webcrawl.PageFilter) ([]*webcrawl.PageResult, error) {
	return s.FindPagesFn(ctx, filter)
}
