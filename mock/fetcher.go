package mock

import (
	"context"

	"github.com/fwojciec/webcrawl"
)

var _ webcrawl.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of webcrawl.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (*webcrawl.Response, error)
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*webcrawl.Response, error) {
	return f.FetchFn(ctx, url)
}
