// Package http provides net/http implementations of webcrawl.Fetcher,
// webcrawl.RobotsChecker and webcrawl.SitemapService.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/webcrawl"
)

const (
	// DefaultFetchTimeout is the default timeout for page requests.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 10 << 20

	// MaxRedirects is the number of redirects followed before a fetch fails.
	MaxRedirects = 5
)

const acceptHeader = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"

var errTooManyRedirects = errors.New("too many redirects")

// Ensure Fetcher implements webcrawl.Fetcher at compile time.
var _ webcrawl.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves pages with plain HTTP GET requests.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	transport   http.RoundTripper
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for each request.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize sets the number of body bytes read per response.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithTransport sets the round tripper used by the underlying client.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.transport = rt
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		userAgent:   webcrawl.DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout:       f.timeout,
		Transport:     f.transport,
		CheckRedirect: checkRedirect,
	}

	return f
}

type redirectCountKey struct{}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > MaxRedirects {
		return errTooManyRedirects
	}
	if n, ok := req.Context().Value(redirectCountKey{}).(*int); ok {
		*n = len(via)
	}
	return nil
}

// Fetch retrieves url. Any HTTP status produces a Response; only transport
// failures are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*webcrawl.Response, error) {
	var redirects int
	ctx = context.WithValue(ctx, redirectCountKey{}, &redirects)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, webcrawl.Errorf(webcrawl.EFETCH, "creating request: %v", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("reading body: %w", err))
	}

	return &webcrawl.Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Redirects:  redirects,
	}, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return webcrawl.Errorf(webcrawl.ECANCELED, "%v", ctx.Err())
	case errors.Is(err, errTooManyRedirects):
		return webcrawl.Errorf(webcrawl.EFETCH, "too many redirects")
	case isTimeout(err):
		return webcrawl.Errorf(webcrawl.EFETCH, "timeout: %v", err)
	default:
		return webcrawl.Errorf(webcrawl.EFETCH, "%v", err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
