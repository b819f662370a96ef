package webcrawl

import (
	"context"
	"net/http"
	"strings"
)

// Response is the outcome of a single GET request.
type Response struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Redirects  int
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML reports whether the response declares an HTML content type.
// A missing Content-Type is treated as HTML.
func (r *Response) IsHTML() bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// Fetcher performs HTTP GET requests.
type Fetcher interface {
	// Fetch retrieves url, following a bounded number of redirects.
	// Any HTTP status yields a Response; network and timeout failures
	// return an EFETCH error. The context controls cancellation.
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetchFunc adapts an ordinary function to the Fetcher interface.
type FetchFunc func(ctx context.Context, url string) (*Response, error)

// Fetch calls f(ctx, url).
func (f FetchFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}
