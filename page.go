package webcrawl

import (
	"context"
	"strconv"
	"time"
)

// PageResult is the immutable record of one processed URL, successful or not.
type PageResult struct {
	JobID         string         `json:"jobId"`
	URL           string         `json:"url"`
	FinalURL      string         `json:"finalUrl,omitempty"`
	Depth         int            `json:"depth"`
	Referrer      string         `json:"referrer,omitempty"`
	StatusCode    int            `json:"statusCode"`
	ErrorKind     string         `json:"errorKind,omitempty"`
	Error         string         `json:"error,omitempty"`
	LinkCount     int            `json:"linkCount"`
	Matches       map[string]int `json:"matches,omitempty"`
	MatchCount    int            `json:"matchCount"`
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	ContentType   string         `json:"contentType,omitempty"`
	ContentLength int            `json:"contentLength"`
	ContentHash   string         `json:"contentHash,omitempty"`
	Duration      time.Duration  `json:"duration"`
	FetchedAt     time.Time      `json:"fetchedAt"`
}

// Failed reports whether the page could not be fetched or parsed.
func (r *PageResult) Failed() bool {
	return r.ErrorKind != ""
}

// Matched reports whether any search term occurred on the page.
func (r *PageResult) Matched() bool {
	return r.MatchCount > 0
}

// Row is the flat tabular projection of a PageResult used by exporters.
type Row struct {
	URL        string
	Depth      int
	Status     string
	LinkCount  int
	Matched    bool
	MatchCount int
	Title      string
	Error      string
}

// RowHeader is the column order of Row.Strings.
var RowHeader = []string{"url", "depth", "status", "links", "matched", "matches", "title", "error"}

// Row flattens the result. Status is the HTTP status code, or the error
// kind when no response was received.
func (r *PageResult) Row() Row {
	status := strconv.Itoa(r.StatusCode)
	if r.StatusCode == 0 {
		status = r.ErrorKind
	}
	return Row{
		URL:        r.URL,
		Depth:      r.Depth,
		Status:     status,
		LinkCount:  r.LinkCount,
		Matched:    r.Matched(),
		MatchCount: r.MatchCount,
		Title:      r.Title,
		Error:      r.Error,
	}
}

// Strings renders the row as string cells in RowHeader order.
func (r Row) Strings() []string {
	return []string{
		r.URL,
		strconv.Itoa(r.Depth),
		r.Status,
		strconv.Itoa(r.LinkCount),
		strconv.FormatBool(r.Matched),
		strconv.Itoa(r.MatchCount),
		r.Title,
		r.Error,
	}
}

// Rows flattens a result sequence preserving order.
func Rows(results []*PageResult) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.Row())
	}
	return rows
}

// PageService represents a service for querying persisted page results.
type PageService interface {
	// FindPages returns the results of a job in emission order.
	FindPages(ctx context.Context, filter PageFilter) ([]*PageResult, error)
}

// PageFilter represents a filter for FindPages.
type PageFilter struct {
	JobID   *string `json:"jobId"`
	Matched *bool   `json:"matched"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ResultSink receives page results and job status changes as a crawl runs.
// Implementations persist or publish them; the crawler never depends on a
// sink succeeding.
type ResultSink interface {
	// WriteJob records the current state of a job.
	WriteJob(ctx context.Context, job *Job) error

	// WritePage records one emitted page result.
	WritePage(ctx context.Context, result *PageResult) error
}
