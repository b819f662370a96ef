// Package prometheus exposes crawl activity as Prometheus metrics.
package prometheus

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fwojciec/webcrawl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ webcrawl.ResultSink = (*Metrics)(nil)

// Metrics is a ResultSink that counts jobs and pages on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	JobsTotal     *prometheus.CounterVec
	PagesTotal    *prometheus.CounterVec
	MatchesTotal  prometheus.Counter
	FetchDuration *prometheus.HistogramVec
	PageBytes     prometheus.Histogram
	ActiveJobs    prometheus.Gauge
}

// NewMetrics registers the crawler metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webcrawl_job_transitions_total",
			Help: "Job status changes, by the status entered.",
		}, []string{"status"}),
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webcrawl_pages_total",
			Help: "Page results emitted, by HTTP status and error kind.",
		}, []string{"status", "error_kind"}),
		MatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "webcrawl_term_matches_total",
			Help: "Search term occurrences found in page text.",
		}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webcrawl_fetch_duration_seconds",
			Help:    "Time spent fetching and parsing a page.",
			Buckets: prometheus.DefBuckets,
		}, []string{"depth"}),
		PageBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "webcrawl_page_bytes",
			Help:    "Size of fetched page bodies.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webcrawl_active_jobs",
			Help: "Jobs currently running.",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) WriteJob(_ context.Context, job *webcrawl.Job) error {
	m.JobsTotal.WithLabelValues(string(job.Status)).Inc()
	switch {
	case job.Status == webcrawl.JobRunning:
		m.ActiveJobs.Inc()
	case job.Status.Terminal() && !job.StartedAt.IsZero():
		m.ActiveJobs.Dec()
	}
	return nil
}

func (m *Metrics) WritePage(_ context.Context, result *webcrawl.PageResult) error {
	status := "none"
	if result.StatusCode > 0 {
		status = strconv.Itoa(result.StatusCode)
	}
	m.PagesTotal.WithLabelValues(status, result.ErrorKind).Inc()
	m.MatchesTotal.Add(float64(result.MatchCount))
	if result.Duration > 0 {
		m.FetchDuration.WithLabelValues(strconv.Itoa(result.Depth)).Observe(result.Duration.Seconds())
	}
	if result.ContentLength > 0 {
		m.PageBytes.Observe(float64(result.ContentLength))
	}
	return nil
}
