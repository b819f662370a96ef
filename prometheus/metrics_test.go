package prometheus_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwojciec/webcrawl"
	crawlprom "github.com/fwojciec/webcrawl/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_WriteJob(t *testing.T) {
	t.Parallel()

	t.Run("tracks transitions and active jobs", func(t *testing.T) {
		t.Parallel()

		m := crawlprom.NewMetrics()
		ctx := context.Background()
		job := &webcrawl.Job{ID: "job-1", Status: webcrawl.JobPending}

		require.NoError(t, m.WriteJob(ctx, job))
		require.NoError(t, job.Transition(webcrawl.JobRunning, time.Now()))
		require.NoError(t, m.WriteJob(ctx, job))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveJobs))

		require.NoError(t, job.Transition(webcrawl.JobCompleted, time.Now()))
		require.NoError(t, m.WriteJob(ctx, job))

		assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveJobs))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("pending")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("running")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("completed")))
	})

	t.Run("jobs failed before starting do not change active count", func(t *testing.T) {
		t.Parallel()

		m := crawlprom.NewMetrics()

		require.NoError(t, m.WriteJob(context.Background(), &webcrawl.Job{Status: webcrawl.JobFailed}))

		assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveJobs))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("failed")))
	})
}

func TestMetrics_WritePage(t *testing.T) {
	t.Parallel()

	m := crawlprom.NewMetrics()
	ctx := context.Background()

	require.NoError(t, m.WritePage(ctx, &webcrawl.PageResult{StatusCode: 200, MatchCount: 3, Duration: 100 * time.Millisecond, ContentLength: 2048}))
	require.NoError(t, m.WritePage(ctx, &webcrawl.PageResult{StatusCode: 200, MatchCount: 1, Depth: 1, Duration: time.Second}))
	require.NoError(t, m.WritePage(ctx, &webcrawl.PageResult{StatusCode: 404, ErrorKind: webcrawl.EFETCH}))
	require.NoError(t, m.WritePage(ctx, &webcrawl.PageResult{ErrorKind: webcrawl.EFETCH}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("200", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("404", "fetch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("none", "fetch")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MatchesTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(m.FetchDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PageBytes))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := crawlprom.NewMetrics()
	require.NoError(t, m.WritePage(context.Background(), &webcrawl.PageResult{StatusCode: 200}))

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `webcrawl_pages_total{error_kind="",status="200"} 1`)
	assert.Contains(t, string(body), "webcrawl_active_jobs 0")
}
