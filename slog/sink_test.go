package slog_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fwojciec/webcrawl"
	"github.com/fwojciec/webcrawl/mock"
	crawlslog "github.com/fwojciec/webcrawl/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingSink_WriteJob(t *testing.T) {
	t.Parallel()

	t.Run("logs terminal stats and delegates", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		var written *webcrawl.Job
		inner := &mock.ResultSink{
			WriteJobFn: func(ctx context.Context, job *webcrawl.Job) error {
				written = job
				return nil
			},
		}
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		job := &webcrawl.Job{
			ID:        "job-1",
			Spec:      webcrawl.JobSpec{SeedURL: "https://example.com/"},
			Status:    webcrawl.JobCompleted,
			Stats:     webcrawl.JobStats{Pages: 3, Failed: 1},
			StartedAt: start,
			EndedAt:   start.Add(time.Minute),
		}

		sink := crawlslog.NewLoggingSink(inner, debugLogger(&buf))
		require.NoError(t, sink.WriteJob(context.Background(), job))

		assert.Same(t, job, written)
		output := buf.String()
		assert.Contains(t, output, "job=job-1")
		assert.Contains(t, output, "status=completed")
		assert.Contains(t, output, "pages=3")
		assert.Contains(t, output, "failed=1")
		assert.Contains(t, output, "elapsed=1m0s")
	})

	t.Run("omits stats while running", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		sink := crawlslog.NewLoggingSink(nil, debugLogger(&buf))

		require.NoError(t, sink.WriteJob(context.Background(), &webcrawl.Job{ID: "job-1", Status: webcrawl.JobRunning}))

		output := buf.String()
		assert.Contains(t, output, "status=running")
		assert.NotContains(t, output, "pages=")
	})

	t.Run("returns the wrapped sink error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.ResultSink{
			WriteJobFn: func(ctx context.Context, job *webcrawl.Job) error {
				return errors.New("disk full")
			},
		}

		sink := crawlslog.NewLoggingSink(inner, debugLogger(&buf))
		assert.EqualError(t, sink.WriteJob(context.Background(), &webcrawl.Job{ID: "job-1"}), "disk full")
	})
}

func TestLoggingSink_WritePage(t *testing.T) {
	t.Parallel()

	t.Run("logs failures at warn level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		sink := crawlslog.NewLoggingSink(nil, debugLogger(&buf))

		require.NoError(t, sink.WritePage(context.Background(), &webcrawl.PageResult{
			JobID:      "job-1",
			URL:        "https://example.com/missing",
			StatusCode: 404,
			ErrorKind:  webcrawl.EFETCH,
			Error:      "HTTP 404",
		}))

		output := buf.String()
		assert.Contains(t, output, "level=WARN")
		assert.Contains(t, output, "kind=fetch")
		assert.Contains(t, output, "err=\"HTTP 404\"")
	})

	t.Run("logs matches at debug level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		sink := crawlslog.NewLoggingSink(nil, debugLogger(&buf))

		require.NoError(t, sink.WritePage(context.Background(), &webcrawl.PageResult{
			JobID:      "job-1",
			URL:        "https://example.com/",
			StatusCode: 200,
			MatchCount: 4,
		}))

		output := buf.String()
		assert.Contains(t, output, "level=DEBUG")
		assert.Contains(t, output, "matches=4")
	})
}
