package crawl_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/webcrawl"
	"github.com/fwojciec/webcrawl/crawl"
	"github.com/fwojciec/webcrawl/mock"
	"github.com/stretchr/testify/assert"
)

func TestMultiSink(t *testing.T) {
	t.Parallel()

	t.Run("writes to every sink", func(t *testing.T) {
		t.Parallel()

		a, b := &memorySink{}, &memorySink{}
		sink := crawl.MultiSink{a, b}

		assert.NoError(t, sink.WriteJob(context.Background(), &webcrawl.Job{Status: webcrawl.JobRunning}))
		assert.NoError(t, sink.WritePage(context.Background(), &webcrawl.PageResult{URL: "https://example.com/"}))

		for _, s := range []*memorySink{a, b} {
			assert.Equal(t, []webcrawl.JobStatus{webcrawl.JobRunning}, s.statuses)
			assert.Equal(t, []string{"https://example.com/"}, s.pages)
		}
	})

	t.Run("continues past failures and joins errors", func(t *testing.T) {
		t.Parallel()

		failing := &mock.ResultSink{
			WriteJobFn:  func(context.Context, *webcrawl.Job) error { return errors.New("first") },
			WritePageFn: func(context.Context, *webcrawl.PageResult) error { return errors.New("first") },
		}
		ok := &memorySink{}
		sink := crawl.MultiSink{failing, ok}

		err := sink.WritePage(context.Background(), &webcrawl.PageResult{URL: "u"})

		assert.EqualError(t, err, "first")
		assert.Equal(t, []string{"u"}, ok.pages)
	})
}
