package crawl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fwojciec/webcrawl/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	t.Parallel()

	delays := []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	t.Run("returns immediately on success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := crawl.Retry(context.Background(), delays, func(context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := crawl.Retry(context.Background(), delays, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error after exhausting retries", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := crawl.Retry(context.Background(), delays, func(context.Context) error {
			calls++
			return errors.New("permanent")
		})

		require.EqualError(t, err, "permanent")
		assert.Equal(t, 4, calls)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := crawl.Retry(ctx, []time.Duration{time.Hour}, func(context.Context) error {
			calls++
			cancel()
			return errors.New("fail")
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("makes a single attempt without delays", func(t *testing.T) {
		t.Parallel()

		calls := 0
		_ = crawl.Retry(context.Background(), nil, func(context.Context) error {
			calls++
			return errors.New("fail")
		})

		assert.Equal(t, 1, calls)
	})
}

func TestDefaultRetryDelays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, crawl.DefaultRetryDelays())
}
