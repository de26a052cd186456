package elpris

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `[
	{"SEK_per_kWh":0.3614,"EUR_per_kWh":0.0322,"EXR":11.213,"time_start":"2026-08-25T00:00:00+02:00","time_end":"2026-08-25T01:00:00+02:00"},
	{"SEK_per_kWh":0.2871,"EUR_per_kWh":0.0256,"EXR":11.213,"time_start":"2026-08-25T01:00:00+02:00","time_end":"2026-08-25T02:00:00+02:00"}
]`

func TestPrices(t *testing.T) {
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	t.Run("decodes published day", func(t *testing.T) {
		var gotPath string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(samplePayload))
		}))
		defer ts.Close()

		c := &Client{}
		series, err := c.Prices(context.Background(), day, WithBaseURL(ts.URL), WithArea("SE3"))
		require.NoError(t, err)
		assert.Equal(t, "/2026/08-25_SE3.json", gotPath)

		require.Len(t, series, 2)
		assert.InDelta(t, 0.3614, series[0].Price, 1e-9)
		assert.InDelta(t, 0.2871, series[1].Price, 1e-9)
		assert.True(t, series[0].Timestamp.Before(series[1].Timestamp))
		assert.False(t, series[0].IsForecasted)
		assert.Equal(t, series[0].Timestamp, series[0].Timestamp.Truncate(time.Hour))
	})

	t.Run("unpublished day yields empty series", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer ts.Close()

		c := &Client{}
		series, err := c.Prices(context.Background(), day, WithBaseURL(ts.URL))
		require.NoError(t, err)
		assert.Empty(t, series)
	})

	t.Run("retries server errors", func(t *testing.T) {
		requests := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests == 1 {
				http.Error(w, "upstream hiccup", http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(samplePayload))
		}))
		defer ts.Close()

		c := &Client{}
		series, err := c.Prices(context.Background(), day,
			WithBaseURL(ts.URL), WithRetry(3, time.Millisecond))
		require.NoError(t, err)
		assert.Equal(t, 2, requests)
		assert.Len(t, series, 2)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		requests := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			http.Error(w, "bad area", http.StatusBadRequest)
		}))
		defer ts.Close()

		c := &Client{}
		_, err := c.Prices(context.Background(), day,
			WithBaseURL(ts.URL), WithRetry(3, time.Millisecond))
		require.Error(t, err)
		assert.Equal(t, 1, requests)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		requests := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			http.Error(w, "still down", http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		c := &Client{}
		_, err := c.Prices(context.Background(), day,
			WithBaseURL(ts.URL), WithRetry(2, time.Millisecond))
		require.Error(t, err)
		assert.Equal(t, 2, requests)
		assert.Contains(t, err.Error(), "after 2 attempts")
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := &Client{}
		_, err := c.Prices(ctx, day, WithBaseURL(ts.URL), WithRetry(3, time.Second))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&apiError{statusCode: http.StatusTooManyRequests}))
	assert.True(t, isRetryable(&apiError{statusCode: http.StatusBadGateway}))
	assert.False(t, isRetryable(&apiError{statusCode: http.StatusForbidden}))
	assert.True(t, isRetryable(assert.AnError))
}
