// Package elpris fetches Swedish day-ahead spot prices from
// elprisetjustnu.se.
package elpris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/kilianp07/smartcharge/connectors"
	"github.com/kilianp07/smartcharge/core/model"
)

const (
	defaultBaseURL  = "https://www.elprisetjustnu.se/api/v1/prices"
	defaultArea     = "SE3"
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

// Client fetches one day of prices per call. The zero value is usable;
// options and lazy defaults fill the rest.
type Client struct {
	baseURL  string
	area     string
	http     *http.Client
	attempts int
	backoff  time.Duration
}

// hourlyPrice mirrors one element of the provider's JSON array.
type hourlyPrice struct {
	SEKPerKWh float64   `json:"SEK_per_kWh"`
	EURPerKWh float64   `json:"EUR_per_kWh"`
	EXR       float64   `json:"EXR"`
	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`
}

// Prices fetches the published hourly prices for the calendar day of `day`
// in the area. Tomorrow's prices appear around 13:00; asking for an
// unpublished day returns an empty series. Rate limiting and server errors
// are retried with exponential backoff.
func (c *Client) Prices(ctx context.Context, day time.Time, opts ...connectors.Option) (model.PriceSeries, error) {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.setDefaults()

	url := fmt.Sprintf("%s/%d/%02d-%02d_%s.json", c.baseURL, day.Year(), int(day.Month()), day.Day(), c.area)

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		series, err := c.fetch(ctx, url)
		if err == nil {
			return series, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) fetch(ctx context.Context, url string) (model.PriceSeries, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	// The provider answers 404 for any day it has not published yet.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &apiError{statusCode: resp.StatusCode, message: string(body)}
	}

	var hours []hourlyPrice
	if err := json.NewDecoder(resp.Body).Decode(&hours); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	series := make(model.PriceSeries, 0, len(hours))
	for _, h := range hours {
		series = append(series, model.PricePoint{
			Timestamp: h.TimeStart.Truncate(time.Hour),
			Price:     h.SEKPerKWh,
		})
	}
	series.Sort()
	return series, nil
}

func (c *Client) setDefaults() {
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.area == "" {
		c.area = defaultArea
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.attempts == 0 {
		c.attempts = defaultAttempts
	}
	if c.backoff == 0 {
		c.backoff = defaultBackoff
	}
}

type apiError struct {
	statusCode int
	message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.statusCode, e.message)
}

func isRetryable(err error) bool {
	ae, ok := err.(*apiError)
	if !ok {
		return true // network errors are retryable
	}
	return ae.statusCode == http.StatusTooManyRequests || ae.statusCode >= 500
}
