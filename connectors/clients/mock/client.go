// Package mock provides an in-memory spot price client for tests and the
// simulator.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/connectors"
	"github.com/kilianp07/smartcharge/core/model"
)

// Client serves canned price series keyed by calendar day. Safe for
// concurrent use.
type Client struct {
	mu   sync.RWMutex
	days map[string]model.PriceSeries
	err  error
}

// SetDay registers the series returned for the calendar day of t.
func (c *Client) SetDay(t time.Time, series model.PriceSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.days == nil {
		c.days = make(map[string]model.PriceSeries)
	}
	c.days[dayKey(t)] = series
}

// Fail makes every subsequent call return err. Pass nil to recover.
func (c *Client) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Prices returns the registered series for the day, or an empty series when
// none was registered, mirroring a provider that has not published yet.
func (c *Client) Prices(_ context.Context, day time.Time, opts ...connectors.Option) (model.PriceSeries, error) {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	series, ok := c.days[dayKey(day)]
	if !ok {
		return nil, nil
	}
	out := make(model.PriceSeries, len(series))
	copy(out, series)
	return out, nil
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
