package elpris

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/smartcharge/connectors"
)

// WithArea selects the bidding area, e.g. SE1 through SE4.
func WithArea(area string) connectors.Option {
	return func(c connectors.SpotPriceClient) error {
		if e, ok := c.(*Client); ok {
			e.area = area
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithArea", "elpris")
	}
}

// WithBaseURL points the client at a different endpoint, used by tests.
func WithBaseURL(url string) connectors.Option {
	return func(c connectors.SpotPriceClient) error {
		if e, ok := c.(*Client); ok {
			e.baseURL = url
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithBaseURL", "elpris")
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) connectors.Option {
	return func(c connectors.SpotPriceClient) error {
		if e, ok := c.(*Client); ok {
			e.http = hc
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithHTTPClient", "elpris")
	}
}

// WithRetry tunes the attempt count and initial backoff.
func WithRetry(attempts int, backoff time.Duration) connectors.Option {
	return func(c connectors.SpotPriceClient) error {
		if e, ok := c.(*Client); ok {
			e.attempts = attempts
			e.backoff = backoff
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithRetry", "elpris")
	}
}
