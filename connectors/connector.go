package connectors

import (
	"context"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// SpotPriceClient fetches confirmed day-ahead spot prices for one bidding
// area.
type SpotPriceClient interface {
	// Prices returns the hourly points published for the calendar day of
	// `day`. A day the provider has not published yet yields an empty
	// series, not an error.
	Prices(ctx context.Context, day time.Time, opts ...Option) (model.PriceSeries, error)
}

// Option mutates a client before a fetch. Options are client-specific;
// applying one to the wrong client fails with ErrIncompatibleOption.
type Option func(SpotPriceClient) error

// ErrIncompatibleOption is the format of the error returned when an option
// is applied to a client that does not support it.
const ErrIncompatibleOption = "option %s does not apply to connector %s"
