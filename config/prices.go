package config

import (
	"fmt"

	"github.com/kilianp07/smartcharge/connectors/factory"
	"github.com/kilianp07/smartcharge/core/session"
)

// PricesConfig selects the day-ahead price source and the grid tariff
// layered on top of the spot price.
type PricesConfig struct {
	Provider string `json:"provider"`
	BaseURL  string `json:"base_url"`
	Area     string `json:"area"`

	GridFeeSEK     float64 `json:"grid_fee"`
	EnergyTaxSEK   float64 `json:"energy_tax"`
	RetailerFeeSEK float64 `json:"retailer_fee"`
	VATRate        float64 `json:"vat_rate"`
}

// SetDefaults fills unset fields. An empty base_url keeps the provider's
// built-in endpoint.
func (c *PricesConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = factory.IDElpris
	}
	if c.Area == "" {
		c.Area = "SE3"
	}
	t := c.Tariff()
	t.SetDefaults()
	c.GridFeeSEK = t.GridFeeSEK
	c.EnergyTaxSEK = t.EnergyTaxSEK
	c.RetailerFeeSEK = t.RetailerFeeSEK
	c.VATRate = t.VATRate
}

// Validate rejects unknown providers and negative tariffs.
func (c *PricesConfig) Validate() error {
	switch c.Provider {
	case factory.IDElpris, factory.IDMock:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	t := c.Tariff()
	return t.Validate()
}

// Tariff exposes the grid cost components in the shape the session tracker
// consumes.
func (c PricesConfig) Tariff() session.Config {
	return session.Config{
		GridFeeSEK:     c.GridFeeSEK,
		EnergyTaxSEK:   c.EnergyTaxSEK,
		RetailerFeeSEK: c.RetailerFeeSEK,
		VATRate:        c.VATRate,
	}
}
