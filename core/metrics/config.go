package metrics

import "github.com/kilianp07/smartcharge/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PromListen starts a standalone exposition listener on this address,
	// for scrapers that must not traverse the dashboard middleware. Empty
	// leaves exposition to the dashboard mux alone.
	PromListen string `json:"prom_listen"`
}

// SetDefaults leaves the sink list empty, which resolves to a NopSink.
func (c *Config) SetDefaults() {}

// Validate accepts any sink list; unknown types fail at creation time.
func (c *Config) Validate() error { return nil }
