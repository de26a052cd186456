// Package config loads and validates the service configuration from a YAML
// or JSON file with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/smartcharge/api/dashboard"
	"github.com/kilianp07/smartcharge/core/engine"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/target"
	"github.com/kilianp07/smartcharge/infra/homeassistant"
	"github.com/kilianp07/smartcharge/infra/mqtt"
	"github.com/kilianp07/smartcharge/infra/store"
	"github.com/kilianp07/smartcharge/infra/vehicles"
	"github.com/kilianp07/smartcharge/infra/weather"
)

// Config is the full service configuration. Each section is owned by the
// package that consumes it; this struct only composes them.
type Config struct {
	// AppEnv switches log output: "dev" renders a console, anything else
	// one JSON object per line.
	AppEnv    string               `json:"app_env"`
	Vehicles  []vehicles.Config    `json:"vehicles"`
	Planner   engine.Config        `json:"planner"`
	Target    target.Config        `json:"target"`
	Forecast  forecast.Config      `json:"forecast"`
	Prices    PricesConfig         `json:"prices"`
	Weather   weather.Config       `json:"weather"`
	Hub       homeassistant.Config `json:"hub"`
	Charger   mqtt.CommanderConfig `json:"charger"`
	Store     store.Config         `json:"store"`
	History   store.HistoryConfig  `json:"history"`
	Metrics   metrics.Config       `json:"metrics"`
	Dashboard dashboard.Config     `json:"dashboard"`
	Cycle     CycleConfig          `json:"cycle"`
}

// Load reads the file at path, applies K_-prefixed environment overrides,
// fills defaults and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section's unset fields.
func (c *Config) SetDefaults() {
	for i := range c.Vehicles {
		c.Vehicles[i].SetDefaults()
	}
	c.Planner.SetDefaults()
	c.Target.SetDefaults()
	c.Forecast.SetDefaults()
	c.Prices.SetDefaults()
	c.Weather.SetDefaults()
	c.Hub.SetDefaults()
	c.Charger.SetDefaults()
	c.Store.SetDefaults()
	c.History.SetDefaults()
	c.Metrics.SetDefaults()
	c.Dashboard.SetDefaults()
	c.Cycle.SetDefaults()
}

// Validate checks every section. The hub is only required when a vehicle
// reads telemetry from hub entities, the charger only when one is declared.
func (c *Config) Validate() error {
	if len(c.Vehicles) == 0 {
		return fmt.Errorf("at least one vehicle is required")
	}
	seen := make(map[string]bool, len(c.Vehicles))
	needsHub := false
	for i := range c.Vehicles {
		v := &c.Vehicles[i]
		if err := v.Validate(); err != nil {
			return err
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate vehicle id %s", v.ID)
		}
		seen[v.ID] = true
		if v.Entities.SoC != "" {
			needsHub = true
		}
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	if err := c.Prices.Validate(); err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	if err := c.Weather.Validate(); err != nil {
		return fmt.Errorf("weather: %w", err)
	}
	if needsHub {
		if err := c.Hub.Validate(); err != nil {
			return fmt.Errorf("hub: %w", err)
		}
	}
	if c.ChargerEnabled() {
		if err := c.Charger.Validate(); err != nil {
			return fmt.Errorf("charger: %w", err)
		}
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Dashboard.Validate(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	if err := c.Cycle.Validate(); err != nil {
		return fmt.Errorf("cycle: %w", err)
	}
	return nil
}

// ChargerEnabled reports whether a charger is configured. Without one the
// service still decides and records, it just never commands.
func (c *Config) ChargerEnabled() bool {
	return c.Charger.ChargerID != "" || c.Charger.MQTT.Broker != ""
}
