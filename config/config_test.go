package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `app_env: dev
vehicles:
  - id: leaf
    name: "Nissan Leaf"
    capacity_kwh: 39
    max_charge_kw: 3.6
    phases: 1
    min_soc: 60
    max_soc: 90
    departure_time: "07:30"
    entities:
      soc: sensor.leaf_soc
      plugged: binary_sensor.leaf_plugged
planner:
  planning_horizon_days: 3
target:
  short_window_hours: 10
  cheap_ratio: 0.85
forecast:
  trailing_hours: 24
  winter_bias: 1.2
prices:
  provider: elpris
  area: SE4
  grid_fee: 0.30
weather:
  latitude: 59.33
  longitude: 18.07
hub:
  base_url: "http://ha.local:8123"
  token: "secret"
charger:
  id: wallbox
  mqtt:
    broker: "tcp://localhost:1883"
    client_id: cli
  max_current_a: 20
store:
  backend: memory
  override_ttl_min: 45
history:
  jsonl_path: "history.jsonl"
metrics:
  sinks:
    - type: "nop"
dashboard:
  listen: ":9090"
cycle:
  interval_min: 30
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"app_env", cfg.AppEnv, "dev"},
		{"vehicle id", cfg.Vehicles[0].ID, "leaf"},
		{"vehicle name", cfg.Vehicles[0].Name, "Nissan Leaf"},
		{"capacity_kwh", cfg.Vehicles[0].CapacityKWh, 39.0},
		{"departure_time", cfg.Vehicles[0].DepartureTime, "07:30"},
		{"entities.soc", cfg.Vehicles[0].Entities.SoC, "sensor.leaf_soc"},
		{"target_soc default", cfg.Vehicles[0].TargetSoC, 80},
		{"planning_horizon_days", cfg.Planner.PlanningHorizonDays, 3},
		{"short_window_hours", cfg.Target.ShortWindowHours, 10},
		{"cheap_ratio", cfg.Target.CheapRatio, 0.85},
		{"expensive_ratio default", cfg.Target.ExpensiveRatio, 1.10},
		{"storm_target_soc default", cfg.Target.StormTargetSoC, 95},
		{"trailing_hours", cfg.Forecast.TrailingHours, 24},
		{"winter_bias", cfg.Forecast.WinterBias, 1.2},
		{"wind_penalty default", cfg.Forecast.WindPenalty, 0.03},
		{"prices.provider", cfg.Prices.Provider, "elpris"},
		{"prices.area", cfg.Prices.Area, "SE4"},
		{"grid_fee", cfg.Prices.GridFeeSEK, 0.30},
		{"energy_tax default", cfg.Prices.EnergyTaxSEK, 0.36},
		{"vat_rate default", cfg.Prices.VATRate, 0.25},
		{"weather.latitude", cfg.Weather.Latitude, 59.33},
		{"weather.forecast_days default", cfg.Weather.ForecastDays, 3},
		{"hub.base_url", cfg.Hub.BaseURL, "http://ha.local:8123"},
		{"charger id", cfg.Charger.ChargerID, "wallbox"},
		{"charger broker", cfg.Charger.MQTT.Broker, "tcp://localhost:1883"},
		{"charger ack_timeout default", cfg.Charger.AckTimeoutMS, 5000},
		{"charger max_current_a", cfg.Charger.MaxCurrentA, 20},
		{"store backend", cfg.Store.Backend, "memory"},
		{"override_ttl_min", cfg.Store.OverrideTTLMin, 45},
		{"history jsonl_path", cfg.History.JSONLPath, "history.jsonl"},
		{"history retention default", cfg.History.RetentionDays, 7},
		{"metrics sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"dashboard listen", cfg.Dashboard.Listen, ":9090"},
		{"cycle interval_min", cfg.Cycle.IntervalMin, 30},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `vehicles:
  - id: eqv
    capacity_kwh: 90
    max_charge_kw: 11
    phases: 3
    entities:
      soc: sensor.eqv_soc
hub:
  base_url: "http://ha.local:8123"
  token: "secret"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.ChargerEnabled() {
		t.Error("charger should be disabled without a config section")
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"vehicle name falls back to id", cfg.Vehicles[0].Name, "eqv"},
		{"min_soc", cfg.Vehicles[0].MinSoC, 60},
		{"max_soc", cfg.Vehicles[0].MaxSoC, 90},
		{"departure_time", cfg.Vehicles[0].DepartureTime, "07:00"},
		{"planning_horizon_days", cfg.Planner.PlanningHorizonDays, 4},
		{"short_window_hours", cfg.Target.ShortWindowHours, 12},
		{"cheap_ratio", cfg.Target.CheapRatio, 0.90},
		{"trailing_hours", cfg.Forecast.TrailingHours, 48},
		{"provider", cfg.Prices.Provider, "elpris"},
		{"area", cfg.Prices.Area, "SE3"},
		{"grid_fee", cfg.Prices.GridFeeSEK, 0.25},
		{"store backend", cfg.Store.Backend, "memory"},
		{"override_ttl_min", cfg.Store.OverrideTTLMin, 60},
		{"dashboard listen", cfg.Dashboard.Listen, ":8080"},
		{"cycle interval_min", cfg.Cycle.IntervalMin, 60},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "soc bounds inverted",
			yaml: `vehicles:
  - id: leaf
    capacity_kwh: 39
    max_charge_kw: 3.6
    min_soc: 90
    max_soc: 60
    entities:
      soc: sensor.leaf_soc
hub:
  base_url: "http://ha.local:8123"
  token: "secret"
`,
			wantErr: "min_soc",
		},
		{
			name:    "no vehicles",
			yaml:    "cycle:\n  interval_min: 30\n",
			wantErr: "at least one vehicle",
		},
		{
			name: "duplicate vehicle id",
			yaml: `vehicles:
  - id: leaf
    capacity_kwh: 39
    max_charge_kw: 3.6
    entities:
      soc: sensor.leaf_soc
  - id: leaf
    capacity_kwh: 39
    max_charge_kw: 3.6
    entities:
      soc: sensor.leaf2_soc
hub:
  base_url: "http://ha.local:8123"
  token: "secret"
`,
			wantErr: "duplicate vehicle id",
		},
		{
			name: "hub missing for entity vehicle",
			yaml: `vehicles:
  - id: leaf
    capacity_kwh: 39
    max_charge_kw: 3.6
    entities:
      soc: sensor.leaf_soc
`,
			wantErr: "hub",
		},
		{
			name: "unknown price provider",
			yaml: `vehicles:
  - id: leaf
    capacity_kwh: 39
    max_charge_kw: 3.6
    entities:
      soc: sensor.leaf_soc
hub:
  base_url: "http://ha.local:8123"
  token: "secret"
prices:
  provider: nordpool
`,
			wantErr: "unknown provider",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
