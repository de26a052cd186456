package vehicles

import (
	"fmt"

	"github.com/kilianp07/smartcharge/auth"
	"github.com/kilianp07/smartcharge/core/model"
)

// Entities maps the hub entity ids backing one vehicle's telemetry. Only SoC
// is mandatory; vehicles whose integration folds everything into the SoC
// sensor's attributes leave the rest empty.
type Entities struct {
	SoC      string `json:"soc"`
	Plugged  string `json:"plugged"`
	Charging string `json:"charging"`
	Range    string `json:"range"`
	Odometer string `json:"odometer"`
}

// CloudConfig configures an OEM cloud API polled with client credentials.
type CloudConfig struct {
	Auth      auth.Conf `json:"auth"`
	StatusURL string    `json:"status_url"`
	TimeoutS  int       `json:"timeout_s"`
}

// Config describes one vehicle known to the system.
type Config struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	CapacityKWh   float64      `json:"capacity_kwh"`
	MaxChargeKW   float64      `json:"max_charge_kw"`
	Phases        int          `json:"phases"`
	MinSoC        int          `json:"min_soc"`
	MaxSoC        int          `json:"max_soc"`
	TargetSoC     int          `json:"target_soc"`
	DepartureTime string       `json:"departure_time"`
	Entities      Entities     `json:"entities"`
	Cloud         *CloudConfig `json:"cloud,omitempty"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.Phases == 0 {
		c.Phases = 1
	}
	if c.MinSoC == 0 {
		c.MinSoC = 60
	}
	if c.MaxSoC == 0 {
		c.MaxSoC = 90
	}
	if c.TargetSoC == 0 {
		c.TargetSoC = 80
	}
	if c.DepartureTime == "" {
		c.DepartureTime = "07:00"
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if c.CapacityKWh <= 0 {
		return fmt.Errorf("vehicle %s: capacity_kwh must be positive", c.ID)
	}
	if c.MaxChargeKW <= 0 {
		return fmt.Errorf("vehicle %s: max_charge_kw must be positive", c.ID)
	}
	if c.Phases != 1 && c.Phases != 3 {
		return fmt.Errorf("vehicle %s: phases must be 1 or 3, got %d", c.ID, c.Phases)
	}
	if c.MinSoC > c.MaxSoC {
		return fmt.Errorf("vehicle %s: min_soc %d exceeds max_soc %d", c.ID, c.MinSoC, c.MaxSoC)
	}
	if c.TargetSoC < c.MinSoC || c.TargetSoC > c.MaxSoC {
		return fmt.Errorf("vehicle %s: target_soc %d outside [%d,%d]", c.ID, c.TargetSoC, c.MinSoC, c.MaxSoC)
	}
	if _, err := model.ParseClock(c.DepartureTime); err != nil {
		return fmt.Errorf("vehicle %s: %w", c.ID, err)
	}
	if c.Entities.SoC == "" && c.Cloud == nil {
		return fmt.Errorf("vehicle %s: needs a soc entity or a cloud source", c.ID)
	}
	return nil
}

// baseState builds the static part of a snapshot from configuration.
func (c *Config) baseState() model.VehicleState {
	departure, _ := model.ParseClock(c.DepartureTime)
	return model.VehicleState{
		ID:            c.ID,
		Name:          c.Name,
		CapacityKWh:   c.CapacityKWh,
		MaxChargeKW:   c.MaxChargeKW,
		ChargingPhase: c.Phases,
		MinSoC:        c.MinSoC,
		MaxSoC:        c.MaxSoC,
		TargetSoC:     c.TargetSoC,
		Departure:     departure,
	}
}
