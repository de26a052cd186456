package model

import (
	"fmt"
	"time"
)

// VehicleSettings are the dashboard-adjustable preferences overlaid on the
// configured vehicle defaults. Zero-valued fields are treated as unset and
// keep the default.
type VehicleSettings struct {
	VehicleID string    `json:"vehicle_id"`
	MinSoC    int       `json:"min_soc,omitempty"`
	MaxSoC    int       `json:"max_soc,omitempty"`
	TargetSoC int       `json:"target_soc,omitempty"`
	Departure string    `json:"departure_time,omitempty"` // "HH:MM"
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks the set fields for consistency.
func (s VehicleSettings) Validate() error {
	if s.VehicleID == "" {
		return fmt.Errorf("vehicle_id is required")
	}
	for name, v := range map[string]int{"min_soc": s.MinSoC, "max_soc": s.MaxSoC, "target_soc": s.TargetSoC} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s %d out of range", name, v)
		}
	}
	if s.MinSoC > 0 && s.MaxSoC > 0 && s.MinSoC > s.MaxSoC {
		return fmt.Errorf("min_soc %d exceeds max_soc %d", s.MinSoC, s.MaxSoC)
	}
	if s.Departure != "" {
		if _, err := ParseClock(s.Departure); err != nil {
			return err
		}
	}
	return nil
}

// Apply overlays the set fields onto a vehicle snapshot. An unparseable
// departure is ignored; Validate catches it before the settings are stored.
func (s VehicleSettings) Apply(v VehicleState) VehicleState {
	if s.MinSoC > 0 {
		v.MinSoC = s.MinSoC
	}
	if s.MaxSoC > 0 {
		v.MaxSoC = s.MaxSoC
	}
	if s.TargetSoC > 0 {
		v.TargetSoC = s.TargetSoC
	}
	if s.Departure != "" {
		if c, err := ParseClock(s.Departure); err == nil {
			v.Departure = c
		}
	}
	return v
}
