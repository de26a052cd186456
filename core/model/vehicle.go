package model

import (
	"fmt"
	"math"
	"time"
)

// VehicleState is the snapshot of one vehicle consumed by a decision cycle.
// It is read-only: the telemetry collaborator owns freshness, the engine
// consumes it by value.
type VehicleState struct {
	ID            string
	Name          string
	SoC           int       // state of charge, 0-100 percent
	PluggedIn     bool      // whether the vehicle is connected to the charger
	Charging      bool      // whether the vehicle itself reports active charging
	CapacityKWh   float64   // total battery capacity in kWh
	MaxChargeKW   float64   // max charging power in kW
	TargetSoC     int       // preferred target SoC, percent
	MinSoC        int       // floor the battery must not be planned below
	MaxSoC        int       // ceiling for opportunistic charging
	Departure     ClockTime // local time-of-day the vehicle must be ready
	RangeKm       float64   // reported range, informational
	OdometerKm    float64   // reported odometer, informational
	RetrievedAt   time.Time // when the snapshot was taken
	Stale         bool      // set when telemetry could not be refreshed
	ChargingPhase int       // phases the vehicle draws on, 1 or 3
}

// Validate checks that the snapshot is usable for planning.
func (v VehicleState) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if v.CapacityKWh <= 0 {
		return fmt.Errorf("vehicle %s: battery capacity must be positive", v.ID)
	}
	if v.MaxChargeKW <= 0 {
		return fmt.Errorf("vehicle %s: charge power must be positive", v.ID)
	}
	if v.MinSoC > v.MaxSoC {
		return fmt.Errorf("vehicle %s: min_soc %d exceeds max_soc %d", v.ID, v.MinSoC, v.MaxSoC)
	}
	if v.SoC < 0 || v.SoC > 100 {
		return fmt.Errorf("vehicle %s: soc %d out of range", v.ID, v.SoC)
	}
	return nil
}

// EnergyNeededKWh returns the energy required to lift the battery from the
// current SoC to target, clamped to zero when already at or above it.
func (v VehicleState) EnergyNeededKWh(target int) float64 {
	needed := v.CapacityKWh * float64(target-v.SoC) / 100
	if needed < 0 {
		return 0
	}
	return needed
}

// HoursNeeded returns the whole charging hours required to deliver the given
// energy at the vehicle's max charge power. A non-positive power rating is
// clamped so the result stays finite.
func (v VehicleState) HoursNeeded(energyKWh float64) int {
	power := v.MaxChargeKW
	if power <= 0 {
		power = 1
	}
	return int(math.Ceil(energyKWh / power))
}

// ClockTime is a local time-of-day without a date, e.g. a daily departure.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" into a ClockTime.
func ParseClock(s string) (ClockTime, error) {
	var c ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &c.Hour, &c.Minute); err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	return c, nil
}

// String renders the time as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Next returns the first occurrence of the clock time strictly after now,
// advancing to tomorrow when the time-of-day has already passed today.
func (c ClockTime) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
