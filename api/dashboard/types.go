package dashboard

import (
	"context"
	"time"

	"github.com/kilianp07/smartcharge/core/engine"
	"github.com/kilianp07/smartcharge/core/model"
)

// SnapshotProvider exposes the outcome of the most recent decision cycle.
// The service loop implements it.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (CycleSnapshot, error)
}

// CycleSnapshot is everything the dashboard renders about the latest cycle.
type CycleSnapshot struct {
	Vehicles  []VehicleStatus   `json:"vehicles"`
	Prices    model.PriceSeries `json:"prices"`
	UpdatedAt time.Time         `json:"updated_at"`
	Degraded  bool              `json:"degraded,omitempty"`
}

// VehicleStatus is the per-vehicle row of the status endpoint.
type VehicleStatus struct {
	VehicleID string `json:"vehicle_id"`
	Name      string `json:"name"`
	SoC       int    `json:"soc"`
	PluggedIn bool   `json:"plugged_in"`
	Charging  bool   `json:"charging"`
	// Active marks the vehicle the detector identified on the charger.
	Active   bool                   `json:"active"`
	RangeKm  float64                `json:"range_km,omitempty"`
	Stale    bool                   `json:"stale,omitempty"`
	Decision model.Decision         `json:"decision"`
	Override *model.ManualOverride  `json:"override,omitempty"`
	Session  *model.ChargingSession `json:"session,omitempty"`
	Plan     PlanView               `json:"plan"`
}

// PlanView summarizes the scheduler's hour selection for one vehicle.
type PlanView struct {
	TargetSoC       int         `json:"target_soc"`
	Deadline        time.Time   `json:"deadline"`
	EnergyNeededKWh float64     `json:"energy_needed_kwh"`
	HoursNeeded     int         `json:"hours_needed"`
	HoursAvailable  int         `json:"hours_available"`
	SelectedHours   []time.Time `json:"selected_hours,omitempty"`
	OnForecasted    bool        `json:"on_forecasted,omitempty"`
}

// PlanViewFrom extracts the dashboard view from an engine evaluation.
func PlanViewFrom(ev engine.Evaluation) PlanView {
	return PlanView{
		TargetSoC:       ev.Target.TargetSoC,
		Deadline:        ev.Plan.Deadline,
		EnergyNeededKWh: ev.Plan.EnergyNeededKWh,
		HoursNeeded:     ev.Plan.HoursNeeded,
		HoursAvailable:  ev.Plan.HoursAvailable,
		SelectedHours:   ev.Plan.Selected,
		OnForecasted:    ev.Plan.OnForecasted,
	}
}
