package model

import "time"

// ChargingSession aggregates consecutive charging cycles into one
// start-to-stop session with its energy and cost split. SpotCostSEK covers
// the market price component, GridCostSEK the transfer fee, energy tax and
// retailer margin including VAT.
type ChargingSession struct {
	ID          string    `json:"id"`
	VehicleID   string    `json:"vehicle_id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	StartSoC    int       `json:"start_soc"`
	EndSoC      int       `json:"end_soc"`
	EnergyKWh   float64   `json:"energy_kwh"`
	SpotCostSEK float64   `json:"spot_cost_sek"`
	GridCostSEK float64   `json:"grid_cost_sek"`
	Active      bool      `json:"active"`
}

// TotalCostSEK is the full price paid for the session.
func (s ChargingSession) TotalCostSEK() float64 {
	return s.SpotCostSEK + s.GridCostSEK
}

// UnitCostSEK is the effective price per kWh, zero for an empty session.
func (s ChargingSession) UnitCostSEK() float64 {
	if s.EnergyKWh <= 0 {
		return 0
	}
	return s.TotalCostSEK() / s.EnergyKWh
}
