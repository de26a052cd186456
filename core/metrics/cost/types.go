package cost

import "time"

// Record aggregates charging cost metrics for a vehicle and day.
type Record struct {
	VehicleID   string
	Date        time.Time
	EnergyKWh   float64
	SpotCostSEK float64
	GridCostSEK float64
	Sessions    int
}

// TotalSEK returns the combined spot and grid cost.
func (r Record) TotalSEK() float64 {
	return r.SpotCostSEK + r.GridCostSEK
}

// UnitCostSEK returns the average cost per kWh, zero when no energy flowed.
func (r Record) UnitCostSEK() float64 {
	if r.EnergyKWh == 0 {
		return 0
	}
	return r.TotalSEK() / r.EnergyKWh
}
