// Package simulator replays price and weather scenarios hour by hour to
// compare charging strategies on cost and readiness.
package simulator

import (
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/session"
)

// tomorrowPublishHour mirrors the market's publication schedule: strategies
// see tomorrow's prices only from this local hour.
const tomorrowPublishHour = 13

// Scenario replays one vehicle through a stretch of hours. The vehicle is
// plugged in at home outside the daily window from Departure to ArrivalHour
// and away inside it.
type Scenario struct {
	Vehicle model.VehicleState
	Prices  model.PriceSeries
	Weather model.WeatherSeries
	Start   time.Time
	Hours   int
	// ArrivalHour is the local hour the vehicle returns and plugs in.
	ArrivalHour int
	// DriveKWh is the energy spent on each day away.
	DriveKWh float64
	// Tariff prices the grid component of every charged kWh.
	Tariff session.Config
}

// Result summarizes one strategy over one scenario.
type Result struct {
	Strategy      string  `json:"strategy"`
	EnergyKWh     float64 `json:"energy_kwh"`
	SpotCostSEK   float64 `json:"spot_cost_sek"`
	GridCostSEK   float64 `json:"grid_cost_sek"`
	TotalCostSEK  float64 `json:"total_cost_sek"`
	AvgSpotSEK    float64 `json:"avg_spot_sek"`
	HoursCharged  int     `json:"hours_charged"`
	FinalSoC      int     `json:"final_soc"`
	Departures    int     `json:"departures"`
	MissedTargets int     `json:"missed_targets"`
}

// Run replays the scenario hour by hour under one strategy.
func Run(sc Scenario, strat Strategy) (Result, error) {
	if err := sc.Vehicle.Validate(); err != nil {
		return Result{}, fmt.Errorf("simulator: %w", err)
	}
	if sc.Hours <= 0 {
		sc.Hours = 24
	}
	sc.Tariff.SetDefaults()

	b := NewBattery(sc.Vehicle.CapacityKWh, sc.Vehicle.MaxChargeKW, sc.Vehicle.SoC)
	gridUnit := sc.Tariff.GridUnitSEK()
	res := Result{Strategy: strat.Name()}
	start := sc.Start.Truncate(time.Hour)

	for i := 0; i < sc.Hours; i++ {
		h := start.Add(time.Duration(i) * time.Hour)
		if h.Hour() == sc.Vehicle.Departure.Hour && hasAwayWindow(sc) {
			res.Departures++
			if b.SoC() < sc.Vehicle.TargetSoC {
				res.MissedTargets++
			}
			b.Drain(sc.DriveKWh)
		}
		if away(h.Hour(), sc) {
			continue
		}

		v := sc.Vehicle
		v.SoC = b.SoC()
		v.PluggedIn = true
		v.RetrievedAt = h
		charging, err := strat.Charging(h, v, visibleAt(sc.Prices, h), sc.Weather)
		if err != nil {
			return Result{}, fmt.Errorf("simulator: strategy %s at %s: %w", strat.Name(), h.Format(time.RFC3339), err)
		}
		if !charging {
			continue
		}
		stored := b.Charge(v.MaxChargeKW, time.Hour)
		if stored <= 0 {
			continue
		}
		res.HoursCharged++
		res.EnergyKWh += stored
		if p, ok := sc.Prices.At(h); ok {
			res.SpotCostSEK += stored * p.Price
		}
		res.GridCostSEK += stored * gridUnit
	}

	res.FinalSoC = b.SoC()
	res.TotalCostSEK = res.SpotCostSEK + res.GridCostSEK
	if res.EnergyKWh > 0 {
		res.AvgSpotSEK = res.SpotCostSEK / res.EnergyKWh
	}
	return res, nil
}

// Compare runs every strategy over the same scenario.
func Compare(sc Scenario, strats ...Strategy) ([]Result, error) {
	results := make([]Result, 0, len(strats))
	for _, s := range strats {
		r, err := Run(sc, s)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func hasAwayWindow(sc Scenario) bool {
	return sc.Vehicle.Departure.Hour != sc.ArrivalHour
}

// away reports whether the clock hour falls in the daily absence window,
// which may wrap midnight.
func away(hour int, sc Scenario) bool {
	dep, arr := sc.Vehicle.Departure.Hour, sc.ArrivalHour
	if dep == arr {
		return false
	}
	if dep < arr {
		return hour >= dep && hour < arr
	}
	return hour >= dep || hour < arr
}

// visibleAt trims the series to what the provider would have published by h:
// everything up to today's end, plus tomorrow once the afternoon publication
// has passed. Two trailing days stay visible as the forecasting baseline.
func visibleAt(prices model.PriceSeries, h time.Time) model.PriceSeries {
	midnight := time.Date(h.Year(), h.Month(), h.Day(), 0, 0, 0, 0, h.Location())
	horizon := midnight.AddDate(0, 0, 1)
	if h.Hour() >= tomorrowPublishHour {
		horizon = horizon.AddDate(0, 0, 1)
	}
	return prices.Window(midnight.AddDate(0, 0, -2), horizon)
}
