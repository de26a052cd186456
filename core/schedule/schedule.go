package schedule

import (
	"sort"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Plan is the outcome of one deadline evaluation for one vehicle. All
// quantities are recomputed from the live SoC every cycle; nothing carries
// over.
type Plan struct {
	// Action for the current hour: CHARGE, IDLE or PANIC.
	Action model.Action
	// Deadline is the next occurrence of the departure time.
	Deadline time.Time
	// EnergyNeededKWh lifts the battery from the current SoC to the target.
	EnergyNeededKWh float64
	// HoursNeeded is the charging hours required at max power.
	HoursNeeded int
	// HoursAvailable is the whole hours left before the deadline.
	HoursAvailable int
	// Selected lists the chosen charging hours, chronological. Empty when
	// no selection took place (idle, panic or unplugged).
	Selected []time.Time
	// CurrentSelected reports whether the hour containing now is in the set.
	CurrentSelected bool
	// OnForecasted is set when the selection includes synthesized prices,
	// so callers can flag the reduced confidence.
	OnForecasted bool
	// Unplugged forces an idle plan whatever the deficit says.
	Unplugged bool
}

// Evaluate decides the current hour. The energy deficit fixes how many
// charging hours are required; if the hours before the deadline no longer
// cover them the plan panics, otherwise the cheapest hours win and the
// action depends on whether the current hour is among them.
func Evaluate(now time.Time, v model.VehicleState, targetSoC int, prices model.PriceSeries) Plan {
	p := Plan{
		Deadline:        v.Departure.Next(now),
		EnergyNeededKWh: v.EnergyNeededKWh(targetSoC),
	}
	p.HoursNeeded = v.HoursNeeded(p.EnergyNeededKWh)
	p.HoursAvailable = int(p.Deadline.Sub(now).Hours())

	if !v.PluggedIn {
		p.Action = model.ActionIdle
		p.Unplugged = true
		return p
	}
	if p.HoursNeeded == 0 {
		p.Action = model.ActionIdle
		return p
	}
	if p.HoursNeeded >= p.HoursAvailable {
		p.Action = model.ActionPanic
		return p
	}

	current := now.Truncate(time.Hour)
	candidates := prices.Window(current, p.Deadline)
	if len(candidates) == 0 {
		// A series that covers none of the window cannot rank hours.
		// Charging now is the only choice that cannot miss the deadline.
		p.Action = model.ActionCharge
		p.CurrentSelected = true
		return p
	}

	for _, c := range cheapest(candidates, p.HoursNeeded) {
		p.Selected = append(p.Selected, c.Timestamp)
		if c.Timestamp.Equal(current) {
			p.CurrentSelected = true
		}
		if c.IsForecasted {
			p.OnForecasted = true
		}
	}
	if p.CurrentSelected {
		p.Action = model.ActionCharge
	} else {
		p.Action = model.ActionIdle
	}
	return p
}

// cheapest returns the n cheapest points, ties resolved toward the earlier
// hour, reordered chronologically.
func cheapest(candidates model.PriceSeries, n int) model.PriceSeries {
	ranked := make(model.PriceSeries, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Price != ranked[j].Price {
			return ranked[i].Price < ranked[j].Price
		}
		return ranked[i].Timestamp.Before(ranked[j].Timestamp)
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	ranked.Sort()
	return ranked
}
