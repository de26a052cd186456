package simulator

import (
	"time"

	"github.com/kilianp07/smartcharge/core/engine"
	"github.com/kilianp07/smartcharge/core/model"
)

// Strategy decides whether to draw power during the hour starting at h.
type Strategy interface {
	Name() string
	Charging(h time.Time, v model.VehicleState, prices model.PriceSeries, weather model.WeatherSeries) (bool, error)
}

// Smart replays every hour through the decision engine.
type Smart struct {
	Engine *engine.Engine
}

func (Smart) Name() string { return "smart" }

func (s Smart) Charging(h time.Time, v model.VehicleState, prices model.PriceSeries, weather model.WeatherSeries) (bool, error) {
	ev, err := s.Engine.Decide(h, engine.Input{Vehicle: v, Prices: prices, Weather: weather})
	if err != nil {
		return false, err
	}
	return ev.Decision.Action.Charging(), nil
}

// Dumb charges whenever plugged until the battery hits its ceiling.
type Dumb struct{}

func (Dumb) Name() string { return "dumb" }

func (Dumb) Charging(_ time.Time, v model.VehicleState, _ model.PriceSeries, _ model.WeatherSeries) (bool, error) {
	return v.PluggedIn && v.SoC < v.MaxSoC, nil
}

// Night charges inside a fixed nightly window until the preferred target.
// The window may wrap midnight.
type Night struct {
	From model.ClockTime
	To   model.ClockTime
}

func (Night) Name() string { return "night" }

func (n Night) Charging(h time.Time, v model.VehicleState, _ model.PriceSeries, _ model.WeatherSeries) (bool, error) {
	if !v.PluggedIn || v.SoC >= v.TargetSoC {
		return false, nil
	}
	return n.within(h.Hour()), nil
}

func (n Night) within(hour int) bool {
	from, to := n.From.Hour, n.To.Hour
	if from == to {
		return true
	}
	if from < to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}
