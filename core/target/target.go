// Package target derives the desired end state of charge from the price
// trend and the weather outlook.
package target

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/smartcharge/core/model"
)

// Config tunes the price-ratio bands and the storm buffer.
type Config struct {
	// ShortWindowHours is the near-term window the long horizon is
	// compared against.
	ShortWindowHours int `json:"short_window_hours"`
	// CheapRatio is the short/long mean ratio below which the target
	// jumps straight to the vehicle's max SoC.
	CheapRatio float64 `json:"cheap_ratio"`
	// ExpensiveRatio is the ratio above which the target drops to the
	// vehicle's min SoC.
	ExpensiveRatio float64 `json:"expensive_ratio"`
	// StormWindKmh is the average wind speed below which the storm
	// buffer arms.
	StormWindKmh float64 `json:"storm_wind_kmh"`
	// StormTempC is the average temperature below which the storm
	// buffer arms.
	StormTempC float64 `json:"storm_temp_c"`
	// StormTargetSoC is the forced target while both storm conditions
	// hold.
	StormTargetSoC int `json:"storm_target_soc"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ShortWindowHours == 0 {
		c.ShortWindowHours = 12
	}
	if c.CheapRatio == 0 {
		c.CheapRatio = 0.90
	}
	if c.ExpensiveRatio == 0 {
		c.ExpensiveRatio = 1.10
	}
	if c.StormWindKmh == 0 {
		c.StormWindKmh = 8
	}
	if c.StormTempC == 0 {
		c.StormTempC = -2
	}
	if c.StormTargetSoC == 0 {
		c.StormTargetSoC = 95
	}
}

// Validate rejects bands that cannot interpolate.
func (c *Config) Validate() error {
	if c.ShortWindowHours <= 0 {
		return fmt.Errorf("short_window_hours must be positive")
	}
	if c.CheapRatio <= 0 {
		return fmt.Errorf("cheap_ratio must be positive")
	}
	if c.ExpensiveRatio <= c.CheapRatio {
		return fmt.Errorf("expensive_ratio %v must exceed cheap_ratio %v", c.ExpensiveRatio, c.CheapRatio)
	}
	if c.StormTargetSoC <= 0 || c.StormTargetSoC > 100 {
		return fmt.Errorf("storm_target_soc %d out of range", c.StormTargetSoC)
	}
	return nil
}

// Calculator turns a price forecast and a weather outlook into one target
// SoC per vehicle. It holds no state between invocations.
type Calculator struct {
	cfg Config
}

// New returns a Calculator for the given configuration.
func New(cfg Config) *Calculator {
	cfg.SetDefaults()
	return &Calculator{cfg: cfg}
}

// Result is the outcome of one target computation.
type Result struct {
	// TargetSoC is the selected end state of charge, 0-100.
	TargetSoC int
	// Ratio is short-window mean over long-window mean.
	Ratio float64
	// RatioKnown is false when the series was too thin to compare, in
	// which case the vehicle preference passed through unchanged.
	RatioKnown bool
	// StormBuffered reports that the calm-and-cold override fired.
	StormBuffered bool
}

// Compute selects the target SoC for one vehicle. Cheap near-term prices
// pull the target towards the vehicle's max SoC, expensive ones towards its
// min, with linear interpolation between the bands. The storm check runs
// last and unconditionally wins: a calm cold spell ahead means holding the
// battery high before the price spike lands.
func (c *Calculator) Compute(now time.Time, prices model.PriceSeries, weather model.WeatherSeries, v model.VehicleState) Result {
	res := Result{TargetSoC: v.TargetSoC}

	// The series the engine hands over already spans the planning horizon,
	// so the long window is simply everything from now on.
	start := now.Truncate(time.Hour)
	shortWindow := prices.Window(start, start.Add(time.Duration(c.cfg.ShortWindowHours)*time.Hour))
	longWindow := make(model.PriceSeries, 0, len(prices))
	for _, p := range prices {
		if !p.Timestamp.Before(start) {
			longWindow = append(longWindow, p)
		}
	}

	if len(shortWindow) > 0 && len(longWindow) > len(shortWindow) {
		shortMean := stat.Mean(shortWindow.Values(), nil)
		longMean := stat.Mean(longWindow.Values(), nil)
		if longMean > 0 {
			res.Ratio = shortMean / longMean
			res.RatioKnown = true
			res.TargetSoC = c.fromRatio(res.Ratio, v)
		}
	}

	if c.stormAhead(now, weather) {
		res.TargetSoC = c.cfg.StormTargetSoC
		res.StormBuffered = true
	}
	return res
}

// fromRatio maps the price ratio onto the vehicle's SoC band. Below the
// cheap bound the whole band is worth filling, above the expensive bound
// only the floor is; between them the target slides linearly.
func (c *Calculator) fromRatio(ratio float64, v model.VehicleState) int {
	switch {
	case ratio < c.cfg.CheapRatio:
		return v.MaxSoC
	case ratio > c.cfg.ExpensiveRatio:
		return v.MinSoC
	default:
		span := c.cfg.ExpensiveRatio - c.cfg.CheapRatio
		frac := (ratio - c.cfg.CheapRatio) / span
		return int(math.Round(float64(v.MaxSoC) - frac*float64(v.MaxSoC-v.MinSoC)))
	}
}

// stormAhead reports whether the next 24 hours look both calm and cold.
// An empty or out-of-window weather series disables the check.
func (c *Calculator) stormAhead(now time.Time, weather model.WeatherSeries) bool {
	window := weather.Window(now.Truncate(time.Hour), now.Add(24*time.Hour))
	if len(window) == 0 {
		return false
	}
	wind := make([]float64, len(window))
	temp := make([]float64, len(window))
	for i, w := range window {
		wind[i] = w.WindSpeedKmh
		temp[i] = w.TemperatureC
	}
	return stat.Mean(wind, nil) < c.cfg.StormWindKmh && stat.Mean(temp, nil) < c.cfg.StormTempC
}
