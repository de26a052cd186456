// Package scenarios replays yaml-defined market scenarios through the
// strategy simulator and checks the outcomes pinned next to them.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/simulator"
)

type VehicleDef struct {
	ID            string  `yaml:"id"`
	SoC           int     `yaml:"soc"`
	CapacityKWh   float64 `yaml:"capacity_kwh"`
	MaxChargeKW   float64 `yaml:"max_charge_kw"`
	TargetSoC     int     `yaml:"target_soc"`
	MinSoC        int     `yaml:"min_soc"`
	MaxSoC        int     `yaml:"max_soc"`
	DepartureTime string  `yaml:"departure_time"`
}

func (v VehicleDef) ToModel() (model.VehicleState, error) {
	dep, err := model.ParseClock(v.DepartureTime)
	if err != nil {
		return model.VehicleState{}, err
	}
	return model.VehicleState{
		ID:          v.ID,
		SoC:         v.SoC,
		CapacityKWh: v.CapacityKWh,
		MaxChargeKW: v.MaxChargeKW,
		TargetSoC:   v.TargetSoC,
		MinSoC:      v.MinSoC,
		MaxSoC:      v.MaxSoC,
		Departure:   dep,
	}, nil
}

// PricesDef either pins an explicit 24-hour profile or seeds the synthetic
// generator.
type PricesDef struct {
	BaseSEK     float64   `yaml:"base_sek"`
	Seed        int64     `yaml:"seed"`
	JitterPct   float64   `yaml:"jitter_pct"`
	SpikeChance float64   `yaml:"spike_chance"`
	DayProfile  []float64 `yaml:"day_profile,omitempty"`
}

type Expected struct {
	MaxMissedTargets int     `yaml:"max_missed_targets"`
	SmartNoCostlier  bool    `yaml:"smart_no_costlier_per_kwh"`
	MaxAvgSpotSEK    float64 `yaml:"max_avg_spot_sek,omitempty"`
}

type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Days        int        `yaml:"days"`
	StartHour   int        `yaml:"start_hour"`
	ArrivalHour int        `yaml:"arrival_hour"`
	DriveKWh    float64    `yaml:"drive_kwh"`
	Vehicle     VehicleDef `yaml:"vehicle"`
	Prices      PricesDef  `yaml:"prices"`
	Expected    Expected   `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Build converts the definition into a replayable scenario. Series start one
// day before the replay so the forecaster has a confirmed baseline, and run
// one day past it so tomorrow's publication never runs dry.
func (sc *Scenario) Build() (simulator.Scenario, error) {
	v, err := sc.Vehicle.ToModel()
	if err != nil {
		return simulator.Scenario{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if n := len(sc.Prices.DayProfile); n != 0 && n != 24 {
		return simulator.Scenario{}, fmt.Errorf("scenario %s: day_profile has %d entries, want 24", sc.Name, n)
	}
	days := sc.Days
	if days <= 0 {
		days = 3
	}

	day := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
	genStart := day.AddDate(0, 0, -1)
	hours := (days + 2) * 24

	gen := simulator.NewGenerator(simulator.GeneratorConfig{
		BasePriceSEK: sc.Prices.BaseSEK,
		JitterPct:    sc.Prices.JitterPct,
		SpikeChance:  sc.Prices.SpikeChance,
		Seed:         sc.Prices.Seed,
	})
	var prices model.PriceSeries
	if len(sc.Prices.DayProfile) == 24 {
		prices = profiledPrices(genStart, hours, sc.Prices.BaseSEK, sc.Prices.DayProfile)
	} else {
		prices = gen.Prices(genStart, hours)
	}

	return simulator.Scenario{
		Vehicle:     v,
		Prices:      prices,
		Weather:     gen.Weather(genStart, hours),
		Start:       day.Add(time.Duration(sc.StartHour) * time.Hour),
		Hours:       days * 24,
		ArrivalHour: sc.ArrivalHour,
		DriveKWh:    sc.DriveKWh,
	}, nil
}

func profiledPrices(start time.Time, hours int, base float64, profile []float64) model.PriceSeries {
	if base == 0 {
		base = 1.0
	}
	start = start.Truncate(time.Hour)
	s := make(model.PriceSeries, 0, hours)
	for i := 0; i < hours; i++ {
		h := start.Add(time.Duration(i) * time.Hour)
		s = append(s, model.PricePoint{Timestamp: h, Price: base * profile[h.Hour()]})
	}
	return s
}
