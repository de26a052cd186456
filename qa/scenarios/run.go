package scenarios

import (
	"testing"

	"github.com/kilianp07/smartcharge/core/engine"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/target"
	"github.com/kilianp07/smartcharge/simulator"
)

// RunScenario replays the scenario under all three strategies and checks the
// expectations attached to it.
func RunScenario(t *testing.T, sc *Scenario) {
	sim, err := sc.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	eng, err := engine.New(engine.Config{}, forecast.New(forecast.Config{}), target.New(target.Config{}))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	results, err := simulator.Compare(sim,
		simulator.Smart{Engine: eng},
		simulator.Dumb{},
		simulator.Night{From: model.ClockTime{Hour: 22}, To: model.ClockTime{Hour: 6}},
	)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	smart, dumb := results[0], results[1]

	if smart.MissedTargets > sc.Expected.MaxMissedTargets {
		t.Errorf("scenario %s: smart missed %d departures, allowed %d",
			sc.Name, smart.MissedTargets, sc.Expected.MaxMissedTargets)
	}
	if sc.Expected.SmartNoCostlier && smart.AvgSpotSEK > dumb.AvgSpotSEK+1e-9 {
		t.Errorf("scenario %s: smart pays %.4f SEK/kWh, dumb %.4f",
			sc.Name, smart.AvgSpotSEK, dumb.AvgSpotSEK)
	}
	if limit := sc.Expected.MaxAvgSpotSEK; limit > 0 && smart.AvgSpotSEK > limit {
		t.Errorf("scenario %s: smart average %.4f SEK/kWh above cap %.4f",
			sc.Name, smart.AvgSpotSEK, limit)
	}
	for _, r := range results {
		t.Logf("scenario %s: %-5s energy=%.1fkWh spot=%.2f grid=%.2f total=%.2f avg=%.3f missed=%d",
			sc.Name, r.Strategy, r.EnergyKWh, r.SpotCostSEK, r.GridCostSEK,
			r.TotalCostSEK, r.AvgSpotSEK, r.MissedTargets)
	}
}
