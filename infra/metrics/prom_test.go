package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
)

func TestPromSink_RecordDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	now := time.Now()
	ev := coremetrics.DecisionEvent{
		Decision: model.Decision{
			ID:         "d1",
			VehicleID:  "leaf",
			Action:     model.ActionCharge,
			TargetSoC:  85,
			Urgency:    0.5,
			ComputedAt: now,
		},
		EnergyNeededKWh: 12,
		HoursNeeded:     2,
		HoursAvailable:  4,
		PriceNow:        0.42,
		Time:            now,
	}
	if err := sink.RecordDecision([]coremetrics.DecisionEvent{ev}); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP smartcharge_decisions_total Decisions emitted, by vehicle, action and degradation
# TYPE smartcharge_decisions_total counter
smartcharge_decisions_total{action="CHARGE",degraded="false",vehicle_id="leaf"} 1
`
	if err := testutil.CollectAndCompare(sink.decisions, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	expectedTarget := `
# HELP smartcharge_target_soc_percent Target state of charge per vehicle
# TYPE smartcharge_target_soc_percent gauge
smartcharge_target_soc_percent{vehicle_id="leaf"} 85
`
	if err := testutil.CollectAndCompare(sink.targetSoC, strings.NewReader(expectedTarget)); err != nil {
		t.Errorf("unexpected target metric: %v", err)
	}

	expectedPrice := `
# HELP smartcharge_price_now_sek Spot price of the current hour in SEK per kWh
# TYPE smartcharge_price_now_sek gauge
smartcharge_price_now_sek 0.42
`
	if err := testutil.CollectAndCompare(sink.priceNow, strings.NewReader(expectedPrice)); err != nil {
		t.Errorf("unexpected price metric: %v", err)
	}
}

func TestPromSink_RecordCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if err := sink.RecordCycle(coremetrics.CycleEvent{Duration: 120 * time.Millisecond, Vehicles: 2, Degraded: true}); err != nil {
		t.Fatalf("cycle error: %v", err)
	}
	if c := testutil.CollectAndCount(sink.cycleTime); c == 0 {
		t.Errorf("cycle duration not recorded")
	}
	expected := `
# HELP smartcharge_cycles_total Decision cycles executed, by degradation
# TYPE smartcharge_cycles_total counter
smartcharge_cycles_total{degraded="true"} 1
`
	if err := testutil.CollectAndCompare(sink.cycles, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected cycle metric: %v", err)
	}
}

func TestPromSink_RecordSession(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ev := coremetrics.SessionEvent{
		SessionID:   "s1",
		VehicleID:   "leaf",
		EnergyKWh:   7.5,
		SpotCostSEK: 3.2,
		GridCostSEK: 6.1875,
		StartSoC:    40,
		EndSoC:      65,
	}
	if err := sink.RecordSession(ev); err != nil {
		t.Fatalf("session error: %v", err)
	}
	expected := `
# HELP smartcharge_session_cost_sek_total Charging cost across finished sessions, split by component
# TYPE smartcharge_session_cost_sek_total counter
smartcharge_session_cost_sek_total{component="grid"} 6.1875
smartcharge_session_cost_sek_total{component="spot"} 3.2
`
	if err := testutil.CollectAndCompare(sink.cost, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected cost metric: %v", err)
	}
	expectedEnergy := `
# HELP smartcharge_session_energy_kwh_total Energy delivered across finished charging sessions
# TYPE smartcharge_session_energy_kwh_total counter
smartcharge_session_energy_kwh_total 7.5
`
	if err := testutil.CollectAndCompare(sink.energy, strings.NewReader(expectedEnergy)); err != nil {
		t.Errorf("unexpected energy metric: %v", err)
	}
}

func TestPromSink_RecordOverrideAndForecast(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if err := sink.RecordOverride(coremetrics.OverrideEvent{VehicleID: "leaf", Action: model.OverrideCharge}); err != nil {
		t.Fatalf("override error: %v", err)
	}
	expected := `
# HELP smartcharge_overrides_total Manual overrides accepted, by action
# TYPE smartcharge_overrides_total counter
smartcharge_overrides_total{action="CHARGE"} 1
`
	if err := testutil.CollectAndCompare(sink.overrides, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected override metric: %v", err)
	}

	accuracy := []coremetrics.ForecastAccuracyEvent{{HorizonHours: 24, AbsErrorSEK: 0.07}}
	if err := sink.RecordForecastAccuracy(accuracy); err != nil {
		t.Fatalf("accuracy error: %v", err)
	}
	expectedErr := `
# HELP smartcharge_forecast_abs_error_sek Absolute forecast error of the latest confirmed hour, by horizon
# TYPE smartcharge_forecast_abs_error_sek gauge
smartcharge_forecast_abs_error_sek{horizon_hours="24"} 0.07
`
	if err := testutil.CollectAndCompare(sink.forecastErr, strings.NewReader(expectedErr)); err != nil {
		t.Errorf("unexpected accuracy metric: %v", err)
	}
}

func TestPromSink_ReregisterReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("recreate sink: %v", err)
	}
	if first.decisions != second.decisions {
		t.Errorf("expected collectors to be reused on re-registration")
	}
}
