package session

import (
	"math"
	"testing"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

var sessionStart = time.Date(2024, time.December, 2, 1, 0, 0, 0, time.UTC)

func vehicleAt(soc int) model.VehicleState {
	return model.VehicleState{ID: "ev1", SoC: soc, CapacityKWh: 40, MaxChargeKW: 6.6}
}

func TestGridUnitPrice(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	// (0.25 + 0.36 + 0.05) * 1.25
	if got, want := cfg.GridUnitSEK(), 0.825; math.Abs(got-want) > 1e-9 {
		t.Fatalf("grid unit cost = %v, want %v", got, want)
	}
}

func TestSessionLifecycle(t *testing.T) {
	tr := NewTracker(Config{})

	ev := tr.Observe(sessionStart, vehicleAt(40), true, 6.6, 0.5)
	if ev.Kind != EventStarted {
		t.Fatalf("first charging tick should start a session, got %v", ev.Kind)
	}
	if ev.Session.StartSoC != 40 || !ev.Session.Active {
		t.Fatalf("unexpected session at start: %+v", ev.Session)
	}

	// Two hours of charging at 6.6 kW and 0.5 SEK/kWh spot.
	ev = tr.Observe(sessionStart.Add(time.Hour), vehicleAt(55), true, 6.6, 0.5)
	if ev.Kind != EventNone {
		t.Fatalf("mid-session tick should not emit a boundary, got %v", ev.Kind)
	}
	ev = tr.Observe(sessionStart.Add(2*time.Hour), vehicleAt(70), false, 6.6, 0.5)
	if ev.Kind != EventEnded {
		t.Fatalf("stop tick should end the session, got %v", ev.Kind)
	}

	s := ev.Session
	if math.Abs(s.EnergyKWh-13.2) > 1e-9 {
		t.Fatalf("energy = %v, want 13.2", s.EnergyKWh)
	}
	if math.Abs(s.SpotCostSEK-6.6) > 1e-9 {
		t.Fatalf("spot cost = %v, want 6.6", s.SpotCostSEK)
	}
	if math.Abs(s.GridCostSEK-13.2*0.825) > 1e-9 {
		t.Fatalf("grid cost = %v, want %v", s.GridCostSEK, 13.2*0.825)
	}
	if s.EndSoC != 70 || s.Active {
		t.Fatalf("unexpected session at end: %+v", s)
	}
	if math.Abs(s.UnitCostSEK()-(6.6+13.2*0.825)/13.2) > 1e-9 {
		t.Fatalf("unit cost = %v", s.UnitCostSEK())
	}

	if _, open := tr.Active("ev1"); open {
		t.Fatal("ended session should leave no active entry")
	}
}

func TestIdleTicksWithoutSessionDoNothing(t *testing.T) {
	tr := NewTracker(Config{})
	ev := tr.Observe(sessionStart, vehicleAt(40), false, 6.6, 0.5)
	if ev.Kind != EventNone {
		t.Fatalf("idle tick without a session emitted %v", ev.Kind)
	}
	if _, open := tr.Active("ev1"); open {
		t.Fatal("no session should be open")
	}
}

func TestSessionsTrackedPerVehicle(t *testing.T) {
	tr := NewTracker(Config{})
	tr.Observe(sessionStart, vehicleAt(40), true, 6.6, 0.5)

	other := model.VehicleState{ID: "ev2", SoC: 20, CapacityKWh: 90, MaxChargeKW: 11}
	tr.Observe(sessionStart, other, true, 11, 0.5)

	a, okA := tr.Active("ev1")
	b, okB := tr.Active("ev2")
	if !okA || !okB {
		t.Fatal("both vehicles should have running sessions")
	}
	if a.ID == b.ID {
		t.Fatal("sessions must not share ids")
	}
}

func TestBackwardsClockAddsNothing(t *testing.T) {
	tr := NewTracker(Config{})
	tr.Observe(sessionStart, vehicleAt(40), true, 6.6, 0.5)
	ev := tr.Observe(sessionStart.Add(-time.Hour), vehicleAt(41), true, 6.6, 0.5)
	if ev.Session.EnergyKWh != 0 {
		t.Fatalf("negative elapsed time must not accrue energy, got %v", ev.Session.EnergyKWh)
	}
}
