package test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/smartcharge/api/dashboard"
	"github.com/kilianp07/smartcharge/app"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/connectors/clients/mock"
	"github.com/kilianp07/smartcharge/connectors/factory"
	"github.com/kilianp07/smartcharge/core/charger"
	"github.com/kilianp07/smartcharge/core/engine"
	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/target"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/infra/mqtt"
	infrastore "github.com/kilianp07/smartcharge/infra/store"
	"github.com/kilianp07/smartcharge/infra/vehicles"
)

type stubSource struct {
	mu    sync.Mutex
	state model.VehicleState
}

func (s *stubSource) VehicleID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ID
}

func (s *stubSource) Snapshot(context.Context) (model.VehicleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *stubSource) set(v model.VehicleState) {
	s.mu.Lock()
	s.state = v
	s.mu.Unlock()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func fleetState(id string, retrieved time.Time) model.VehicleState {
	return model.VehicleState{
		ID:            id,
		Name:          id,
		SoC:           50,
		PluggedIn:     true,
		CapacityKWh:   39,
		MaxChargeKW:   3.6,
		ChargingPhase: 1,
		MinSoC:        60,
		MaxSoC:        90,
		TargetSoC:     80,
		Departure:     model.ClockTime{Hour: 7},
		RetrievedAt:   retrieved,
	}
}

func flatDay(day time.Time, price float64) model.PriceSeries {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	s := make(model.PriceSeries, 24)
	for i := range s {
		s[i] = model.PricePoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: price}
	}
	return s
}

// TestServiceCycleAgainstMocks runs the assembled service with a canned
// price provider, a stub telemetry source and a mock charge point, and
// follows two cycles through decision, command and snapshot.
func TestServiceCycleAgainstMocks(t *testing.T) {
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	cfg := &config.Config{
		Vehicles: []vehicles.Config{{
			ID:            "leaf",
			CapacityKWh:   39,
			MaxChargeKW:   3.6,
			Phases:        1,
			MinSoC:        60,
			MaxSoC:        90,
			TargetSoC:     80,
			DepartureTime: "07:00",
			Cloud:         &vehicles.CloudConfig{StatusURL: "http://cloud.invalid/status"},
		}},
		Prices: config.PricesConfig{Provider: factory.IDMock},
	}

	prices := &mock.Client{}
	prices.SetDay(now, flatDay(now, 1.0))
	cmd := mqtt.NewMockCommander()
	cmd.SetState(charger.State{ChargerID: "wallbox", Online: true, Plugged: true, Phases: 1})
	src := &stubSource{}
	src.set(fleetState("leaf", now))
	clk := &fakeClock{t: now}

	svc, err := app.New(context.Background(), cfg,
		app.WithPriceClient(prices),
		app.WithCommander(cmd),
		app.WithSources(src),
		app.WithClock(clk.now),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() { _ = svc.Close() }()

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Vehicles) != 1 {
		t.Fatalf("vehicles = %d, want 1", len(snap.Vehicles))
	}
	row := snap.Vehicles[0]
	if row.VehicleID != "leaf" {
		t.Errorf("vehicle = %s, want leaf", row.VehicleID)
	}
	if !row.Active {
		t.Error("single plugged vehicle should be active")
	}
	if row.Decision.Action != model.ActionCharge {
		t.Errorf("action = %s, want %s on a flat day with a deficit", row.Decision.Action, model.ActionCharge)
	}
	if row.Plan.HoursNeeded != 3 {
		t.Errorf("hours needed = %d, want 3", row.Plan.HoursNeeded)
	}
	if row.Plan.HoursAvailable != 21 {
		t.Errorf("hours available = %d, want 21", row.Plan.HoursAvailable)
	}
	if math.Abs(row.Plan.EnergyNeededKWh-9.75) > 1e-9 {
		t.Errorf("energy needed = %v, want 9.75", row.Plan.EnergyNeededKWh)
	}
	if len(row.Plan.SelectedHours) != 3 {
		t.Errorf("selected hours = %d, want 3", len(row.Plan.SelectedHours))
	}
	if len(snap.Prices) == 0 {
		t.Error("snapshot carries no price series")
	}
	if !snap.UpdatedAt.Equal(now) {
		t.Errorf("updated at = %v, want %v", snap.UpdatedAt, now)
	}
	if starts := cmd.Starts(); len(starts) != 1 || starts[0] != 16 {
		t.Errorf("starts = %v, want one start at the default 16 A", starts)
	}

	// An hour later the battery is past every target; the cycle stops the
	// charge point it started.
	later := now.Add(time.Hour)
	clk.set(later)
	st := fleetState("leaf", later)
	st.SoC = 90
	st.Charging = true
	src.set(st)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	snap, err = svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got := snap.Vehicles[0].Decision.Action; got != model.ActionIdle {
		t.Errorf("action = %s, want %s with the battery full", got, model.ActionIdle)
	}
	if cmd.Stops() != 1 {
		t.Errorf("stops = %d, want 1", cmd.Stops())
	}
}

type snapshotStub struct {
	mu   sync.Mutex
	snap dashboard.CycleSnapshot
}

func (s *snapshotStub) Snapshot(context.Context) (dashboard.CycleSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *snapshotStub) set(snap dashboard.CycleSnapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// TestDashboardDrivesStoresAndEngine exercises the REST API against real
// memory stores and checks that a posted override reaches the decision.
func TestDashboardDrivesStoresAndEngine(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Hour)

	stores := infrastore.New(ctx, infrastore.Config{}, infrastore.HistoryConfig{}, logger.New("integration"))
	defer stores.Close()
	feed := events.NewFeed()
	defer feed.Close()
	overrideCh := feed.Overrides.Subscribe()

	snaps := &snapshotStub{}
	snaps.set(dashboard.CycleSnapshot{
		Vehicles:  []dashboard.VehicleStatus{{VehicleID: "leaf", Name: "leaf", SoC: 50}},
		UpdatedAt: now,
	})

	srv, err := dashboard.NewServer(dashboard.Config{Listen: "127.0.0.1:0"}, dashboard.Deps{
		Snapshots:   snaps,
		Overrides:   stores.Overrides,
		Settings:    stores.Settings,
		History:     stores.History,
		Feed:        feed,
		OverrideTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Manual stop through the API.
	resp, err := http.Post(ts.URL+"/api/override", "application/json",
		bytes.NewBufferString(`{"vehicle_id":"leaf","action":"STOP","duration_m":30}`))
	if err != nil {
		t.Fatalf("post override: %v", err)
	}
	var posted model.ManualOverride
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		t.Fatalf("decode override: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("override status = %d", resp.StatusCode)
	}
	if posted.Action != model.OverrideStop {
		t.Fatalf("posted action = %s, want %s", posted.Action, model.OverrideStop)
	}

	select {
	case ev := <-overrideCh:
		if ev.Override.Action != model.OverrideStop || ev.Cleared {
			t.Errorf("override event = %+v, want active STOP", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no override event published")
	}

	o, ok, err := stores.Overrides.Get(ctx, "leaf")
	if err != nil || !ok {
		t.Fatalf("override not stored: ok=%v err=%v", ok, err)
	}

	// The stored command turns a charging decision into idle.
	eng, err := engine.New(engine.Config{}, forecast.New(forecast.Config{}), target.New(target.Config{}))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	st := fleetState("leaf", now)
	st.SoC = 10
	ev, err := eng.Decide(now, engine.Input{Vehicle: st, Prices: flatDay(now, 1.0), Override: &o})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if ev.Decision.Action != model.ActionIdle {
		t.Errorf("action = %s, want %s under a STOP override", ev.Decision.Action, model.ActionIdle)
	}
	if !ev.Decision.Overridden {
		t.Error("decision should be flagged overridden")
	}

	// AUTO clears it again.
	resp, err = http.Post(ts.URL+"/api/override", "application/json",
		bytes.NewBufferString(`{"vehicle_id":"leaf","action":"AUTO"}`))
	if err != nil {
		t.Fatalf("post auto: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auto status = %d", resp.StatusCode)
	}
	if _, ok, err := stores.Overrides.Get(ctx, "leaf"); err != nil || ok {
		t.Fatalf("override should be cleared: ok=%v err=%v", ok, err)
	}
	select {
	case ev := <-overrideCh:
		if !ev.Cleared {
			t.Errorf("second event = %+v, want cleared", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no clear event published")
	}

	// Preference change through the API lands in the settings store.
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/settings",
		bytes.NewBufferString(`{"vehicle_id":"leaf","target_soc":85,"departure_time":"06:30"}`))
	if err != nil {
		t.Fatalf("settings request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put settings: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings status = %d", resp.StatusCode)
	}
	set, ok, err := stores.Settings.Get(ctx, "leaf")
	if err != nil || !ok {
		t.Fatalf("settings not stored: ok=%v err=%v", ok, err)
	}
	applied := set.Apply(fleetState("leaf", now))
	if applied.TargetSoC != 85 {
		t.Errorf("applied target = %d, want 85", applied.TargetSoC)
	}
	if applied.Departure != (model.ClockTime{Hour: 6, Minute: 30}) {
		t.Errorf("applied departure = %v, want 06:30", applied.Departure)
	}

	// History written by the service side is readable through the API.
	dec := model.Decision{
		ID:         engine.DecisionID("leaf", now),
		VehicleID:  "leaf",
		Action:     model.ActionCharge,
		TargetSoC:  80,
		ComputedAt: now,
	}
	if err := stores.History.AppendDecision(ctx, dec); err != nil {
		t.Fatalf("append decision: %v", err)
	}
	q := url.Values{}
	q.Set("start", now.Add(-time.Hour).Format(time.RFC3339))
	q.Set("end", now.Add(time.Hour).Format(time.RFC3339))
	resp, err = http.Get(ts.URL + "/api/history/decisions?" + q.Encode())
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	var decs []model.Decision
	if err := json.NewDecoder(resp.Body).Decode(&decs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	_ = resp.Body.Close()
	if len(decs) != 1 || decs[0].VehicleID != "leaf" {
		t.Fatalf("history = %+v, want the one leaf decision", decs)
	}

	// Status reflects whatever the last cycle published.
	resp, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	var status struct {
		Vehicles  []dashboard.VehicleStatus `json:"vehicles"`
		UpdatedAt time.Time                 `json:"updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	_ = resp.Body.Close()
	if len(status.Vehicles) != 1 || status.Vehicles[0].VehicleID != "leaf" {
		t.Fatalf("status = %+v, want the leaf row", status.Vehicles)
	}
	if !status.UpdatedAt.Equal(now) {
		t.Errorf("updated at = %v, want %v", status.UpdatedAt, now)
	}
}
