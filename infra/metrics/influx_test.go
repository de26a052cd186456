package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
)

func TestInfluxSink_RecordDecision(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.DecisionEvent{
		Decision: model.Decision{
			ID:        "d1",
			VehicleID: "leaf",
			Action:    model.ActionCharge,
			TargetSoC: 85,
			Urgency:   0.5,
		},
		EnergyNeededKWh: 12.34,
		HoursNeeded:     2,
		HoursAvailable:  4,
		PriceNow:        0.421,
		Time:            now,
	}

	if err := sink.RecordDecision([]coremetrics.DecisionEvent{ev}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("decision").
		AddTag("vehicle_id", "leaf").
		AddTag("action", "CHARGE").
		AddTag("degraded", "false").
		AddTag("overridden", "false").
		AddField("target_soc", 85).
		AddField("urgency", 0.5).
		AddField("energy_needed_kwh", 12.34).
		AddField("hours_needed", 2).
		AddField("hours_available", 4).
		AddField("price_now_sek", 0.421).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL, "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

func TestInfluxSink_RecordPrices(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(b)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	h0 := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	ev := coremetrics.PriceEvent{
		Area: "SE3",
		Points: model.PriceSeries{
			{Timestamp: h0, Price: 0.35},
			{Timestamp: h0.Add(time.Hour), Price: 0.4211, IsForecasted: true},
		},
		Time: h0,
	}
	if err := sink.RecordPrices(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p1 := write.NewPointWithMeasurement("spot_price").
		AddTag("area", "SE3").
		AddTag("forecasted", "false").
		AddField("price_sek", 0.35).
		SetTime(h0)
	p2 := write.NewPointWithMeasurement("spot_price").
		AddTag("area", "SE3").
		AddTag("forecasted", "true").
		AddField("price_sek", 0.421).
		SetTime(h0.Add(time.Hour))
	exp1 := strings.TrimSpace(write.PointToLineProtocol(p1, time.Nanosecond))
	exp2 := strings.TrimSpace(write.PointToLineProtocol(p2, time.Nanosecond))
	if len(bodies) != 2 || bodies[0] != exp1 || bodies[1] != exp2 {
		t.Errorf("unexpected bodies: %#v", bodies)
	}
}

func TestInfluxSink_RecordSession(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(b)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	started := time.Date(2026, 2, 10, 1, 0, 0, 0, time.UTC)
	ended := started.Add(90 * time.Minute)
	ev := coremetrics.SessionEvent{
		SessionID:   "s1",
		VehicleID:   "leaf",
		EnergyKWh:   7.5,
		SpotCostSEK: 3.21,
		GridCostSEK: 6.1875,
		StartSoC:    40,
		EndSoC:      65,
		Started:     started,
		Ended:       ended,
	}
	if err := sink.RecordSession(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("charging_session").
		AddTag("vehicle_id", "leaf").
		AddTag("session_id", "s1").
		AddField("energy_kwh", 7.5).
		AddField("spot_cost_sek", 3.21).
		AddField("grid_cost_sek", 6.188).
		AddField("start_soc", 40).
		AddField("end_soc", 65).
		AddField("duration_m", 90.0).
		SetTime(ended)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(bodies) != 1 || bodies[0] != exp {
		t.Errorf("bodies: %#v", bodies)
	}
}

func TestInfluxSink_RecordOverride(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(b)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.OverrideEvent{VehicleID: "leaf", Action: model.OverrideStop, Time: now}
	if err := sink.RecordOverride(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("manual_override").
		AddTag("vehicle_id", "leaf").
		AddTag("action", "STOP").
		AddField("count", 1).
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(bodies) != 1 || bodies[0] != exp {
		t.Errorf("bodies: %#v", bodies)
	}
}
