package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/model"
	infrastore "github.com/kilianp07/smartcharge/infra/store"
)

type fakeSnapshots struct {
	snap CycleSnapshot
	err  error
}

func (f *fakeSnapshots) Snapshot(context.Context) (CycleSnapshot, error) {
	return f.snap, f.err
}

type fixture struct {
	server    *Server
	router    http.Handler
	snapshots *fakeSnapshots
	overrides *infrastore.MemoryOverrides
	settings  *infrastore.MemorySettings
	history   *infrastore.MemoryHistory
	feed      *events.Feed
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		snapshots: &fakeSnapshots{},
		overrides: infrastore.NewMemoryOverrides(),
		settings:  infrastore.NewMemorySettings(),
		history:   infrastore.NewMemoryHistory(100),
		feed:      events.NewFeed(),
	}
	t.Cleanup(f.feed.Close)
	srv, err := NewServer(cfg, Deps{
		Snapshots:   f.snapshots,
		Overrides:   f.overrides,
		Settings:    f.settings,
		History:     f.history,
		Feed:        f.feed,
		OverrideTTL: 30 * time.Minute,
	})
	require.NoError(t, err)
	f.server = srv
	f.router = srv.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func sampleSnapshot(now time.Time) CycleSnapshot {
	return CycleSnapshot{
		Vehicles: []VehicleStatus{
			{
				VehicleID: "eqv",
				Name:      "Van",
				SoC:       70,
				Decision:  model.Decision{VehicleID: "eqv", Action: model.ActionIdle, Urgency: 0.2},
				Plan:      PlanView{TargetSoC: 80, HoursNeeded: 1, HoursAvailable: 5},
			},
			{
				VehicleID: "leaf",
				Name:      "Leaf",
				SoC:       30,
				PluggedIn: true,
				Active:    true,
				Decision:  model.Decision{VehicleID: "leaf", Action: model.ActionCharge, Urgency: 0.8},
				Plan: PlanView{
					TargetSoC:      85,
					HoursNeeded:    4,
					HoursAvailable: 5,
					SelectedHours:  []time.Time{now.Truncate(time.Hour)},
				},
			},
		},
		Prices:    model.PriceSeries{{Timestamp: now.Truncate(time.Hour), Price: 0.42}},
		UpdatedAt: now,
	}
}

func TestStatus_SortedByUrgency(t *testing.T) {
	f := newFixture(t, Config{})
	now := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	f.snapshots.snap = sampleSnapshot(now)

	rr := f.do(t, http.MethodGet, "/api/status", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Vehicles  []VehicleStatus `json:"vehicles"`
		UpdatedAt time.Time       `json:"updated_at"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Vehicles, 2)
	assert.Equal(t, "leaf", resp.Vehicles[0].VehicleID)
	assert.Equal(t, "eqv", resp.Vehicles[1].VehicleID)
	assert.True(t, resp.Vehicles[0].Active)
	assert.True(t, resp.UpdatedAt.Equal(now))
}

func TestStatus_Gzip(t *testing.T) {
	f := newFixture(t, Config{})
	f.snapshots.snap = sampleSnapshot(time.Now())

	rr := f.do(t, http.MethodGet, "/api/status", nil, http.Header{"Accept-Encoding": {"gzip"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
}

func TestPlan(t *testing.T) {
	f := newFixture(t, Config{})
	now := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	f.snapshots.snap = sampleSnapshot(now)

	rr := f.do(t, http.MethodGet, "/api/plan", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Prices   model.PriceSeries `json:"prices"`
		Vehicles []struct {
			VehicleID string   `json:"vehicle_id"`
			Plan      PlanView `json:"plan"`
		} `json:"vehicles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Prices, 1)
	require.Len(t, resp.Vehicles, 2)
	assert.InDelta(t, 0.42, resp.Prices[0].Price, 0.0001)
	assert.Equal(t, 4, resp.Vehicles[1].Plan.HoursNeeded)
	assert.Len(t, resp.Vehicles[1].Plan.SelectedHours, 1)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, Config{})
	now := time.Now()
	require.NoError(t, f.history.AppendDecision(context.Background(), model.Decision{
		ID: "d1", VehicleID: "leaf", Action: model.ActionCharge, ComputedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, f.history.AppendDecision(context.Background(), model.Decision{
		ID: "d2", VehicleID: "eqv", Action: model.ActionIdle, ComputedAt: now.Add(-time.Hour),
	}))

	rr := f.do(t, http.MethodGet, "/api/history/decisions?vehicle_id=leaf", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []model.Decision
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "d1", recs[0].ID)

	rr = f.do(t, http.MethodGet, "/api/history/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/history/decisions?start=not-a-time", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOverride_PutThenClear(t *testing.T) {
	f := newFixture(t, Config{})
	sub := f.feed.Overrides.Subscribe()

	rr := f.do(t, http.MethodPost, "/api/override",
		overrideRequest{VehicleID: "leaf", Action: model.OverrideCharge, DurationM: 45}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	o, ok, err := f.overrides.Get(context.Background(), "leaf")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.OverrideCharge, o.Action)
	assert.WithinDuration(t, time.Now().Add(45*time.Minute), o.ExpiresAt, 5*time.Second)

	select {
	case ev := <-sub:
		assert.Equal(t, model.OverrideCharge, ev.Override.Action)
		assert.False(t, ev.Cleared)
	case <-time.After(time.Second):
		t.Fatal("override event not published")
	}

	rr = f.do(t, http.MethodPost, "/api/override",
		overrideRequest{VehicleID: "leaf", Action: model.OverrideAuto}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	_, ok, err = f.overrides.Get(context.Background(), "leaf")
	require.NoError(t, err)
	assert.False(t, ok)

	select {
	case ev := <-sub:
		assert.True(t, ev.Cleared)
	case <-time.After(time.Second):
		t.Fatal("clear event not published")
	}
}

func TestOverride_Invalid(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodPost, "/api/override",
		overrideRequest{VehicleID: "leaf", Action: "BOOST"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/override",
		overrideRequest{Action: model.OverrideCharge}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodPut, "/api/settings",
		model.VehicleSettings{VehicleID: "leaf", TargetSoC: 90, Departure: "06:30"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	stored, ok, err := f.settings.Get(context.Background(), "leaf")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 90, stored.TargetSoC)
	assert.False(t, stored.UpdatedAt.IsZero())

	rr = f.do(t, http.MethodPut, "/api/settings",
		model.VehicleSettings{VehicleID: "leaf", MinSoC: 80, MaxSoC: 50}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuth(t *testing.T) {
	f := newFixture(t, Config{JWTSecret: "sekrit"})

	body := overrideRequest{VehicleID: "leaf", Action: model.OverrideCharge}

	rr := f.do(t, http.MethodPost, "/api/override", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	bad := http.Header{"Authorization": {"Bearer not-a-token"}}
	rr = f.do(t, http.MethodPost, "/api/override", body, bad)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("sekrit"))
	require.NoError(t, err)

	good := http.Header{"Authorization": {"Bearer " + token}}
	rr = f.do(t, http.MethodPost, "/api/override", body, good)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Reads stay open.
	rr = f.do(t, http.MethodGet, "/api/status", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")

	rr = f.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{}, Deps{})
	require.Error(t, err)

	f := &fakeSnapshots{}
	_, err = NewServer(Config{}, Deps{Snapshots: f})
	require.Error(t, err)
}
