package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/model"
)

// handleStatus serves the latest decision per vehicle, most urgent first.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Snapshot(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	vehicles := make([]VehicleStatus, len(snap.Vehicles))
	copy(vehicles, snap.Vehicles)
	sort.SliceStable(vehicles, func(i, j int) bool {
		return vehicles[i].Decision.Urgency > vehicles[j].Decision.Urgency
	})
	writeJSON(w, struct {
		Vehicles  []VehicleStatus `json:"vehicles"`
		UpdatedAt time.Time       `json:"updated_at"`
		Degraded  bool            `json:"degraded,omitempty"`
	}{Vehicles: vehicles, UpdatedAt: snap.UpdatedAt, Degraded: snap.Degraded})
}

// handlePlan serves the extended price series plus each vehicle's selected
// charging hours.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Snapshot(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type vehiclePlan struct {
		VehicleID string   `json:"vehicle_id"`
		Plan      PlanView `json:"plan"`
	}
	plans := make([]vehiclePlan, 0, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		plans = append(plans, vehiclePlan{VehicleID: v.VehicleID, Plan: v.Plan})
	}
	writeJSON(w, struct {
		Prices    model.PriceSeries `json:"prices"`
		Vehicles  []vehiclePlan     `json:"vehicles"`
		UpdatedAt time.Time         `json:"updated_at"`
	}{Prices: snap.Prices, Vehicles: plans, UpdatedAt: snap.UpdatedAt})
}

// handleHistory serves persisted decisions, sessions or prices for a time
// window, defaulting to the last 24 hours.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	now := time.Now()
	from, to := now.Add(-24*time.Hour), now
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid start: "+err.Error(), http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid end: "+err.Error(), http.StatusBadRequest)
			return
		}
		to = t
	}

	switch kind {
	case "decisions":
		limit := 200
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSONError(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		recs, err := s.history.Decisions(r.Context(), r.URL.Query().Get("vehicle_id"), from, to, limit)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, recs)
	case "sessions":
		recs, err := s.history.Sessions(r.Context(), from, to)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, recs)
	case "prices":
		recs, err := s.history.Prices(r.Context(), from, to)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, recs)
	default:
		writeJSONError(w, fmt.Sprintf("unknown history kind %q", kind), http.StatusNotFound)
	}
}

type overrideRequest struct {
	VehicleID string               `json:"vehicle_id"`
	Action    model.OverrideAction `json:"action"`
	// DurationM bounds the override in minutes; zero uses the configured
	// default.
	DurationM int `json:"duration_m,omitempty"`
}

// handleOverride accepts a manual CHARGE/STOP command or, with AUTO, returns
// the vehicle to automatic scheduling.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.VehicleID == "" {
		writeJSONError(w, "vehicle_id is required", http.StatusBadRequest)
		return
	}
	if !req.Action.Valid() {
		writeJSONError(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
		return
	}

	now := time.Now()
	if req.Action == model.OverrideAuto {
		if err := s.overrides.Clear(r.Context(), req.VehicleID); err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.publishOverride(events.OverrideEvent{
			Override: model.ManualOverride{VehicleID: req.VehicleID, Action: model.OverrideAuto, CreatedAt: now},
			Cleared:  true,
		})
		writeJSON(w, map[string]string{"status": "cleared"})
		return
	}

	ttl := s.overrideTTL
	if req.DurationM > 0 {
		ttl = time.Duration(req.DurationM) * time.Minute
	}
	o := model.ManualOverride{
		VehicleID: req.VehicleID,
		Action:    req.Action,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.overrides.Put(r.Context(), o); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.publishOverride(events.OverrideEvent{Override: o})
	writeJSON(w, o)
}

// handleSettings persists dashboard preference changes for one vehicle.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req model.VehicleSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.UpdatedAt = time.Now()
	if err := s.settings.Put(r.Context(), req); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, req)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) publishOverride(ev events.OverrideEvent) {
	if s.feed != nil {
		s.feed.Overrides.Publish(ev)
	}
}
