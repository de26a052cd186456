// Package vehicles turns hub entities and OEM cloud APIs into vehicle
// snapshots, and figures out which configured vehicle occupies the charger.
package vehicles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/homeassistant"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// Source produces the current snapshot of one vehicle.
type Source interface {
	// VehicleID identifies the vehicle this source reports on.
	VehicleID() string
	// Snapshot returns the current vehicle state. When the upstream cannot
	// be reached the last known state is returned with Stale set.
	Snapshot(ctx context.Context) (model.VehicleState, error)
}

// StateFetcher is the part of the hub client the sources consume.
type StateFetcher interface {
	State(ctx context.Context, entityID string) (homeassistant.EntityState, error)
}

// snapshotCache remembers the last good snapshot so an unreachable upstream
// degrades to stale data instead of losing the vehicle.
type snapshotCache struct {
	mu   sync.Mutex
	last model.VehicleState
}

func (c *snapshotCache) store(v model.VehicleState) {
	c.mu.Lock()
	c.last = v
	c.mu.Unlock()
}

func (c *snapshotCache) stale(base model.VehicleState) model.VehicleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.last
	if state.ID == "" {
		state = base
	}
	state.Stale = true
	return state
}

// HubSource reads a vehicle's telemetry from Home Assistant entities.
type HubSource struct {
	cfg   Config
	hub   StateFetcher
	log   logger.Logger
	cache snapshotCache
}

// NewHubSource creates a source backed by hub entities.
func NewHubSource(cfg Config, hub StateFetcher) (*HubSource, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hub == nil {
		return nil, fmt.Errorf("vehicle %s: hub client is nil", cfg.ID)
	}
	return &HubSource{cfg: cfg, hub: hub, log: logger.New("vehicles")}, nil
}

// VehicleID implements Source.
func (s *HubSource) VehicleID() string { return s.cfg.ID }

// Snapshot implements Source. The SoC entity is authoritative; plug,
// charging and range fall back to its attributes when no dedicated entity is
// configured, matching how single-sensor integrations expose them.
func (s *HubSource) Snapshot(ctx context.Context) (model.VehicleState, error) {
	socState, err := s.hub.State(ctx, s.cfg.Entities.SoC)
	if err != nil || !socState.Available() {
		if err == nil {
			err = fmt.Errorf("entity %s is %s", s.cfg.Entities.SoC, socState.State)
		}
		s.log.Warnf("vehicle %s: telemetry unavailable: %v", s.cfg.ID, err)
		return s.cache.stale(s.cfg.baseState()), nil
	}
	soc, err := socState.Float()
	if err != nil {
		s.log.Warnf("vehicle %s: soc state %q is not a number", s.cfg.ID, socState.State)
		return s.cache.stale(s.cfg.baseState()), nil
	}

	state := s.cfg.baseState()
	state.SoC = int(soc)
	state.RetrievedAt = time.Now()

	if s.cfg.Entities.Plugged != "" {
		if st, err := s.hub.State(ctx, s.cfg.Entities.Plugged); err == nil && st.Available() {
			state.PluggedIn = st.On()
		}
	} else {
		state.PluggedIn = socState.BoolAttr("charging") ||
			socState.BoolAttr("pluggedIn") ||
			socState.BoolAttr("charge_port_door_closed")
	}

	if s.cfg.Entities.Charging != "" {
		if st, err := s.hub.State(ctx, s.cfg.Entities.Charging); err == nil && st.Available() {
			state.Charging = st.On()
		}
	} else {
		state.Charging = socState.BoolAttr("charging")
	}

	if s.cfg.Entities.Range != "" {
		if st, err := s.hub.State(ctx, s.cfg.Entities.Range); err == nil && st.Available() {
			if km, err := st.Float(); err == nil {
				state.RangeKm = km
			}
		}
	} else {
		state.RangeKm = socState.FloatAttr("range")
	}

	if s.cfg.Entities.Odometer != "" {
		if st, err := s.hub.State(ctx, s.cfg.Entities.Odometer); err == nil && st.Available() {
			if km, err := st.Float(); err == nil {
				state.OdometerKm = km
			}
		}
	}

	s.cache.store(state)
	return state, nil
}
