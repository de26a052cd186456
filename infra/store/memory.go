package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// MemoryOverrides holds manual overrides in process memory. Default backend
// and fallback when a configured one is unreachable.
type MemoryOverrides struct {
	mu   sync.RWMutex
	data map[string]model.ManualOverride
}

// NewMemoryOverrides returns an empty override store.
func NewMemoryOverrides() *MemoryOverrides {
	return &MemoryOverrides{data: map[string]model.ManualOverride{}}
}

func (s *MemoryOverrides) Put(ctx context.Context, o model.ManualOverride) error {
	s.mu.Lock()
	s.data[o.VehicleID] = o
	s.mu.Unlock()
	return nil
}

func (s *MemoryOverrides) Get(ctx context.Context, vehicleID string) (model.ManualOverride, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data[vehicleID]
	return o, ok, nil
}

func (s *MemoryOverrides) Clear(ctx context.Context, vehicleID string) error {
	s.mu.Lock()
	delete(s.data, vehicleID)
	s.mu.Unlock()
	return nil
}

// MemoryDecisions holds the latest decision per vehicle in process memory.
type MemoryDecisions struct {
	mu   sync.RWMutex
	data map[string]model.Decision
}

// NewMemoryDecisions returns an empty decision store.
func NewMemoryDecisions() *MemoryDecisions {
	return &MemoryDecisions{data: map[string]model.Decision{}}
}

func (s *MemoryDecisions) Put(ctx context.Context, d model.Decision) error {
	s.mu.Lock()
	s.data[d.VehicleID] = d
	s.mu.Unlock()
	return nil
}

func (s *MemoryDecisions) Get(ctx context.Context, vehicleID string) (model.Decision, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[vehicleID]
	return d, ok, nil
}

func (s *MemoryDecisions) List(ctx context.Context) ([]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Decision, 0, len(s.data))
	for _, d := range s.data {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VehicleID < res[j].VehicleID })
	return res, nil
}

// MemorySettings holds dashboard preference adjustments in process memory.
type MemorySettings struct {
	mu   sync.RWMutex
	data map[string]model.VehicleSettings
}

// NewMemorySettings returns an empty settings store.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{data: map[string]model.VehicleSettings{}}
}

func (s *MemorySettings) Put(ctx context.Context, set model.VehicleSettings) error {
	s.mu.Lock()
	s.data[set.VehicleID] = set
	s.mu.Unlock()
	return nil
}

func (s *MemorySettings) Get(ctx context.Context, vehicleID string) (model.VehicleSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.data[vehicleID]
	return set, ok, nil
}

// MemoryHistory keeps a bounded in-memory record of decisions, sessions and
// prices. Oldest entries fall off once the limit is reached.
type MemoryHistory struct {
	mu       sync.RWMutex
	limit    int
	decided  []model.Decision
	sessions []model.ChargingSession
	prices   model.PriceSeries
}

// NewMemoryHistory returns a ring holding up to limit records per kind.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryHistory{limit: limit}
}

func (h *MemoryHistory) AppendDecision(ctx context.Context, d model.Decision) error {
	h.mu.Lock()
	h.decided = append(h.decided, d)
	if len(h.decided) > h.limit {
		h.decided = h.decided[len(h.decided)-h.limit:]
	}
	h.mu.Unlock()
	return nil
}

func (h *MemoryHistory) Decisions(ctx context.Context, vehicleID string, from, to time.Time, limit int) ([]model.Decision, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var res []model.Decision
	for i := len(h.decided) - 1; i >= 0; i-- {
		d := h.decided[i]
		if vehicleID != "" && d.VehicleID != vehicleID {
			continue
		}
		if !from.IsZero() && d.ComputedAt.Before(from) {
			continue
		}
		if !to.IsZero() && d.ComputedAt.After(to) {
			continue
		}
		res = append(res, d)
		if limit > 0 && len(res) >= limit {
			break
		}
	}
	return res, nil
}

func (h *MemoryHistory) AppendSession(ctx context.Context, s model.ChargingSession) error {
	h.mu.Lock()
	h.sessions = append(h.sessions, s)
	if len(h.sessions) > h.limit {
		h.sessions = h.sessions[len(h.sessions)-h.limit:]
	}
	h.mu.Unlock()
	return nil
}

func (h *MemoryHistory) Sessions(ctx context.Context, from, to time.Time) ([]model.ChargingSession, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var res []model.ChargingSession
	for _, s := range h.sessions {
		if !from.IsZero() && s.StartedAt.Before(from) {
			continue
		}
		if !to.IsZero() && s.StartedAt.After(to) {
			continue
		}
		res = append(res, s)
	}
	return res, nil
}

func (h *MemoryHistory) AppendPrices(ctx context.Context, points model.PriceSeries) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[time.Time]bool, len(h.prices))
	for _, p := range h.prices {
		seen[p.Timestamp] = true
	}
	for _, p := range points {
		if !seen[p.Timestamp] {
			h.prices = append(h.prices, p)
		}
	}
	h.prices.Sort()
	if len(h.prices) > h.limit {
		h.prices = h.prices[len(h.prices)-h.limit:]
	}
	return nil
}

func (h *MemoryHistory) Prices(ctx context.Context, from, to time.Time) (model.PriceSeries, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.prices.Window(from, to), nil
}

func (h *MemoryHistory) Prune(ctx context.Context, olderThan time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.decided[:0]
	for _, d := range h.decided {
		if !d.ComputedAt.Before(olderThan) {
			kept = append(kept, d)
		}
	}
	h.decided = kept
	keptSessions := h.sessions[:0]
	for _, s := range h.sessions {
		if !s.StartedAt.Before(olderThan) {
			keptSessions = append(keptSessions, s)
		}
	}
	h.sessions = keptSessions
	pruned := h.prices[:0]
	for _, p := range h.prices {
		if !p.Timestamp.Before(olderThan) {
			pruned = append(pruned, p)
		}
	}
	h.prices = pruned
	return nil
}

func (h *MemoryHistory) Close() {}
