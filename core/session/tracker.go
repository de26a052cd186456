// Package session folds per-cycle charging observations into plug-to-stop
// charging sessions with a spot/grid cost split.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/smartcharge/core/model"
)

// Config prices the grid-side cost components layered on top of the spot
// price. All fees are SEK per kWh before VAT.
type Config struct {
	GridFeeSEK     float64 `json:"grid_fee"`
	EnergyTaxSEK   float64 `json:"energy_tax"`
	RetailerFeeSEK float64 `json:"retailer_fee"`
	VATRate        float64 `json:"vat_rate"`
}

// SetDefaults fills unset fields with the Swedish residential tariff.
func (c *Config) SetDefaults() {
	if c.GridFeeSEK == 0 {
		c.GridFeeSEK = 0.25
	}
	if c.EnergyTaxSEK == 0 {
		c.EnergyTaxSEK = 0.36
	}
	if c.RetailerFeeSEK == 0 {
		c.RetailerFeeSEK = 0.05
	}
	if c.VATRate == 0 {
		c.VATRate = 0.25
	}
}

// Validate rejects negative tariffs.
func (c *Config) Validate() error {
	if c.GridFeeSEK < 0 || c.EnergyTaxSEK < 0 || c.RetailerFeeSEK < 0 || c.VATRate < 0 {
		return fmt.Errorf("tariff components must not be negative")
	}
	return nil
}

// GridUnitSEK is the non-spot cost of one kWh, VAT included.
func (c Config) GridUnitSEK() float64 {
	return (c.GridFeeSEK + c.EnergyTaxSEK + c.RetailerFeeSEK) * (1 + c.VATRate)
}

// EventKind tells what one observation did to the session state.
type EventKind int

const (
	// EventNone: no session boundary crossed.
	EventNone EventKind = iota
	// EventStarted: a new session opened this cycle.
	EventStarted
	// EventEnded: the running session closed this cycle.
	EventEnded
)

// Event reports a session boundary together with a snapshot of the session.
type Event struct {
	Kind    EventKind
	Session model.ChargingSession
}

// Tracker accumulates sessions from cycle observations. Safe for concurrent
// use; the dashboard reads while the service loop writes.
type Tracker struct {
	cfg Config

	mu     sync.Mutex
	active map[string]*running
}

type running struct {
	session  model.ChargingSession
	lastTick time.Time
}

// NewTracker returns an empty Tracker.
func NewTracker(cfg Config) *Tracker {
	cfg.SetDefaults()
	return &Tracker{cfg: cfg, active: map[string]*running{}}
}

// Observe folds one cycle snapshot into the per-vehicle session state.
// A charging observation with no running session opens one; energy and cost
// accrue over the elapsed time since the previous observation; a
// non-charging observation closes the running session and returns its
// summary.
func (t *Tracker) Observe(now time.Time, v model.VehicleState, charging bool, powerKW, spotPriceSEK float64) Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, open := t.active[v.ID]
	switch {
	case charging && !open:
		r = &running{
			session: model.ChargingSession{
				ID:        uuid.NewString(),
				VehicleID: v.ID,
				StartedAt: now,
				StartSoC:  v.SoC,
				EndSoC:    v.SoC,
				Active:    true,
			},
			lastTick: now,
		}
		t.active[v.ID] = r
		return Event{Kind: EventStarted, Session: r.session}

	case charging && open:
		t.accrue(r, now, powerKW, spotPriceSEK)
		r.session.EndSoC = v.SoC
		return Event{Kind: EventNone, Session: r.session}

	case !charging && open:
		t.accrue(r, now, powerKW, spotPriceSEK)
		r.session.EndSoC = v.SoC
		r.session.EndedAt = now
		r.session.Active = false
		delete(t.active, v.ID)
		return Event{Kind: EventEnded, Session: r.session}
	}
	return Event{Kind: EventNone}
}

// accrue integrates energy and cost over the interval since the last tick.
func (t *Tracker) accrue(r *running, now time.Time, powerKW, spotPriceSEK float64) {
	elapsed := now.Sub(r.lastTick).Hours()
	r.lastTick = now
	if elapsed <= 0 || powerKW <= 0 {
		return
	}
	energy := powerKW * elapsed
	r.session.EnergyKWh += energy
	r.session.SpotCostSEK += energy * spotPriceSEK
	r.session.GridCostSEK += energy * t.cfg.GridUnitSEK()
}

// Active returns the running session for one vehicle, if any.
func (t *Tracker) Active(vehicleID string) (model.ChargingSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.active[vehicleID]; ok {
		return r.session, true
	}
	return model.ChargingSession{}, false
}
