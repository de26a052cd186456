package model

import "time"

// Action is the instruction a decision cycle emits for the current hour.
type Action string

const (
	// ActionCharge starts or keeps the charger delivering power.
	ActionCharge Action = "CHARGE"
	// ActionIdle stops or keeps the charger idle.
	ActionIdle Action = "IDLE"
	// ActionPanic charges immediately regardless of price because the
	// remaining hours no longer cover the energy deficit.
	ActionPanic Action = "PANIC"
)

// Charging reports whether the action instructs the charger to deliver power.
func (a Action) Charging() bool {
	return a == ActionCharge || a == ActionPanic
}

// Valid reports whether the action is one of the known values.
func (a Action) Valid() bool {
	switch a {
	case ActionCharge, ActionIdle, ActionPanic:
		return true
	}
	return false
}

// Decision is the result of one engine invocation for one vehicle. It is
// immutable once emitted; the latest decision per vehicle is the externally
// visible state of the system.
type Decision struct {
	ID         string    `json:"id"`
	VehicleID  string    `json:"vehicle_id"`
	Action     Action    `json:"action"`
	TargetSoC  int       `json:"target_soc"`
	Reasoning  string    `json:"reasoning"`
	ComputedAt time.Time `json:"computed_at"`

	// Degraded marks a decision computed from fallback inputs (flat price
	// baseline, missing weather, stale telemetry) so operators can tell a
	// confident decision from a best-effort one.
	Degraded bool `json:"degraded,omitempty"`

	// Overridden is set when a manual override replaced the automatic action.
	Overridden bool `json:"overridden,omitempty"`

	// Urgency orders vehicles on the dashboard: higher means closer to
	// missing its deadline.
	Urgency float64 `json:"urgency,omitempty"`
}
