package model

import "time"

// OverrideAction is a manual instruction from the dashboard.
type OverrideAction string

const (
	// OverrideCharge forces charging until the override expires.
	OverrideCharge OverrideAction = "CHARGE"
	// OverrideStop forces the charger idle until the override expires.
	OverrideStop OverrideAction = "STOP"
	// OverrideAuto returns control to automatic scheduling immediately.
	OverrideAuto OverrideAction = "AUTO"
)

// Valid reports whether the action is one of the known values.
func (a OverrideAction) Valid() bool {
	switch a {
	case OverrideCharge, OverrideStop, OverrideAuto:
		return true
	}
	return false
}

// ManualOverride is a time-bounded manual command. At most one exists per
// vehicle; expiry is absolute, not sliding.
type ManualOverride struct {
	VehicleID string         `json:"vehicle_id"`
	Action    OverrideAction `json:"action"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// ActiveAt reports whether the override still binds at the given instant.
// Expiry is evaluated here, at resolution time, so a command that lapsed
// between read and decision is not acted upon.
func (o ManualOverride) ActiveAt(now time.Time) bool {
	if o.Action == "" || o.Action == OverrideAuto {
		return false
	}
	return !now.After(o.ExpiresAt)
}
