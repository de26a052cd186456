package override

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Resolution is the arbitration outcome between the automatic plan and a
// manual override.
type Resolution struct {
	// Action is the final action after arbitration.
	Action model.Action
	// Overridden is set when a manual command replaced the automatic one.
	Overridden bool
	// Manual is the override action that won; empty unless Overridden.
	Manual model.OverrideAction
	// ExpiresAt is the winning override's expiry; zero unless Overridden.
	ExpiresAt time.Time
}

// Resolve applies an optional manual override to the automatic action. An
// unexpired CHARGE or STOP replaces it unconditionally (STOP maps to IDLE);
// AUTO, an expired override or none at all defers to the plan. Expiry is
// evaluated here so a command lapsing between read and decision never acts.
func Resolve(now time.Time, auto model.Action, o *model.ManualOverride) Resolution {
	if o == nil || !o.ActiveAt(now) {
		return Resolution{Action: auto}
	}
	res := Resolution{Overridden: true, Manual: o.Action, ExpiresAt: o.ExpiresAt}
	switch o.Action {
	case model.OverrideCharge:
		res.Action = model.ActionCharge
	case model.OverrideStop:
		res.Action = model.ActionIdle
	default:
		return Resolution{Action: auto}
	}
	return res
}
