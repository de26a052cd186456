package vehicles

import (
	"time"

	"github.com/kilianp07/smartcharge/core/charger"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// GuestID identifies a vehicle the system cannot attribute to any
// configured source.
const GuestID = "guest"

// Kind classifies what the detector believes occupies the charger.
type Kind int

const (
	// KindNone means no vehicle is connected.
	KindNone Kind = iota
	// KindVehicle means a configured vehicle was identified.
	KindVehicle
	// KindGuest means something is connected that no configured vehicle
	// accounts for.
	KindGuest
)

// Detection is the detector's verdict for one cycle.
type Detection struct {
	Kind      Kind
	VehicleID string // set when Kind == KindVehicle
}

// Detector attributes the single physical charger to one of the configured
// vehicles using phase signature, vehicle-side charging reports and plug
// status, in that order of trust.
type Detector struct {
	log logger.Logger
}

// NewDetector creates a detector.
func NewDetector() *Detector {
	return &Detector{log: logger.New("detector")}
}

// Detect decides who is on the charger. While power flows the phase count is
// the primary witness: a three-phase draw can only be a three-phase vehicle.
// The hypothesis must be confirmed by the vehicle's own charging report,
// otherwise the occupant is treated as a guest. Without power flow the plug
// reports decide; ambiguity also falls back to guest so the system keeps
// charging while identity is resolved.
func (d *Detector) Detect(st charger.State, states []model.VehicleState) Detection {
	charging := st.Charging || st.PowerKW > 0.1

	if charging {
		if v, ok := singleByPhases(states, st.Phases); ok {
			if v.Charging {
				d.log.Debugf("phase signature %d confirmed by %s", st.Phases, v.ID)
				return Detection{Kind: KindVehicle, VehicleID: v.ID}
			}
			d.log.Infof("phase signature suggests %s but it denies charging, treating as guest", v.ID)
			return Detection{Kind: KindGuest}
		}
		if v, ok := singleCharging(states); ok {
			return Detection{Kind: KindVehicle, VehicleID: v.ID}
		}
		return Detection{Kind: KindGuest}
	}

	if st.Plugged {
		if v, ok := singlePlugged(states); ok {
			return Detection{Kind: KindVehicle, VehicleID: v.ID}
		}
		d.log.Infof("charger sees a vehicle but identity is ambiguous, treating as guest")
		return Detection{Kind: KindGuest}
	}
	return Detection{Kind: KindNone}
}

// GuestState synthesizes the bookkeeping snapshot for an unidentified
// vehicle. Guests are charged immediately rather than scheduled; the power
// draw raises the phase signal that eventually identifies them.
func GuestState(now time.Time) model.VehicleState {
	return model.VehicleState{
		ID:          GuestID,
		Name:        "Guest",
		SoC:         50,
		PluggedIn:   true,
		CapacityKWh: 40,
		MaxChargeKW: 11,
		MinSoC:      0,
		MaxSoC:      100,
		TargetSoC:   100,
		Departure:   model.ClockTime{Hour: now.Hour(), Minute: now.Minute()},
		RetrievedAt: now,
	}
}

func singleByPhases(states []model.VehicleState, phases int) (model.VehicleState, bool) {
	want := 1
	if phases >= 2 {
		want = 3
	} else if phases != 1 {
		return model.VehicleState{}, false
	}
	return single(states, func(v model.VehicleState) bool { return v.ChargingPhase == want })
}

func singleCharging(states []model.VehicleState) (model.VehicleState, bool) {
	return single(states, func(v model.VehicleState) bool { return v.Charging })
}

func singlePlugged(states []model.VehicleState) (model.VehicleState, bool) {
	return single(states, func(v model.VehicleState) bool { return v.PluggedIn })
}

// single returns the only state matching the predicate, false when zero or
// several match.
func single(states []model.VehicleState, match func(model.VehicleState) bool) (model.VehicleState, bool) {
	var found model.VehicleState
	n := 0
	for _, v := range states {
		if match(v) {
			found = v
			n++
		}
	}
	return found, n == 1
}
