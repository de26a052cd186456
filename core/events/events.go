package events

import (
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// DecisionEvent is published after every decision cycle, one per vehicle.
type DecisionEvent struct {
	Decision model.Decision `json:"decision"`
}

// PriceEvent is published when the hourly price series changes, either from
// a provider fetch or a re-forecast.
type PriceEvent struct {
	Points model.PriceSeries `json:"points"`
}

// OverrideEvent is published when a manual override is accepted or cleared.
type OverrideEvent struct {
	Override model.ManualOverride `json:"override"`
	Cleared  bool                 `json:"cleared,omitempty"`
}

// SessionEvent is published on charging session boundaries.
type SessionEvent struct {
	Session model.ChargingSession `json:"session"`
}

// Feed groups the buses the service publishes on and the dashboard bridges
// subscribe to.
type Feed struct {
	Decisions *eventbus.Bus[DecisionEvent]
	Prices    *eventbus.Bus[PriceEvent]
	Overrides *eventbus.Bus[OverrideEvent]
	Sessions  *eventbus.Bus[SessionEvent]
}

// NewFeed creates a Feed with all buses ready.
func NewFeed() *Feed {
	return &Feed{
		Decisions: eventbus.New[DecisionEvent](),
		Prices:    eventbus.New[PriceEvent](),
		Overrides: eventbus.New[OverrideEvent](),
		Sessions:  eventbus.New[SessionEvent](),
	}
}

// Close shuts every bus down.
func (f *Feed) Close() {
	f.Decisions.Close()
	f.Prices.Close()
	f.Overrides.Close()
	f.Sessions.Close()
}
