// Package store defines the small persistence interfaces the service and
// the dashboard share. Backends live under infra/store.
package store

import (
	"context"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// OverrideStore holds at most one manual override per vehicle. Put replaces
// any previous override; expiry is the reader's concern.
type OverrideStore interface {
	Put(ctx context.Context, o model.ManualOverride) error
	Get(ctx context.Context, vehicleID string) (model.ManualOverride, bool, error)
	Clear(ctx context.Context, vehicleID string) error
}

// DecisionStore holds the latest decision per vehicle, the externally
// visible state of the system.
type DecisionStore interface {
	Put(ctx context.Context, d model.Decision) error
	Get(ctx context.Context, vehicleID string) (model.Decision, bool, error)
	List(ctx context.Context) ([]model.Decision, error)
}

// SettingsStore persists dashboard-made preference adjustments across
// restarts of the decision loop.
type SettingsStore interface {
	Put(ctx context.Context, s model.VehicleSettings) error
	Get(ctx context.Context, vehicleID string) (model.VehicleSettings, bool, error)
}

// HistoryStore records decisions, sessions and prices for later inspection.
// Append never blocks a decision cycle longer than its context allows.
type HistoryStore interface {
	AppendDecision(ctx context.Context, d model.Decision) error
	Decisions(ctx context.Context, vehicleID string, from, to time.Time, limit int) ([]model.Decision, error)

	AppendSession(ctx context.Context, s model.ChargingSession) error
	Sessions(ctx context.Context, from, to time.Time) ([]model.ChargingSession, error)

	AppendPrices(ctx context.Context, points model.PriceSeries) error
	Prices(ctx context.Context, from, to time.Time) (model.PriceSeries, error)

	// Prune drops records older than the cutoff.
	Prune(ctx context.Context, olderThan time.Time) error
	Close()
}
