package metrics

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// DecisionEvent represents one emitted charging decision to be recorded.
type DecisionEvent struct {
	Decision        model.Decision
	EnergyNeededKWh float64
	HoursNeeded     int
	HoursAvailable  int
	PriceNow        float64
	PriceForecasted bool
	Time            time.Time
}

// MetricsSink records decision events for observability purposes.
type MetricsSink interface {
	RecordDecision(events []DecisionEvent) error
}

// CycleEvent captures data about one full decision cycle.
type CycleEvent struct {
	Duration time.Duration
	Vehicles int
	Degraded bool
	Time     time.Time
}

// CycleRecorder records decision cycle events.
type CycleRecorder interface {
	RecordCycle(ev CycleEvent) error
}

// PriceEvent captures a batch of fetched or forecasted price points.
type PriceEvent struct {
	Area   string
	Points model.PriceSeries
	Time   time.Time
}

// PriceRecorder records price series snapshots.
type PriceRecorder interface {
	RecordPrices(ev PriceEvent) error
}

// ForecastAccuracyEvent is the absolute error of one forecasted hour once the
// provider confirmed it.
type ForecastAccuracyEvent struct {
	Hour         time.Time
	HorizonHours int
	AbsErrorSEK  float64
	Time         time.Time
}

// ForecastAccuracyRecorder records forecast error measurements.
type ForecastAccuracyRecorder interface {
	RecordForecastAccuracy(events []ForecastAccuracyEvent) error
}

// SessionEvent summarizes a finished charging session.
type SessionEvent struct {
	SessionID   string
	VehicleID   string
	EnergyKWh   float64
	SpotCostSEK float64
	GridCostSEK float64
	StartSoC    int
	EndSoC      int
	Started     time.Time
	Ended       time.Time
}

// SessionRecorder records completed charging sessions.
type SessionRecorder interface {
	RecordSession(ev SessionEvent) error
}

// OverrideEvent captures a manual override accepted from the dashboard.
type OverrideEvent struct {
	VehicleID string
	Action    model.OverrideAction
	Time      time.Time
}

// OverrideRecorder records manual override activity.
type OverrideRecorder interface {
	RecordOverride(ev OverrideEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision([]DecisionEvent) error                 { return nil }
func (NopSink) RecordCycle(CycleEvent) error                         { return nil }
func (NopSink) RecordPrices(PriceEvent) error                        { return nil }
func (NopSink) RecordForecastAccuracy([]ForecastAccuracyEvent) error { return nil }
func (NopSink) RecordSession(SessionEvent) error                     { return nil }
func (NopSink) RecordOverride(OverrideEvent) error                   { return nil }
