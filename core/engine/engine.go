package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/override"
	"github.com/kilianp07/smartcharge/core/schedule"
	"github.com/kilianp07/smartcharge/core/target"
)

// Config bounds the planning window.
type Config struct {
	// PlanningHorizonDays is how far the forecast is extended ahead of now.
	PlanningHorizonDays int `json:"planning_horizon_days"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.PlanningHorizonDays == 0 {
		c.PlanningHorizonDays = 4
	}
}

// Validate rejects unusable planning windows.
func (c *Config) Validate() error {
	if c.PlanningHorizonDays <= 0 {
		return fmt.Errorf("planning_horizon_days must be positive")
	}
	return nil
}

// Engine sequences forecast, target selection, deadline scheduling and
// override arbitration into one decision per vehicle per invocation. It
// performs no I/O and owns no durable state: identical inputs and now yield
// identical decisions.
type Engine struct {
	cfg        Config
	forecaster *forecast.Forecaster
	targets    *target.Calculator
}

// New returns an Engine wired to its collaborators.
func New(cfg Config, forecaster *forecast.Forecaster, targets *target.Calculator) (*Engine, error) {
	if forecaster == nil {
		return nil, fmt.Errorf("engine: forecaster is nil")
	}
	if targets == nil {
		return nil, fmt.Errorf("engine: target calculator is nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{cfg: cfg, forecaster: forecaster, targets: targets}, nil
}

// Input is everything one decision rests on. The engine reads it, never
// writes it.
type Input struct {
	Vehicle  model.VehicleState
	Prices   model.PriceSeries
	Weather  model.WeatherSeries
	Override *model.ManualOverride
}

// Evaluation bundles the decision with the intermediate artifacts callers
// expose or record: the extended price series, the selected target and the
// hour plan.
type Evaluation struct {
	Decision model.Decision
	Forecast forecast.Result
	Target   target.Result
	Plan     schedule.Plan
}

// PriceNow returns the price covering the hour of the decision, zero when
// the series has no such hour.
func (e Evaluation) PriceNow() (float64, bool) {
	p, ok := e.Forecast.Series.At(e.Decision.ComputedAt)
	if !ok {
		return 0, false
	}
	return p.Price, p.IsForecasted
}

// Decide runs one full evaluation for one vehicle. It fails only on an
// invalid vehicle snapshot; degraded inputs produce a decision with the
// Degraded flag set and the fallback named in the reasoning.
func (e *Engine) Decide(now time.Time, in Input) (Evaluation, error) {
	if err := in.Vehicle.Validate(); err != nil {
		return Evaluation{}, err
	}

	var ev Evaluation
	ev.Forecast = e.forecaster.Extend(now, in.Prices, in.Weather, e.cfg.PlanningHorizonDays)
	ev.Target = e.targets.Compute(now, ev.Forecast.Series, in.Weather, in.Vehicle)
	ev.Plan = schedule.Evaluate(now, in.Vehicle, ev.Target.TargetSoC, ev.Forecast.Series)
	res := override.Resolve(now, ev.Plan.Action, in.Override)

	degraded := degradations(ev.Forecast, in)
	ev.Decision = model.Decision{
		ID:         DecisionID(in.Vehicle.ID, now),
		VehicleID:  in.Vehicle.ID,
		Action:     res.Action,
		TargetSoC:  ev.Target.TargetSoC,
		Reasoning:  reasoning(ev, res, degraded),
		ComputedAt: now,
		Degraded:   len(degraded) > 0,
		Overridden: res.Overridden,
		Urgency:    urgency(ev.Plan),
	}
	return ev, nil
}

// DecisionID derives a stable id from the vehicle and the evaluation instant
// so re-running a cycle reproduces the same decision identity. The service
// uses it for decisions it synthesizes outside the engine.
func DecisionID(vehicleID string, now time.Time) string {
	name := "smartcharge/decision/" + vehicleID + "/" + now.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// urgency orders vehicles by how much of the remaining window their deficit
// consumes. Zero without a deficit, 1 or above when the deadline is already
// lost.
func urgency(p schedule.Plan) float64 {
	if p.HoursNeeded == 0 {
		return 0
	}
	avail := p.HoursAvailable
	if avail < 1 {
		avail = 1
	}
	return float64(p.HoursNeeded) / float64(avail)
}

// degradations names every fallback that fed this evaluation.
func degradations(fc forecast.Result, in Input) []string {
	var d []string
	if fc.FlatFallback {
		d = append(d, "flat price baseline")
	}
	if len(in.Weather) == 0 {
		d = append(d, "no weather data")
	}
	if in.Vehicle.Stale {
		d = append(d, "stale telemetry")
	}
	return d
}

// reasoning renders the decision path as one human-readable sentence.
func reasoning(ev Evaluation, res override.Resolution, degraded []string) string {
	var parts []string

	if res.Overridden {
		parts = append(parts, fmt.Sprintf("manual %s override until %s replaces automatic %s",
			res.Manual, res.ExpiresAt.Format("15:04"), ev.Plan.Action))
	} else {
		parts = append(parts, planReason(ev.Plan))
	}

	parts = append(parts, targetReason(ev.Target))

	if !res.Overridden && ev.Plan.OnForecasted {
		parts = append(parts, "selection rests on forecasted prices")
	}
	if len(degraded) > 0 {
		parts = append(parts, "degraded: "+strings.Join(degraded, ", "))
	}
	return strings.Join(parts, "; ")
}

func planReason(p schedule.Plan) string {
	deadline := p.Deadline.Format("Mon 15:04")
	switch {
	case p.Unplugged:
		return "vehicle unplugged, charger idle"
	case p.HoursNeeded == 0:
		return "battery at or above target, nothing to charge"
	case p.Action == model.ActionPanic:
		return fmt.Sprintf("need %dh but only %dh left before departure %s, charging regardless of price",
			p.HoursNeeded, p.HoursAvailable, deadline)
	case p.CurrentSelected:
		return fmt.Sprintf("current hour among the %d cheapest before departure %s", p.HoursNeeded, deadline)
	default:
		return fmt.Sprintf("current hour not among the %d cheapest before departure %s, waiting", p.HoursNeeded, deadline)
	}
}

func targetReason(t target.Result) string {
	switch {
	case t.StormBuffered:
		return fmt.Sprintf("target %d%% held for calm cold spell", t.TargetSoC)
	case t.RatioKnown:
		return fmt.Sprintf("target %d%% from price ratio %.2f", t.TargetSoC, t.Ratio)
	default:
		return fmt.Sprintf("target %d%% preference, no forecast to compare", t.TargetSoC)
	}
}
