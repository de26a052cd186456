package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
)

// PromSink exposes decision activity as Prometheus metrics.
type PromSink struct {
	decisions   *prometheus.CounterVec
	urgency     *prometheus.GaugeVec
	targetSoC   *prometheus.GaugeVec
	priceNow    prometheus.Gauge
	cycleTime   prometheus.Histogram
	cycles      *prometheus.CounterVec
	forecastErr *prometheus.GaugeVec
	energy      prometheus.Counter
	cost        *prometheus.CounterVec
	overrides   *prometheus.CounterVec
}

// NewPromSink registers the sink's metrics on the default Prometheus
// registerer. The HTTP exposition is started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error

	s.decisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcharge_decisions_total",
		Help: "Decisions emitted, by vehicle, action and degradation",
	}, []string{"vehicle_id", "action", "degraded"}))
	if err != nil {
		return nil, err
	}
	s.urgency, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartcharge_urgency",
		Help: "Hours needed over hours available per vehicle",
	}, []string{"vehicle_id"}))
	if err != nil {
		return nil, err
	}
	s.targetSoC, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartcharge_target_soc_percent",
		Help: "Target state of charge per vehicle",
	}, []string{"vehicle_id"}))
	if err != nil {
		return nil, err
	}
	s.priceNow, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smartcharge_price_now_sek",
		Help: "Spot price of the current hour in SEK per kWh",
	}))
	if err != nil {
		return nil, err
	}
	s.cycleTime, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartcharge_cycle_duration_seconds",
		Help:    "Duration of one full decision cycle",
		Buckets: prometheus.DefBuckets,
	}))
	if err != nil {
		return nil, err
	}
	s.cycles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcharge_cycles_total",
		Help: "Decision cycles executed, by degradation",
	}, []string{"degraded"}))
	if err != nil {
		return nil, err
	}
	s.forecastErr, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartcharge_forecast_abs_error_sek",
		Help: "Absolute forecast error of the latest confirmed hour, by horizon",
	}, []string{"horizon_hours"}))
	if err != nil {
		return nil, err
	}
	s.energy, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartcharge_session_energy_kwh_total",
		Help: "Energy delivered across finished charging sessions",
	}))
	if err != nil {
		return nil, err
	}
	s.cost, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcharge_session_cost_sek_total",
		Help: "Charging cost across finished sessions, split by component",
	}, []string{"component"}))
	if err != nil {
		return nil, err
	}
	s.overrides, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcharge_overrides_total",
		Help: "Manual overrides accepted, by action",
	}, []string{"action"}))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// register adds the collector to the registry, reusing the existing one when
// the sink is constructed more than once.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(C), nil
		}
		return c, err
	}
	return c, nil
}

// RecordDecision implements coremetrics.MetricsSink.
func (s *PromSink) RecordDecision(events []coremetrics.DecisionEvent) error {
	for _, ev := range events {
		d := ev.Decision
		s.decisions.WithLabelValues(d.VehicleID, string(d.Action), strconv.FormatBool(d.Degraded)).Inc()
		s.urgency.WithLabelValues(d.VehicleID).Set(d.Urgency)
		s.targetSoC.WithLabelValues(d.VehicleID).Set(float64(d.TargetSoC))
		s.priceNow.Set(ev.PriceNow)
	}
	return nil
}

// RecordCycle implements coremetrics.CycleRecorder.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycleTime.Observe(ev.Duration.Seconds())
	s.cycles.WithLabelValues(strconv.FormatBool(ev.Degraded)).Inc()
	return nil
}

// RecordForecastAccuracy implements coremetrics.ForecastAccuracyRecorder.
func (s *PromSink) RecordForecastAccuracy(events []coremetrics.ForecastAccuracyEvent) error {
	for _, ev := range events {
		s.forecastErr.WithLabelValues(strconv.Itoa(ev.HorizonHours)).Set(ev.AbsErrorSEK)
	}
	return nil
}

// RecordSession implements coremetrics.SessionRecorder.
func (s *PromSink) RecordSession(ev coremetrics.SessionEvent) error {
	s.energy.Add(ev.EnergyKWh)
	s.cost.WithLabelValues("spot").Add(ev.SpotCostSEK)
	s.cost.WithLabelValues("grid").Add(ev.GridCostSEK)
	return nil
}

// RecordOverride implements coremetrics.OverrideRecorder.
func (s *PromSink) RecordOverride(ev coremetrics.OverrideEvent) error {
	s.overrides.WithLabelValues(string(ev.Action)).Inc()
	return nil
}
