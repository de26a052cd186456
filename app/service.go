// Package app wires the decision engine, connectors, stores and the
// dashboard into the hourly decision service.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/api/dashboard"
	"github.com/kilianp07/smartcharge/api/ws"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/connectors"
	"github.com/kilianp07/smartcharge/connectors/clients/elpris"
	"github.com/kilianp07/smartcharge/connectors/factory"
	"github.com/kilianp07/smartcharge/core/charger"
	"github.com/kilianp07/smartcharge/core/engine"
	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/forecast"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/session"
	"github.com/kilianp07/smartcharge/core/target"
	"github.com/kilianp07/smartcharge/infra/homeassistant"
	"github.com/kilianp07/smartcharge/infra/logger"
	inframetrics "github.com/kilianp07/smartcharge/infra/metrics"
	"github.com/kilianp07/smartcharge/infra/mqtt"
	"github.com/kilianp07/smartcharge/infra/store"
	"github.com/kilianp07/smartcharge/infra/vehicles"
	"github.com/kilianp07/smartcharge/infra/weather"
)

// tomorrowPublishHour is the local hour after which the provider has the
// next day's prices.
const tomorrowPublishHour = 13

// WeatherSource is the part of the weather client the cycle consumes.
type WeatherSource interface {
	Forecast(ctx context.Context) (model.WeatherSeries, error)
}

// Service runs the decision cycle: fetch prices and weather, snapshot the
// vehicles, decide per vehicle, command the charger and record everything.
type Service struct {
	cfg        *config.Config
	log        logger.Logger
	engine     *engine.Engine
	prices     connectors.SpotPriceClient
	priceOpts  []connectors.Option
	weather    WeatherSource
	sources    []vehicles.Source
	detector   *vehicles.Detector
	commander  charger.Commander
	disconnect func()
	stores     *store.Stores
	sink       coremetrics.MetricsSink
	tracker    *session.Tracker
	feed       *events.Feed
	dash       *dashboard.Server
	bridge     *ws.Bridge
	now        func() time.Time
	ackTimeout time.Duration
	kick       chan struct{}

	mu           sync.RWMutex
	snap         dashboard.CycleSnapshot
	confirmed    model.PriceSeries
	lastForecast forecastMemo
	weatherCache model.WeatherSeries
}

// forecastMemo remembers one cycle's forecast so the next confirmed prices
// can be scored against it.
type forecastMemo struct {
	series model.PriceSeries
	madeAt time.Time
}

// Option replaces one of the service's collaborators before the remaining
// ones are built from the configuration. Used by tests and the simulator.
type Option func(*Service)

// WithPriceClient replaces the spot price client.
func WithPriceClient(c connectors.SpotPriceClient) Option {
	return func(s *Service) { s.prices = c }
}

// WithCommander replaces the charger commander.
func WithCommander(c charger.Commander) Option {
	return func(s *Service) { s.commander = c }
}

// WithSources replaces the vehicle telemetry sources.
func WithSources(srcs ...vehicles.Source) Option {
	return func(s *Service) { s.sources = srcs }
}

// WithWeatherSource replaces the weather client.
func WithWeatherSource(w WeatherSource) Option {
	return func(s *Service) { s.weather = w }
}

// WithSink replaces the metrics sink.
func WithSink(sink coremetrics.MetricsSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service from the configuration. Options win over the
// configuration for the collaborator they name.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:      cfg,
		log:      logger.New("service"),
		detector: vehicles.NewDetector(),
		tracker:  session.NewTracker(cfg.Prices.Tariff()),
		feed:     events.NewFeed(),
		now:      time.Now,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(svc)
	}

	eng, err := engine.New(cfg.Planner, forecast.New(cfg.Forecast), target.New(cfg.Target))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	svc.engine = eng

	if svc.sink == nil {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		svc.sink = sink
	}

	if svc.prices == nil {
		client, err := factory.NewSpotPriceClient(cfg.Prices.Provider)
		if err != nil {
			return nil, fmt.Errorf("price client: %w", err)
		}
		svc.prices = client
		if cfg.Prices.Provider == factory.IDElpris {
			svc.priceOpts = append(svc.priceOpts, elpris.WithArea(cfg.Prices.Area))
			if cfg.Prices.BaseURL != "" {
				svc.priceOpts = append(svc.priceOpts, elpris.WithBaseURL(cfg.Prices.BaseURL))
			}
		}
	}

	if svc.weather == nil {
		if cfg.Weather.Latitude == 0 && cfg.Weather.Longitude == 0 {
			svc.log.Infof("weather disabled, no coordinates configured")
		} else {
			w, err := weather.New(cfg.Weather)
			if err != nil {
				return nil, fmt.Errorf("weather client: %w", err)
			}
			svc.weather = w
		}
	}

	if svc.sources == nil {
		srcs, err := buildSources(cfg)
		if err != nil {
			return nil, err
		}
		svc.sources = srcs
	}

	if svc.commander == nil && cfg.ChargerEnabled() {
		cc, err := mqtt.NewChargerClient(cfg.Charger)
		if err != nil {
			return nil, fmt.Errorf("charger client: %w", err)
		}
		svc.commander = cc
		svc.disconnect = cc.Disconnect
	}
	svc.ackTimeout = time.Duration(cfg.Charger.AckTimeoutMS) * time.Millisecond

	svc.stores = store.New(ctx, cfg.Store, cfg.History, svc.log)

	wsHub := ws.NewHub()
	wsHandler := ws.NewHandler(wsHub, cfg.Dashboard.AllowedOrigins)
	wsHandler.Hello = func() ([]byte, error) {
		snap, err := svc.Snapshot(context.Background())
		if err != nil {
			return nil, err
		}
		return ws.NewEnvelope(ws.TypeSnapshot, snap)
	}
	svc.bridge = ws.NewBridge(wsHub, svc.feed)

	dash, err := dashboard.NewServer(cfg.Dashboard, dashboard.Deps{
		Snapshots:   svc,
		Overrides:   svc.stores.Overrides,
		Settings:    svc.stores.Settings,
		History:     svc.stores.History,
		Feed:        svc.feed,
		WS:          wsHandler,
		OverrideTTL: cfg.Store.OverrideTTL(),
	})
	if err != nil {
		return nil, err
	}
	svc.dash = dash
	return svc, nil
}

func buildSources(cfg *config.Config) ([]vehicles.Source, error) {
	var hub *homeassistant.Client
	srcs := make([]vehicles.Source, 0, len(cfg.Vehicles))
	for _, vc := range cfg.Vehicles {
		switch {
		case vc.Entities.SoC != "":
			if hub == nil {
				c, err := homeassistant.New(cfg.Hub)
				if err != nil {
					return nil, fmt.Errorf("hub client: %w", err)
				}
				hub = c
			}
			src, err := vehicles.NewHubSource(vc, hub)
			if err != nil {
				return nil, fmt.Errorf("vehicle %s: %w", vc.ID, err)
			}
			srcs = append(srcs, src)
		case vc.Cloud != nil:
			src, err := vehicles.NewCloudSource(vc)
			if err != nil {
				return nil, fmt.Errorf("vehicle %s: %w", vc.ID, err)
			}
			srcs = append(srcs, src)
		}
	}
	return srcs, nil
}

// Run starts the dashboard, the override watcher and the cycle loop, and
// blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go func() {
		if err := s.dash.Run(ctx); err != nil {
			s.log.Errorf("dashboard: %v", err)
		}
	}()
	if s.cfg.Metrics.PromListen != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, s.cfg.Metrics.PromListen); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go s.watchOverrides(s.feed.Overrides.Subscribe())

	if err := s.cycle(ctx); err != nil {
		s.log.Errorf("cycle: %v", err)
	}
	ticker := time.NewTicker(s.cfg.Cycle.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.kick:
		}
		if err := s.cycle(ctx); err != nil {
			s.log.Errorf("cycle: %v", err)
		}
	}
}

// RunOnce executes a single decision cycle, used by the one-shot CLI.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.cycle(ctx)
}

// Close releases every connection the service holds.
func (s *Service) Close() error {
	s.feed.Close()
	s.bridge.Wait()
	if s.disconnect != nil {
		s.disconnect()
	}
	s.stores.Close()
	return nil
}

// Snapshot implements dashboard.SnapshotProvider with the outcome of the
// most recent cycle.
func (s *Service) Snapshot(_ context.Context) (dashboard.CycleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, nil
}

// outcome pairs one vehicle's snapshot with its decision for the cycle.
type outcome struct {
	state   model.VehicleState
	eval    engine.Evaluation
	hasEval bool
	dec     model.Decision
	ovr     *model.ManualOverride
}

// cycle runs one full decision pass. Degraded inputs never abort it; only a
// cycle that produced no decision at all reports an error.
func (s *Service) cycle(ctx context.Context) error {
	started := s.now()
	now := started

	prices, fresh := s.refreshPrices(ctx, now)
	s.ingestFresh(ctx, now, prices, fresh)
	weatherSeries := s.refreshWeather(ctx)

	states := s.collectStates(ctx)
	var chState charger.State
	if s.commander != nil {
		if st, ok := s.commander.State(); ok {
			chState = st
		}
	}
	det := s.detector.Detect(chState, states)
	activeID := ""
	switch det.Kind {
	case vehicles.KindVehicle:
		activeID = det.VehicleID
	case vehicles.KindGuest:
		activeID = vehicles.GuestID
	}

	degraded := false
	outcomes := make([]outcome, 0, len(states)+1)
	for _, st := range states {
		ovr := s.loadOverride(ctx, now, st.ID)
		ev, err := s.engine.Decide(now, engine.Input{
			Vehicle:  st,
			Prices:   prices,
			Weather:  weatherSeries,
			Override: ovr,
		})
		if err != nil {
			s.log.Errorf("vehicle %s: decide: %v", st.ID, err)
			continue
		}
		dec := ev.Decision
		if activeID != "" && st.ID != activeID && dec.Action.Charging() {
			dec.Action = model.ActionIdle
			dec.Reasoning = fmt.Sprintf("charger occupied by %s; %s", activeID, dec.Reasoning)
		}
		degraded = degraded || dec.Degraded
		outcomes = append(outcomes, outcome{state: st, eval: ev, hasEval: true, dec: dec, ovr: ovr})
	}
	if det.Kind == vehicles.KindGuest {
		g := vehicles.GuestState(now)
		outcomes = append(outcomes, outcome{state: g, dec: guestDecision(now)})
	}

	s.recordDecisions(ctx, now, prices, outcomes)
	s.command(ctx, outcomes, activeID, chState)
	s.trackSessions(ctx, now, outcomes, activeID, chState, prices)
	s.publishSnapshot(now, outcomes, activeID, prices, degraded)

	if err := s.stores.History.Prune(ctx, now.AddDate(0, 0, -s.cfg.History.RetentionDays)); err != nil {
		s.log.Errorf("history prune: %v", err)
	}
	if rec, ok := s.sink.(coremetrics.CycleRecorder); ok {
		_ = rec.RecordCycle(coremetrics.CycleEvent{
			Duration: s.now().Sub(started),
			Vehicles: len(states),
			Degraded: degraded,
			Time:     now,
		})
	}

	if len(outcomes) == 0 {
		return fmt.Errorf("cycle produced no decision")
	}
	return nil
}

// refreshPrices fetches today's prices, and tomorrow's once published,
// merges them into the retained series and returns it together with the
// points confirmed for the first time.
func (s *Service) refreshPrices(ctx context.Context, now time.Time) (confirmed, fresh model.PriceSeries) {
	var fetched model.PriceSeries
	today, err := s.prices.Prices(ctx, now, s.priceOpts...)
	if err != nil {
		s.log.Errorf("price fetch: %v", err)
	} else {
		fetched = fetched.Merge(today)
	}
	if now.Hour() >= tomorrowPublishHour {
		tomorrow, err := s.prices.Prices(ctx, now.AddDate(0, 0, 1), s.priceOpts...)
		if err != nil {
			s.log.Errorf("price fetch for tomorrow: %v", err)
		} else {
			fetched = fetched.Merge(tomorrow)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[time.Time]bool, len(s.confirmed))
	for _, p := range s.confirmed {
		known[p.Timestamp.Truncate(time.Hour)] = true
	}
	for _, p := range fetched {
		if !p.IsForecasted && !known[p.Timestamp.Truncate(time.Hour)] {
			fresh = append(fresh, p)
		}
	}
	// Keep only what the forecaster's trailing baseline still reads.
	cutoff := now.Add(-time.Duration(s.cfg.Forecast.TrailingHours) * time.Hour)
	s.confirmed = s.confirmed.Merge(fetched).Window(cutoff, now.AddDate(0, 1, 0))
	return s.confirmed, fresh
}

// ingestFresh persists, publishes and scores the newly confirmed points.
func (s *Service) ingestFresh(ctx context.Context, now time.Time, prices, fresh model.PriceSeries) {
	if len(fresh) == 0 {
		return
	}
	s.log.Infof("%d newly confirmed price hours", len(fresh))
	if err := s.stores.History.AppendPrices(ctx, fresh); err != nil {
		s.log.Errorf("price history: %v", err)
	}
	s.feed.Prices.Publish(events.PriceEvent{Points: prices})
	if rec, ok := s.sink.(coremetrics.PriceRecorder); ok {
		if err := rec.RecordPrices(coremetrics.PriceEvent{Area: s.cfg.Prices.Area, Points: fresh, Time: now}); err != nil {
			s.log.Errorf("price metrics: %v", err)
		}
	}
	s.recordAccuracy(now, fresh)
}

// recordAccuracy scores the previous cycle's forecast against the points the
// provider just confirmed.
func (s *Service) recordAccuracy(now time.Time, fresh model.PriceSeries) {
	s.mu.RLock()
	memo := s.lastForecast
	s.mu.RUnlock()
	if len(memo.series) == 0 {
		return
	}
	samples := forecast.Accuracy(memo.series, fresh, memo.madeAt)
	if len(samples) == 0 {
		return
	}
	s.log.Infof("forecast scored on %d confirmed hours, MAE %.3f SEK/kWh", len(samples), forecast.MAE(samples))
	rec, ok := s.sink.(coremetrics.ForecastAccuracyRecorder)
	if !ok {
		return
	}
	evs := make([]coremetrics.ForecastAccuracyEvent, len(samples))
	for i, sm := range samples {
		evs[i] = coremetrics.ForecastAccuracyEvent{
			Hour:         sm.Hour,
			HorizonHours: sm.HorizonHours,
			AbsErrorSEK:  sm.AbsError(),
			Time:         now,
		}
	}
	if err := rec.RecordForecastAccuracy(evs); err != nil {
		s.log.Errorf("forecast accuracy metrics: %v", err)
	}
}

// refreshWeather fetches the forecast, falling back to the previous one when
// the provider is unreachable.
func (s *Service) refreshWeather(ctx context.Context) model.WeatherSeries {
	if s.weather == nil {
		return nil
	}
	series, err := s.weather.Forecast(ctx)
	if err != nil {
		s.log.Warnf("weather fetch failed, keeping previous forecast: %v", err)
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.weatherCache
	}
	s.mu.Lock()
	s.weatherCache = series
	s.mu.Unlock()
	return series
}

// collectStates snapshots every configured vehicle and overlays the
// dashboard-made settings.
func (s *Service) collectStates(ctx context.Context) []model.VehicleState {
	states := make([]model.VehicleState, 0, len(s.sources))
	for _, src := range s.sources {
		st, err := src.Snapshot(ctx)
		if err != nil {
			s.log.Errorf("vehicle %s: snapshot: %v", src.VehicleID(), err)
			continue
		}
		if set, ok, err := s.stores.Settings.Get(ctx, st.ID); err == nil && ok {
			st = set.Apply(st)
		}
		states = append(states, st)
	}
	return states
}

// loadOverride returns the active override for the vehicle. Lapsed overrides
// are cleared on the way.
func (s *Service) loadOverride(ctx context.Context, now time.Time, vehicleID string) *model.ManualOverride {
	o, ok, err := s.stores.Overrides.Get(ctx, vehicleID)
	if err != nil {
		s.log.Errorf("vehicle %s: override read: %v", vehicleID, err)
		return nil
	}
	if !ok {
		return nil
	}
	if !o.ActiveAt(now) {
		s.log.Infof("vehicle %s: %s override expired", vehicleID, o.Action)
		if err := s.stores.Overrides.Clear(ctx, vehicleID); err != nil {
			s.log.Errorf("vehicle %s: override clear: %v", vehicleID, err)
		}
		return nil
	}
	return &o
}

// guestDecision is the synthesized verdict for an unidentified vehicle:
// charge immediately, no schedule.
func guestDecision(now time.Time) model.Decision {
	return model.Decision{
		ID:         engine.DecisionID(vehicles.GuestID, now),
		VehicleID:  vehicles.GuestID,
		Action:     model.ActionCharge,
		TargetSoC:  100,
		Reasoning:  "unidentified vehicle on the charger, charging immediately",
		ComputedAt: now,
		Urgency:    1,
	}
}

// recordDecisions persists, publishes and measures the cycle's decisions.
func (s *Service) recordDecisions(ctx context.Context, now time.Time, prices model.PriceSeries, outcomes []outcome) {
	if len(outcomes) == 0 {
		return
	}
	evs := make([]coremetrics.DecisionEvent, 0, len(outcomes))
	for _, oc := range outcomes {
		if err := s.stores.Decisions.Put(ctx, oc.dec); err != nil {
			s.log.Errorf("vehicle %s: decision store: %v", oc.dec.VehicleID, err)
		}
		if err := s.stores.History.AppendDecision(ctx, oc.dec); err != nil {
			s.log.Errorf("vehicle %s: decision history: %v", oc.dec.VehicleID, err)
		}
		s.feed.Decisions.Publish(events.DecisionEvent{Decision: oc.dec})
		s.log.Infof("vehicle %s: %s (%s)", oc.dec.VehicleID, oc.dec.Action, oc.dec.Reasoning)

		me := coremetrics.DecisionEvent{Decision: oc.dec, Time: now}
		if oc.hasEval {
			me.EnergyNeededKWh = oc.eval.Plan.EnergyNeededKWh
			me.HoursNeeded = oc.eval.Plan.HoursNeeded
			me.HoursAvailable = oc.eval.Plan.HoursAvailable
			me.PriceNow, me.PriceForecasted = oc.eval.PriceNow()
		} else if p, ok := prices.At(now); ok {
			me.PriceNow, me.PriceForecasted = p.Price, p.IsForecasted
		}
		evs = append(evs, me)
	}
	if err := s.sink.RecordDecision(evs); err != nil {
		s.log.Errorf("decision metrics: %v", err)
	}
}

// command reconciles the charger with the active vehicle's decision.
func (s *Service) command(ctx context.Context, outcomes []outcome, activeID string, chState charger.State) {
	if s.commander == nil || activeID == "" {
		return
	}
	var want, found bool
	for _, oc := range outcomes {
		if oc.dec.VehicleID == activeID {
			want = oc.dec.Action.Charging()
			found = true
			break
		}
	}
	if !found {
		return
	}
	switch {
	case want && !chState.Charging:
		id, err := s.commander.Start(ctx, s.cfg.Charger.MaxCurrentA)
		if errors.Is(err, charger.ErrUnplugged) {
			s.log.Infof("start refused, charger reports unplugged")
			return
		}
		if err != nil {
			s.log.Errorf("charger start: %v", err)
			return
		}
		if err := s.commander.WaitForAck(id, s.ackTimeout); err != nil {
			s.log.Errorf("charger start ack: %v", err)
			return
		}
		s.log.Infof("charger started for %s", activeID)
	case !want && chState.Charging:
		id, err := s.commander.Stop(ctx)
		if err != nil {
			s.log.Errorf("charger stop: %v", err)
			return
		}
		if err := s.commander.WaitForAck(id, s.ackTimeout); err != nil {
			s.log.Errorf("charger stop ack: %v", err)
			return
		}
		s.log.Infof("charger stopped for %s", activeID)
	}
}

// trackSessions folds the cycle into session state. Only the vehicle on the
// home charger accrues energy; every other vehicle's observation closes a
// session it may have left open.
func (s *Service) trackSessions(ctx context.Context, now time.Time, outcomes []outcome, activeID string, chState charger.State, prices model.PriceSeries) {
	spot := 0.0
	if p, ok := prices.At(now); ok {
		spot = p.Price
	}
	chargerOn := chState.Charging || chState.PowerKW > 0.1
	for _, oc := range outcomes {
		charging := chargerOn && oc.state.ID == activeID
		power := 0.0
		if charging {
			power = chState.PowerKW
			if power <= 0 {
				// charger confirms charging before the meter registers
				power = oc.state.MaxChargeKW
			}
		}
		s.handleSessionEvent(ctx, s.tracker.Observe(now, oc.state, charging, power, spot))
	}
	if activeID != vehicles.GuestID {
		if _, open := s.tracker.Active(vehicles.GuestID); open {
			s.handleSessionEvent(ctx, s.tracker.Observe(now, vehicles.GuestState(now), false, 0, spot))
		}
	}
}

func (s *Service) handleSessionEvent(ctx context.Context, evt session.Event) {
	switch evt.Kind {
	case session.EventStarted:
		s.log.Infof("session %s started for %s at %d%%", evt.Session.ID, evt.Session.VehicleID, evt.Session.StartSoC)
		s.feed.Sessions.Publish(events.SessionEvent{Session: evt.Session})
	case session.EventEnded:
		s.log.Infof("session %s ended for %s: %.1f kWh, %.2f SEK",
			evt.Session.ID, evt.Session.VehicleID, evt.Session.EnergyKWh, evt.Session.TotalCostSEK())
		s.feed.Sessions.Publish(events.SessionEvent{Session: evt.Session})
		if err := s.stores.History.AppendSession(ctx, evt.Session); err != nil {
			s.log.Errorf("session history: %v", err)
		}
		if rec, ok := s.sink.(coremetrics.SessionRecorder); ok {
			_ = rec.RecordSession(coremetrics.SessionEvent{
				SessionID:   evt.Session.ID,
				VehicleID:   evt.Session.VehicleID,
				EnergyKWh:   evt.Session.EnergyKWh,
				SpotCostSEK: evt.Session.SpotCostSEK,
				GridCostSEK: evt.Session.GridCostSEK,
				StartSoC:    evt.Session.StartSoC,
				EndSoC:      evt.Session.EndSoC,
				Started:     evt.Session.StartedAt,
				Ended:       evt.Session.EndedAt,
			})
		}
	}
}

// publishSnapshot replaces the dashboard snapshot and the forecast memo.
func (s *Service) publishSnapshot(now time.Time, outcomes []outcome, activeID string, prices model.PriceSeries, degraded bool) {
	rows := make([]dashboard.VehicleStatus, 0, len(outcomes))
	forecastSeries := prices
	for _, oc := range outcomes {
		row := dashboard.VehicleStatus{
			VehicleID: oc.state.ID,
			Name:      oc.state.Name,
			SoC:       oc.state.SoC,
			PluggedIn: oc.state.PluggedIn,
			Charging:  oc.state.Charging,
			Active:    oc.state.ID == activeID,
			RangeKm:   oc.state.RangeKm,
			Stale:     oc.state.Stale,
			Decision:  oc.dec,
			Override:  oc.ovr,
		}
		if oc.hasEval {
			row.Plan = dashboard.PlanViewFrom(oc.eval)
			forecastSeries = oc.eval.Forecast.Series
		}
		if sess, ok := s.tracker.Active(oc.state.ID); ok {
			row.Session = &sess
		}
		rows = append(rows, row)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = dashboard.CycleSnapshot{
		Vehicles:  rows,
		Prices:    forecastSeries,
		UpdatedAt: now,
		Degraded:  degraded,
	}
	if len(outcomes) > 0 {
		s.lastForecast = forecastMemo{series: forecastSeries, madeAt: now}
	}
}

// watchOverrides measures dashboard overrides and kicks an immediate
// re-decision so the operator sees the effect without waiting for the tick.
func (s *Service) watchOverrides(ch <-chan events.OverrideEvent) {
	for ev := range ch {
		if rec, ok := s.sink.(coremetrics.OverrideRecorder); ok {
			_ = rec.RecordOverride(coremetrics.OverrideEvent{
				VehicleID: ev.Override.VehicleID,
				Action:    ev.Override.Action,
				Time:      s.now(),
			})
		}
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}
