package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDecision forwards decision events to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordDecision(events []DecisionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordDecision(events); err != nil {
			return err
		}
	}
	return nil
}

// RecordCycle forwards cycle events to sinks that support them.
func (m *MultiSink) RecordCycle(ev CycleEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CycleRecorder); ok {
			if err := rec.RecordCycle(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPrices forwards price snapshots to sinks that support them.
func (m *MultiSink) RecordPrices(ev PriceEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PriceRecorder); ok {
			if err := rec.RecordPrices(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordForecastAccuracy forwards forecast error events to sinks that
// support them.
func (m *MultiSink) RecordForecastAccuracy(events []ForecastAccuracyEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ForecastAccuracyRecorder); ok {
			if err := rec.RecordForecastAccuracy(events); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSession forwards session summaries to sinks that support them.
func (m *MultiSink) RecordSession(ev SessionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SessionRecorder); ok {
			if err := rec.RecordSession(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOverride forwards override events to sinks that support them.
func (m *MultiSink) RecordOverride(ev OverrideEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(OverrideRecorder); ok {
			if err := rec.RecordOverride(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
