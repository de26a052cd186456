package metrics

// Package metrics defines interfaces and implementations for collecting
// charging decision metrics. Sinks like PromSink and InfluxSink record
// events such as emitted decisions, price snapshots or finished sessions
// and can be combined with NewMultiSink. The factory helpers return a
// MultiSink automatically when multiple sinks are configured.
