package metrics

// Noop is a Metrics implementation that discards everything. Used when
// metrics are disabled in config.
type Noop struct{}

func (Noop) RecordObservation(producer, signalKey string) {}
func (Noop) RecordError(kind string)                      {}
func (Noop) RecordScore(signalKey string, score float64)  {}
func (Noop) RecordAnomaly(kind string)                    {}
func (Noop) RecordAlertTransition(state string)           {}
func (Noop) RecordQueueDepth(shard string, depth int)     {}
func (Noop) RecordLatency(op string, seconds float64)     {}
