package metrics

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordBid forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordBid(ev BidEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordBid(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPriceUpdate forwards price outcomes to sinks that support them.
func (m *MultiSink) RecordPriceUpdate(ev PriceEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PriceRecorder); ok {
			if err := rec.RecordPriceUpdate(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDeviceState forwards charger snapshots.
func (m *MultiSink) RecordDeviceState(ev DeviceStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DeviceStateRecorder); ok {
			if err := rec.RecordDeviceState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPublishFailure forwards publish failures.
func (m *MultiSink) RecordPublishFailure(agentID string) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PublishFailureRecorder); ok {
			if err := rec.RecordPublishFailure(agentID); err != nil {
				return err
			}
		}
	}
	return nil
}
