package metrics

import (
	"time"

	"github.com/kilianp07/evagent/core/model"
)

// BidEvent describes a bid accepted by the coordinator.
type BidEvent struct {
	AgentID   string
	SessionID string
	BidNumber int64
	Kind      string // "flat" or "step"
	DemandKW  float64
	Threshold float64
	Time      time.Time
}

// MetricsSink records published bids. It is the one recorder every sink
// must implement.
type MetricsSink interface {
	RecordBid(ev BidEvent) error
}

// PriceEvent describes the handling of one price update.
type PriceEvent struct {
	AgentID   string
	BidNumber int64
	Price     float64
	DemandKW  float64
	Outcome   string
	Time      time.Time
}

// PriceRecorder records price update outcomes.
type PriceRecorder interface {
	RecordPriceUpdate(ev PriceEvent) error
}

// DeviceStateEvent is a snapshot of the charger.
type DeviceStateEvent struct {
	AgentID string
	State   model.DeviceState
	Time    time.Time
}

// DeviceStateRecorder records charger snapshots.
type DeviceStateRecorder interface {
	RecordDeviceState(ev DeviceStateEvent) error
}

// PublishFailureRecorder counts bids the coordinator did not accept.
type PublishFailureRecorder interface {
	RecordPublishFailure(agentID string) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordBid(BidEvent) error                 { return nil }
func (NopSink) RecordPriceUpdate(PriceEvent) error       { return nil }
func (NopSink) RecordDeviceState(DeviceStateEvent) error { return nil }
func (NopSink) RecordPublishFailure(string) error        { return nil }
