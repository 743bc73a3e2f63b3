package events

import (
	"time"

	"github.com/kilianp07/evagent/core/model"
)

// EVUpdate is published on every bid cycle while the agent is connected,
// whether or not a bid follows.
type EVUpdate struct {
	AgentID   string
	ClusterID string
	SessionID string
	State     model.DeviceState
	Time      time.Time
}

// BidPublished is emitted once the coordinator accepted a bid.
type BidPublished struct {
	Update model.BidUpdate
}

// PriceHandled is emitted for every inbound price update.
// Outcome is one of "applied", "no_bid", "stale", "duplicate", "unplugged"
// or "deactivated". Demand is only meaningful for "applied".
type PriceHandled struct {
	AgentID string
	Update  model.PriceUpdate
	Outcome string
	Demand  float64
}
