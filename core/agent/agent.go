// Package agent implements the demand-response bidding agent for one
// charger. On every bid cycle it turns the charger's urgency into a bid for
// the parent coordinator; when a cleared price for the latest bid comes back
// it commands the matching charge power.
//
// Bid construction and price handling run on different goroutines (the
// cycle ticker and the coordinator callback). A single mutex spans the whole
// read-decide-write sequence of both, so their effect on the device is
// always that of some serial order.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/evagent/core/coordinator"
	"github.com/kilianp07/evagent/core/device"
	"github.com/kilianp07/evagent/core/events"
	"github.com/kilianp07/evagent/core/journal"
	"github.com/kilianp07/evagent/core/logger"
	"github.com/kilianp07/evagent/core/metrics"
	"github.com/kilianp07/evagent/core/model"
	"github.com/kilianp07/evagent/core/monitoring"
	"github.com/kilianp07/evagent/internal/eventbus"
)

// Config holds the typed agent settings.
type Config struct {
	AgentID       string
	ParentID      string
	BidUpdateRate time.Duration
}

// Advancer is implemented by simulated devices that evolve with time. The
// agent advances them at the start of every cycle.
type Advancer interface {
	Advance(now time.Time)
}

// Agent bids for one device towards one coordinator.
type Agent struct {
	cfg   Config
	dev   device.Device
	coord coordinator.Coordinator
	log   logger.Logger
	sink  metrics.MetricsSink
	store journal.Store
	now   func() time.Time

	stateBus *eventbus.TypedBus[events.EVUpdate]
	bidBus   *eventbus.TypedBus[events.BidPublished]
	priceBus *eventbus.TypedBus[events.PriceHandled]

	// mu guards every device access plus the fields below it.
	mu          sync.Mutex
	sessionID   string
	bidNumber   int64
	lastBid     *model.BidUpdate
	lastApplied *model.PriceUpdate

	state  atomic.Int32
	lifeMu sync.Mutex
	cancel context.CancelFunc
}

// New creates an inactive agent. sink and log may be nil.
func New(cfg Config, dev device.Device, coord coordinator.Coordinator, log logger.Logger, sink metrics.MetricsSink) (*Agent, error) {
	if dev == nil || coord == nil {
		return nil, fmt.Errorf("agent: nil device or coordinator")
	}
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("agent: empty agent id")
	}
	if cfg.BidUpdateRate <= 0 {
		cfg.BidUpdateRate = 5 * time.Second
	}
	if log == nil {
		log = nopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Agent{
		cfg:   cfg,
		dev:   dev,
		coord: coord,
		log:   log,
		sink:  sink,
		store: journal.NopStore{},
		now:   time.Now,
	}, nil
}

// SetJournal configures the store that records bids and price outcomes.
func (a *Agent) SetJournal(s journal.Store) {
	if s == nil {
		s = journal.NopStore{}
	}
	a.store = s
}

// SetStateBus configures the bus receiving an EVUpdate on each connected cycle.
func (a *Agent) SetStateBus(b *eventbus.TypedBus[events.EVUpdate]) { a.stateBus = b }

// SetBidBus configures the bus receiving published bids.
func (a *Agent) SetBidBus(b *eventbus.TypedBus[events.BidPublished]) { a.bidBus = b }

// SetPriceBus configures the bus receiving price outcomes.
func (a *Agent) SetPriceBus(b *eventbus.TypedBus[events.PriceHandled]) { a.priceBus = b }

// SetClock replaces the time source.
func (a *Agent) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.cfg.AgentID }

// LastBid returns a copy of the most recently published bid.
func (a *Agent) LastBid() (model.BidUpdate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastBid == nil {
		return model.BidUpdate{}, false
	}
	return *a.lastBid, true
}

// BuildAndPublishBid derives a bid from the device state and publishes it.
// It returns nil without error when the agent is disconnected, the device
// is unplugged or its urgency ratio is unusable.
func (a *Agent) BuildAndPublishBid(ctx context.Context) (*model.BidUpdate, error) {
	status := a.coord.Status()
	if !status.Connected {
		a.log.Debugf("not connected to %s, skipping bid", a.cfg.ParentID)
		return nil, nil
	}

	a.mu.Lock()
	snap := device.Snapshot(a.dev)
	now := a.now()
	if a.stateBus != nil {
		a.stateBus.Publish(events.EVUpdate{
			AgentID:   a.cfg.AgentID,
			ClusterID: status.ClusterID,
			SessionID: status.SessionID,
			State:     snap,
			Time:      now,
		})
	}
	if !snap.PluggedIn {
		a.mu.Unlock()
		a.log.Debugf("device unplugged, skipping bid")
		return nil, nil
	}
	bid, ok := BuildBid(status.Basis, snap.UrgencyRatio, snap.RequestedChargePower)
	if !ok {
		a.mu.Unlock()
		a.log.Warnf("unusable urgency ratio %v, skipping bid", snap.UrgencyRatio)
		return nil, nil
	}
	if status.SessionID != a.sessionID {
		a.sessionID = status.SessionID
		a.bidNumber = 0
		a.lastBid = nil
		a.lastApplied = nil
	}
	a.bidNumber++
	bu := model.BidUpdate{
		AgentID:   a.cfg.AgentID,
		SessionID: status.SessionID,
		BidNumber: a.bidNumber,
		Bid:       bid,
		Timestamp: now,
	}
	err := a.coord.PublishBid(ctx, bu)
	if err == nil {
		a.lastBid = &bu
	}
	a.mu.Unlock()

	if err != nil {
		if fr, ok := a.sink.(metrics.PublishFailureRecorder); ok {
			_ = fr.RecordPublishFailure(a.cfg.AgentID)
		}
		monitoring.CaptureAgentError(err, "agent", a.cfg.AgentID)
		return nil, fmt.Errorf("publish bid %d: %w", bu.BidNumber, err)
	}
	a.log.Debugw("bid published", map[string]any{
		"bid_number": bu.BidNumber,
		"kind":       bid.Kind(),
		"demand_kw":  snap.RequestedChargePower,
		"threshold":  bid.Threshold(),
		"urgency":    snap.UrgencyRatio,
	})
	a.recordBid(ctx, bu, snap.RequestedChargePower)
	return &bu, nil
}

func (a *Agent) recordBid(ctx context.Context, bu model.BidUpdate, demand float64) {
	if err := a.sink.RecordBid(metrics.BidEvent{
		AgentID:   bu.AgentID,
		SessionID: bu.SessionID,
		BidNumber: bu.BidNumber,
		Kind:      bu.Bid.Kind(),
		DemandKW:  demand,
		Threshold: bu.Bid.Threshold(),
		Time:      bu.Timestamp,
	}); err != nil {
		a.log.Errorf("bid metrics error: %v", err)
	}
	bid := bu.Bid
	if err := a.store.Append(ctx, journal.Record{
		Timestamp: bu.Timestamp,
		Kind:      journal.KindBid,
		AgentID:   bu.AgentID,
		SessionID: bu.SessionID,
		BidNumber: bu.BidNumber,
		Bid:       &bid,
	}); err != nil {
		a.log.Errorf("journal bid: %v", err)
	}
	if a.bidBus != nil {
		a.bidBus.Publish(events.BidPublished{Update: bu})
	}
}

// HandlePriceUpdate applies a cleared price to the device when it resolves
// the latest published bid. Every other case is skipped and reported
// through the returned Outcome.
func (a *Agent) HandlePriceUpdate(pu model.PriceUpdate) Outcome {
	if a.State() == StateDeactivated {
		a.recordPrice(pu, OutcomeDeactivated, 0)
		return OutcomeDeactivated
	}

	session := a.coord.Status().SessionID
	a.mu.Lock()
	outcome, demand := a.applyPrice(pu, session)
	var lastNumber int64
	if a.lastBid != nil {
		lastNumber = a.lastBid.BidNumber
	}
	a.mu.Unlock()

	switch outcome {
	case OutcomeNoBid:
		a.log.Infof("Ignoring price update while no bid has been sent")
	case OutcomeStale:
		a.log.Infof("Ignoring price update on old bid (lastBid=%d priceUpdate=%d)", lastNumber, pu.BidNumber)
	case OutcomeApplied:
		a.log.Debugf("price %.4f for bid %d, charging at %.2f kW", pu.Price, pu.BidNumber, demand)
	}
	a.recordPrice(pu, outcome, demand)
	return outcome
}

// applyPrice must be called with a.mu held. session is the coordinator's
// current session; a bid from an earlier session counts as no bid.
func (a *Agent) applyPrice(pu model.PriceUpdate, session string) (Outcome, float64) {
	if a.lastBid == nil || a.lastBid.SessionID != session {
		return OutcomeNoBid, 0
	}
	if pu.SessionID != a.lastBid.SessionID || pu.BidNumber != a.lastBid.BidNumber {
		return OutcomeStale, 0
	}
	if a.lastApplied != nil && a.lastApplied.BidNumber == pu.BidNumber && a.lastApplied.Price == pu.Price {
		return OutcomeDuplicate, 0
	}
	if !a.dev.PluggedIn() {
		return OutcomeUnplugged, 0
	}
	demand := a.lastBid.Bid.DemandAt(pu.Price)
	a.dev.SetCharging(demand)
	applied := pu
	a.lastApplied = &applied
	return OutcomeApplied, demand
}

func (a *Agent) recordPrice(pu model.PriceUpdate, o Outcome, demand float64) {
	now := a.now()
	if pr, ok := a.sink.(metrics.PriceRecorder); ok {
		if err := pr.RecordPriceUpdate(metrics.PriceEvent{
			AgentID:   a.cfg.AgentID,
			BidNumber: pu.BidNumber,
			Price:     pu.Price,
			DemandKW:  demand,
			Outcome:   o.String(),
			Time:      now,
		}); err != nil {
			a.log.Errorf("price metrics error: %v", err)
		}
	}
	p := pu
	if err := a.store.Append(context.Background(), journal.Record{
		Timestamp: now,
		Kind:      journal.KindPrice,
		AgentID:   a.cfg.AgentID,
		SessionID: pu.SessionID,
		BidNumber: pu.BidNumber,
		Price:     &p,
		Outcome:   o.String(),
		DemandKW:  demand,
	}); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Errorf("journal price: %v", err)
	}
	if a.priceBus != nil {
		a.priceBus.Publish(events.PriceHandled{AgentID: a.cfg.AgentID, Update: pu, Outcome: o.String(), Demand: demand})
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
