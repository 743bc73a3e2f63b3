package agent

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/evagent/core/model"
	"github.com/kilianp07/evagent/core/monitoring"
)

var (
	// ErrDeactivated is returned when starting an agent that was stopped.
	ErrDeactivated = errors.New("agent deactivated")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("agent already started")
)

// State is the lifecycle state of an agent.
type State int32

const (
	StateInactive State = iota
	StateActive
	StateBuildingBid
	StateIdle
	StateDeactivated
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateBuildingBid:
		return "building_bid"
	case StateIdle:
		return "idle"
	case StateDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// Outcome tells what HandlePriceUpdate did with an update.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNoBid
	OutcomeStale
	OutcomeDuplicate
	OutcomeUnplugged
	OutcomeDeactivated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoBid:
		return "no_bid"
	case OutcomeStale:
		return "stale"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeUnplugged:
		return "unplugged"
	case OutcomeDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// State returns the current lifecycle state.
func (a *Agent) State() State { return State(a.state.Load()) }

// Start registers the price handler and begins the bid cycle: one tick
// right away, then one every BidUpdateRate until Stop or ctx is done.
func (a *Agent) Start(ctx context.Context) error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	switch a.State() {
	case StateInactive:
	case StateDeactivated:
		return ErrDeactivated
	default:
		return ErrAlreadyStarted
	}
	a.coord.OnPriceUpdate(func(pu model.PriceUpdate) { a.HandlePriceUpdate(pu) })
	cctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.state.Store(int32(StateActive))
	a.log.Infof("Agent [%s], activated (parent %s, bid every %s)", a.cfg.AgentID, a.cfg.ParentID, a.cfg.BidUpdateRate)
	go a.run(cctx)
	return nil
}

// Stop cancels the bid cycle. It does not wait for a bid build or price
// response that is already running; those finish under the guard.
func (a *Agent) Stop() {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.State() == StateDeactivated {
		return
	}
	a.state.Store(int32(StateDeactivated))
	if a.cancel != nil {
		a.cancel()
	}
	a.log.Infof("Agent [%s], deactivated", a.cfg.AgentID)
}

func (a *Agent) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.CapturePanic(r)
			panic(r)
		}
	}()
	ticker := time.NewTicker(a.cfg.BidUpdateRate)
	defer ticker.Stop()
	a.tick(ctx)
	for {
		select {
		case <-ticker.C:
			a.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !a.state.CompareAndSwap(int32(StateActive), int32(StateBuildingBid)) &&
		!a.state.CompareAndSwap(int32(StateIdle), int32(StateBuildingBid)) {
		return
	}
	defer a.state.CompareAndSwap(int32(StateBuildingBid), int32(StateIdle))

	if adv, ok := a.dev.(Advancer); ok {
		a.mu.Lock()
		adv.Advance(a.now())
		a.mu.Unlock()
	}
	if _, err := a.BuildAndPublishBid(ctx); err != nil {
		a.log.Errorf("bid cycle: %v", err)
	}
}
