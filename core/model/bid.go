package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotMonotonic is returned when a bid's demand increases with price.
var ErrNotMonotonic = errors.New("bid demand must be non-increasing in price")

// Step is one segment of a bid curve. It covers every price up to and
// including Price. The last step of a bid also covers all higher prices.
type Step struct {
	Price  float64 `json:"price"`
	Demand float64 `json:"demand"`
}

// Bid is a non-increasing step function from price to demand in kW.
type Bid struct {
	Basis MarketBasis `json:"market_basis"`
	Steps []Step      `json:"steps"`
}

// NewBid validates the steps and returns an immutable bid.
func NewBid(basis MarketBasis, steps ...Step) (Bid, error) {
	if len(steps) == 0 {
		return Bid{}, fmt.Errorf("bid requires at least one step")
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].Price < steps[i-1].Price {
			return Bid{}, fmt.Errorf("step %d: price %.3f below previous %.3f", i, steps[i].Price, steps[i-1].Price)
		}
		if steps[i].Demand > steps[i-1].Demand {
			return Bid{}, fmt.Errorf("step %d: %w", i, ErrNotMonotonic)
		}
	}
	cp := make([]Step, len(steps))
	copy(cp, steps)
	return Bid{Basis: basis, Steps: cp}, nil
}

// FlatBid demands the same power at every price.
func FlatBid(basis MarketBasis, demand float64) Bid {
	return Bid{Basis: basis, Steps: []Step{{Price: basis.MaximumPrice, Demand: demand}}}
}

// StepBid demands power up to and including threshold and nothing above it.
func StepBid(basis MarketBasis, threshold, demand float64) Bid {
	return Bid{Basis: basis, Steps: []Step{
		{Price: threshold, Demand: demand},
		{Price: threshold, Demand: 0},
	}}
}

// DemandAt returns the demand of the first step whose bound is at or above
// price. Prices above every bound get the last step's demand.
func (b Bid) DemandAt(price float64) float64 {
	if len(b.Steps) == 0 {
		return 0
	}
	for _, s := range b.Steps {
		if price <= s.Price {
			return s.Demand
		}
	}
	return b.Steps[len(b.Steps)-1].Demand
}

// IsFlat reports whether the bid has the same demand at every price.
func (b Bid) IsFlat() bool {
	for i := 1; i < len(b.Steps); i++ {
		if b.Steps[i].Demand != b.Steps[0].Demand {
			return false
		}
	}
	return true
}

// Threshold returns the highest price at which the full demand still
// applies, or the basis maximum for flat bids.
func (b Bid) Threshold() float64 {
	if len(b.Steps) == 0 || b.IsFlat() {
		return b.Basis.MaximumPrice
	}
	top := b.Steps[0].Demand
	th := b.Steps[0].Price
	for _, s := range b.Steps {
		if s.Demand != top {
			break
		}
		th = s.Price
	}
	return th
}

// Kind labels the bid shape for metrics and logs.
func (b Bid) Kind() string {
	if b.IsFlat() {
		return "flat"
	}
	return "step"
}

// BidUpdate is a bid as published to the coordinator.
type BidUpdate struct {
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id"`
	BidNumber int64     `json:"bid_number"`
	Bid       Bid       `json:"bid"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceUpdate is the coordinator's cleared price for one published bid.
type PriceUpdate struct {
	SessionID string    `json:"session_id"`
	BidNumber int64     `json:"bid_number"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
