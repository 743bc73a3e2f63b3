package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBasis is returned when a market basis cannot describe a price domain.
var ErrInvalidBasis = errors.New("invalid market basis")

// MarketBasis describes the price domain of one market. It is supplied by the
// coordinator for each connection and never modified by the agent.
type MarketBasis struct {
	Commodity    string  `json:"commodity"`
	Currency     string  `json:"currency"`
	PriceSteps   int     `json:"price_steps"`
	MinimumPrice float64 `json:"minimum_price"`
	MaximumPrice float64 `json:"maximum_price"`
}

// Validate checks that the basis spans a non-empty price range.
func (b MarketBasis) Validate() error {
	if b.PriceSteps < 2 {
		return fmt.Errorf("%w: price_steps must be at least 2, got %d", ErrInvalidBasis, b.PriceSteps)
	}
	if math.IsNaN(b.MinimumPrice) || math.IsNaN(b.MaximumPrice) || b.MaximumPrice <= b.MinimumPrice {
		return fmt.Errorf("%w: maximum_price %.3f must exceed minimum_price %.3f", ErrInvalidBasis, b.MaximumPrice, b.MinimumPrice)
	}
	return nil
}

// PriceIncrement returns the smallest meaningful price step.
func (b MarketBasis) PriceIncrement() float64 {
	if b.PriceSteps < 2 {
		return 0
	}
	return (b.MaximumPrice - b.MinimumPrice) / float64(b.PriceSteps-1)
}

// PriceToIndex maps a price to the nearest step index, clamped to the basis.
func (b MarketBasis) PriceToIndex(price float64) int {
	inc := b.PriceIncrement()
	if inc <= 0 {
		return 0
	}
	idx := int(math.Round((price - b.MinimumPrice) / inc))
	if idx < 0 {
		return 0
	}
	if idx > b.PriceSteps-1 {
		return b.PriceSteps - 1
	}
	return idx
}

// IndexToPrice is the inverse of PriceToIndex.
func (b MarketBasis) IndexToPrice(idx int) float64 {
	if idx < 0 {
		idx = 0
	}
	if idx > b.PriceSteps-1 {
		idx = b.PriceSteps - 1
	}
	return b.MinimumPrice + float64(idx)*b.PriceIncrement()
}

// ConnectionStatus is the agent's view of its link to the parent coordinator.
type ConnectionStatus struct {
	Connected bool        `json:"connected"`
	ClusterID string      `json:"cluster_id"`
	SessionID string      `json:"session_id"`
	Basis     MarketBasis `json:"market_basis"`
}
