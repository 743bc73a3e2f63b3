package agent

import (
	"math"

	"github.com/kilianp07/evagent/core/model"
)

// ThresholdPrice is the highest price the device accepts at urgency r:
// the basis maximum scaled by 1/r. It is only meaningful for 0 < r < 1.
func ThresholdPrice(basis model.MarketBasis, r float64) float64 {
	return basis.MaximumPrice / r
}

// BuildBid derives the bid curve for a device with urgency ratio r that
// wants power kW. A ratio of one or more yields a flat bid; a ratio in
// (0,1) yields a two-point step bid at ThresholdPrice. ok is false when r
// is not a usable ratio (NaN or not positive).
func BuildBid(basis model.MarketBasis, r, power float64) (bid model.Bid, ok bool) {
	if math.IsNaN(r) || r <= 0 {
		return model.Bid{}, false
	}
	if r >= 1 {
		return model.FlatBid(basis, power), true
	}
	return model.StepBid(basis, ThresholdPrice(basis, r), power), true
}
