// Package coordinator defines how the agent talks to its parent market
// coordinator. The MQTT transport lives in infra/mqtt; Local is an
// in-process coordinator for standalone runs and tests.
package coordinator

import (
	"context"
	"errors"

	"github.com/kilianp07/evagent/core/model"
)

// ErrClosed is returned by PublishBid once the coordinator is closed.
var ErrClosed = errors.New("coordinator closed")

// PriceHandler receives cleared prices. It may be called from any goroutine.
type PriceHandler func(model.PriceUpdate)

// Coordinator is the agent's view of its parent in the market hierarchy.
type Coordinator interface {
	// Status returns the current connection status and market basis.
	Status() model.ConnectionStatus
	// PublishBid sends a numbered bid to the parent.
	PublishBid(ctx context.Context, bu model.BidUpdate) error
	// OnPriceUpdate registers the handler for inbound price updates.
	OnPriceUpdate(h PriceHandler)
	Close() error
}
