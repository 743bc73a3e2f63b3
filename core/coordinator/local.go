package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evagent/core/logger"
	"github.com/kilianp07/evagent/core/model"
)

// LocalConfig configures the in-process coordinator.
type LocalConfig struct {
	ClusterID       string            `json:"cluster_id"`
	Basis           model.MarketBasis `json:"market_basis"`
	ClearingPrice   float64           `json:"clearing_price"`
	ClearingDelayMS int               `json:"clearing_delay_ms"`
	// BidHistory is how many received bids Bids keeps. Defaults to 100.
	BidHistory int `json:"bid_history"`
}

// DefaultBidHistory is the number of bids kept when BidHistory is unset.
const DefaultBidHistory = 100

// Local clears every published bid at a fixed price after a delay.
type Local struct {
	mu      sync.RWMutex
	status  model.ConnectionStatus
	handler PriceHandler
	price   float64
	delay   time.Duration
	bids    []model.BidUpdate
	keep    int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    logger.Logger
}

// NewLocal returns a connected Local coordinator with a fresh session.
func NewLocal(cfg LocalConfig, log logger.Logger) (*Local, error) {
	if err := cfg.Basis.Validate(); err != nil {
		return nil, err
	}
	cluster := cfg.ClusterID
	if cluster == "" {
		cluster = "local"
	}
	keep := cfg.BidHistory
	if keep <= 0 {
		keep = DefaultBidHistory
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Local{
		status: model.ConnectionStatus{
			Connected: true,
			ClusterID: cluster,
			SessionID: uuid.NewString(),
			Basis:     cfg.Basis,
		},
		price:  cfg.ClearingPrice,
		delay:  time.Duration(cfg.ClearingDelayMS) * time.Millisecond,
		keep:   keep,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}, nil
}

func (l *Local) Status() model.ConnectionStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// PublishBid records the bid and schedules its price update.
func (l *Local) PublishBid(ctx context.Context, bu model.BidUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.bids = append(l.bids, bu)
	if over := len(l.bids) - l.keep; over > 0 {
		l.bids = append(l.bids[:0], l.bids[over:]...)
	}
	pu := model.PriceUpdate{SessionID: bu.SessionID, BidNumber: bu.BidNumber, Price: l.price}
	l.wg.Add(1)
	l.mu.Unlock()

	if l.log != nil {
		l.log.Debugf("bid %d from %s received (%s)", bu.BidNumber, bu.AgentID, bu.Bid.Kind())
	}
	go func() {
		defer l.wg.Done()
		timer := time.NewTimer(l.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			pu.Timestamp = time.Now()
			l.Deliver(pu)
		case <-l.ctx.Done():
		}
	}()
	return nil
}

// OnPriceUpdate registers the price handler.
func (l *Local) OnPriceUpdate(h PriceHandler) {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
}

// Deliver hands a price update to the registered handler on the calling goroutine.
func (l *Local) Deliver(pu model.PriceUpdate) {
	l.mu.RLock()
	h := l.handler
	closed := l.closed
	l.mu.RUnlock()
	if h == nil || closed {
		return
	}
	h(pu)
}

// SetPrice changes the clearing price used for subsequent bids.
func (l *Local) SetPrice(p float64) {
	l.mu.Lock()
	l.price = p
	l.mu.Unlock()
}

// SetConnected toggles the connection flag reported by Status.
func (l *Local) SetConnected(connected bool) {
	l.mu.Lock()
	l.status.Connected = connected
	l.mu.Unlock()
}

// NewSession starts a new bidding session and returns its identifier.
func (l *Local) NewSession() string {
	id := uuid.NewString()
	l.mu.Lock()
	l.status.SessionID = id
	l.mu.Unlock()
	return id
}

// Bids returns a copy of the most recent bids, oldest first.
func (l *Local) Bids() []model.BidUpdate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.BidUpdate(nil), l.bids...)
}

// Close stops pending deliveries and waits for them to exit.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	l.cancel()
	l.wg.Wait()
	return nil
}
