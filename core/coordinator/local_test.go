package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evagent/core/model"
)

var basis = model.MarketBasis{Commodity: "electricity", Currency: "EUR", PriceSteps: 11, MinimumPrice: 0, MaximumPrice: 1}

func TestLocalRejectsInvalidBasis(t *testing.T) {
	_, err := NewLocal(LocalConfig{Basis: model.MarketBasis{PriceSteps: 1}}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidBasis)
}

func TestLocalClearsPublishedBid(t *testing.T) {
	l, err := NewLocal(LocalConfig{Basis: basis, ClearingPrice: 0.3}, nil)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	got := make(chan model.PriceUpdate, 1)
	l.OnPriceUpdate(func(pu model.PriceUpdate) { got <- pu })

	st := l.Status()
	require.True(t, st.Connected)
	require.NotEmpty(t, st.SessionID)
	assert.Equal(t, "local", st.ClusterID)

	bu := model.BidUpdate{AgentID: "ev", SessionID: st.SessionID, BidNumber: 7, Bid: model.FlatBid(basis, 3)}
	require.NoError(t, l.PublishBid(context.Background(), bu))

	select {
	case pu := <-got:
		assert.Equal(t, int64(7), pu.BidNumber)
		assert.Equal(t, st.SessionID, pu.SessionID)
		assert.Equal(t, 0.3, pu.Price)
	case <-time.After(time.Second):
		t.Fatal("no price update delivered")
	}
	assert.Len(t, l.Bids(), 1)
}

func TestLocalCloseCancelsPending(t *testing.T) {
	l, err := NewLocal(LocalConfig{Basis: basis, ClearingDelayMS: 60000}, nil)
	require.NoError(t, err)
	called := false
	l.OnPriceUpdate(func(model.PriceUpdate) { called = true })
	require.NoError(t, l.PublishBid(context.Background(), model.BidUpdate{BidNumber: 1}))
	require.NoError(t, l.Close())
	assert.False(t, called)
	assert.ErrorIs(t, l.PublishBid(context.Background(), model.BidUpdate{BidNumber: 2}), ErrClosed)
	require.NoError(t, l.Close())
}

func TestLocalSessionAndConnection(t *testing.T) {
	l, err := NewLocal(LocalConfig{Basis: basis}, nil)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	first := l.Status().SessionID
	second := l.NewSession()
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, l.Status().SessionID)
	l.SetConnected(false)
	assert.False(t, l.Status().Connected)
}

func TestLocalKeepsRecentBids(t *testing.T) {
	l, err := NewLocal(LocalConfig{Basis: basis, BidHistory: 3, ClearingDelayMS: 60_000}, nil)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	session := l.Status().SessionID
	for n := int64(1); n <= 10; n++ {
		bu := model.BidUpdate{AgentID: "ev", SessionID: session, BidNumber: n, Bid: model.FlatBid(basis, 1)}
		require.NoError(t, l.PublishBid(context.Background(), bu))
	}
	bids := l.Bids()
	require.Len(t, bids, 3)
	assert.Equal(t, []int64{8, 9, 10}, []int64{bids[0].BidNumber, bids[1].BidNumber, bids[2].BidNumber})
}

func TestLocalDefaultBidHistory(t *testing.T) {
	l, err := NewLocal(LocalConfig{Basis: basis, ClearingDelayMS: 60_000}, nil)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	for n := int64(1); n <= DefaultBidHistory+5; n++ {
		require.NoError(t, l.PublishBid(context.Background(), model.BidUpdate{BidNumber: n, Bid: model.FlatBid(basis, 1)}))
	}
	bids := l.Bids()
	require.Len(t, bids, DefaultBidHistory)
	assert.Equal(t, int64(6), bids[0].BidNumber)
}
