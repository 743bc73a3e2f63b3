package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evagent/core/coordinator"
	"github.com/kilianp07/evagent/core/model"
)

type mockCoordinator struct {
	mock.Mock
}

func (m *mockCoordinator) Status() model.ConnectionStatus {
	return m.Called().Get(0).(model.ConnectionStatus)
}

func (m *mockCoordinator) PublishBid(ctx context.Context, bu model.BidUpdate) error {
	return m.Called(ctx, bu).Error(0)
}

func (m *mockCoordinator) OnPriceUpdate(h coordinator.PriceHandler) { m.Called(h) }

func (m *mockCoordinator) Close() error { return m.Called().Error(0) }

func TestPublishedBidMatchesDeviceState(t *testing.T) {
	coord := &mockCoordinator{}
	coord.On("Status").Return(model.ConnectionStatus{Connected: true, SessionID: "s", Basis: basis})
	coord.On("PublishBid", mock.Anything, mock.MatchedBy(func(bu model.BidUpdate) bool {
		return bu.AgentID == "EV" && bu.SessionID == "s" && bu.BidNumber == 1 &&
			len(bu.Bid.Steps) == 2 && bu.Bid.Steps[0].Price == 2 && bu.Bid.Steps[0].Demand == 6.6
	})).Return(nil).Once()

	dev := &fakeDevice{urgency: 0.5, power: 6.6, plugged: true}
	a, err := New(Config{AgentID: "EV", ParentID: "p"}, dev, coord, nil, nil)
	require.NoError(t, err)
	bu, err := a.BuildAndPublishBid(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bu)
	coord.AssertExpectations(t)
}

func TestPublishErrorIsWrapped(t *testing.T) {
	boom := errors.New("broker down")
	coord := &mockCoordinator{}
	coord.On("Status").Return(model.ConnectionStatus{Connected: true, SessionID: "s", Basis: basis})
	coord.On("PublishBid", mock.Anything, mock.Anything).Return(boom)

	dev := &fakeDevice{urgency: 1, power: 3.6, plugged: true}
	a, err := New(Config{AgentID: "EV"}, dev, coord, nil, nil)
	require.NoError(t, err)
	_, err = a.BuildAndPublishBid(context.Background())
	assert.ErrorIs(t, err, boom)
	_, ok := a.LastBid()
	assert.False(t, ok)
	coord.AssertNumberOfCalls(t, "PublishBid", 1)
}
