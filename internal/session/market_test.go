package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trade-bot-console-go/internal/models"
)

func TestParsePrices(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		delimiter string
		expected  []float64
	}{
		{"All valid", "30,32,31,33,35", ",", []float64{30, 32, 31, 33, 35}},
		{"Drops invalid tokens", "30,abc,31", ",", []float64{30, 31}},
		{"All invalid", "a,b,c", ",", nil},
		{"Keeps order and duplicates", " 5, 1 ,x,5,,2.5", ",", []float64{5, 1, 5, 2.5}},
		{"Drops non-finite", "1,NaN,Inf,-Inf,2,3", ",", []float64{1, 2, 3}},
		{"Custom delimiter", "1;2;3", ";", []float64{1, 2, 3}},
		{"Default delimiter", "1,2", "", []float64{1, 2}},
		{"Empty input", "", ",", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParsePrices(tc.raw, tc.delimiter))
		})
	}
}

func newPipeline(gw *MockGateway) (*MarketPipeline, *State) {
	state := NewState()
	projector := NewProjector(gw, state, zap.NewNop())
	return NewMarketPipeline(gw, projector, state, ",", zap.NewNop()), state
}

func TestSubmit_InsufficientDataPoints(t *testing.T) {
	for _, raw := range []string{"30,abc,31", "a,b,c", "", "1,2", "NaN,Inf,1,2"} {
		t.Run(raw, func(t *testing.T) {
			gw := new(MockGateway)
			pipeline, _ := newPipeline(gw)

			decision, err := pipeline.Submit(context.Background(), raw)

			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, err.Error(), "insufficient data points")
			assert.Empty(t, decision)
			gw.AssertNotCalled(t, "AnalyzeMarket", mock.Anything)
			gw.AssertExpectations(t)
		})
	}
}

func TestSubmit_ForwardsValidPricesInOrder(t *testing.T) {
	gw := new(MockGateway)
	pipeline, state := newPipeline(gw)

	gw.On("AnalyzeMarket", []float64{30, 31, 29.5}).Return(models.Decision("SELL"), nil).Once()
	gw.On("GetTradeLogs").Return([]models.TradeLog{{Timestamp: 1, Action: "SELL", Price: 29.5}}, nil).Once()
	gw.On("GetBalance").Return(1005.0, nil).Once()

	decision, err := pipeline.Submit(context.Background(), "30,foo,31,,29.5,bar")

	require.NoError(t, err)
	assert.Equal(t, models.Decision("SELL"), decision)
	gw.AssertExpectations(t)

	snap := state.Snapshot()
	assert.Equal(t, models.Decision("SELL"), snap.LastDecision)
	assert.Equal(t, 1005.0, snap.Balance.Value.Value)
	assert.Len(t, snap.Logs.Value, 1)
}

func TestSubmit_ExactlyMinimumIsAccepted(t *testing.T) {
	gw := new(MockGateway)
	pipeline, _ := newPipeline(gw)

	gw.On("AnalyzeMarket", []float64{1, 2, 3}).Return(models.Decision("HOLD"), nil).Once()
	gw.On("GetTradeLogs").Return([]models.TradeLog{}, nil)
	gw.On("GetBalance").Return(1000.0, nil)

	decision, err := pipeline.Submit(context.Background(), "1,2,3")

	require.NoError(t, err)
	assert.Equal(t, models.Decision("HOLD"), decision)
	gw.AssertExpectations(t)
}

func TestSubmit_RemoteFailureSkipsRefresh(t *testing.T) {
	gw := new(MockGateway)
	pipeline, _ := newPipeline(gw)

	gw.On("AnalyzeMarket", []float64{30, 32, 31, 33, 35}).Return(models.Decision(""), errors.New("canister trapped")).Once()

	_, err := pipeline.Submit(context.Background(), "30,32,31,33,35")

	require.Error(t, err)
	assert.True(t, IsRemote(err))
	assert.Contains(t, err.Error(), "canister trapped")
	gw.AssertNotCalled(t, "GetTradeLogs")
	gw.AssertNotCalled(t, "GetBalance")
}

func TestSubmit_RefreshFailureStillReturnsDecision(t *testing.T) {
	gw := new(MockGateway)
	pipeline, state := newPipeline(gw)

	gw.On("AnalyzeMarket", mock.Anything).Return(models.Decision("BUY"), nil).Once()
	gw.On("GetTradeLogs").Return(nil, errors.New("timeout")).Once()
	gw.On("GetBalance").Return(995.0, nil).Once()

	decision, err := pipeline.Submit(context.Background(), "1,2,5")

	require.NoError(t, err)
	assert.Equal(t, models.Decision("BUY"), decision)

	snap := state.Snapshot()
	assert.Equal(t, Failed, snap.Logs.Load)
	assert.Equal(t, Idle, snap.Balance.Load)
}

func TestSubmit_RefreshDoesNotJoinEarlierRead(t *testing.T) {
	gw := new(MockGateway)
	pipeline, state := newPipeline(gw)

	started := make(chan struct{})
	release := make(chan struct{})
	gw.On("GetTradeLogs").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]models.TradeLog{}, nil).Once()
	gw.On("AnalyzeMarket", []float64{1, 2, 3}).Return(models.Decision("BUY"), nil).Once()
	gw.On("GetTradeLogs").Return([]models.TradeLog{{Timestamp: 7, Action: "BUY", Price: 3}}, nil).Once()
	gw.On("GetBalance").Return(995.0, nil).Once()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pipeline.projector.RefreshLogs(context.Background())
	}()
	<-started

	decision, err := pipeline.Submit(context.Background(), "1,2,3")

	require.NoError(t, err)
	assert.Equal(t, models.Decision("BUY"), decision)
	snap := state.Snapshot()
	require.Len(t, snap.Logs.Value, 1)
	assert.Equal(t, uint64(7), snap.Logs.Value[0].Timestamp)

	close(release)
	<-done

	snap = state.Snapshot()
	require.Len(t, snap.Logs.Value, 1)
	assert.Equal(t, "995.00", snap.Balance.Value.Display())
	gw.AssertNumberOfCalls(t, "GetTradeLogs", 2)
	gw.AssertExpectations(t)
}
