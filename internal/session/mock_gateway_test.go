package session

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trade-bot-console-go/internal/models"
)

// MockGateway is a mock implementation of the gateway.Gateway interface.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) GetBotStatus(ctx context.Context) (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) StartBot(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockGateway) StopBot(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockGateway) AnalyzeMarket(ctx context.Context, priceHistory []float64) (models.Decision, error) {
	args := m.Called(priceHistory)
	return args.Get(0).(models.Decision), args.Error(1)
}

func (m *MockGateway) GetTradeLogs(ctx context.Context) ([]models.TradeLog, error) {
	args := m.Called()
	logs, _ := args.Get(0).([]models.TradeLog)
	return logs, args.Error(1)
}

func (m *MockGateway) GetBalance(ctx context.Context) (float64, error) {
	args := m.Called()
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockGateway) GetBotConfig(ctx context.Context) (models.BotConfig, error) {
	args := m.Called()
	return args.Get(0).(models.BotConfig), args.Error(1)
}

func (m *MockGateway) UpdateConfig(ctx context.Context, cfg models.BotConfig) error {
	args := m.Called(cfg)
	return args.Error(0)
}
