package gateway

import (
	"context"

	"trade-bot-console-go/internal/models"
)

// Gateway is the sole channel to the remote trading service.
type Gateway interface {
	GetBotStatus(ctx context.Context) (bool, error)
	StartBot(ctx context.Context) error
	StopBot(ctx context.Context) error
	AnalyzeMarket(ctx context.Context, priceHistory []float64) (models.Decision, error)
	GetTradeLogs(ctx context.Context) ([]models.TradeLog, error)
	GetBalance(ctx context.Context) (float64, error)
	GetBotConfig(ctx context.Context) (models.BotConfig, error)
	UpdateConfig(ctx context.Context, cfg models.BotConfig) error
}

// TokenSource returns the bearer credential to attach, or "" when anonymous.
type TokenSource func() string
