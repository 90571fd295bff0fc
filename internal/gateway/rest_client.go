package gateway

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trade-bot-console-go/internal/config"
	"trade-bot-console-go/internal/models"
)

const (
	pathStatus  = "/bot/status"
	pathStart   = "/bot/start"
	pathStop    = "/bot/stop"
	pathAnalyze = "/market/analyze"
	pathTrades  = "/trades"
	pathBalance = "/balance"
	pathConfig  = "/config"
)

// StatusError is returned when the remote service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// RestClient is an HTTP/JSON client for the remote trading service.
// It implements the Gateway interface.
type RestClient struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration

	mu    sync.RWMutex
	token TokenSource
}

// ensure RestClient implements the interface
var _ Gateway = (*RestClient)(nil)

// NewRestClient creates a new client for the remote trading service.
func NewRestClient(cfg *config.Remote, logger *zap.Logger) *RestClient {
	client := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	logger.Info("Remote service client configured", zap.String("base_url", cfg.BaseURL))

	return &RestClient{
		client:     client,
		logger:     logger.Named("gateway"),
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: cfg.MaxReadRetries,
		backoff:    time.Second,
	}
}

// SetTokenSource installs the credential provider used for the Authorization header.
func (c *RestClient) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ts
}

func (c *RestClient) newRequest(ctx context.Context) *resty.Request {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-ID", uuid.NewString())

	c.mu.RLock()
	ts := c.token
	c.mu.RUnlock()
	if ts != nil {
		if token := ts(); token != "" {
			req.SetAuthToken(token)
		}
	}
	return req
}

// doRequest executes req with rate limiting. Idempotent requests are retried on
// throttling, server errors and transport failures; mutating requests only on throttling,
// since the remote service has not processed a throttled request.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request, idempotent bool) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	attempts := 1 + c.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = idempotent
			}
			err = &StatusError{StatusCode: statusCode, Body: resp.String()}
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			shouldRetry = idempotent
		}

		if !shouldRetry || i == attempts-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.String("url", url),
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, err
}

// GetBotStatus reports whether the remote bot is running.
func (c *RestClient) GetBotStatus(ctx context.Context) (bool, error) {
	var result struct {
		Active bool `json:"active"`
	}
	if _, err := c.doRequest(ctx, http.MethodGet, pathStatus, c.newRequest(ctx).SetResult(&result), true); err != nil {
		return false, fmt.Errorf("failed to get bot status: %w", err)
	}
	return result.Active, nil
}

// StartBot asks the remote service to start the bot.
func (c *RestClient) StartBot(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodPost, pathStart, c.newRequest(ctx), false); err != nil {
		c.logger.Error("Failed to start bot", zap.Error(err))
		return fmt.Errorf("failed to start bot: %w", err)
	}
	return nil
}

// StopBot asks the remote service to stop the bot.
func (c *RestClient) StopBot(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodPost, pathStop, c.newRequest(ctx), false); err != nil {
		c.logger.Error("Failed to stop bot", zap.Error(err))
		return fmt.Errorf("failed to stop bot: %w", err)
	}
	return nil
}

// AnalyzeMarket submits a price history and returns the remote decision.
func (c *RestClient) AnalyzeMarket(ctx context.Context, priceHistory []float64) (models.Decision, error) {
	body := struct {
		PriceHistory []float64 `json:"price_history"`
	}{PriceHistory: priceHistory}
	var result struct {
		Decision string `json:"decision"`
	}

	req := c.newRequest(ctx).SetBody(body).SetResult(&result)
	if _, err := c.doRequest(ctx, http.MethodPost, pathAnalyze, req, false); err != nil {
		c.logger.Error("Failed to analyze market", zap.Int("points", len(priceHistory)), zap.Error(err))
		return "", fmt.Errorf("failed to analyze market: %w", err)
	}

	c.logger.Info("Market analyzed", zap.String("decision", result.Decision))
	return models.Decision(result.Decision), nil
}

// GetTradeLogs returns the remote trade history, oldest first.
func (c *RestClient) GetTradeLogs(ctx context.Context) ([]models.TradeLog, error) {
	var logs []models.TradeLog
	if _, err := c.doRequest(ctx, http.MethodGet, pathTrades, c.newRequest(ctx).SetResult(&logs), true); err != nil {
		return nil, fmt.Errorf("failed to get trade logs: %w", err)
	}
	return logs, nil
}

// GetBalance returns the remote balance.
func (c *RestClient) GetBalance(ctx context.Context) (float64, error) {
	var result struct {
		Balance float64 `json:"balance"`
	}
	if _, err := c.doRequest(ctx, http.MethodGet, pathBalance, c.newRequest(ctx).SetResult(&result), true); err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return result.Balance, nil
}

// GetBotConfig returns the configuration the remote service currently holds.
func (c *RestClient) GetBotConfig(ctx context.Context) (models.BotConfig, error) {
	var cfg models.BotConfig
	if _, err := c.doRequest(ctx, http.MethodGet, pathConfig, c.newRequest(ctx).SetResult(&cfg), true); err != nil {
		return models.BotConfig{}, fmt.Errorf("failed to get bot config: %w", err)
	}
	return cfg, nil
}

// UpdateConfig replaces the remote configuration.
func (c *RestClient) UpdateConfig(ctx context.Context, cfg models.BotConfig) error {
	if _, err := c.doRequest(ctx, http.MethodPut, pathConfig, c.newRequest(ctx).SetBody(cfg), false); err != nil {
		c.logger.Error("Failed to update config",
			zap.String("strategy", cfg.Strategy),
			zap.Float64("threshold", cfg.Threshold),
			zap.Error(err),
		)
		return fmt.Errorf("failed to update config: %w", err)
	}
	c.logger.Info("Config updated", zap.String("strategy", cfg.Strategy), zap.Float64("threshold", cfg.Threshold))
	return nil
}
