package session

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"trade-bot-console-go/internal/gateway"
	"trade-bot-console-go/internal/models"
)

// ConfigSync holds the confirmed remote configuration and the local draft.
// The draft replaces the remote value only through Update; every successful
// Refresh overwrites both.
type ConfigSync struct {
	gw     gateway.Gateway
	state  *State
	logger *zap.Logger
	flight singleflight.Group
}

// NewConfigSync creates a new config sync unit.
func NewConfigSync(gw gateway.Gateway, state *State, logger *zap.Logger) *ConfigSync {
	return &ConfigSync{gw: gw, state: state, logger: logger.Named("config-sync")}
}

// Refresh fetches the confirmed configuration and replaces the draft with it.
func (c *ConfigSync) Refresh(ctx context.Context) (models.BotConfig, error) {
	v, err, _ := c.flight.Do("config", func() (any, error) {
		return c.refresh(ctx)
	})
	return v.(models.BotConfig), err
}

func (c *ConfigSync) refresh(ctx context.Context) (models.BotConfig, error) {
	var ticket uint64
	c.state.update(func(s *Snapshot) { ticket = s.Config.begin() })

	cfg, err := c.gw.GetBotConfig(ctx)
	if err != nil {
		rerr := remoteErr("getBotConfig", err)
		var previous models.BotConfig
		c.state.update(func(s *Snapshot) {
			s.Config.fail(ticket, rerr)
			previous = s.Config.Value
		})
		c.logger.Warn("Config refresh failed", zap.Error(err))
		return previous, rerr
	}

	c.state.update(func(s *Snapshot) {
		if !s.Config.succeed(ticket, cfg, c.state.now()) {
			cfg = s.Config.Value
			return
		}
		s.Draft = draftOf(cfg)
	})
	return cfg, nil
}

// SetDraft records a local edit. The values may be invalid until Update.
func (c *ConfigSync) SetDraft(strategy, threshold string) {
	c.state.update(func(s *Snapshot) {
		s.Draft = ConfigDraft{Strategy: strategy, Threshold: threshold}
	})
}

// Update validates the draft, sends it, and re-reads what the remote service accepted.
// The re-read never joins a read that started before the update.
func (c *ConfigSync) Update(ctx context.Context, strategy, threshold string) (models.BotConfig, error) {
	c.SetDraft(strategy, threshold)

	cfg, err := ValidateConfig(strategy, threshold)
	if err != nil {
		return models.BotConfig{}, err
	}

	if err := c.gw.UpdateConfig(ctx, cfg); err != nil {
		c.logger.Error("Config update failed", zap.Error(err))
		return models.BotConfig{}, remoteErr("updateConfig", err)
	}

	return c.refresh(ctx)
}

// ValidateConfig checks a draft before it may be sent. The strategy is not
// checked against any list; the remote service decides which names it knows.
func ValidateConfig(strategy, threshold string) (models.BotConfig, error) {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" {
		return models.BotConfig{}, &ValidationError{Field: "strategy", Reason: "must not be empty"}
	}

	value, err := ParseThreshold(threshold)
	if err != nil {
		return models.BotConfig{}, err
	}

	return models.BotConfig{Strategy: strategy, Threshold: value}, nil
}

// ParseThreshold parses a finite real number.
func ParseThreshold(text string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, &ValidationError{Field: "threshold", Reason: "not a number: " + strconv.Quote(text)}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ValidationError{Field: "threshold", Reason: "must be finite"}
	}
	return value, nil
}

func draftOf(cfg models.BotConfig) ConfigDraft {
	return ConfigDraft{
		Strategy:  cfg.Strategy,
		Threshold: strconv.FormatFloat(cfg.Threshold, 'f', -1, 64),
	}
}
