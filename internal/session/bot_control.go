package session

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"trade-bot-console-go/internal/gateway"
	"trade-bot-console-go/internal/models"
)

// BotControl mirrors the remote bot's Stopped/Running state. The local status is only
// ever written from a status query, never flipped ahead of one.
type BotControl struct {
	gw     gateway.Gateway
	state  *State
	logger *zap.Logger
	flight singleflight.Group
}

// NewBotControl creates a new bot control state machine.
func NewBotControl(gw gateway.Gateway, state *State, logger *zap.Logger) *BotControl {
	return &BotControl{gw: gw, state: state, logger: logger.Named("bot-control")}
}

// Refresh queries the remote status and publishes it.
func (b *BotControl) Refresh(ctx context.Context) (models.BotStatus, error) {
	v, err, _ := b.flight.Do("status", func() (any, error) {
		return b.refresh(ctx)
	})
	return v.(models.BotStatus), err
}

func (b *BotControl) refresh(ctx context.Context) (models.BotStatus, error) {
	var ticket uint64
	b.state.update(func(s *Snapshot) { ticket = s.Status.begin() })

	active, err := b.gw.GetBotStatus(ctx)
	if err != nil {
		rerr := remoteErr("getBotStatus", err)
		var previous models.BotStatus
		b.state.update(func(s *Snapshot) {
			s.Status.fail(ticket, rerr)
			previous = s.Status.Value
		})
		b.logger.Warn("Status refresh failed", zap.Error(err))
		return previous, rerr
	}

	status := models.BotStatus(active)
	b.state.update(func(s *Snapshot) {
		if !s.Status.succeed(ticket, status, b.state.now()) {
			status = s.Status.Value
		}
	})
	b.logger.Debug("Status refreshed", zap.Stringer("status", status))
	return status, nil
}

// Toggle starts a stopped bot or stops a running one, then re-reads the status.
// Concurrent toggles share one flight and one outcome.
func (b *BotControl) Toggle(ctx context.Context) (models.BotStatus, error) {
	v, err, shared := b.flight.Do("toggle", func() (any, error) {
		return b.toggle(ctx)
	})
	if shared {
		b.logger.Debug("Toggle joined an in-flight toggle")
	}
	return v.(models.BotStatus), err
}

func (b *BotControl) toggle(ctx context.Context) (models.BotStatus, error) {
	snap := b.state.Snapshot()
	current := snap.Status.Value
	if !snap.Status.Loaded {
		// Never guess the starting state.
		status, err := b.refresh(ctx)
		if err != nil {
			return status, err
		}
		current = status
	}

	var opErr error
	if current == models.Running {
		b.logger.Info("Stopping bot")
		if err := b.gw.StopBot(ctx); err != nil {
			opErr = remoteErr("stopBot", err)
		}
	} else {
		b.logger.Info("Starting bot")
		if err := b.gw.StartBot(ctx); err != nil {
			opErr = remoteErr("startBot", err)
		}
	}

	// Re-read even after a failed start/stop: the call may have landed.
	status, err := b.refresh(ctx)
	if opErr != nil {
		b.logger.Error("Toggle failed", zap.Stringer("from", current), zap.Error(opErr))
		return status, opErr
	}
	if err != nil {
		return status, err
	}

	b.logger.Info("Bot toggled", zap.Stringer("from", current), zap.Stringer("to", status))
	return status, nil
}
