package session

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"trade-bot-console-go/internal/gateway"
	"trade-bot-console-go/internal/models"
)

// Projector fetches the trade log and balance and shapes them for display.
type Projector struct {
	gw     gateway.Gateway
	state  *State
	logger *zap.Logger
	flight singleflight.Group
}

// NewProjector creates a new log and balance projector.
func NewProjector(gw gateway.Gateway, state *State, logger *zap.Logger) *Projector {
	return &Projector{gw: gw, state: state, logger: logger.Named("projector")}
}

// ReverseLogs returns the entries most recent first, assuming the input is oldest first.
// The input slice is not modified.
func ReverseLogs(logs []models.TradeLog) []models.TradeLog {
	out := make([]models.TradeLog, len(logs))
	for i, entry := range logs {
		out[len(logs)-1-i] = entry
	}
	return out
}

// RefreshLogs fetches the trade log and publishes it most recent first.
func (p *Projector) RefreshLogs(ctx context.Context) ([]models.TradeLog, error) {
	v, err, _ := p.flight.Do("logs", func() (any, error) {
		return p.refreshLogs(ctx)
	})
	logs, _ := v.([]models.TradeLog)
	return logs, err
}

func (p *Projector) refreshLogs(ctx context.Context) ([]models.TradeLog, error) {
	var ticket uint64
	p.state.update(func(s *Snapshot) { ticket = s.Logs.begin() })

	remote, err := p.gw.GetTradeLogs(ctx)
	if err != nil {
		rerr := remoteErr("getTradeLogs", err)
		p.state.update(func(s *Snapshot) { s.Logs.fail(ticket, rerr) })
		p.logger.Warn("Trade log refresh failed", zap.Error(err))
		return nil, rerr
	}

	logs := ReverseLogs(remote)
	p.state.update(func(s *Snapshot) {
		if !s.Logs.succeed(ticket, logs, p.state.now()) {
			logs = append([]models.TradeLog(nil), s.Logs.Value...)
		}
	})
	p.logger.Debug("Trade logs refreshed", zap.Int("count", len(logs)))
	return logs, nil
}

// RefreshBalance fetches and publishes the balance. Rounding happens only on display.
func (p *Projector) RefreshBalance(ctx context.Context) (models.Balance, error) {
	v, err, _ := p.flight.Do("balance", func() (any, error) {
		return p.refreshBalance(ctx)
	})
	return v.(models.Balance), err
}

func (p *Projector) refreshBalance(ctx context.Context) (models.Balance, error) {
	var ticket uint64
	p.state.update(func(s *Snapshot) { ticket = s.Balance.begin() })

	value, err := p.gw.GetBalance(ctx)
	if err != nil {
		rerr := remoteErr("getBalance", err)
		var previous models.Balance
		p.state.update(func(s *Snapshot) {
			s.Balance.fail(ticket, rerr)
			previous = s.Balance.Value
		})
		p.logger.Warn("Balance refresh failed", zap.Error(err))
		return previous, rerr
	}

	balance := models.Balance{Value: value}
	p.state.update(func(s *Snapshot) {
		if !s.Balance.succeed(ticket, balance, p.state.now()) {
			balance = s.Balance.Value
		}
	})
	return balance, nil
}

// reread fetches logs and balance concurrently after a mutation. It never joins
// a read that started before the mutation.
func (p *Projector) reread(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := p.refreshLogs(ctx)
		return err
	})
	g.Go(func() error {
		_, err := p.refreshBalance(ctx)
		return err
	})
	return g.Wait()
}
