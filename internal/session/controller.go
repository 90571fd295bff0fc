package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trade-bot-console-go/internal/gateway"
	"trade-bot-console-go/internal/identity"
	"trade-bot-console-go/internal/journal"
	"trade-bot-console-go/internal/models"
)

// IdentityProvider establishes the session principal.
type IdentityProvider interface {
	Establish(ctx context.Context) (identity.Result, error)
}

// Recorder stores the session's action history.
type Recorder interface {
	Record(e *journal.Entry) error
}

// Options tune the controller.
type Options struct {
	// Delimiter separates prices in Submit input.
	Delimiter string
	// IdentityWait bounds how long Start waits for the identity before refreshing.
	// The login keeps running in the background afterwards.
	IdentityWait time.Duration
}

// Controller composes the session components, runs the startup sequence, and
// refreshes exactly what each user action could have changed.
type Controller struct {
	state     *State
	identity  IdentityProvider
	bot       *BotControl
	config    *ConfigSync
	projector *Projector
	market    *MarketPipeline
	recorder  Recorder
	opts      Options
	logger    *zap.Logger
}

// NewController creates a new session controller. recorder may be nil.
func NewController(gw gateway.Gateway, id IdentityProvider, recorder Recorder, opts Options, logger *zap.Logger) *Controller {
	state := NewState()
	projector := NewProjector(gw, state, logger)
	return &Controller{
		state:     state,
		identity:  id,
		bot:       NewBotControl(gw, state, logger),
		config:    NewConfigSync(gw, state, logger),
		projector: projector,
		market:    NewMarketPipeline(gw, projector, state, opts.Delimiter, logger),
		recorder:  recorder,
		opts:      opts,
		logger:    logger.Named("session"),
	}
}

// State returns the session state for rendering.
func (c *Controller) State() *State {
	return c.state
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	return c.state.Snapshot()
}

// Start establishes the identity, then reads status, then logs, balance and config.
// The state is Ready once every startup refresh has completed; the returned error
// joins the refreshes that failed.
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Info("Starting session")

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Login(ctx)
	}()

	var wait <-chan time.Time
	if c.opts.IdentityWait > 0 {
		timer := time.NewTimer(c.opts.IdentityWait)
		defer timer.Stop()
		wait = timer.C
	}
	select {
	case <-done:
	case <-wait:
		c.logger.Info("Identity still pending, continuing anonymously for now")
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	if _, err := c.bot.Refresh(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.refreshViews(ctx); err != nil {
		errs = append(errs, err)
	}

	c.state.update(func(s *Snapshot) { s.Ready = true })
	c.logger.Info("Session ready")
	return errors.Join(errs...)
}

// refreshViews reads logs, balance and config concurrently and joins their failures.
func (c *Controller) refreshViews(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, 3)
	g.Go(func() error {
		_, errs[0] = c.projector.RefreshLogs(ctx)
		return nil
	})
	g.Go(func() error {
		_, errs[1] = c.projector.RefreshBalance(ctx)
		return nil
	})
	g.Go(func() error {
		_, errs[2] = c.config.Refresh(ctx)
		return nil
	})
	_ = g.Wait()
	return errors.Join(errs...)
}

// Login establishes the identity and publishes the principal. Failures and
// abandonment leave the session anonymous.
func (c *Controller) Login(ctx context.Context) identity.Result {
	res, err := c.identity.Establish(ctx)
	if err != nil {
		c.logger.Warn("Identity unavailable, continuing anonymously", zap.Error(err))
		res = identity.Anonymous
	}
	if res.Authenticated() {
		c.state.update(func(s *Snapshot) { s.Principal = res.Principal })
	}
	c.record(journal.KindLogin, "", res.Principal, err)
	return res
}

// Toggle flips the bot and refreshes status and balance.
func (c *Controller) Toggle(ctx context.Context) (models.BotStatus, error) {
	status, err := c.bot.Toggle(ctx)
	if _, berr := c.projector.refreshBalance(ctx); berr != nil {
		c.logger.Warn("Balance refresh after toggle failed", zap.Error(berr))
	}
	c.record(journal.KindToggle, "", status.String(), err)
	return status, err
}

// Submit sends a raw price series for analysis; logs and balance are refreshed on success.
func (c *Controller) Submit(ctx context.Context, raw string) (models.Decision, error) {
	decision, err := c.market.Submit(ctx, raw)
	c.record(journal.KindSubmit, raw, string(decision), err)
	return decision, err
}

// SetDraft records a local configuration edit.
func (c *Controller) SetDraft(strategy, threshold string) {
	c.config.SetDraft(strategy, threshold)
}

// UpdateConfig sends the draft configuration; the config is refreshed on success.
func (c *Controller) UpdateConfig(ctx context.Context, strategy, threshold string) (models.BotConfig, error) {
	cfg, err := c.config.Update(ctx, strategy, threshold)
	result := ""
	if err == nil {
		result = fmt.Sprintf("%s %g", cfg.Strategy, cfg.Threshold)
	}
	c.record(journal.KindConfig, strategy+" "+threshold, result, err)
	return cfg, err
}

// Refresh re-reads every remote view.
func (c *Controller) Refresh(ctx context.Context) error {
	var g errgroup.Group
	var statusErr error
	g.Go(func() error {
		_, statusErr = c.bot.Refresh(ctx)
		return nil
	})
	var viewsErr error
	g.Go(func() error {
		viewsErr = c.refreshViews(ctx)
		return nil
	})
	_ = g.Wait()

	err := errors.Join(statusErr, viewsErr)
	c.record(journal.KindRefresh, "", "", err)
	return err
}

func (c *Controller) record(kind, input, result string, err error) {
	if c.recorder == nil {
		return
	}

	entry := &journal.Entry{
		Kind:      kind,
		Principal: c.state.Snapshot().Principal,
		Input:     input,
		Outcome:   journal.OutcomeOK,
		Result:    result,
	}
	if err != nil {
		entry.Error = err.Error()
		entry.Outcome = journal.OutcomeFailed
		if IsValidation(err) {
			entry.Outcome = journal.OutcomeRejected
		}
	}

	if rerr := c.recorder.Record(entry); rerr != nil {
		c.logger.Warn("Failed to journal action", zap.String("kind", kind), zap.Error(rerr))
	}
}
