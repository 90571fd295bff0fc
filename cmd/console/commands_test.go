package main

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trade-bot-console-go/internal/identity"
	"trade-bot-console-go/internal/journal"
	"trade-bot-console-go/internal/models"
	"trade-bot-console-go/internal/render"
	"trade-bot-console-go/internal/session"
)

// fakeGateway is an in-memory remote service for console tests.
type fakeGateway struct {
	mu       sync.Mutex
	active   bool
	config   models.BotConfig
	balance  float64
	logs     []models.TradeLog
	analyzed [][]float64

	statusErr error
}

func (f *fakeGateway) GetBotStatus(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.statusErr
}

func (f *fakeGateway) StartBot(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = true
	return nil
}

func (f *fakeGateway) StopBot(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	return nil
}

func (f *fakeGateway) AnalyzeMarket(ctx context.Context, prices []float64) (models.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed = append(f.analyzed, prices)
	f.logs = append(f.logs, models.TradeLog{Timestamp: uint64(len(f.logs) + 1), Action: "BUY", Price: prices[len(prices)-1]})
	f.balance -= 5
	return "BUY", nil
}

func (f *fakeGateway) GetTradeLogs(ctx context.Context) ([]models.TradeLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TradeLog(nil), f.logs...), nil
}

func (f *fakeGateway) GetBalance(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeGateway) GetBotConfig(ctx context.Context) (models.BotConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config, nil
}

func (f *fakeGateway) UpdateConfig(ctx context.Context, cfg models.BotConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = cfg
	return nil
}

type anonymous struct{}

func (anonymous) Establish(ctx context.Context) (identity.Result, error) {
	return identity.Anonymous, nil
}

func setupConsole(t *testing.T) (*Console, *fakeGateway, *bytes.Buffer) {
	gw := &fakeGateway{config: models.BotConfig{Strategy: "basic", Threshold: 0.5}, balance: 1000}
	c, out, err := startConsole(t, gw)
	require.NoError(t, err)
	return c, gw, out
}

func startConsole(t *testing.T, gw *fakeGateway) (*Console, *bytes.Buffer, error) {
	j, err := journal.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	controller := session.NewController(gw, anonymous{}, j, session.Options{Delimiter: ","}, zap.NewNop())
	startErr := controller.Start(context.Background())

	var out bytes.Buffer
	return &Console{
		controller: controller,
		journal:    j,
		renderer:   render.NewRenderer(&out, time.UTC),
		out:        &out,
	}, &out, startErr
}

func TestConsole_Toggle(t *testing.T) {
	c, gw, out := setupConsole(t)

	assert.False(t, c.Execute(context.Background(), "toggle"))
	assert.Contains(t, out.String(), "Bot Status: Running")
	assert.True(t, gw.active)

	out.Reset()
	c.Execute(context.Background(), "toggle")
	assert.Contains(t, out.String(), "Bot Status: Stopped")
}

func TestConsole_ToggleFailureWithUnknownStatus(t *testing.T) {
	gw := &fakeGateway{statusErr: errors.New("bot unreachable")}
	c, out, err := startConsole(t, gw)
	require.Error(t, err)

	c.Execute(context.Background(), "toggle")

	assert.Contains(t, out.String(), "Error:")
	assert.Contains(t, out.String(), "Bot Status: unknown (refresh failed:")
	assert.NotContains(t, out.String(), "Bot Status: Stopped")
}

func TestConsole_Analyze(t *testing.T) {
	c, gw, out := setupConsole(t)

	c.Execute(context.Background(), "analyze 30,abc,31")
	assert.Contains(t, out.String(), "Input rejected")
	assert.Empty(t, gw.analyzed)

	out.Reset()
	c.Execute(context.Background(), "analyze 30,32,31,33,35")
	assert.Contains(t, out.String(), "Decision: BUY")
	require.Len(t, gw.analyzed, 1)
	assert.Equal(t, []float64{30, 32, 31, 33, 35}, gw.analyzed[0])

	out.Reset()
	c.Execute(context.Background(), "status")
	assert.Contains(t, out.String(), "$995.00")
}

func TestConsole_Config(t *testing.T) {
	c, gw, out := setupConsole(t)

	c.Execute(context.Background(), "config macd abc")
	assert.Contains(t, out.String(), "Input rejected")
	assert.Equal(t, "basic", gw.config.Strategy)

	out.Reset()
	c.Execute(context.Background(), "draft macd 0.7")
	c.Execute(context.Background(), "config")
	assert.Contains(t, out.String(), "Configuration updated!")
	assert.Equal(t, models.BotConfig{Strategy: "macd", Threshold: 0.7}, gw.config)
}

func TestConsole_LogsAndHistory(t *testing.T) {
	c, _, out := setupConsole(t)

	c.Execute(context.Background(), "logs")
	assert.Contains(t, out.String(), "No logs yet.")

	c.Execute(context.Background(), "analyze 1,2,3")
	out.Reset()
	c.Execute(context.Background(), "history")
	assert.Contains(t, out.String(), "submit")
	assert.Contains(t, out.String(), "login")
}

func TestConsole_QuitAndUnknown(t *testing.T) {
	c, _, out := setupConsole(t)

	assert.False(t, c.Execute(context.Background(), "dance"))
	assert.Contains(t, out.String(), `unknown command "dance"`)
	assert.True(t, c.Execute(context.Background(), "quit"))
}
