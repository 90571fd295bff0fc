package session

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"trade-bot-console-go/internal/gateway"
	"trade-bot-console-go/internal/models"
)

// MinDataPoints is the smallest price series the remote analysis accepts.
const MinDataPoints = 3

// DefaultDelimiter separates prices in free-text input.
const DefaultDelimiter = ","

// ParsePrices splits raw on delimiter and keeps every token that parses as a finite
// number, in input order. Tokens that do not parse, empty ones included, are dropped.
func ParsePrices(raw, delimiter string) []float64 {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	var prices []float64
	for _, token := range strings.Split(raw, delimiter) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		value, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		prices = append(prices, value)
	}
	return prices
}

// MarketPipeline validates a raw price series, submits it for analysis, and
// refreshes the views the analysis can change.
type MarketPipeline struct {
	gw        gateway.Gateway
	projector *Projector
	state     *State
	delimiter string
	logger    *zap.Logger
}

// NewMarketPipeline creates a new market submission pipeline.
func NewMarketPipeline(gw gateway.Gateway, projector *Projector, state *State, delimiter string, logger *zap.Logger) *MarketPipeline {
	return &MarketPipeline{
		gw:        gw,
		projector: projector,
		state:     state,
		delimiter: delimiter,
		logger:    logger.Named("market"),
	}
}

// Submit analyzes the prices found in raw. Fewer than MinDataPoints valid prices
// fail locally without a remote call.
func (m *MarketPipeline) Submit(ctx context.Context, raw string) (models.Decision, error) {
	prices := ParsePrices(raw, m.delimiter)
	if len(prices) < MinDataPoints {
		return "", &ValidationError{
			Field:  "prices",
			Reason: fmt.Sprintf("insufficient data points (need at least %d, got %d)", MinDataPoints, len(prices)),
		}
	}

	decision, err := m.gw.AnalyzeMarket(ctx, prices)
	if err != nil {
		return "", remoteErr("analyzeMarket", err)
	}
	m.logger.Info("Decision received", zap.String("decision", string(decision)), zap.Int("points", len(prices)))

	m.state.update(func(s *Snapshot) { s.LastDecision = decision })

	// Analysis may have appended a trade and moved the balance. Failures stay on the entities.
	if err := m.projector.reread(ctx); err != nil {
		m.logger.Warn("Refresh after analysis incomplete", zap.Error(err))
	}

	return decision, nil
}
