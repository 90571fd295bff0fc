package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// BotStatus mirrors the remote bot's running state.
type BotStatus bool

const (
	Stopped BotStatus = false
	Running BotStatus = true
)

func (s BotStatus) String() string {
	if s == Running {
		return "Running"
	}
	return "Stopped"
}

// ToggleLabel is the label of the action that flips the current status.
func (s BotStatus) ToggleLabel() string {
	if s == Running {
		return "Stop Bot"
	}
	return "Start Bot"
}

// BotConfig is the remote bot's strategy configuration.
type BotConfig struct {
	Strategy  string  `json:"strategy"`
	Threshold float64 `json:"threshold"`
}

// Balance is the remote service's simulated account balance.
type Balance struct {
	Value float64 `json:"value"`
}

// DisplayPrecision is the number of decimals a balance is shown with.
const DisplayPrecision = 2

// Display rounds half away from zero to DisplayPrecision decimals.
// Value is left untouched.
func (b Balance) Display() string {
	if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(b.Value).StringFixed(DisplayPrecision)
}

// Rounded is the numeric form of Display.
func (b Balance) Rounded() float64 {
	if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) {
		return b.Value
	}
	return decimal.NewFromFloat(b.Value).Round(DisplayPrecision).InexactFloat64()
}
