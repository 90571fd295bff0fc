package models

import "time"

// TradeLog is a single entry of the remote service's append-only trade history.
type TradeLog struct {
	Timestamp uint64  `json:"timestamp"` // nanoseconds since the Unix epoch
	Action    string  `json:"action"`    // "BUY", "SELL" or "HOLD"
	Reason    string  `json:"reason"`
	Price     float64 `json:"price"`
}

// Time converts the nanosecond timestamp to wall-clock time.
func (t TradeLog) Time() time.Time {
	return time.Unix(0, int64(t.Timestamp))
}

// Decision is the remote service's textual answer to an analysis request.
type Decision string
