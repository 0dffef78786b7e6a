package domain

import "time"

// ExitMode selects how an open position is protected: resting limit orders
// on the book, or active price polling with market-order exits.
type ExitMode string

const (
	ExitModeMonitor     ExitMode = "monitor"
	ExitModeLimitOrders ExitMode = "limit_orders"
)

// Position is one open directional bet on a binary-market token. Positions
// are keyed by token ID; the store enforces at most one per token.
//
// The JSON tags define the persisted schema. Fields added after the first
// release (exit_mode, the exit order IDs) must keep defaulting cleanly when
// absent from older state files.
type Position struct {
	TokenID     string    `json:"token_id"`
	Question    string    `json:"question,omitempty"`
	EntryPrice  float64   `json:"entry_price"`
	Size        float64   `json:"size"`
	FilledSize  float64   `json:"filled_size"`
	EntryTime   time.Time `json:"entry_time"`
	TakeProfit  float64   `json:"tp"`
	StopLoss    float64   `json:"sl"`
	FeesPaid    float64   `json:"fees_paid"`
	OrderID     string    `json:"order_id"`
	TPOrderID   string    `json:"tp_order_id,omitempty"`
	SLOrderID   string    `json:"sl_order_id,omitempty"`
	ExitMode    ExitMode  `json:"exit_mode,omitempty"`
	ManualHold  bool      `json:"manual_hold,omitempty"` // set on double-fill, blocks automatic exits
}

// Mode returns the effective exit mode, defaulting legacy records that
// predate the exit_mode field to monitor.
func (p Position) Mode() ExitMode {
	if p.ExitMode == "" {
		return ExitModeMonitor
	}
	return p.ExitMode
}

// HoldDuration reports how long the position has been open.
func (p Position) HoldDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
