package domain

import (
	"fmt"
	"time"
)

// TradeRecord is the append-only record of one closed position.
type TradeRecord struct {
	TokenID    string    `json:"token_id"`
	Question   string    `json:"question,omitempty"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	Fees       float64   `json:"fees"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	PnL        float64   `json:"pnl"`
	OddsBucket string    `json:"odds_bucket"` // e.g. "0.60-0.70", tagged from entry price
	ExitReason string    `json:"exit_reason"` // "take_profit", "stop_loss", ...
}

// RealizedPnL computes (exit-entry)*size minus fees.
func RealizedPnL(entry, exit, size, fees float64) float64 {
	return (exit-entry)*size - fees
}

// OddsBucketFor tags an entry price with its 0.10-wide probability bucket.
func OddsBucketFor(entryPrice float64) string {
	lo := float64(int(entryPrice*10)) / 10
	return fmt.Sprintf("%.2f-%.2f", lo, lo+0.1)
}

// LifetimeStats aggregates every closed trade since the stats file was
// created.
type LifetimeStats struct {
	TotalTrades      int     `json:"total_trades"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	WinRate          float64 `json:"win_rate"`
	TotalPnL         float64 `json:"total_pnl"`
	ROI              float64 `json:"roi"`
	TotalFees        float64 `json:"total_fees"`
	TotalInvested    float64 `json:"total_invested"`
	AvgHoldTimeHours float64 `json:"avg_hold_time_hours"`
}

// DayStats aggregates closed trades for one calendar day.
type DayStats struct {
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	PnL    float64 `json:"pnl"`
	Fees   float64 `json:"fees"`
}

// BucketStats aggregates closed trades per entry-odds bucket.
type BucketStats struct {
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	PnL    float64 `json:"pnl"`
}

// TradeStats is the persisted statistics document.
type TradeStats struct {
	Lifetime LifetimeStats          `json:"lifetime"`
	Daily    map[string]DayStats    `json:"daily"`    // keyed by "2006-01-02"
	ByOdds   map[string]BucketStats `json:"by_odds"`  // keyed by odds bucket
}

// DayKey formats t as the daily-stats map key.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
