package domain

import (
	"context"
	"time"
)

// PositionStore is the durable record of open positions. There is at most
// one open position per token ID; Add on a held token fails with
// ErrAlreadyExists without mutating state.
type PositionStore interface {
	Add(pos Position) error
	Get(tokenID string) (Position, bool)
	All() map[string]Position
	Remove(tokenID string) error
	UpdateOrderIDs(tokenID, tpOrderID, slOrderID string, mode ExitMode) error
	UpdateFill(tokenID string, filledSize, feesPaid float64) error
	MarkManualHold(tokenID string) error
	Count() int
}

// BlacklistStore is the temporal blacklist of rejected tokens.
type BlacklistStore interface {
	Block(tokenID, reason string, duration time.Duration, maxAttempts int) error
	IsBlacklisted(tokenID string) bool
	Sweep() int
}

// StatsStore accumulates closed-trade statistics.
type StatsStore interface {
	RecordTrade(rec TradeRecord) error
	Stats() TradeStats
	DailyLoss(day time.Time) float64
}

// TradeJournal is an optional append-only sink for closed trades, in
// addition to the aggregate stats document.
type TradeJournal interface {
	Append(ctx context.Context, rec TradeRecord) error
	ListRecent(ctx context.Context, limit int) ([]TradeRecord, error)
}
