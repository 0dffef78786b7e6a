package strategy

import (
	"context"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// Execution is the slice of the execution engine the exit strategies drive.
type Execution interface {
	// CheckOrderStatus polls the venue state of one order.
	CheckOrderStatus(ctx context.Context, orderID string) (domain.OrderStatusReport, error)
	// CancelOrder cancels a resting order.
	CancelOrder(ctx context.Context, orderID string) error
	// SellMarket executes a marketable sell for the position's filled size.
	// emergency bypasses the minimum-sell-price floor; only the stop-loss
	// path sets it.
	SellMarket(ctx context.Context, pos domain.Position, bestBid float64, emergency bool) (domain.OrderResult, error)
	// CurrentBestBid reads the best bid, from the feed cache when live or
	// the REST book when the feed is degraded.
	CurrentBestBid(ctx context.Context, tokenID string) (float64, error)
}

// TickResult reports what one supervision pass decided for a position.
// Exactly one of the flags is meaningful: Closed carries the exit fields,
// ManualReview freezes the position for operator attention, and
// FallbackToMonitor downgrades the exit mode.
type TickResult struct {
	Closed     bool
	ExitPrice  float64
	ExitSize   float64
	ExitFees   float64
	ExitReason string // "take_profit" or "stop_loss"

	ManualReview      bool
	FallbackToMonitor bool
}

// Hold is the no-op result: the position stays open untouched.
var Hold = TickResult{}

// ExitStrategy supervises one open position per fast tick. Implementations
// never mutate the store; the orchestrator applies the returned result.
type ExitStrategy interface {
	// Mode is the domain exit mode this strategy implements.
	Mode() domain.ExitMode
	// Tick evaluates the position once and reports the outcome.
	Tick(ctx context.Context, pos domain.Position) (TickResult, error)
}

// ForMode returns the strategy matching a position's exit mode. Unknown
// modes fall back to the monitor strategy, which needs no order IDs.
func ForMode(mode domain.ExitMode, monitor, limits ExitStrategy) ExitStrategy {
	if mode == domain.ExitModeLimitOrders {
		return limits
	}
	return monitor
}
