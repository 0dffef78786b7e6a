package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// LimitOrderExit supervises a position protected by resting TP and SL limit
// orders. Each tick polls both legs; when one fills, the other is cancelled
// before the position is closed so no one-sided exposure survives.
type LimitOrderExit struct {
	exec   Execution
	logger *slog.Logger
}

// NewLimitOrderExit creates the resting-order exit strategy.
func NewLimitOrderExit(exec Execution, logger *slog.Logger) *LimitOrderExit {
	return &LimitOrderExit{
		exec:   exec,
		logger: logger.With(slog.String("component", "limit_order_exit")),
	}
}

// Mode implements ExitStrategy.
func (l *LimitOrderExit) Mode() domain.ExitMode { return domain.ExitModeLimitOrders }

// Tick polls both exit legs. Fill handling follows a strict order: confirm
// the winning leg, cancel the losing leg, and only then report the close. A
// cancel failure forces a re-check of the losing leg; if it also filled,
// that is a double fill, which is never reconciled automatically.
func (l *LimitOrderExit) Tick(ctx context.Context, pos domain.Position) (TickResult, error) {
	if pos.TPOrderID == "" && pos.SLOrderID == "" {
		// No resting protection; downgrade so the polling path covers it.
		l.logger.Warn("limit-order position has no exit orders, falling back to monitor",
			slog.String("token_id", pos.TokenID))
		return TickResult{FallbackToMonitor: true}, nil
	}

	tp, err := l.legStatus(ctx, pos.TPOrderID)
	if err != nil {
		return Hold, fmt.Errorf("strategy/limits: tp status %s: %w", pos.TokenID, err)
	}
	sl, err := l.legStatus(ctx, pos.SLOrderID)
	if err != nil {
		return Hold, fmt.Errorf("strategy/limits: sl status %s: %w", pos.TokenID, err)
	}

	tpFilled := legFilled(tp)
	slFilled := legFilled(sl)

	switch {
	case tpFilled && slFilled:
		// Both legs report fills in the same poll: fatal for this position.
		l.logBothFilled(pos, tp, sl)
		return TickResult{ManualReview: true}, nil

	case tpFilled:
		return l.closeLeg(ctx, pos, tp, sl, "take_profit")

	case slFilled:
		return l.closeLeg(ctx, pos, sl, tp, "stop_loss")
	}

	// Both legs cancelled externally leaves the position unprotected.
	if bothGone(tp, sl) {
		l.logger.Warn("both exit orders cancelled externally, falling back to monitor",
			slog.String("token_id", pos.TokenID))
		return TickResult{FallbackToMonitor: true}, nil
	}

	return Hold, nil
}

// legStatus polls one leg, tolerating a missing order ID.
func (l *LimitOrderExit) legStatus(ctx context.Context, orderID string) (domain.OrderStatusReport, error) {
	if orderID == "" {
		return domain.OrderStatusReport{State: domain.OrderStateUnknown}, nil
	}
	return l.exec.CheckOrderStatus(ctx, orderID)
}

// closeLeg cancels the losing leg and reports the winning leg's fill. If the
// cancel fails, the losing leg is re-checked before the close is trusted.
func (l *LimitOrderExit) closeLeg(ctx context.Context, pos domain.Position, won, lost domain.OrderStatusReport, reason string) (TickResult, error) {
	if lost.OrderID != "" && lost.State.Resting() {
		if err := l.exec.CancelOrder(ctx, lost.OrderID); err != nil {
			l.logger.Warn("cancel of losing exit leg failed, re-checking",
				slog.String("token_id", pos.TokenID),
				slog.String("order_id", lost.OrderID),
				slog.String("error", err.Error()),
			)

			recheck, rerr := l.exec.CheckOrderStatus(ctx, lost.OrderID)
			if rerr != nil {
				// Can't confirm safety; hold and retry the whole tick.
				return Hold, fmt.Errorf("strategy/limits: recheck %s after failed cancel: %w", lost.OrderID, rerr)
			}
			if legFilled(recheck) {
				l.logBothFilled(pos, won, recheck)
				return TickResult{ManualReview: true}, nil
			}
			if recheck.State.Resting() {
				// Still resting and still uncancelled; retry next tick
				// rather than closing with a live order on the book.
				return Hold, fmt.Errorf("strategy/limits: leg %s still resting after failed cancel: %w", lost.OrderID, err)
			}
		}
	}

	size := won.FilledSize
	if size <= 0 {
		size = pos.FilledSize
	}

	l.logger.Info("exit order filled",
		slog.String("token_id", pos.TokenID),
		slog.String("reason", reason),
		slog.Float64("exit_price", won.AvgPrice),
		slog.Float64("size", size),
	)

	return TickResult{
		Closed:     true,
		ExitPrice:  won.AvgPrice,
		ExitSize:   size,
		ExitFees:   won.FeeUSD,
		ExitReason: reason,
	}, nil
}

func (l *LimitOrderExit) logBothFilled(pos domain.Position, a, b domain.OrderStatusReport) {
	l.logger.Error("both exit orders filled, manual review required",
		slog.String("token_id", pos.TokenID),
		slog.String("tp_order_id", pos.TPOrderID),
		slog.String("sl_order_id", pos.SLOrderID),
		slog.Float64("fill_a", a.FilledSize),
		slog.Float64("fill_b", b.FilledSize),
	)
}

// legFilled reports whether a leg has (at least partially) executed.
func legFilled(r domain.OrderStatusReport) bool {
	return r.State == domain.OrderStateFilled ||
		(r.State == domain.OrderStatePartial && r.FilledSize > 0)
}

// bothGone reports whether both legs are cancelled or missing.
func bothGone(tp, sl domain.OrderStatusReport) bool {
	gone := func(r domain.OrderStatusReport) bool {
		return r.State == domain.OrderStateCancelled ||
			(r.OrderID == "" && r.State == domain.OrderStateUnknown)
	}
	return gone(tp) && gone(sl)
}
