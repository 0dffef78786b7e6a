package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/notify"
	"github.com/tidefall-labs/polytrader/internal/strategy"
)

// superviseTick runs one supervision pass over every open position and
// applies whatever each exit strategy decided.
func (e *Engine) superviseTick(ctx context.Context) {
	for id, pos := range e.positions.All() {
		if ctx.Err() != nil {
			return
		}
		if pos.ManualHold {
			continue
		}

		strat := strategy.ForMode(pos.Mode(), e.monitor, e.limits)
		res, err := strat.Tick(ctx, pos)
		if err != nil {
			e.logger.Warn("position tick failed",
				slog.String("token_id", id),
				slog.String("exit_mode", string(pos.Mode())),
				slog.String("error", err.Error()),
			)
		}

		switch {
		case res.ManualReview:
			e.freezePosition(ctx, pos)
		case res.FallbackToMonitor:
			e.downgradeToMonitor(pos)
		case res.Closed:
			e.closePosition(ctx, pos, res)
		}
	}
}

// freezePosition marks a position for operator attention. Nothing automatic
// touches it afterwards; untangling a double fill is a manual job.
func (e *Engine) freezePosition(ctx context.Context, pos domain.Position) {
	e.logger.Error("position frozen for manual review",
		slog.String("token_id", pos.TokenID),
		slog.String("question", pos.Question),
		slog.String("tp_order_id", pos.TPOrderID),
		slog.String("sl_order_id", pos.SLOrderID),
	)

	if err := e.positions.MarkManualHold(pos.TokenID); err != nil {
		e.logger.Error("manual hold persist failed",
			slog.String("token_id", pos.TokenID),
			slog.String("error", err.Error()),
		)
	}

	e.alert(ctx, notify.EventManualReview, "Manual review required",
		fmt.Sprintf("Both exit orders report fills for %s (%s). Automatic supervision stopped.",
			pos.TokenID, pos.Question))
	e.publish(ctx, Event{Type: notify.EventManualReview, TokenID: pos.TokenID})
}

// downgradeToMonitor clears the exit order IDs so the polling strategy takes
// over on the next tick.
func (e *Engine) downgradeToMonitor(pos domain.Position) {
	e.logger.Warn("position downgraded to monitor exits",
		slog.String("token_id", pos.TokenID))

	if err := e.positions.UpdateOrderIDs(pos.TokenID, "", "", domain.ExitModeMonitor); err != nil {
		e.logger.Error("exit mode update failed",
			slog.String("token_id", pos.TokenID),
			slog.String("error", err.Error()),
		)
	}
}

// closePosition records the trade, removes the position, and blacklists the
// token after a stop-loss so the scanner does not re-enter a falling market.
func (e *Engine) closePosition(ctx context.Context, pos domain.Position, res strategy.TickResult) {
	now := e.now().UTC()

	size := res.ExitSize
	if size <= 0 {
		size = pos.FilledSize
	}
	fees := pos.FeesPaid + res.ExitFees

	rec := domain.TradeRecord{
		TokenID:    pos.TokenID,
		Question:   pos.Question,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  res.ExitPrice,
		Size:       size,
		Fees:       fees,
		EntryTime:  pos.EntryTime,
		ExitTime:   now,
		PnL:        domain.RealizedPnL(pos.EntryPrice, res.ExitPrice, size, fees),
		OddsBucket: domain.OddsBucketFor(pos.EntryPrice),
		ExitReason: res.ExitReason,
	}

	e.logger.Info("position closed",
		slog.String("token_id", pos.TokenID),
		slog.String("reason", res.ExitReason),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("exit_price", res.ExitPrice),
		slog.Float64("pnl", rec.PnL),
	)

	if err := e.stats.RecordTrade(rec); err != nil {
		e.logger.Error("stats update failed",
			slog.String("token_id", pos.TokenID),
			slog.String("error", err.Error()),
		)
	}
	if e.journal != nil {
		if err := e.journal.Append(ctx, rec); err != nil {
			e.logger.Warn("trade journal append failed",
				slog.String("token_id", pos.TokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := e.positions.Remove(pos.TokenID); err != nil {
		e.logger.Error("position remove failed",
			slog.String("token_id", pos.TokenID),
			slog.String("error", err.Error()),
		)
	}
	e.feed.Unsubscribe(pos.TokenID)

	if res.ExitReason == "stop_loss" {
		if err := e.blacklist.Block(pos.TokenID, "stop_loss", e.cfg.BlacklistDuration, e.cfg.BlacklistAttempts); err != nil {
			e.logger.Warn("blacklist update failed",
				slog.String("token_id", pos.TokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	e.alert(ctx, notify.EventExit, "Position closed",
		fmt.Sprintf("%s (%s)\n%s at %.4f, PnL %+.2f",
			pos.TokenID, pos.Question, res.ExitReason, res.ExitPrice, rec.PnL))
	e.publish(ctx, Event{
		Type:    notify.EventExit,
		TokenID: pos.TokenID,
		Price:   res.ExitPrice,
		Size:    size,
		PnL:     rec.PnL,
		Reason:  res.ExitReason,
	})
}
