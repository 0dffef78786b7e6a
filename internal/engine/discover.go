package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/notify"
	"github.com/tidefall-labs/polytrader/internal/strategy"
)

// discoverTick runs one discovery pass: gates, scan, score, and at most one
// entry. The gates restrict only new entries; supervision of open positions
// keeps running whatever their state.
func (e *Engine) discoverTick(ctx context.Context) {
	if !e.entryAllowed() {
		return
	}

	balance, err := e.exec.Balance(ctx)
	if err != nil {
		e.logger.Warn("balance check failed, skipping discovery",
			slog.String("error", err.Error()))
		return
	}
	size, err := e.exec.PositionSize(balance)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			e.logger.Debug("insufficient balance for a new entry",
				slog.Float64("balance", balance))
		} else {
			e.logger.Warn("position sizing failed", slog.String("error", err.Error()))
		}
		return
	}

	candidates, err := e.discovery.ActiveMarkets(ctx, e.cfg.ScanLimit)
	if err != nil {
		e.logger.Warn("market scan failed", slog.String("error", err.Error()))
		return
	}

	best, ok := e.scorer.PickBest(candidates)
	if !ok {
		e.logger.Debug("no candidate passed the filters",
			slog.Int("scanned", len(candidates)))
		return
	}

	e.enter(ctx, best, size)
}

// entryAllowed evaluates the new-entry gates: position cap, cooldown since
// the last entry, and the daily loss cap.
func (e *Engine) entryAllowed() bool {
	if count := e.positions.Count(); count >= e.cfg.MaxPositions {
		e.logger.Debug("position cap reached", slog.Int("open", count))
		return false
	}

	e.mu.Lock()
	last := e.lastEntry
	e.mu.Unlock()
	if !last.IsZero() {
		if since := e.now().Sub(last); since < e.cfg.Cooldown {
			e.logger.Debug("entry cooldown active",
				slog.Duration("since_last_entry", since))
			return false
		}
	}

	if loss := e.stats.DailyLoss(e.now().UTC()); loss >= e.cfg.DailyLossLimit {
		e.logger.Warn("daily loss cap reached, no new entries today",
			slog.Float64("loss", loss),
			slog.Float64("limit", e.cfg.DailyLossLimit),
		)
		return false
	}

	return true
}

// enter plans the exits and opens the position. A candidate whose ask price
// no exit bucket covers is skipped; the buy never happens without a plan.
func (e *Engine) enter(ctx context.Context, cand domain.MarketCandidate, size float64) {
	plan, err := strategy.PlanExits(cand.BestAsk, e.buckets)
	if err != nil {
		e.logger.Error("exit planning failed, entry skipped",
			slog.String("token_id", cand.TokenID),
			slog.Float64("ask", cand.BestAsk),
			slog.String("error", err.Error()),
		)
		return
	}

	pos, err := e.exec.BuyWithExits(ctx, cand, plan, size)
	if err != nil {
		e.logger.Warn("entry failed",
			slog.String("token_id", cand.TokenID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := e.positions.Add(pos); err != nil {
		// The buy went through but the position could not be recorded.
		// That is operator territory; nothing here can safely undo a fill.
		e.logger.Error("position record failed after fill",
			slog.String("token_id", pos.TokenID),
			slog.String("order_id", pos.OrderID),
			slog.String("error", err.Error()),
		)
		e.alert(ctx, notify.EventManualReview, "Unrecorded fill",
			fmt.Sprintf("Entry for %s filled (order %s) but could not be recorded: %v",
				pos.TokenID, pos.OrderID, err))
		return
	}

	e.feed.Subscribe(pos.TokenID)

	e.mu.Lock()
	e.lastEntry = e.now()
	e.mu.Unlock()

	e.alert(ctx, notify.EventEntry, "Position opened",
		fmt.Sprintf("%s (%s)\nentry %.4f, size %.2f, tp %.4f, sl %.4f, score %.1f",
			pos.TokenID, pos.Question, pos.EntryPrice, pos.FilledSize,
			pos.TakeProfit, pos.StopLoss, cand.Score))
	e.publish(ctx, Event{
		Type:    notify.EventEntry,
		TokenID: pos.TokenID,
		Price:   pos.EntryPrice,
		Size:    pos.FilledSize,
	})
}
