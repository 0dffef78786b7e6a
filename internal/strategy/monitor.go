package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// MonitorExit supervises a position by polling the best bid and firing
// marketable sells when the TP or SL threshold is crossed. It is the legacy
// path and the fallback when exit-order placement fails.
type MonitorExit struct {
	exec   Execution
	logger *slog.Logger
}

// NewMonitorExit creates the polling exit strategy.
func NewMonitorExit(exec Execution, logger *slog.Logger) *MonitorExit {
	return &MonitorExit{
		exec:   exec,
		logger: logger.With(slog.String("component", "monitor_exit")),
	}
}

// Mode implements ExitStrategy.
func (m *MonitorExit) Mode() domain.ExitMode { return domain.ExitModeMonitor }

// Tick reads the current best bid and sells when it crosses either exit
// threshold. The stop-loss sell carries the emergency flag: cutting the loss
// is the point, so the minimum-sell-price floor must not block it.
func (m *MonitorExit) Tick(ctx context.Context, pos domain.Position) (TickResult, error) {
	bid, err := m.exec.CurrentBestBid(ctx, pos.TokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			return Hold, nil // no quote yet; try again next tick
		}
		return Hold, fmt.Errorf("strategy/monitor: best bid %s: %w", pos.TokenID, err)
	}
	if bid <= 0 {
		return Hold, nil
	}

	switch {
	case bid >= pos.TakeProfit:
		return m.sell(ctx, pos, bid, "take_profit", false)
	case bid <= pos.StopLoss:
		return m.sell(ctx, pos, bid, "stop_loss", true)
	default:
		return Hold, nil
	}
}

func (m *MonitorExit) sell(ctx context.Context, pos domain.Position, bid float64, reason string, emergency bool) (TickResult, error) {
	m.logger.Info("exit threshold crossed",
		slog.String("token_id", pos.TokenID),
		slog.String("reason", reason),
		slog.Float64("best_bid", bid),
		slog.Float64("tp", pos.TakeProfit),
		slog.Float64("sl", pos.StopLoss),
	)

	result, err := m.exec.SellMarket(ctx, pos, bid, emergency)
	if err != nil {
		return Hold, fmt.Errorf("strategy/monitor: sell %s (%s): %w", pos.TokenID, reason, err)
	}
	if result.FilledSize <= 0 {
		// Nothing crossed; the position stays open and the next tick
		// re-evaluates against a fresh bid.
		return Hold, fmt.Errorf("strategy/monitor: sell %s (%s): %w", pos.TokenID, reason, domain.ErrZeroFill)
	}

	exitPrice := result.FilledPrice
	if exitPrice <= 0 {
		exitPrice = bid
	}

	return TickResult{
		Closed:     true,
		ExitPrice:  exitPrice,
		ExitSize:   result.FilledSize,
		ExitFees:   result.FeeUSD,
		ExitReason: reason,
	}, nil
}
