// Package executor drives order execution against the venue: entry buys with
// protective exit placement, supervised sells, and the retry and rate-limit
// discipline every venue call goes through.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/strategy"
)

// Config holds the execution parameters.
type Config struct {
	TradeSize         float64
	MinTradeSize      float64
	CapitalReserve    float64
	MinSellPriceRatio float64
	ExitMode          domain.ExitMode

	Attempts          int
	Backoff           time.Duration
	CallTimeout       time.Duration
	MaxCallsPerMinute int
}

// Engine executes entries and exits through a TradingClient. Quotes come
// from the live book feed when it is healthy and fall back to the REST book
// when it is degraded.
type Engine struct {
	client  domain.TradingClient
	feed    domain.BookFeed
	limiter domain.RateLimiter
	cfg     Config
	logger  *slog.Logger
}

// NewEngine creates the execution engine. A nil limiter disables rate
// limiting; callers without Redis pass the in-process limiter instead.
func NewEngine(client domain.TradingClient, feed domain.BookFeed, limiter domain.RateLimiter, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &Engine{
		client:  client,
		feed:    feed,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// BuyWithExits opens a position: a marketable buy at the ask, then the
// protective exit orders per the plan. Exit placement failures degrade the
// position to monitor mode instead of leaving it half-protected; a buy that
// fills nothing is an error and no position is returned.
func (e *Engine) BuyWithExits(ctx context.Context, cand domain.MarketCandidate, plan strategy.ExitPlan, size float64) (domain.Position, error) {
	log := e.logger.With(
		slog.String("token_id", cand.TokenID),
		slog.Float64("price", cand.BestAsk),
		slog.Float64("size", size),
	)
	log.Info("placing entry buy", slog.String("question", cand.Question))

	var buy domain.OrderResult
	err := e.call(ctx, "market buy", func(ctx context.Context) error {
		var err error
		buy, err = e.client.MarketBuy(ctx, domain.BuyParams{
			TokenID: cand.TokenID,
			Price:   cand.BestAsk,
			Size:    size,
		})
		return err
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("executor: entry buy %s: %w", cand.TokenID, err)
	}
	if buy.FilledSize <= 0 {
		return domain.Position{}, fmt.Errorf("executor: entry buy %s: %w", cand.TokenID, domain.ErrZeroFill)
	}

	entryPrice := buy.FilledPrice
	if entryPrice <= 0 {
		entryPrice = cand.BestAsk
	}

	pos := domain.Position{
		TokenID:    cand.TokenID,
		Question:   cand.Question,
		EntryPrice: entryPrice,
		Size:       size,
		FilledSize: buy.FilledSize,
		EntryTime:  time.Now().UTC(),
		TakeProfit: plan.TakeProfit,
		StopLoss:   plan.StopLoss,
		FeesPaid:   buy.FeeUSD,
		OrderID:    buy.OrderID,
		ExitMode:   domain.ExitModeMonitor,
	}

	log.Info("entry filled",
		slog.Float64("filled_size", buy.FilledSize),
		slog.Float64("entry_price", entryPrice),
		slog.Float64("tp", plan.TakeProfit),
		slog.Float64("sl", plan.StopLoss),
	)

	if e.cfg.ExitMode != domain.ExitModeLimitOrders {
		return pos, nil
	}

	tpID, slID, err := e.placeExitOrders(ctx, pos)
	if err != nil {
		// Position stays open in monitor mode; the polling exit covers it.
		log.Warn("exit order placement failed, position downgraded to monitor",
			slog.String("error", err.Error()))
		return pos, nil
	}

	pos.TPOrderID = tpID
	pos.SLOrderID = slID
	pos.ExitMode = domain.ExitModeLimitOrders
	return pos, nil
}

// placeExitOrders rests the TP and SL legs as GTC limit sells. If the SL leg
// fails after the TP leg rested, the TP leg is cancelled so the book never
// carries exactly one side of the protection.
func (e *Engine) placeExitOrders(ctx context.Context, pos domain.Position) (tpID, slID string, err error) {
	tp, err := e.limitSell(ctx, "tp order", pos.TokenID, pos.TakeProfit, pos.FilledSize)
	if err != nil {
		return "", "", err
	}

	sl, err := e.limitSell(ctx, "sl order", pos.TokenID, pos.StopLoss, pos.FilledSize)
	if err != nil {
		cancelErr := e.CancelOrder(ctx, tp.OrderID)
		if cancelErr != nil {
			e.logger.Error("tp order cancel after sl failure also failed",
				slog.String("token_id", pos.TokenID),
				slog.String("tp_order_id", tp.OrderID),
				slog.String("error", cancelErr.Error()),
			)
		}
		return "", "", err
	}

	return tp.OrderID, sl.OrderID, nil
}

func (e *Engine) limitSell(ctx context.Context, op, tokenID string, price, size float64) (domain.OrderResult, error) {
	var res domain.OrderResult
	err := e.call(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = e.client.LimitSell(ctx, domain.LimitSellParams{
			TokenID: tokenID,
			Price:   price,
			Size:    size,
		})
		return err
	})
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("executor: %s %s: %w", op, tokenID, err)
	}
	if !res.Success || res.OrderID == "" {
		return domain.OrderResult{}, fmt.Errorf("executor: %s %s: rejected: %s: %w", op, tokenID, res.Message, domain.ErrInvalidOrder)
	}
	return res, nil
}

// SellMarket implements strategy.Execution. The minimum-sell-price floor
// blocks panic sells into a collapsed book; only the emergency (stop-loss)
// path may cross it.
func (e *Engine) SellMarket(ctx context.Context, pos domain.Position, bestBid float64, emergency bool) (domain.OrderResult, error) {
	floor := pos.EntryPrice * e.cfg.MinSellPriceRatio
	if !emergency && bestBid < floor {
		return domain.OrderResult{}, fmt.Errorf(
			"executor: sell %s: bid %.4f below floor %.4f: %w",
			pos.TokenID, bestBid, floor, domain.ErrInvalidOrder,
		)
	}

	var res domain.OrderResult
	err := e.call(ctx, "market sell", func(ctx context.Context) error {
		var err error
		res, err = e.client.MarketSell(ctx, domain.SellParams{
			TokenID:   pos.TokenID,
			Price:     bestBid,
			Size:      pos.FilledSize,
			Emergency: emergency,
		})
		return err
	})
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("executor: sell %s: %w", pos.TokenID, err)
	}
	return res, nil
}

// CheckOrderStatus implements strategy.Execution.
func (e *Engine) CheckOrderStatus(ctx context.Context, orderID string) (domain.OrderStatusReport, error) {
	var rep domain.OrderStatusReport
	err := e.call(ctx, "order status", func(ctx context.Context) error {
		var err error
		rep, err = e.client.OrderStatus(ctx, orderID)
		return err
	})
	if err != nil {
		return domain.OrderStatusReport{}, fmt.Errorf("executor: order status %s: %w", orderID, err)
	}
	return rep, nil
}

// CancelOrder implements strategy.Execution.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	err := e.call(ctx, "cancel order", func(ctx context.Context) error {
		return e.client.CancelOrder(ctx, orderID)
	})
	if err != nil {
		return fmt.Errorf("executor: cancel %s: %w", orderID, err)
	}
	return nil
}

// CurrentBestBid implements strategy.Execution: the cached feed snapshot
// when the feed is healthy, otherwise the REST book.
func (e *Engine) CurrentBestBid(ctx context.Context, tokenID string) (float64, error) {
	if e.feed != nil && !e.feed.Degraded() {
		if snap, ok := e.feed.Latest(tokenID); ok && snap.BestBid > 0 {
			return snap.BestBid, nil
		}
	}

	var bid float64
	err := e.call(ctx, "best bid", func(ctx context.Context) error {
		var err error
		bid, err = e.client.BestBid(ctx, tokenID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("executor: best bid %s: %w", tokenID, err)
	}
	if bid <= 0 {
		return 0, fmt.Errorf("executor: best bid %s: %w", tokenID, domain.ErrNoData)
	}
	return bid, nil
}

// Balance reads the collateral balance through the retry wrapper.
func (e *Engine) Balance(ctx context.Context) (float64, error) {
	var bal float64
	err := e.call(ctx, "balance", func(ctx context.Context) error {
		var err error
		bal, err = e.client.Balance(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("executor: balance: %w", err)
	}
	return bal, nil
}

var _ strategy.Execution = (*Engine)(nil)
