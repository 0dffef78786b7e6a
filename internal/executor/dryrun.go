package executor

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

const dryOrderPrefix = "dry-"

// DryRunClient simulates order placement while delegating read-only calls to
// the real venue client. Buys and sells fill instantly and completely at the
// requested price; resting orders stay open until cancelled. Balance starts
// from a simulated bankroll and tracks simulated fills.
type DryRunClient struct {
	real   domain.TradingClient
	logger *slog.Logger

	mu      sync.Mutex
	balance float64
	resting map[string]domain.LimitSellParams
}

// NewDryRunClient wraps the real client with simulated execution.
func NewDryRunClient(real domain.TradingClient, startBalance float64, logger *slog.Logger) *DryRunClient {
	return &DryRunClient{
		real:    real,
		logger:  logger.With(slog.String("component", "dry_run")),
		balance: startBalance,
		resting: make(map[string]domain.LimitSellParams),
	}
}

func dryOrderID() string {
	return dryOrderPrefix + uuid.NewString()
}

// MarketBuy simulates a complete fill at the requested price.
func (c *DryRunClient) MarketBuy(ctx context.Context, p domain.BuyParams) (domain.OrderResult, error) {
	c.mu.Lock()
	c.balance -= p.Price * p.Size
	c.mu.Unlock()

	id := dryOrderID()
	c.logger.Info("simulated buy",
		slog.String("token_id", p.TokenID),
		slog.Float64("price", p.Price),
		slog.Float64("size", p.Size),
		slog.String("order_id", id),
	)
	return domain.OrderResult{
		Success:     true,
		OrderID:     id,
		FilledSize:  p.Size,
		FilledPrice: p.Price,
	}, nil
}

// MarketSell simulates a complete fill at the requested price.
func (c *DryRunClient) MarketSell(ctx context.Context, p domain.SellParams) (domain.OrderResult, error) {
	c.mu.Lock()
	c.balance += p.Price * p.Size
	c.mu.Unlock()

	id := dryOrderID()
	c.logger.Info("simulated sell",
		slog.String("token_id", p.TokenID),
		slog.Float64("price", p.Price),
		slog.Float64("size", p.Size),
		slog.Bool("emergency", p.Emergency),
		slog.String("order_id", id),
	)
	return domain.OrderResult{
		Success:     true,
		OrderID:     id,
		FilledSize:  p.Size,
		FilledPrice: p.Price,
	}, nil
}

// LimitSell simulates a resting order that never fills on its own.
func (c *DryRunClient) LimitSell(ctx context.Context, p domain.LimitSellParams) (domain.OrderResult, error) {
	id := dryOrderID()
	c.mu.Lock()
	c.resting[id] = p
	c.mu.Unlock()

	c.logger.Info("simulated limit sell",
		slog.String("token_id", p.TokenID),
		slog.Float64("price", p.Price),
		slog.Float64("size", p.Size),
		slog.String("order_id", id),
	)
	return domain.OrderResult{Success: true, OrderID: id}, nil
}

// CancelOrder removes a simulated resting order; real order IDs delegate.
func (c *DryRunClient) CancelOrder(ctx context.Context, orderID string) error {
	if !strings.HasPrefix(orderID, dryOrderPrefix) {
		return c.real.CancelOrder(ctx, orderID)
	}
	c.mu.Lock()
	delete(c.resting, orderID)
	c.mu.Unlock()
	c.logger.Info("simulated cancel", slog.String("order_id", orderID))
	return nil
}

// OrderStatus reports simulated orders as open while resting and cancelled
// after removal; real order IDs delegate.
func (c *DryRunClient) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatusReport, error) {
	if !strings.HasPrefix(orderID, dryOrderPrefix) {
		return c.real.OrderStatus(ctx, orderID)
	}
	c.mu.Lock()
	_, resting := c.resting[orderID]
	c.mu.Unlock()

	state := domain.OrderStateCancelled
	if resting {
		state = domain.OrderStateOpen
	}
	return domain.OrderStatusReport{OrderID: orderID, State: state}, nil
}

// Balance returns the simulated bankroll.
func (c *DryRunClient) Balance(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance, nil
}

// BestBid delegates to the real client.
func (c *DryRunClient) BestBid(ctx context.Context, tokenID string) (float64, error) {
	return c.real.BestBid(ctx, tokenID)
}

var _ domain.TradingClient = (*DryRunClient)(nil)
