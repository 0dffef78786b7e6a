package domain

import "context"

// BuyParams describes a marketable buy request.
type BuyParams struct {
	TokenID string
	Price   float64 // limit price for the marketable order
	Size    float64
}

// SellParams describes a marketable sell request. Emergency bypasses the
// minimum-sell-price floor; it is set only on the stop-loss path.
type SellParams struct {
	TokenID   string
	Price     float64
	Size      float64
	Emergency bool
}

// LimitSellParams describes a resting GTC limit sell used for exit orders.
type LimitSellParams struct {
	TokenID string
	Price   float64
	Size    float64
}

// TradingClient is the venue surface the execution engine drives. Concrete
// request shapes belong to the CLOB client behind this interface.
type TradingClient interface {
	MarketBuy(ctx context.Context, p BuyParams) (OrderResult, error)
	MarketSell(ctx context.Context, p SellParams) (OrderResult, error)
	LimitSell(ctx context.Context, p LimitSellParams) (OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	OrderStatus(ctx context.Context, orderID string) (OrderStatusReport, error)
	Balance(ctx context.Context) (float64, error)
	BestBid(ctx context.Context, tokenID string) (float64, error)
}

// DiscoveryClient supplies candidate markets enriched with volume and
// liquidity data for scoring.
type DiscoveryClient interface {
	ActiveMarkets(ctx context.Context, limit int) ([]MarketCandidate, error)
}
