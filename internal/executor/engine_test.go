package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/strategy"
)

// fakeClient scripts the venue for engine tests.
type fakeClient struct {
	buyResult  domain.OrderResult
	buyErr     error
	buyErrs    []error // consumed one per call before buyErr applies
	buyCalls   int
	sellResult domain.OrderResult
	sellErr    error
	sellCalls  []domain.SellParams
	limitFn    func(p domain.LimitSellParams) (domain.OrderResult, error)
	limitCalls []domain.LimitSellParams
	cancelErr  error
	cancelled  []string
	status     domain.OrderStatusReport
	balance    float64
	bestBid    float64
	bestBidErr error
}

func (f *fakeClient) MarketBuy(_ context.Context, p domain.BuyParams) (domain.OrderResult, error) {
	f.buyCalls++
	if len(f.buyErrs) > 0 {
		err := f.buyErrs[0]
		f.buyErrs = f.buyErrs[1:]
		if err != nil {
			return domain.OrderResult{}, err
		}
		return f.buyResult, nil
	}
	if f.buyErr != nil {
		return domain.OrderResult{}, f.buyErr
	}
	return f.buyResult, nil
}

func (f *fakeClient) MarketSell(_ context.Context, p domain.SellParams) (domain.OrderResult, error) {
	f.sellCalls = append(f.sellCalls, p)
	if f.sellErr != nil {
		return domain.OrderResult{}, f.sellErr
	}
	return f.sellResult, nil
}

func (f *fakeClient) LimitSell(_ context.Context, p domain.LimitSellParams) (domain.OrderResult, error) {
	f.limitCalls = append(f.limitCalls, p)
	if f.limitFn != nil {
		return f.limitFn(p)
	}
	return domain.OrderResult{Success: true, OrderID: "limit-1"}, nil
}

func (f *fakeClient) CancelOrder(_ context.Context, orderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeClient) OrderStatus(_ context.Context, _ string) (domain.OrderStatusReport, error) {
	return f.status, nil
}

func (f *fakeClient) Balance(_ context.Context) (float64, error) { return f.balance, nil }

func (f *fakeClient) BestBid(_ context.Context, _ string) (float64, error) {
	return f.bestBid, f.bestBidErr
}

// fakeFeed serves cached snapshots for CurrentBestBid tests.
type fakeFeed struct {
	snaps    map[string]domain.OrderbookSnapshot
	degraded bool
}

func (f *fakeFeed) Subscribe(...string)   {}
func (f *fakeFeed) Unsubscribe(...string) {}
func (f *fakeFeed) Latest(tokenID string) (domain.OrderbookSnapshot, bool) {
	s, ok := f.snaps[tokenID]
	return s, ok
}
func (f *fakeFeed) OnUpdate(func(domain.OrderbookSnapshot)) {}
func (f *fakeFeed) Degraded() bool                          { return f.degraded }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		TradeSize:         10,
		MinTradeSize:      1,
		CapitalReserve:    5,
		MinSellPriceRatio: 0.5,
		ExitMode:          domain.ExitModeLimitOrders,
		Attempts:          3,
		Backoff:           time.Millisecond,
		CallTimeout:       time.Second,
	}
}

func testCandidate() domain.MarketCandidate {
	return domain.MarketCandidate{
		TokenID:  "token-1",
		Question: "Will it resolve yes?",
		BestBid:  0.44,
		BestAsk:  0.45,
	}
}

func testPlan() strategy.ExitPlan {
	return strategy.ExitPlan{TakeProfit: 0.5175, StopLoss: 0.396, Bucket: "0.40-0.50"}
}

func TestBuyWithExits_PlacesBothLegs(t *testing.T) {
	client := &fakeClient{
		buyResult: domain.OrderResult{Success: true, OrderID: "buy-1", FilledSize: 22.2, FilledPrice: 0.451, FeeUSD: 0.02},
	}
	orderIDs := []string{"tp-1", "sl-1"}
	client.limitFn = func(p domain.LimitSellParams) (domain.OrderResult, error) {
		id := orderIDs[0]
		orderIDs = orderIDs[1:]
		return domain.OrderResult{Success: true, OrderID: id}, nil
	}

	e := NewEngine(client, nil, nil, testConfig(), testLogger())
	pos, err := e.BuyWithExits(context.Background(), testCandidate(), testPlan(), 10)
	if err != nil {
		t.Fatalf("BuyWithExits: %v", err)
	}

	if pos.EntryPrice != 0.451 || pos.FilledSize != 22.2 {
		t.Errorf("position entry = %g/%g, want 0.451/22.2", pos.EntryPrice, pos.FilledSize)
	}
	if pos.ExitMode != domain.ExitModeLimitOrders {
		t.Errorf("ExitMode = %q, want limit_orders", pos.ExitMode)
	}
	if pos.TPOrderID != "tp-1" || pos.SLOrderID != "sl-1" {
		t.Errorf("order IDs = %q/%q, want tp-1/sl-1", pos.TPOrderID, pos.SLOrderID)
	}

	if len(client.limitCalls) != 2 {
		t.Fatalf("limit sells = %d, want 2", len(client.limitCalls))
	}
	if client.limitCalls[0].Price != 0.5175 || client.limitCalls[1].Price != 0.396 {
		t.Errorf("leg prices = %g/%g, want tp then sl", client.limitCalls[0].Price, client.limitCalls[1].Price)
	}
	if client.limitCalls[0].Size != 22.2 {
		t.Errorf("leg size = %g, want the confirmed fill 22.2", client.limitCalls[0].Size)
	}
}

func TestBuyWithExits_ZeroFillIsError(t *testing.T) {
	client := &fakeClient{buyResult: domain.OrderResult{Success: true, OrderID: "buy-1", FilledSize: 0}}
	e := NewEngine(client, nil, nil, testConfig(), testLogger())

	_, err := e.BuyWithExits(context.Background(), testCandidate(), testPlan(), 10)
	if !errors.Is(err, domain.ErrZeroFill) {
		t.Fatalf("err = %v, want ErrZeroFill", err)
	}
	if len(client.limitCalls) != 0 {
		t.Error("no exit orders may be placed after a zero fill")
	}
}

func TestBuyWithExits_TPFailureDowngradesToMonitor(t *testing.T) {
	client := &fakeClient{
		buyResult: domain.OrderResult{Success: true, OrderID: "buy-1", FilledSize: 22.2, FilledPrice: 0.45},
	}
	client.limitFn = func(p domain.LimitSellParams) (domain.OrderResult, error) {
		return domain.OrderResult{}, domain.ErrInvalidOrder
	}

	e := NewEngine(client, nil, nil, testConfig(), testLogger())
	pos, err := e.BuyWithExits(context.Background(), testCandidate(), testPlan(), 10)
	if err != nil {
		t.Fatalf("BuyWithExits: %v", err)
	}
	if pos.ExitMode != domain.ExitModeMonitor {
		t.Errorf("ExitMode = %q, want monitor downgrade", pos.ExitMode)
	}
	if pos.TPOrderID != "" || pos.SLOrderID != "" {
		t.Error("downgraded position must carry no exit order IDs")
	}
}

func TestBuyWithExits_SLFailureCancelsTP(t *testing.T) {
	client := &fakeClient{
		buyResult: domain.OrderResult{Success: true, OrderID: "buy-1", FilledSize: 22.2, FilledPrice: 0.45},
	}
	call := 0
	client.limitFn = func(p domain.LimitSellParams) (domain.OrderResult, error) {
		call++
		if call == 1 {
			return domain.OrderResult{Success: true, OrderID: "tp-1"}, nil
		}
		return domain.OrderResult{}, domain.ErrInvalidOrder
	}

	e := NewEngine(client, nil, nil, testConfig(), testLogger())
	pos, err := e.BuyWithExits(context.Background(), testCandidate(), testPlan(), 10)
	if err != nil {
		t.Fatalf("BuyWithExits: %v", err)
	}
	if pos.ExitMode != domain.ExitModeMonitor {
		t.Errorf("ExitMode = %q, want monitor downgrade", pos.ExitMode)
	}
	if len(client.cancelled) != 1 || client.cancelled[0] != "tp-1" {
		t.Errorf("cancelled = %v, want the orphaned tp-1 leg", client.cancelled)
	}
}

func TestSellMarket_FloorBlocksNonEmergency(t *testing.T) {
	client := &fakeClient{sellResult: domain.OrderResult{Success: true, FilledSize: 22.2}}
	e := NewEngine(client, nil, nil, testConfig(), testLogger())

	pos := domain.Position{TokenID: "token-1", EntryPrice: 0.50, FilledSize: 22.2}

	// Floor is 0.25; a bid below it blocks a normal sell.
	_, err := e.SellMarket(context.Background(), pos, 0.20, false)
	if !errors.Is(err, domain.ErrInvalidOrder) {
		t.Fatalf("err = %v, want ErrInvalidOrder", err)
	}
	if len(client.sellCalls) != 0 {
		t.Error("blocked sell must not reach the venue")
	}

	// The emergency path crosses the floor.
	if _, err := e.SellMarket(context.Background(), pos, 0.20, true); err != nil {
		t.Fatalf("emergency sell: %v", err)
	}
	if len(client.sellCalls) != 1 || !client.sellCalls[0].Emergency {
		t.Errorf("sell calls = %+v, want one emergency sell", client.sellCalls)
	}
}

func TestCurrentBestBid_PrefersHealthyFeed(t *testing.T) {
	client := &fakeClient{bestBid: 0.40}
	feed := &fakeFeed{snaps: map[string]domain.OrderbookSnapshot{
		"token-1": {TokenID: "token-1", BestBid: 0.46},
	}}

	e := NewEngine(client, feed, nil, testConfig(), testLogger())
	bid, err := e.CurrentBestBid(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("CurrentBestBid: %v", err)
	}
	if bid != 0.46 {
		t.Errorf("bid = %g, want the feed's 0.46", bid)
	}
}

func TestCurrentBestBid_DegradedFeedFallsBackToREST(t *testing.T) {
	client := &fakeClient{bestBid: 0.40}
	feed := &fakeFeed{
		degraded: true,
		snaps:    map[string]domain.OrderbookSnapshot{"token-1": {BestBid: 0.46}},
	}

	e := NewEngine(client, feed, nil, testConfig(), testLogger())
	bid, err := e.CurrentBestBid(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("CurrentBestBid: %v", err)
	}
	if bid != 0.40 {
		t.Errorf("bid = %g, want the REST book's 0.40", bid)
	}
}

func TestCurrentBestBid_NoQuoteAnywhere(t *testing.T) {
	client := &fakeClient{bestBid: 0}
	e := NewEngine(client, nil, nil, testConfig(), testLogger())

	_, err := e.CurrentBestBid(context.Background(), "token-1")
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}
