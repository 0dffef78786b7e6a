package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from JSON number or numeric string. Gamma sends
// volume/liquidity either way depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrder represents an order as returned by the Polymarket CLOB API.
type APIOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	MarketID      string `json:"market"`
	AssetID       string `json:"asset_id"`
	Side          string `json:"side"` // "BUY" or "SELL"
	Type          string `json:"type"`
	OriginalSize  string `json:"original_size"`
	SizeMatched   string `json:"size_matched"`
	Price         string `json:"price"`
	Owner         string `json:"owner"`
	Expiration    string `json:"expiration"`
	FeeRateBps    string `json:"fee_rate_bps"`
	SignatureType int    `json:"signature_type"`
	CreatedAt     string `json:"created_at"`
}

// ToStatusReport normalizes an APIOrder into the status report the engine
// consumes. Venue states it does not recognize map to unknown rather than
// erroring, so a new upstream state never breaks supervision.
func (a *APIOrder) ToStatusReport() domain.OrderStatusReport {
	rep := domain.OrderStatusReport{OrderID: a.ID}

	orig, _ := strconv.ParseFloat(a.OriginalSize, 64)
	matched, _ := strconv.ParseFloat(a.SizeMatched, 64)
	rep.FilledSize = matched
	rep.AvgPrice, _ = strconv.ParseFloat(a.Price, 64)

	switch strings.ToLower(a.Status) {
	case "live", "open":
		if matched > 0 {
			rep.State = domain.OrderStatePartial
		} else {
			rep.State = domain.OrderStateOpen
		}
	case "matched", "filled":
		rep.State = domain.OrderStateFilled
		if rep.FilledSize == 0 {
			rep.FilledSize = orig
		}
	case "cancelled", "canceled":
		rep.State = domain.OrderStateCancelled
	default:
		rep.State = domain.OrderStateUnknown
	}

	if bps, err := strconv.ParseFloat(a.FeeRateBps, 64); err == nil && bps > 0 {
		rep.FeeUSD = rep.FilledSize * rep.AvgPrice * bps / 10_000
	}

	return rep
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success      bool     `json:"success"`
	ErrorMsg     string   `json:"errorMsg,omitempty"`
	OrderID      string   `json:"orderID,omitempty"`
	Status       string   `json:"status,omitempty"`
	TransactID   string   `json:"transactID,omitempty"`
	ShouldRetry  bool     `json:"shouldRetry,omitempty"`
	TakingAmount string   `json:"takingAmount,omitempty"`
	MakingAmount string   `json:"makingAmount,omitempty"`
	TransactHash []string `json:"transactionsHashes,omitempty"`
}

// ToDomainOrderResult converts an APIOrderResult to a domain.OrderResult.
// For marketable buys, takingAmount is the token quantity received and
// makingAmount the collateral spent, which yields the effective fill price.
func (r *APIOrderResult) ToDomainOrderResult(side domain.OrderSide) domain.OrderResult {
	result := domain.OrderResult{
		Success:     r.Success,
		OrderID:     r.OrderID,
		Message:     r.ErrorMsg,
		ShouldRetry: r.ShouldRetry,
	}

	taking, _ := strconv.ParseFloat(r.TakingAmount, 64)
	making, _ := strconv.ParseFloat(r.MakingAmount, 64)

	switch side {
	case domain.OrderSideBuy:
		// Buying: we make collateral, take tokens.
		result.FilledSize = taking
		if taking > 0 {
			result.FilledPrice = making / taking
		}
	case domain.OrderSideSell:
		// Selling: we make tokens, take collateral.
		result.FilledSize = making
		if making > 0 {
			result.FilledPrice = taking / making
		}
	}

	return result
}

// APIBalance is the response from the balance-allowance endpoint. Amounts
// are integer base units of the collateral token (USDC, 6 decimals).
type APIBalance struct {
	Balance string `json:"balance"`
}

// USD converts the raw base-unit balance to a USD float.
func (b *APIBalance) USD() float64 {
	raw, err := strconv.ParseFloat(b.Balance, 64)
	if err != nil {
		return 0
	}
	return raw / 1e6
}

// APIBook is the response from the CLOB /book endpoint, used as the REST
// fallback when the websocket feed is degraded.
type APIBook struct {
	AssetID string         `json:"asset_id"`
	Bids    []WSPriceLevel `json:"bids"`
	Asks    []WSPriceLevel `json:"asks"`
}

// BestBid returns the highest bid in the book, or 0 when the side is empty.
func (b *APIBook) BestBid() float64 {
	best := 0.0
	for _, lvl := range b.Bids {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && p > best {
			best = p
		}
	}
	return best
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	ConditionID   string    `json:"conditionId"`
	Slug          string    `json:"slug"`
	Active        flexBool  `json:"active"` // API may send bool or "true"/"false" string
	Closed        flexBool  `json:"closed"`
	Outcomes      string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs  string    `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	Volume24h     flexFloat `json:"volume24hr"`
	Liquidity     flexFloat `json:"liquidity"`
	BestBid       flexFloat `json:"bestBid"`
	BestAsk       flexFloat `json:"bestAsk"`
	EndDateISO    string    `json:"endDate"`
	EnableBook    flexBool  `json:"enableOrderBook"`
}

// ToCandidate converts a Gamma market into a scan candidate for its "yes"
// token. ok is false when the market carries no usable token or price data.
func (m *APIMarket) ToCandidate() (domain.MarketCandidate, bool) {
	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokenIDs); err != nil || len(tokenIDs) == 0 {
		return domain.MarketCandidate{}, false
	}

	c := domain.MarketCandidate{
		TokenID:     tokenIDs[0],
		ConditionID: m.ConditionID,
		Question:    m.Question,
		BestBid:     float64(m.BestBid),
		BestAsk:     float64(m.BestAsk),
		Volume24h:   float64(m.Volume24h),
		Liquidity:   float64(m.Liquidity),
	}

	if c.BestBid <= 0 || c.BestAsk <= 0 {
		// Fall back to the published outcome price when BBO is absent.
		var prices []string
		if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil || len(prices) == 0 {
			return domain.MarketCandidate{}, false
		}
		p, err := strconv.ParseFloat(prices[0], 64)
		if err != nil || p <= 0 {
			return domain.MarketCandidate{}, false
		}
		c.BestBid, c.BestAsk = p, p
	}

	mid := (c.BestBid + c.BestAsk) / 2
	c.Odds = mid
	if mid > 0 {
		c.SpreadPct = (c.BestAsk - c.BestBid) / mid * 100
	}

	if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
		c.EndDate = t
	}

	return c, true
}

// Tradeable reports whether Gamma considers the market open for orders.
func (m *APIMarket) Tradeable() bool {
	return bool(m.Active) && !bool(m.Closed) && bool(m.EnableBook)
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSMessage is the outer envelope of every frame from the Polymarket CLOB
// market websocket. Only the fields needed for dispatch are decoded here;
// the full frame is re-decoded into the concrete message type afterwards.
type WSMessage struct {
	EventType string `json:"event_type"` // "book", "price_change", "subscribed", ...
	AssetID   string `json:"asset_id,omitempty"`
	Market    string `json:"market,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// BookMessage represents a full orderbook snapshot delivered over WebSocket.
type BookMessage struct {
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
}

// WSPriceLevel is a single bid/ask level in the WebSocket orderbook data.
type WSPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// PriceChangeMessage represents an incremental best-price update.
type PriceChangeMessage struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Side      string `json:"side"` // "BUY" or "SELL"
	Price     string `json:"price"`
	Size      string `json:"size"` // "0" means level removed
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	Timestamp string `json:"timestamp"`
}

// WSCommand is the JSON payload sent to the WebSocket to subscribe or
// unsubscribe a set of asset IDs.
type WSCommand struct {
	Type    string   `json:"type"` // "subscribe" or "unsubscribe"
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
}

// --------------------------------------------------------------------------
// Conversion helpers: WS types -> domain types
// --------------------------------------------------------------------------

// BookToSnapshot converts a BookMessage to a top-of-book snapshot.
func BookToSnapshot(b *BookMessage) domain.OrderbookSnapshot {
	bestBid, bestAsk := 0.0, 0.0
	for _, lvl := range b.Bids {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && p > bestBid {
			bestBid = p
		}
	}
	for _, lvl := range b.Asks {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && (bestAsk == 0 || p < bestAsk) {
			bestAsk = p
		}
	}
	return domain.NewSnapshot(b.AssetID, bestBid, bestAsk, parseWSTimestamp(b.Timestamp))
}

// parseWSTimestamp decodes the millisecond-epoch or RFC3339 timestamps the
// websocket emits, falling back to now.
func parseWSTimestamp(s string) time.Time {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Heuristic: values past 1e12 are milliseconds.
		if ms > 1e12 {
			return time.UnixMilli(ms)
		}
		return time.Unix(ms, 0)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}
