package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

func TestFlexFloat(t *testing.T) {
	var doc struct {
		Num flexFloat `json:"num"`
		Str flexFloat `json:"str"`
	}
	if err := json.Unmarshal([]byte(`{"num": 12.5, "str": "3.25"}`), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Num != 12.5 {
		t.Errorf("Num = %g, want 12.5", float64(doc.Num))
	}
	if doc.Str != 3.25 {
		t.Errorf("Str = %g, want 3.25", float64(doc.Str))
	}

	var empty struct {
		V flexFloat `json:"v"`
	}
	if err := json.Unmarshal([]byte(`{"v": ""}`), &empty); err != nil {
		t.Fatalf("empty string: %v", err)
	}
	if empty.V != 0 {
		t.Errorf("empty string = %g, want 0", float64(empty.V))
	}
}

func TestFlexBool(t *testing.T) {
	var doc struct {
		B flexBool `json:"b"`
		S flexBool `json:"s"`
		F flexBool `json:"f"`
	}
	if err := json.Unmarshal([]byte(`{"b": true, "s": "True", "f": "false"}`), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bool(doc.B) || !bool(doc.S) {
		t.Error("true values not decoded")
	}
	if bool(doc.F) {
		t.Error(`"false" decoded as true`)
	}
}

func TestAPIOrderToStatusReport(t *testing.T) {
	tests := []struct {
		name       string
		order      APIOrder
		wantState  domain.OrderState
		wantFilled float64
	}{
		{
			name:      "live unmatched",
			order:     APIOrder{ID: "o1", Status: "LIVE", OriginalSize: "20", SizeMatched: "0"},
			wantState: domain.OrderStateOpen,
		},
		{
			name:       "live partially matched",
			order:      APIOrder{ID: "o1", Status: "live", OriginalSize: "20", SizeMatched: "5"},
			wantState:  domain.OrderStatePartial,
			wantFilled: 5,
		},
		{
			name:       "matched with size",
			order:      APIOrder{ID: "o1", Status: "MATCHED", OriginalSize: "20", SizeMatched: "20"},
			wantState:  domain.OrderStateFilled,
			wantFilled: 20,
		},
		{
			name:       "matched without size falls back to original",
			order:      APIOrder{ID: "o1", Status: "matched", OriginalSize: "20", SizeMatched: "0"},
			wantState:  domain.OrderStateFilled,
			wantFilled: 20,
		},
		{
			name:      "cancelled either spelling",
			order:     APIOrder{ID: "o1", Status: "CANCELLED"},
			wantState: domain.OrderStateCancelled,
		},
		{
			name:      "unrecognized state maps to unknown",
			order:     APIOrder{ID: "o1", Status: "delayed"},
			wantState: domain.OrderStateUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := tt.order.ToStatusReport()
			if rep.State != tt.wantState {
				t.Errorf("State = %q, want %q", rep.State, tt.wantState)
			}
			if rep.FilledSize != tt.wantFilled {
				t.Errorf("FilledSize = %g, want %g", rep.FilledSize, tt.wantFilled)
			}
		})
	}
}

func TestAPIOrderResultToDomain(t *testing.T) {
	r := APIOrderResult{
		Success:      true,
		OrderID:      "o1",
		TakingAmount: "22.2",
		MakingAmount: "9.99",
	}

	buy := r.ToDomainOrderResult(domain.OrderSideBuy)
	if buy.FilledSize != 22.2 {
		t.Errorf("buy FilledSize = %g, want 22.2", buy.FilledSize)
	}
	if got, want := buy.FilledPrice, 9.99/22.2; !feq(got, want) {
		t.Errorf("buy FilledPrice = %g, want %g", got, want)
	}

	sell := r.ToDomainOrderResult(domain.OrderSideSell)
	if sell.FilledSize != 9.99 {
		t.Errorf("sell FilledSize = %g, want 9.99", sell.FilledSize)
	}
	if got, want := sell.FilledPrice, 22.2/9.99; !feq(got, want) {
		t.Errorf("sell FilledPrice = %g, want %g", got, want)
	}
}

func TestAPIBalanceUSD(t *testing.T) {
	b := APIBalance{Balance: "12500000"}
	if got := b.USD(); got != 12.5 {
		t.Errorf("USD = %g, want 12.5", got)
	}

	bad := APIBalance{Balance: "not a number"}
	if got := bad.USD(); got != 0 {
		t.Errorf("USD = %g, want 0 for garbage", got)
	}
}

func TestAPIMarketToCandidate(t *testing.T) {
	m := APIMarket{
		Question:      "Will it resolve yes?",
		ConditionID:   "0xcond",
		ClobTokenIDs:  `["token-yes","token-no"]`,
		OutcomePrices: `["0.45","0.55"]`,
		BestBid:       0.44,
		BestAsk:       0.46,
		Volume24h:     500,
		Liquidity:     400,
		EndDateISO:    "2026-09-15T00:00:00Z",
	}

	c, ok := m.ToCandidate()
	if !ok {
		t.Fatal("candidate rejected")
	}
	if c.TokenID != "token-yes" {
		t.Errorf("TokenID = %q, want the yes token", c.TokenID)
	}
	if c.Odds != 0.45 {
		t.Errorf("Odds = %g, want the 0.45 mid", c.Odds)
	}
	if c.EndDate.IsZero() {
		t.Error("end date not parsed")
	}
}

func TestAPIMarketToCandidate_FallsBackToOutcomePrice(t *testing.T) {
	m := APIMarket{
		ClobTokenIDs:  `["token-yes"]`,
		OutcomePrices: `["0.62"]`,
	}

	c, ok := m.ToCandidate()
	if !ok {
		t.Fatal("candidate rejected")
	}
	if c.BestBid != 0.62 || c.BestAsk != 0.62 {
		t.Errorf("BBO = %g/%g, want the 0.62 outcome price", c.BestBid, c.BestAsk)
	}
	if c.SpreadPct != 0 {
		t.Errorf("SpreadPct = %g, want 0", c.SpreadPct)
	}
}

func TestAPIMarketToCandidate_Unusable(t *testing.T) {
	noTokens := APIMarket{ClobTokenIDs: `[]`, OutcomePrices: `["0.5"]`}
	if _, ok := noTokens.ToCandidate(); ok {
		t.Error("market without tokens must be rejected")
	}

	noPrices := APIMarket{ClobTokenIDs: `["token-yes"]`, OutcomePrices: `[]`}
	if _, ok := noPrices.ToCandidate(); ok {
		t.Error("market without any price must be rejected")
	}
}

func TestBookToSnapshot(t *testing.T) {
	book := BookMessage{
		AssetID: "token-1",
		Bids: []WSPriceLevel{
			{Price: "0.42", Size: "100"},
			{Price: "0.44", Size: "50"},
		},
		Asks: []WSPriceLevel{
			{Price: "0.48", Size: "200"},
			{Price: "0.46", Size: "75"},
		},
		Timestamp: "1770358715148",
	}

	snap := BookToSnapshot(&book)
	if snap.BestBid != 0.44 {
		t.Errorf("BestBid = %g, want the highest bid 0.44", snap.BestBid)
	}
	if snap.BestAsk != 0.46 {
		t.Errorf("BestAsk = %g, want the lowest ask 0.46", snap.BestAsk)
	}
	if snap.MidPrice != 0.45 {
		t.Errorf("MidPrice = %g, want 0.45", snap.MidPrice)
	}
	if snap.Timestamp.IsZero() {
		t.Error("millisecond timestamp not parsed")
	}
}

func feq(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
