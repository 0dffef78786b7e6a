package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is the cached top-of-book view for one token, replaced
// wholesale on each feed update. An empty side reports zero mid and spread
// rather than an error.
type OrderbookSnapshot struct {
	TokenID   string
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	SpreadPct float64
	Timestamp time.Time
}

// NewSnapshot derives mid and spread-percent from a best bid/ask pair.
// Either side at zero yields zero mid and spread.
func NewSnapshot(tokenID string, bestBid, bestAsk float64, ts time.Time) OrderbookSnapshot {
	s := OrderbookSnapshot{
		TokenID:   tokenID,
		BestBid:   bestBid,
		BestAsk:   bestAsk,
		Timestamp: ts,
	}
	if bestBid > 0 && bestAsk > 0 {
		s.MidPrice = (bestBid + bestAsk) / 2
		if s.MidPrice > 0 {
			s.SpreadPct = (bestAsk - bestBid) / s.MidPrice * 100
		}
	}
	return s
}

// Stale reports whether the snapshot is older than maxAge.
func (s OrderbookSnapshot) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.Timestamp) > maxAge
}
