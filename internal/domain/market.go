package domain

import "time"

// MarketCandidate is one scan-time view of a tradeable binary market,
// enriched with discovery data before filtering. Candidates are ephemeral;
// nothing here is persisted.
type MarketCandidate struct {
	TokenID     string
	ConditionID string
	Question    string
	BestBid     float64
	BestAsk     float64
	Odds        float64 // implied probability of the "yes" outcome
	SpreadPct   float64 // (ask-bid)/mid * 100
	Volume24h   float64
	Liquidity   float64
	EndDate     time.Time
	Score       float64
}

// DaysToResolution returns the (possibly negative) number of days until the
// market's end date. Negative means the market is past resolution and must
// never be entered, whatever its upstream status claims.
func (c MarketCandidate) DaysToResolution(now time.Time) float64 {
	return c.EndDate.Sub(now).Hours() / 24
}

// RejectReason labels why a candidate failed a hard filter.
type RejectReason string

const (
	RejectOddsOutOfRange   RejectReason = "odds_out_of_range"
	RejectSpreadTooWide    RejectReason = "spread_too_wide"
	RejectVolumeTooLow     RejectReason = "volume_too_low"
	RejectLiquidityTooLow  RejectReason = "liquidity_too_low"
	RejectResolvesTooSoon  RejectReason = "resolves_too_soon"
	RejectResolvesTooLate  RejectReason = "resolves_too_late"
	RejectExpired          RejectReason = "expired"
	RejectBlacklisted      RejectReason = "blacklisted"
	RejectAlreadyHeld      RejectReason = "already_held"
)
