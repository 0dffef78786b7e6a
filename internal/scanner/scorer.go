// Package scanner filters and scores candidate markets for entry. It holds
// no venue state: candidates arrive enriched from discovery, and the single
// best survivor is handed to the orchestrator.
package scanner

import (
	"log/slog"
	"math"
	"time"

	"github.com/tidefall-labs/polytrader/internal/config"
	"github.com/tidefall-labs/polytrader/internal/domain"
)

// fullScoreVolume is the 24h volume that earns the maximum volume sub-score.
const fullScoreVolume = 1000.0

// Blacklist answers whether a token is currently excluded from selection.
type Blacklist interface {
	IsBlacklisted(tokenID string) bool
}

// Holdings answers whether a token already has an open position.
type Holdings interface {
	Get(tokenID string) (domain.Position, bool)
}

// Scorer applies the hard filters and the weighted score to scan candidates.
type Scorer struct {
	cfg       config.ScannerConfig
	blacklist Blacklist
	holdings  Holdings
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Scorer. blacklist and holdings gate candidates that are
// already excluded or already held.
func New(cfg config.ScannerConfig, blacklist Blacklist, holdings Holdings, logger *slog.Logger) *Scorer {
	return &Scorer{
		cfg:       cfg,
		blacklist: blacklist,
		holdings:  holdings,
		logger:    logger.With(slog.String("component", "scanner")),
		now:       time.Now,
	}
}

// Filter returns the candidates that pass every hard filter. Each rejection
// is logged with its distinct reason for scan diagnostics.
func (s *Scorer) Filter(candidates []domain.MarketCandidate) []domain.MarketCandidate {
	now := s.now()
	passing := make([]domain.MarketCandidate, 0, len(candidates))

	for _, c := range candidates {
		if reason, ok := s.check(c, now); !ok {
			s.logger.Debug("candidate rejected",
				slog.String("token_id", c.TokenID),
				slog.String("reason", string(reason)),
			)
			continue
		}
		passing = append(passing, c)
	}

	return passing
}

// check evaluates one candidate against every hard filter and returns the
// first failing reason.
func (s *Scorer) check(c domain.MarketCandidate, now time.Time) (domain.RejectReason, bool) {
	days := c.DaysToResolution(now)

	// A market past its resolution date must be rejected even if upstream
	// still flags it active.
	if days < 0 {
		return domain.RejectExpired, false
	}
	if c.Odds < s.cfg.MinOdds || c.Odds > s.cfg.MaxOdds {
		return domain.RejectOddsOutOfRange, false
	}
	if c.SpreadPct > s.cfg.MaxSpreadPct {
		return domain.RejectSpreadTooWide, false
	}
	if c.Volume24h < s.cfg.MinVolume24h {
		return domain.RejectVolumeTooLow, false
	}
	if c.Liquidity < s.cfg.MinLiquidity {
		return domain.RejectLiquidityTooLow, false
	}
	if days < s.cfg.MinDays {
		return domain.RejectResolvesTooSoon, false
	}
	if days > s.cfg.MaxDays {
		return domain.RejectResolvesTooLate, false
	}
	if s.blacklist != nil && s.blacklist.IsBlacklisted(c.TokenID) {
		return domain.RejectBlacklisted, false
	}
	if s.holdings != nil {
		if _, held := s.holdings.Get(c.TokenID); held {
			return domain.RejectAlreadyHeld, false
		}
	}
	return "", true
}

// Score computes the weighted candidate score in [0,100]. Four normalized
// sub-scores reward tight spreads, traded volume, odds away from the 0.50
// coin-flip, and near-dated resolution.
func (s *Scorer) Score(c domain.MarketCandidate) float64 {
	w := s.cfg.Weights
	total := w.Total()
	if total <= 0 {
		return 0
	}

	spreadScore := clamp(100-c.SpreadPct*10, 0, 100)
	volumeScore := clamp(c.Volume24h/fullScoreVolume*100, 0, 100)
	oddsScore := clamp(math.Abs(c.Odds-0.5)/0.2*100, 0, 100)

	days := c.DaysToResolution(s.now())
	timeScore := clamp(100-days/s.cfg.MaxDays*100, 0, 100)

	weighted := spreadScore*w.Spread +
		volumeScore*w.Volume +
		oddsScore*w.Odds +
		timeScore*w.Time

	return weighted / total
}

// PickBest filters, scores, and returns the single top candidate. ok is
// false when nothing passes. Ties keep the first-seen candidate.
func (s *Scorer) PickBest(candidates []domain.MarketCandidate) (domain.MarketCandidate, bool) {
	passing := s.Filter(candidates)
	if len(passing) == 0 {
		return domain.MarketCandidate{}, false
	}

	best := passing[0]
	best.Score = s.Score(best)
	for _, c := range passing[1:] {
		c.Score = s.Score(c)
		if c.Score > best.Score {
			best = c
		}
	}

	s.logger.Info("best candidate selected",
		slog.String("token_id", best.TokenID),
		slog.String("question", best.Question),
		slog.Float64("score", best.Score),
		slog.Float64("odds", best.Odds),
	)

	return best, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
