package file

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// StatsStore accumulates closed-trade statistics in stats.json: lifetime
// aggregates plus per-day and per-odds-bucket breakdowns.
type StatsStore struct {
	mu     sync.Mutex
	path   string
	stats  domain.TradeStats
	logger *slog.Logger
}

// NewStatsStore loads (or initializes) the statistics document under dir.
func NewStatsStore(dir string, logger *slog.Logger) (*StatsStore, error) {
	s := &StatsStore{
		path:   filepath.Join(dir, "stats.json"),
		logger: logger.With(slog.String("component", "stats_store")),
	}
	corrupt, err := loadJSON(s.path, &s.stats)
	if err != nil {
		return nil, err
	}
	if corrupt {
		s.logger.Error("statistics document unreadable, starting empty",
			slog.String("quarantined", s.path+".corrupt"))
		s.stats = domain.TradeStats{}
	}
	if s.stats.Daily == nil {
		s.stats.Daily = make(map[string]domain.DayStats)
	}
	if s.stats.ByOdds == nil {
		s.stats.ByOdds = make(map[string]domain.BucketStats)
	}
	return s, nil
}

// RecordTrade folds one closed trade into every aggregate and persists the
// document.
func (s *StatsStore) RecordTrade(rec domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cloneLocked()

	win := rec.PnL > 0
	lt := &s.stats.Lifetime
	holdHours := rec.ExitTime.Sub(rec.EntryTime).Hours()
	totalHold := lt.AvgHoldTimeHours*float64(lt.TotalTrades) + holdHours

	lt.TotalTrades++
	if win {
		lt.Wins++
	} else {
		lt.Losses++
	}
	lt.WinRate = float64(lt.Wins) / float64(lt.TotalTrades)
	lt.TotalPnL += rec.PnL
	lt.TotalFees += rec.Fees
	lt.TotalInvested += rec.EntryPrice * rec.Size
	if lt.TotalInvested > 0 {
		lt.ROI = lt.TotalPnL / lt.TotalInvested
	}
	lt.AvgHoldTimeHours = totalHold / float64(lt.TotalTrades)

	dayKey := domain.DayKey(rec.ExitTime)
	day := s.stats.Daily[dayKey]
	day.Trades++
	if win {
		day.Wins++
	} else {
		day.Losses++
	}
	day.PnL += rec.PnL
	day.Fees += rec.Fees
	s.stats.Daily[dayKey] = day

	bucketKey := rec.OddsBucket
	if bucketKey == "" {
		bucketKey = domain.OddsBucketFor(rec.EntryPrice)
	}
	bucket := s.stats.ByOdds[bucketKey]
	bucket.Trades++
	if win {
		bucket.Wins++
	}
	bucket.PnL += rec.PnL
	s.stats.ByOdds[bucketKey] = bucket

	if err := saveJSON(s.path, s.stats); err != nil {
		s.stats = prev
		return fmt.Errorf("store/file: stats: %w", err)
	}

	s.logger.Info("trade recorded",
		slog.String("token_id", rec.TokenID),
		slog.Float64("pnl", rec.PnL),
		slog.String("exit_reason", rec.ExitReason),
		slog.String("odds_bucket", bucketKey),
	)
	return nil
}

// Stats returns a copy of the current statistics document.
func (s *StatsStore) Stats() domain.TradeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

// DailyLoss returns the realized loss for a calendar day as a positive
// number, or zero when the day is flat or profitable.
func (s *StatsStore) DailyLoss(day time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.stats.Daily[domain.DayKey(day)]
	if !ok || d.PnL >= 0 {
		return 0
	}
	return -d.PnL
}

func (s *StatsStore) cloneLocked() domain.TradeStats {
	out := s.stats
	out.Daily = make(map[string]domain.DayStats, len(s.stats.Daily))
	for k, v := range s.stats.Daily {
		out.Daily[k] = v
	}
	out.ByOdds = make(map[string]domain.BucketStats, len(s.stats.ByOdds))
	for k, v := range s.stats.ByOdds {
		out.ByOdds[k] = v
	}
	return out
}
