// Package engine runs the trading loop: a fast tick that supervises open
// positions and a slow tick that discovers, scores, and enters new markets.
// The loops share one goroutine so no two venue mutations race each other.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tidefall-labs/polytrader/internal/config"
	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/executor"
	"github.com/tidefall-labs/polytrader/internal/notify"
	"github.com/tidefall-labs/polytrader/internal/scanner"
	"github.com/tidefall-labs/polytrader/internal/strategy"
)

// Config holds the loop cadences and the entry gates.
type Config struct {
	FastTick time.Duration
	SlowTick time.Duration

	MaxPositions   int
	Cooldown       time.Duration
	DailyLossLimit float64

	BlacklistDuration time.Duration
	BlacklistAttempts int
	ScanLimit         int
}

// Engine is the orchestrator. It owns lifecycle decisions for positions; the
// exit strategies only report outcomes, and the engine applies them to the
// stores.
type Engine struct {
	cfg       Config
	buckets   []config.ExitBucket
	scorer    *scanner.Scorer
	discovery domain.DiscoveryClient
	exec      *executor.Engine
	feed      domain.BookFeed
	positions domain.PositionStore
	blacklist domain.BlacklistStore
	stats     domain.StatsStore
	monitor   strategy.ExitStrategy
	limits    strategy.ExitStrategy
	logger    *slog.Logger

	// Optional surfaces; any of these may be nil.
	journal  domain.TradeJournal
	bus      domain.EventBus
	mirror   domain.BookMirror
	notifier *notify.Notifier

	now func() time.Time

	mu        sync.Mutex
	lastEntry time.Time
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Scorer    *scanner.Scorer
	Discovery domain.DiscoveryClient
	Exec      *executor.Engine
	Feed      domain.BookFeed
	Positions domain.PositionStore
	Blacklist domain.BlacklistStore
	Stats     domain.StatsStore
	Monitor   strategy.ExitStrategy
	Limits    strategy.ExitStrategy

	Journal  domain.TradeJournal
	Bus      domain.EventBus
	Mirror   domain.BookMirror
	Notifier *notify.Notifier
}

// New creates the orchestrator.
func New(cfg Config, buckets []config.ExitBucket, deps Deps, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		buckets:   buckets,
		scorer:    deps.Scorer,
		discovery: deps.Discovery,
		exec:      deps.Exec,
		feed:      deps.Feed,
		positions: deps.Positions,
		blacklist: deps.Blacklist,
		stats:     deps.Stats,
		monitor:   deps.Monitor,
		limits:    deps.Limits,
		journal:   deps.Journal,
		bus:       deps.Bus,
		mirror:    deps.Mirror,
		notifier:  deps.Notifier,
		logger:    logger.With(slog.String("component", "engine")),
		now:       time.Now,
	}
}

// Run drives both loops until the context ends. Open positions loaded from
// the state file are re-subscribed on the feed before the first tick.
func (e *Engine) Run(ctx context.Context) error {
	open := e.positions.All()
	if len(open) > 0 {
		ids := make([]string, 0, len(open))
		for id := range open {
			ids = append(ids, id)
		}
		e.feed.Subscribe(ids...)
		e.logger.Info("resumed open positions", slog.Int("count", len(ids)))
	}

	if e.mirror != nil {
		e.feed.OnUpdate(func(snap domain.OrderbookSnapshot) {
			mctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := e.mirror.SetSnapshot(mctx, snap); err != nil {
				e.logger.Debug("book mirror publish failed",
					slog.String("token_id", snap.TokenID),
					slog.String("error", err.Error()),
				)
			}
		})
	}

	fast := time.NewTicker(e.cfg.FastTick)
	defer fast.Stop()
	slow := time.NewTicker(e.cfg.SlowTick)
	defer slow.Stop()

	e.logger.Info("trading loop started",
		slog.Duration("fast_tick", e.cfg.FastTick),
		slog.Duration("slow_tick", e.cfg.SlowTick),
	)

	// One discovery pass up front so a restart does not idle for a full
	// slow tick.
	e.discoverTick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("trading loop stopped")
			return ctx.Err()
		case <-fast.C:
			e.superviseTick(ctx)
		case <-slow.C:
			e.blacklist.Sweep()
			e.discoverTick(ctx)
		}
	}
}
