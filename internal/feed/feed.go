// Package feed maintains a live top-of-book cache per subscribed token, fed
// by the Polymarket market websocket. It is the price source for exit
// decisions: readers never block and never trigger network I/O.
package feed

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/platform/polymarket"
)

// Config carries the feed tuning knobs.
type Config struct {
	// DegradeAfter is the consecutive connection-failure count that flips
	// the feed into degraded mode.
	DegradeAfter int
	// StaleAfter bounds how old a cached snapshot may be before Latest
	// reports it as missing.
	StaleAfter time.Duration
}

// Feed implements domain.BookFeed on top of the CLOB websocket transport.
// Snapshots are replaced wholesale per token; the cache is the only state
// shared with readers.
type Feed struct {
	ws     *polymarket.WSClient
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	books map[string]domain.OrderbookSnapshot

	cbMu      sync.RWMutex
	callbacks []func(domain.OrderbookSnapshot)

	failures atomic.Int64
	degraded atomic.Bool
}

// New creates a Feed wired to the given websocket client. Register the feed
// before calling Run; handlers must be in place before the first frame.
func New(ws *polymarket.WSClient, cfg Config, logger *slog.Logger) *Feed {
	if cfg.DegradeAfter <= 0 {
		cfg.DegradeAfter = 5
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Second
	}

	f := &Feed{
		ws:     ws,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "orderbook_feed")),
		books:  make(map[string]domain.OrderbookSnapshot),
	}

	ws.OnBook(f.applySnapshot)
	ws.OnPriceChange(f.applyPriceChange)
	ws.OnConnChange(f.trackConn)

	return f
}

// Run connects the websocket and blocks until ctx is cancelled, then closes
// the connection. Reconnection is handled inside the transport.
func (f *Feed) Run(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := f.ws.Connect(connCtx)
	cancel()
	if err != nil {
		// A failed first connect is not fatal: flag degraded and let the
		// transport's backoff loop keep trying while callers poll REST.
		f.logger.Warn("initial connect failed, feed starts degraded", slog.String("error", err.Error()))
		f.degraded.Store(true)
		go f.retryInitialConnect(ctx)
	}

	<-ctx.Done()
	return f.ws.Close()
}

func (f *Feed) retryInitialConnect(ctx context.Context) {
	delay := 2 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := f.ws.Connect(connCtx)
		cancel()
		if err == nil {
			return
		}
		f.trackConn(false)
		if delay < time.Minute {
			delay *= 2
		}
	}
}

// Subscribe starts tracking tokens. Safe to call before Run; subscriptions
// are replayed on every (re)connect.
func (f *Feed) Subscribe(tokenIDs ...string) {
	if len(tokenIDs) == 0 {
		return
	}
	if err := f.ws.Subscribe(tokenIDs); err != nil {
		f.logger.Warn("subscribe failed", slog.Int("tokens", len(tokenIDs)), slog.String("error", err.Error()))
	}
}

// Unsubscribe stops tracking tokens and drops their cached snapshots.
func (f *Feed) Unsubscribe(tokenIDs ...string) {
	if len(tokenIDs) == 0 {
		return
	}
	if err := f.ws.Unsubscribe(tokenIDs); err != nil {
		f.logger.Warn("unsubscribe failed", slog.Int("tokens", len(tokenIDs)), slog.String("error", err.Error()))
	}

	f.mu.Lock()
	for _, id := range tokenIDs {
		delete(f.books, id)
	}
	f.mu.Unlock()
}

// Latest returns the cached snapshot for a token. ok is false before the
// first update arrives or once the snapshot has gone stale.
func (f *Feed) Latest(tokenID string) (domain.OrderbookSnapshot, bool) {
	f.mu.RLock()
	snap, ok := f.books[tokenID]
	f.mu.RUnlock()

	if !ok {
		return domain.OrderbookSnapshot{}, false
	}
	if snap.Stale(time.Now(), f.cfg.StaleAfter) {
		return snap, false
	}
	return snap, true
}

// OnUpdate registers a callback invoked for every applied snapshot. The
// callback runs on the feed goroutine and must not block.
func (f *Feed) OnUpdate(fn func(domain.OrderbookSnapshot)) {
	f.cbMu.Lock()
	f.callbacks = append(f.callbacks, fn)
	f.cbMu.Unlock()
}

// Degraded reports whether the feed has crossed its consecutive-failure
// threshold and callers should fall back to REST polling.
func (f *Feed) Degraded() bool {
	return f.degraded.Load()
}

// --------------------------------------------------------------------------
// Frame application
// --------------------------------------------------------------------------

func (f *Feed) applySnapshot(snap domain.OrderbookSnapshot) {
	if snap.TokenID == "" {
		return
	}

	f.mu.Lock()
	f.books[snap.TokenID] = snap
	f.mu.Unlock()

	f.notify(snap)
}

// applyPriceChange folds an incremental update into the cached snapshot.
// Frames that carry best_bid/best_ask replace the top of book directly;
// older-style frames only move the book when the changed level improves it.
func (f *Feed) applyPriceChange(pc polymarket.PriceChangeMessage) {
	if pc.AssetID == "" {
		return
	}

	f.mu.Lock()
	prev := f.books[pc.AssetID]

	bestBid, bestAsk := prev.BestBid, prev.BestAsk
	if bb, err := strconv.ParseFloat(pc.BestBid, 64); err == nil && bb > 0 {
		bestBid = bb
	}
	if ba, err := strconv.ParseFloat(pc.BestAsk, 64); err == nil && ba > 0 {
		bestAsk = ba
	}
	if pc.BestBid == "" && pc.BestAsk == "" {
		price, err := strconv.ParseFloat(pc.Price, 64)
		size, _ := strconv.ParseFloat(pc.Size, 64)
		if err == nil && size > 0 {
			switch pc.Side {
			case "BUY":
				if price > bestBid {
					bestBid = price
				}
			case "SELL":
				if bestAsk == 0 || price < bestAsk {
					bestAsk = price
				}
			}
		}
	}

	snap := domain.NewSnapshot(pc.AssetID, bestBid, bestAsk, time.Now())
	f.books[pc.AssetID] = snap
	f.mu.Unlock()

	f.notify(snap)
}

func (f *Feed) notify(snap domain.OrderbookSnapshot) {
	f.cbMu.RLock()
	callbacks := f.callbacks
	f.cbMu.RUnlock()

	for _, fn := range callbacks {
		fn(snap)
	}
}

// trackConn maintains the consecutive-failure counter behind Degraded.
func (f *Feed) trackConn(up bool) {
	if up {
		f.failures.Store(0)
		if f.degraded.CompareAndSwap(true, false) {
			f.logger.Info("feed recovered")
		}
		return
	}

	n := f.failures.Add(1)
	if n >= int64(f.cfg.DegradeAfter) && f.degraded.CompareAndSwap(false, true) {
		f.logger.Error("feed degraded, falling back to polling", slog.Int64("consecutive_failures", n))
	}
}
