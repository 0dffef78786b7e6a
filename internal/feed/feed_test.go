package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/platform/polymarket"
)

func newTestFeed(cfg Config) *Feed {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ws := polymarket.NewWSClient("ws://localhost/ws/market", time.Second, time.Minute, logger)
	return New(ws, cfg, logger)
}

func TestFeed_SnapshotRoundTrip(t *testing.T) {
	f := newTestFeed(Config{StaleAfter: time.Minute})

	snap := domain.NewSnapshot("token-1", 0.44, 0.46, time.Now())
	f.applySnapshot(snap)

	got, ok := f.Latest("token-1")
	if !ok {
		t.Fatal("snapshot not cached")
	}
	if got.BestBid != 0.44 || got.BestAsk != 0.46 {
		t.Errorf("BBO = %g/%g, want 0.44/0.46", got.BestBid, got.BestAsk)
	}
	if got.MidPrice != 0.45 {
		t.Errorf("MidPrice = %g, want 0.45", got.MidPrice)
	}

	if _, ok := f.Latest("token-2"); ok {
		t.Error("unknown token must report no data")
	}
}

func TestFeed_EmptyTokenDropped(t *testing.T) {
	f := newTestFeed(Config{})
	f.applySnapshot(domain.OrderbookSnapshot{BestBid: 0.5})

	if _, ok := f.Latest(""); ok {
		t.Error("frame without a token ID must be discarded")
	}
}

func TestFeed_StaleSnapshotReportsMissing(t *testing.T) {
	f := newTestFeed(Config{StaleAfter: 100 * time.Millisecond})

	f.applySnapshot(domain.NewSnapshot("token-1", 0.44, 0.46, time.Now().Add(-time.Second)))
	if _, ok := f.Latest("token-1"); ok {
		t.Error("stale snapshot must report ok=false")
	}
}

func TestFeed_PriceChangeWithBBO(t *testing.T) {
	f := newTestFeed(Config{StaleAfter: time.Minute})
	f.applySnapshot(domain.NewSnapshot("token-1", 0.44, 0.46, time.Now()))

	f.applyPriceChange(polymarket.PriceChangeMessage{
		AssetID: "token-1",
		BestBid: "0.45",
		BestAsk: "0.47",
	})

	got, ok := f.Latest("token-1")
	if !ok {
		t.Fatal("snapshot lost")
	}
	if got.BestBid != 0.45 || got.BestAsk != 0.47 {
		t.Errorf("BBO = %g/%g, want 0.45/0.47", got.BestBid, got.BestAsk)
	}
}

func TestFeed_PriceChangeLevelOnlyImproves(t *testing.T) {
	f := newTestFeed(Config{StaleAfter: time.Minute})
	f.applySnapshot(domain.NewSnapshot("token-1", 0.44, 0.46, time.Now()))

	// A BUY level above the cached bid improves the book.
	f.applyPriceChange(polymarket.PriceChangeMessage{
		AssetID: "token-1", Side: "BUY", Price: "0.45", Size: "100",
	})
	got, _ := f.Latest("token-1")
	if got.BestBid != 0.45 {
		t.Errorf("BestBid = %g, want improved 0.45", got.BestBid)
	}

	// A BUY level below the cached bid leaves it alone.
	f.applyPriceChange(polymarket.PriceChangeMessage{
		AssetID: "token-1", Side: "BUY", Price: "0.40", Size: "100",
	})
	got, _ = f.Latest("token-1")
	if got.BestBid != 0.45 {
		t.Errorf("BestBid = %g, worse level must not move the book", got.BestBid)
	}

	// A SELL level inside the spread improves the ask.
	f.applyPriceChange(polymarket.PriceChangeMessage{
		AssetID: "token-1", Side: "SELL", Price: "0.455", Size: "100",
	})
	got, _ = f.Latest("token-1")
	if got.BestAsk != 0.455 {
		t.Errorf("BestAsk = %g, want improved 0.455", got.BestAsk)
	}
}

func TestFeed_OnUpdateFires(t *testing.T) {
	f := newTestFeed(Config{StaleAfter: time.Minute})

	var seen []domain.OrderbookSnapshot
	f.OnUpdate(func(s domain.OrderbookSnapshot) { seen = append(seen, s) })

	f.applySnapshot(domain.NewSnapshot("token-1", 0.44, 0.46, time.Now()))
	f.applyPriceChange(polymarket.PriceChangeMessage{AssetID: "token-1", BestBid: "0.45", BestAsk: "0.47"})

	if len(seen) != 2 {
		t.Fatalf("callbacks fired %d times, want 2", len(seen))
	}
	if seen[1].BestBid != 0.45 {
		t.Errorf("callback snapshot = %+v", seen[1])
	}
}

func TestFeed_DegradedAfterRepeatedFailures(t *testing.T) {
	f := newTestFeed(Config{DegradeAfter: 3, StaleAfter: time.Minute})

	if f.Degraded() {
		t.Fatal("feed must start healthy")
	}
	f.trackConn(false)
	f.trackConn(false)
	if f.Degraded() {
		t.Error("two failures must not degrade a threshold-three feed")
	}
	f.trackConn(false)
	if !f.Degraded() {
		t.Error("third failure must degrade the feed")
	}

	f.trackConn(true)
	if f.Degraded() {
		t.Error("reconnect must clear degraded mode")
	}
}

func TestFeed_UnsubscribeDropsCache(t *testing.T) {
	f := newTestFeed(Config{StaleAfter: time.Minute})
	f.applySnapshot(domain.NewSnapshot("token-1", 0.44, 0.46, time.Now()))

	f.Unsubscribe("token-1")
	if _, ok := f.Latest("token-1"); ok {
		t.Error("unsubscribed token must lose its cached snapshot")
	}
}
