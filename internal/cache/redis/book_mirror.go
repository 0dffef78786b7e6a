package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// bookMirrorTTL bounds how long a stale mirror entry survives after the
// engine stops publishing for a token.
const bookMirrorTTL = 5 * time.Minute

// BookMirror implements domain.BookMirror: the latest top-of-book per token,
// published as a Redis hash so dashboards and sibling processes can read the
// engine's view of the market without their own feed connection.
//
// Key schema:
//
//	bbo:{tokenID} - hash with fields bid, ask, mid, spread_pct, ts
type BookMirror struct {
	rdb *redis.Client
}

// NewBookMirror creates a BookMirror backed by the given Client.
func NewBookMirror(c *Client) *BookMirror {
	return &BookMirror{rdb: c.Underlying()}
}

func bboKey(tokenID string) string {
	return "bbo:" + tokenID
}

// SetSnapshot publishes the snapshot, replacing any previous one.
func (m *BookMirror) SetSnapshot(ctx context.Context, snap domain.OrderbookSnapshot) error {
	key := bboKey(snap.TokenID)

	pipe := m.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"bid", strconv.FormatFloat(snap.BestBid, 'f', -1, 64),
		"ask", strconv.FormatFloat(snap.BestAsk, 'f', -1, 64),
		"mid", strconv.FormatFloat(snap.MidPrice, 'f', -1, 64),
		"spread_pct", strconv.FormatFloat(snap.SpreadPct, 'f', -1, 64),
		"ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
	)
	pipe.Expire(ctx, key, bookMirrorTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book snapshot %s: %w", snap.TokenID, err)
	}
	return nil
}

// GetSnapshot reads the mirrored snapshot, or ErrNotFound when the token has
// no entry.
func (m *BookMirror) GetSnapshot(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	vals, err := m.rdb.HGetAll(ctx, bboKey(tokenID)).Result()
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: get book snapshot %s: %w", tokenID, err)
	}
	if len(vals) == 0 {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}

	snap := domain.OrderbookSnapshot{TokenID: tokenID}
	snap.BestBid, _ = strconv.ParseFloat(vals["bid"], 64)
	snap.BestAsk, _ = strconv.ParseFloat(vals["ask"], 64)
	snap.MidPrice, _ = strconv.ParseFloat(vals["mid"], 64)
	snap.SpreadPct, _ = strconv.ParseFloat(vals["spread_pct"], 64)
	if tsNano, perr := strconv.ParseInt(vals["ts"], 10, 64); perr == nil {
		snap.Timestamp = time.Unix(0, tsNano)
	}
	return snap, nil
}

var _ domain.BookMirror = (*BookMirror)(nil)
