package domain

import (
	"context"
	"time"
)

// RateLimiter bounds API calls over a rolling window. Allow is non-blocking;
// Wait blocks until a slot frees or the context ends.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// BookMirror publishes top-of-book snapshots for consumers outside the
// engine process.
type BookMirror interface {
	SetSnapshot(ctx context.Context, snap OrderbookSnapshot) error
	GetSnapshot(ctx context.Context, tokenID string) (OrderbookSnapshot, error)
}

// EventBus carries engine events (entries, exits, manual-review flags) to
// external consumers over pub/sub.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
