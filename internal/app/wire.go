package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/tidefall-labs/polytrader/internal/blob/s3"
	"github.com/tidefall-labs/polytrader/internal/cache/memory"
	"github.com/tidefall-labs/polytrader/internal/cache/redis"
	"github.com/tidefall-labs/polytrader/internal/config"
	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/notify"
	"github.com/tidefall-labs/polytrader/internal/platform/polymarket"
	"github.com/tidefall-labs/polytrader/internal/store/file"
	"github.com/tidefall-labs/polytrader/internal/store/postgres"
)

// Dependencies bundles everything the modes need. The file stores are always
// present; Postgres, Redis, and S3 surfaces are nil when not configured.
type Dependencies struct {
	Positions *file.PositionStore
	Blacklist *file.BlacklistStore
	Stats     *file.StatsStore

	Journal    domain.TradeJournal
	Limiter    domain.RateLimiter
	Mirror     domain.BookMirror
	Bus        domain.EventBus
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Gamma    *polymarket.GammaClient
	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency implementations from the
// configuration and returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- S3 state backups (optional); built first so a fresh host can pull
	// the latest archived documents before the stores load ---
	if cfg.S3.Enabled() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)

		restored, err := s3blob.RestoreLatest(ctx, deps.BlobReader, cfg.State.Dir, logger)
		if err != nil {
			logger.Warn("state restore from archive failed",
				slog.String("error", err.Error()))
		} else if restored > 0 {
			logger.Info("restored state documents from archive",
				slog.Int("count", restored))
		}
	}

	// --- File stores (always) ---
	positions, err := file.NewPositionStore(cfg.State.Dir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: positions: %w", err)
	}
	blacklist, err := file.NewBlacklistStore(cfg.State.Dir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: blacklist: %w", err)
	}
	stats, err := file.NewStatsStore(cfg.State.Dir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: stats: %w", err)
	}
	deps.Positions = positions
	deps.Blacklist = blacklist
	deps.Stats = stats

	// --- PostgreSQL trade journal (optional) ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Journal = postgres.NewTradeJournal(pgClient.Pool())
	}

	// --- Redis (optional; rate limiting falls back to in-process) ---
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Mirror = redis.NewBookMirror(redisClient)
		deps.Bus = redis.NewEventBus(redisClient)
	} else {
		deps.Limiter = memory.NewRateLimiter()
	}

	// --- Discovery ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)

	// --- Alerts ---
	var senders []notify.Sender
	if cfg.Notify.Enabled() {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
