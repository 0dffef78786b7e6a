package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYTRADER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POLYTRADER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.FunderAddress, "POLYTRADER_WALLET_FUNDER_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYTRADER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYTRADER_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYTRADER_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYTRADER_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYTRADER_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYTRADER_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYTRADER_POLYMARKET_SIGNATURE_TYPE")

	// ── API ──
	setStr(&cfg.API.Key, "POLYTRADER_API_KEY")
	setStr(&cfg.API.Secret, "POLYTRADER_API_SECRET")
	setStr(&cfg.API.Passphrase, "POLYTRADER_API_PASSPHRASE")

	// ── Scanner ──
	setFloat64(&cfg.Scanner.MinOdds, "POLYTRADER_SCANNER_MIN_ODDS")
	setFloat64(&cfg.Scanner.MaxOdds, "POLYTRADER_SCANNER_MAX_ODDS")
	setFloat64(&cfg.Scanner.MaxSpreadPct, "POLYTRADER_SCANNER_MAX_SPREAD_PCT")
	setFloat64(&cfg.Scanner.MinVolume24h, "POLYTRADER_SCANNER_MIN_VOLUME_24H")
	setFloat64(&cfg.Scanner.MinLiquidity, "POLYTRADER_SCANNER_MIN_LIQUIDITY")
	setFloat64(&cfg.Scanner.MinDays, "POLYTRADER_SCANNER_MIN_DAYS_TO_RESOLUTION")
	setFloat64(&cfg.Scanner.MaxDays, "POLYTRADER_SCANNER_MAX_DAYS_TO_RESOLUTION")
	setInt(&cfg.Scanner.ScanLimit, "POLYTRADER_SCANNER_SCAN_LIMIT")

	// ── Exits ──
	setStr(&cfg.Exits.Mode, "POLYTRADER_EXITS_MODE")
	setFloat64(&cfg.Exits.MinSellPriceRatio, "POLYTRADER_EXITS_MIN_SELL_PRICE_RATIO")
	setInt(&cfg.Exits.BlacklistDays, "POLYTRADER_EXITS_BLACKLIST_DAYS")
	setInt(&cfg.Exits.BlacklistAttempts, "POLYTRADER_EXITS_BLACKLIST_ATTEMPTS")

	// ── Trading ──
	setFloat64(&cfg.Trading.TradeSize, "POLYTRADER_TRADING_TRADE_SIZE")
	setFloat64(&cfg.Trading.MinTradeSize, "POLYTRADER_TRADING_MIN_TRADE_SIZE")
	setFloat64(&cfg.Trading.CapitalReserve, "POLYTRADER_TRADING_CAPITAL_RESERVE")
	setInt(&cfg.Trading.MaxPositions, "POLYTRADER_TRADING_MAX_POSITIONS")
	setDuration(&cfg.Trading.Cooldown, "POLYTRADER_TRADING_COOLDOWN")
	setFloat64(&cfg.Trading.DailyLossLimit, "POLYTRADER_TRADING_DAILY_LOSS_LIMIT")
	setBool(&cfg.Trading.DryRun, "POLYTRADER_TRADING_DRY_RUN")

	// ── Loop ──
	setDuration(&cfg.Loop.FastTick, "POLYTRADER_LOOP_FAST_TICK")
	setDuration(&cfg.Loop.SlowTick, "POLYTRADER_LOOP_SLOW_TICK")

	// ── Retry ──
	setInt(&cfg.Retry.Attempts, "POLYTRADER_RETRY_ATTEMPTS")
	setDuration(&cfg.Retry.Backoff, "POLYTRADER_RETRY_BACKOFF")
	setDuration(&cfg.Retry.CallTimeout, "POLYTRADER_RETRY_CALL_TIMEOUT")
	setInt(&cfg.Retry.MaxCallsPerMinute, "POLYTRADER_RETRY_MAX_CALLS_PER_MINUTE")

	// ── Feed ──
	setDuration(&cfg.Feed.ReconnectBase, "POLYTRADER_FEED_RECONNECT_BASE")
	setDuration(&cfg.Feed.ReconnectMax, "POLYTRADER_FEED_RECONNECT_MAX")
	setInt(&cfg.Feed.DegradeAfter, "POLYTRADER_FEED_DEGRADE_AFTER")
	setDuration(&cfg.Feed.StaleAfter, "POLYTRADER_FEED_STALE_AFTER")

	// ── State ──
	setStr(&cfg.State.Dir, "POLYTRADER_STATE_DIR")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYTRADER_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "POLYTRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYTRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYTRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYTRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYTRADER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYTRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYTRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYTRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYTRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYTRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "POLYTRADER_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "POLYTRADER_S3_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "POLYTRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYTRADER_MODE")
	setStr(&cfg.LogLevel, "POLYTRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// setStringSlice splits a comma-separated env value into a slice.
func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
