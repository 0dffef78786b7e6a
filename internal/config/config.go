// Package config defines the top-level configuration for the trading engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYTRADER_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	API        APIConfig        `toml:"api"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Exits      ExitsConfig      `toml:"exits"`
	Trading    TradingConfig    `toml:"trading"`
	Loop       LoopConfig       `toml:"loop"`
	Retry      RetryConfig      `toml:"retry"`
	Feed       FeedConfig       `toml:"feed"`
	State      StateConfig      `toml:"state"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	FunderAddress    string `toml:"funder_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
}

// APIConfig holds CLOB L2 API credentials.
type APIConfig struct {
	Key        string `toml:"key"`
	Secret     string `toml:"secret"`
	Passphrase string `toml:"passphrase"`
}

// ScannerConfig holds candidate filters and scoring weights.
type ScannerConfig struct {
	MinOdds      float64 `toml:"min_odds"`
	MaxOdds      float64 `toml:"max_odds"`
	MaxSpreadPct float64 `toml:"max_spread_pct"`
	MinVolume24h float64 `toml:"min_volume_24h"`
	MinLiquidity float64 `toml:"min_liquidity"`
	MinDays      float64 `toml:"min_days_to_resolution"`
	MaxDays      float64 `toml:"max_days_to_resolution"`
	ScanLimit    int     `toml:"scan_limit"`

	Weights ScoreWeights `toml:"weights"`
}

// ScoreWeights are the relative weights of the four scoring components.
type ScoreWeights struct {
	Spread float64 `toml:"spread"`
	Volume float64 `toml:"volume"`
	Odds   float64 `toml:"odds"`
	Time   float64 `toml:"time"`
}

// Total returns the sum of all weights.
func (w ScoreWeights) Total() float64 {
	return w.Spread + w.Volume + w.Odds + w.Time
}

// ExitBucket maps an entry-price range to TP/SL percentages. TPPct and SLPct
// are fractions of entry price (0.12 means +12%).
type ExitBucket struct {
	Min   float64 `toml:"min"`
	Max   float64 `toml:"max"`
	TPPct float64 `toml:"tp_pct"`
	SLPct float64 `toml:"sl_pct"`
}

// Contains reports whether price falls in [Min, Max).
func (b ExitBucket) Contains(price float64) bool {
	return price >= b.Min && price < b.Max
}

// ExitsConfig holds exit-planning and exit-execution parameters.
type ExitsConfig struct {
	// Mode selects the preferred exit strategy for new positions:
	// "limit_orders" rests GTC exit orders, "monitor" polls prices.
	Mode              string       `toml:"mode"`
	Buckets           []ExitBucket `toml:"buckets"`
	MinSellPriceRatio float64      `toml:"min_sell_price_ratio"`
	BlacklistDays     int          `toml:"blacklist_days"`
	BlacklistAttempts int          `toml:"blacklist_attempts"`
}

// TradingConfig holds position sizing and global risk limits.
type TradingConfig struct {
	TradeSize      float64  `toml:"trade_size"`
	MinTradeSize   float64  `toml:"min_trade_size"`
	CapitalReserve float64  `toml:"capital_reserve"`
	MaxPositions   int      `toml:"max_positions"`
	Cooldown       duration `toml:"cooldown"`
	DailyLossLimit float64  `toml:"daily_loss_limit"`
	DryRun         bool     `toml:"dry_run"`
}

// LoopConfig holds the orchestrator tick cadences.
type LoopConfig struct {
	FastTick duration `toml:"fast_tick"`
	SlowTick duration `toml:"slow_tick"`
}

// RetryConfig holds API retry and rate-limit parameters.
type RetryConfig struct {
	Attempts          int      `toml:"attempts"`
	Backoff           duration `toml:"backoff"`
	CallTimeout       duration `toml:"call_timeout"`
	MaxCallsPerMinute int      `toml:"max_calls_per_minute"`
}

// FeedConfig holds websocket feed parameters.
type FeedConfig struct {
	ReconnectBase duration `toml:"reconnect_base"`
	ReconnectMax  duration `toml:"reconnect_max"`
	// DegradeAfter is the consecutive-failure count that flips the feed
	// into degraded mode.
	DegradeAfter int      `toml:"degrade_after"`
	StaleAfter   duration `toml:"stale_after"`
}

// StateConfig holds the on-disk state directory.
type StateConfig struct {
	Dir string `toml:"dir"`
}

// PostgresConfig holds the optional trade-journal database. Leave DSN and
// Host empty to disable the journal.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a journal connection is configured.
func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != "" || c.Host != ""
}

// RedisConfig holds Redis connection parameters. Leave Addr empty to run
// without Redis (in-process rate limiting, no mirror or event bus).
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Enabled reports whether a Redis connection is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// S3Config holds S3-compatible object storage parameters for state backups.
// Leave Bucket empty to disable archiving.
type S3Config struct {
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// Enabled reports whether state archiving is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// NotifyConfig holds operator alert channels. Leave the Telegram fields
// empty to disable alerting; events filters which alert types are delivered
// (empty means all).
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// Enabled reports whether an alert channel is configured.
func (c NotifyConfig) Enabled() bool {
	return c.TelegramToken != ""
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com",
			ChainID:       137,
			SignatureType: 2,
		},
		Scanner: ScannerConfig{
			MinOdds:      0.30,
			MaxOdds:      0.70,
			MaxSpreadPct: 5.0,
			MinVolume24h: 100.0,
			MinLiquidity: 100.0,
			MinDays:      1.0,
			MaxDays:      30.0,
			ScanLimit:    200,
			Weights: ScoreWeights{
				Spread: 40,
				Volume: 30,
				Odds:   20,
				Time:   10,
			},
		},
		Exits: ExitsConfig{
			Mode: "limit_orders",
			Buckets: []ExitBucket{
				{Min: 0.30, Max: 0.40, TPPct: 0.20, SLPct: 0.15},
				{Min: 0.40, Max: 0.50, TPPct: 0.15, SLPct: 0.12},
				{Min: 0.50, Max: 0.60, TPPct: 0.12, SLPct: 0.10},
				{Min: 0.60, Max: 0.70, TPPct: 0.10, SLPct: 0.08},
			},
			MinSellPriceRatio: 0.5,
			BlacklistDays:     3,
			BlacklistAttempts: 2,
		},
		Trading: TradingConfig{
			TradeSize:      10.0,
			MinTradeSize:   1.0,
			CapitalReserve: 5.0,
			MaxPositions:   5,
			Cooldown:       duration{5 * time.Minute},
			DailyLossLimit: 3.0,
			DryRun:         false,
		},
		Loop: LoopConfig{
			FastTick: duration{10 * time.Second},
			SlowTick: duration{2 * time.Minute},
		},
		Retry: RetryConfig{
			Attempts:          3,
			Backoff:           duration{5 * time.Second},
			CallTimeout:       duration{15 * time.Second},
			MaxCallsPerMinute: 20,
		},
		Feed: FeedConfig{
			ReconnectBase: duration{2 * time.Second},
			ReconnectMax:  duration{time.Minute},
			DegradeAfter:  5,
			StaleAfter:    duration{30 * time.Second},
		},
		State: StateConfig{
			Dir: "state",
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "polytrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:        "",
			Region:          "us-east-1",
			ForcePathStyle:  true,
			ArchiveInterval: duration{time.Hour},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":  true,
	"scan":   true,
	"status": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validExitModes enumerates the accepted values for Exits.Mode.
var validExitModes = map[string]bool{
	"monitor":      true,
	"limit_orders": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, scan, status)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet: a credential source is required for trade mode unless dry-run.
	if c.Mode == "trade" && !c.Trading.DryRun {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType != 1 && c.Polymarket.SignatureType != 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 1 (EOA) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}

	// API: all three fields must be set together, or all empty.
	ak := c.API.Key != ""
	as := c.API.Secret != ""
	ap := c.API.Passphrase != ""
	if ak || as || ap {
		if !(ak && as && ap) {
			errs = append(errs, "api: key, secret, and passphrase must all be set together")
		}
	}

	// Scanner
	if c.Scanner.MinOdds < 0 || c.Scanner.MinOdds >= 1 {
		errs = append(errs, fmt.Sprintf("scanner: min_odds must be in [0,1), got %g", c.Scanner.MinOdds))
	}
	if c.Scanner.MaxOdds <= c.Scanner.MinOdds || c.Scanner.MaxOdds > 1 {
		errs = append(errs, fmt.Sprintf("scanner: max_odds must be in (min_odds,1], got %g", c.Scanner.MaxOdds))
	}
	if c.Scanner.MaxSpreadPct <= 0 {
		errs = append(errs, "scanner: max_spread_pct must be > 0")
	}
	if c.Scanner.MinDays < 0 {
		errs = append(errs, "scanner: min_days_to_resolution must be >= 0")
	}
	if c.Scanner.MaxDays <= c.Scanner.MinDays {
		errs = append(errs, "scanner: max_days_to_resolution must exceed min_days_to_resolution")
	}
	if c.Scanner.Weights.Total() <= 0 {
		errs = append(errs, "scanner: score weights must sum to > 0")
	}

	// Exits
	if !validExitModes[c.Exits.Mode] {
		errs = append(errs, fmt.Sprintf("exits: unknown mode %q (valid: monitor, limit_orders)", c.Exits.Mode))
	}
	if len(c.Exits.Buckets) == 0 {
		errs = append(errs, "exits: at least one bucket must be configured")
	}
	for i, b := range c.Exits.Buckets {
		if b.Min >= b.Max {
			errs = append(errs, fmt.Sprintf("exits: bucket %d: min %g must be below max %g", i, b.Min, b.Max))
		}
		if b.TPPct <= 0 || b.SLPct <= 0 || b.SLPct >= 1 {
			errs = append(errs, fmt.Sprintf("exits: bucket %d: tp_pct must be > 0 and sl_pct in (0,1)", i))
		}
	}
	if c.Exits.MinSellPriceRatio < 0 || c.Exits.MinSellPriceRatio >= 1 {
		errs = append(errs, "exits: min_sell_price_ratio must be in [0,1)")
	}
	if c.Exits.BlacklistAttempts < 1 {
		errs = append(errs, "exits: blacklist_attempts must be >= 1")
	}

	// Trading
	if c.Trading.TradeSize <= 0 {
		errs = append(errs, "trading: trade_size must be > 0")
	}
	if c.Trading.MinTradeSize <= 0 || c.Trading.MinTradeSize > c.Trading.TradeSize {
		errs = append(errs, "trading: min_trade_size must be > 0 and <= trade_size")
	}
	if c.Trading.MaxPositions < 1 {
		errs = append(errs, "trading: max_positions must be >= 1")
	}
	if c.Trading.DailyLossLimit <= 0 {
		errs = append(errs, "trading: daily_loss_limit must be > 0")
	}

	// Loop
	if c.Loop.FastTick.Duration <= 0 || c.Loop.SlowTick.Duration <= 0 {
		errs = append(errs, "loop: fast_tick and slow_tick must be > 0")
	}
	if c.Loop.FastTick.Duration >= c.Loop.SlowTick.Duration {
		errs = append(errs, "loop: fast_tick must be shorter than slow_tick")
	}

	// Retry
	if c.Retry.Attempts < 1 {
		errs = append(errs, "retry: attempts must be >= 1")
	}
	if c.Retry.MaxCallsPerMinute < 1 {
		errs = append(errs, "retry: max_calls_per_minute must be >= 1")
	}

	// Feed
	if c.Feed.ReconnectBase.Duration <= 0 || c.Feed.ReconnectMax.Duration < c.Feed.ReconnectBase.Duration {
		errs = append(errs, "feed: reconnect_base must be > 0 and <= reconnect_max")
	}
	if c.Feed.DegradeAfter < 1 {
		errs = append(errs, "feed: degrade_after must be >= 1")
	}

	// State
	if c.State.Dir == "" {
		errs = append(errs, "state: dir must not be empty")
	}

	// Postgres (only when configured)
	if c.Postgres.Enabled() && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis (only when configured)
	if c.Redis.Enabled() && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Notify (only when configured)
	if c.Notify.Enabled() && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}

	// S3 (only when configured)
	if c.S3.Enabled() {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
