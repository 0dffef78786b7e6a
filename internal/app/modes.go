package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	s3blob "github.com/tidefall-labs/polytrader/internal/blob/s3"
	"github.com/tidefall-labs/polytrader/internal/crypto"
	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/engine"
	"github.com/tidefall-labs/polytrader/internal/executor"
	"github.com/tidefall-labs/polytrader/internal/feed"
	"github.com/tidefall-labs/polytrader/internal/platform/polymarket"
	"github.com/tidefall-labs/polytrader/internal/scanner"
	"github.com/tidefall-labs/polytrader/internal/strategy"
)

// dryRunBankroll is the simulated starting balance when trading dry.
const dryRunBankroll = 1000.0

// TradeMode runs the full trading loop: the websocket book feed, the
// orchestrator, and, when configured, the state archiver.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	trading, err := a.buildTradingClient(ctx)
	if err != nil {
		return err
	}

	ws := polymarket.NewWSClient(
		a.cfg.Polymarket.WsHost,
		a.cfg.Feed.ReconnectBase.Duration,
		a.cfg.Feed.ReconnectMax.Duration,
		a.logger,
	)
	bookFeed := feed.New(ws, feed.Config{
		DegradeAfter: a.cfg.Feed.DegradeAfter,
		StaleAfter:   a.cfg.Feed.StaleAfter.Duration,
	}, a.logger)

	exec := executor.NewEngine(trading, bookFeed, deps.Limiter, executor.Config{
		TradeSize:         a.cfg.Trading.TradeSize,
		MinTradeSize:      a.cfg.Trading.MinTradeSize,
		CapitalReserve:    a.cfg.Trading.CapitalReserve,
		MinSellPriceRatio: a.cfg.Exits.MinSellPriceRatio,
		ExitMode:          domain.ExitMode(a.cfg.Exits.Mode),
		Attempts:          a.cfg.Retry.Attempts,
		Backoff:           a.cfg.Retry.Backoff.Duration,
		CallTimeout:       a.cfg.Retry.CallTimeout.Duration,
		MaxCallsPerMinute: a.cfg.Retry.MaxCallsPerMinute,
	}, a.logger)

	scorer := scanner.New(a.cfg.Scanner, deps.Blacklist, deps.Positions, a.logger)

	eng := engine.New(engine.Config{
		FastTick:          a.cfg.Loop.FastTick.Duration,
		SlowTick:          a.cfg.Loop.SlowTick.Duration,
		MaxPositions:      a.cfg.Trading.MaxPositions,
		Cooldown:          a.cfg.Trading.Cooldown.Duration,
		DailyLossLimit:    a.cfg.Trading.DailyLossLimit,
		BlacklistDuration: time.Duration(a.cfg.Exits.BlacklistDays) * 24 * time.Hour,
		BlacklistAttempts: a.cfg.Exits.BlacklistAttempts,
		ScanLimit:         a.cfg.Scanner.ScanLimit,
	}, a.cfg.Exits.Buckets, engine.Deps{
		Scorer:    scorer,
		Discovery: deps.Gamma,
		Exec:      exec,
		Feed:      bookFeed,
		Positions: deps.Positions,
		Blacklist: deps.Blacklist,
		Stats:     deps.Stats,
		Monitor:   strategy.NewMonitorExit(exec, a.logger),
		Limits:    strategy.NewLimitOrderExit(exec, a.logger),
		Journal:   deps.Journal,
		Bus:       deps.Bus,
		Mirror:    deps.Mirror,
		Notifier:  deps.Notifier,
	}, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bookFeed.Run(ctx)
	})
	g.Go(func() error {
		return eng.Run(ctx)
	})
	if deps.BlobWriter != nil {
		archiver := s3blob.NewArchiver(
			deps.BlobWriter,
			a.cfg.State.Dir,
			a.cfg.S3.ArchiveInterval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	return g.Wait()
}

// buildTradingClient constructs the signed CLOB client, deriving L2 API
// credentials when none are configured. In dry-run mode the client is
// wrapped so orders are simulated; a missing wallet key gets a throwaway
// key, since nothing is ever submitted.
func (a *App) buildTradingClient(ctx context.Context) (domain.TradingClient, error) {
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		if !a.cfg.Trading.DryRun {
			return nil, fmt.Errorf("app: load wallet key: %w", err)
		}
		eph, gerr := gethcrypto.GenerateKey()
		if gerr != nil {
			return nil, fmt.Errorf("app: generate throwaway key: %w", gerr)
		}
		keyHex = hex.EncodeToString(gethcrypto.FromECDSA(eph))
		a.logger.Warn("no wallet key configured, dry run uses a throwaway key")
	}

	signer, err := crypto.NewSigner(keyHex, a.cfg.Polymarket.ChainID)
	if err != nil {
		return nil, fmt.Errorf("app: signer: %w", err)
	}

	var hmacAuth *crypto.HMACAuth
	if a.cfg.API.Key != "" {
		hmacAuth = &crypto.HMACAuth{
			Key:        a.cfg.API.Key,
			Secret:     a.cfg.API.Secret,
			Passphrase: a.cfg.API.Passphrase,
		}
	}

	clob := polymarket.NewClobClient(
		a.cfg.Polymarket.ClobHost,
		signer,
		hmacAuth,
		a.cfg.Polymarket.SignatureType,
		a.cfg.Wallet.FunderAddress,
	)

	if hmacAuth == nil && !a.cfg.Trading.DryRun {
		if err := clob.DeriveAPIKey(ctx); err != nil {
			return nil, fmt.Errorf("app: derive api key: %w", err)
		}
		a.logger.Info("derived CLOB API credentials",
			slog.String("address", signer.Address().Hex()))
	}

	if a.cfg.Trading.DryRun {
		return executor.NewDryRunClient(clob, dryRunBankroll, a.logger), nil
	}
	return clob, nil
}

// ScanMode runs a single discovery pass and prints the scored candidates
// without trading.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	scorer := scanner.New(a.cfg.Scanner, deps.Blacklist, deps.Positions, a.logger)

	candidates, err := deps.Gamma.ActiveMarkets(ctx, a.cfg.Scanner.ScanLimit)
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}

	passed := scorer.Filter(candidates)
	for i := range passed {
		passed[i].Score = scorer.Score(passed[i])
	}
	sort.Slice(passed, func(i, j int) bool { return passed[i].Score > passed[j].Score })

	fmt.Printf("scanned %d markets, %d passed filters\n\n", len(candidates), len(passed))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tODDS\tSPREAD%\tVOL24H\tDAYS\tQUESTION")
	now := time.Now()
	for i, c := range passed {
		if i >= 20 {
			break
		}
		fmt.Fprintf(w, "%.1f\t%.3f\t%.2f\t%.0f\t%.1f\t%s\n",
			c.Score, c.Odds, c.SpreadPct, c.Volume24h, c.DaysToResolution(now), c.Question)
	}
	return w.Flush()
}

// StatusMode prints the open positions and trading statistics.
func (a *App) StatusMode(ctx context.Context, deps *Dependencies) error {
	positions := deps.Positions.All()
	stats := deps.Stats.Stats()

	fmt.Printf("open positions: %d\n", len(positions))
	if len(positions) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tENTRY\tSIZE\tTP\tSL\tMODE\tAGE\tQUESTION")
		now := time.Now()
		for _, p := range positions {
			mode := string(p.Mode())
			if p.ManualHold {
				mode = "MANUAL HOLD"
			}
			fmt.Fprintf(w, "%s\t%.4f\t%.2f\t%.4f\t%.4f\t%s\t%s\t%s\n",
				shortToken(p.TokenID), p.EntryPrice, p.FilledSize,
				p.TakeProfit, p.StopLoss, mode,
				p.HoldDuration(now).Round(time.Minute), p.Question)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	lt := stats.Lifetime
	fmt.Printf("\nlifetime: %d trades, %d wins, %d losses (%.1f%% win rate)\n",
		lt.TotalTrades, lt.Wins, lt.Losses, lt.WinRate*100)
	fmt.Printf("pnl: %+.2f (fees %.2f, invested %.2f, roi %.2f%%)\n",
		lt.TotalPnL, lt.TotalFees, lt.TotalInvested, lt.ROI*100)

	today := domain.DayKey(time.Now())
	if day, ok := stats.Daily[today]; ok {
		fmt.Printf("today: %d trades, pnl %+.2f\n", day.Trades, day.PnL)
	}

	if len(stats.ByOdds) > 0 {
		buckets := make([]string, 0, len(stats.ByOdds))
		for b := range stats.ByOdds {
			buckets = append(buckets, b)
		}
		sort.Strings(buckets)
		fmt.Println("\nby entry odds:")
		for _, b := range buckets {
			bs := stats.ByOdds[b]
			fmt.Printf("  %s: %d trades, %d wins, pnl %+.2f\n", b, bs.Trades, bs.Wins, bs.PnL)
		}
	}

	if deps.BlobReader != nil {
		backups, err := deps.BlobReader.List(ctx, "state/")
		if err != nil {
			a.logger.Warn("archive listing failed", slog.String("error", err.Error()))
		} else if len(backups) > 0 {
			var newest time.Time
			for _, b := range backups {
				if b.LastModified.After(newest) {
					newest = b.LastModified
				}
			}
			fmt.Printf("\narchive: %d objects, newest %s\n",
				len(backups), newest.Format("2006-01-02 15:04"))
		}
	}

	if deps.Journal != nil {
		recent, err := deps.Journal.ListRecent(ctx, 10)
		if err != nil {
			a.logger.Warn("trade journal read failed", slog.String("error", err.Error()))
		} else if len(recent) > 0 {
			fmt.Println("\nrecent trades:")
			for _, r := range recent {
				fmt.Printf("  %s %s %.4f -> %.4f pnl %+.2f (%s)\n",
					r.ExitTime.Format("2006-01-02 15:04"), shortToken(r.TokenID),
					r.EntryPrice, r.ExitPrice, r.PnL, r.ExitReason)
			}
		}
	}

	return nil
}

// shortToken truncates long token IDs for table output.
func shortToken(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + ".."
}
