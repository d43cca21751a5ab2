// Command marketmaker runs the automated market-making agent: it wires the
// Gate, the market-data trackers, the account/execution trackers, and the
// periodic Maker round, then blocks until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xervantex/scalpl/internal/account"
	"github.com/xervantex/scalpl/internal/api"
	"github.com/xervantex/scalpl/internal/config"
	"github.com/xervantex/scalpl/internal/exchange"
	"github.com/xervantex/scalpl/internal/gate"
	"github.com/xervantex/scalpl/internal/maker"
	"github.com/xervantex/scalpl/internal/market"
	"github.com/xervantex/scalpl/internal/risk"
	"github.com/xervantex/scalpl/pkg/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "marketmaker:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("MM_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := buildLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signer, err := exchange.LoadSigner(cfg.Credential.KeyFile, cfg.Credential.SecretFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	rl := exchange.NewRateLimiter(cfg.Gate.BucketCapacity, cfg.Gate.RefillPerSec)
	client := exchange.NewClient(cfg.API.BaseURL, signer, rl, logger)
	g := gate.New(ctx, client, signer, logger)

	mkt, err := bootstrapMarket(ctx, g, cfg.Market)
	if err != nil {
		return fmt.Errorf("bootstrap market: %w", err)
	}
	logger.Info("bootstrapped market", "pair", mkt.Symbol, "price_decimals", mkt.PriceDecimals, "fee_pct", mkt.FeePct)

	trades := market.NewTradesTracker(ctx, g, mkt.Symbol, cfg.Trades.Delay, logger)
	book := market.NewBookTracker(ctx, g, mkt.Symbol, cfg.Maker.MaxOrders*4, mkt.PriceDecimals, cfg.Book.Delay, logger)
	acct := account.NewAccountTracker(ctx, g, mkt.Symbol, cfg.Account.Delay, logger)

	guard := risk.New(risk.Config{
		MaxExposureQuote:  cfg.Risk.MaxExposureQuote,
		MaxDailyLossQuote: cfg.Risk.MaxDailyLossQuote,
		CooldownAfterKill: cfg.Risk.CooldownAfterKill,
	}, logger)

	m := maker.New(maker.Config{
		ResilienceFactor:        cfg.Maker.ResilienceFactor,
		FundFactor:              cfg.Maker.FundFactor,
		TargetingFactor:         cfg.Maker.TargetingFactor,
		MaxOrders:               cfg.Maker.MaxOrders,
		SizeToleranceFraction:   cfg.Maker.SizeToleranceFraction,
		RefreshInterval:         cfg.Maker.RefreshInterval,
		StaleBookTimeout:        cfg.Maker.StaleBookTimeout,
		VWAPWindow:              cfg.Maker.VWAPWindow,
		PlaceInwardOnEqualPrice: cfg.Maker.PlaceInwardOnEqualPrice,
	}, mkt, trades, book, acct, guard, logger)

	liveOrdersLoop(ctx, g, m, mkt, cfg.Account.Delay, logger)
	go m.Run(ctx)

	var dash *api.Server
	if cfg.Dashboard.Enabled {
		snap := &snapshotProvider{mkt: mkt, book: book, acct: acct, guard: guard}
		dash = api.NewServer(cfg.Dashboard.Port, snap, m, logger)
		go func() {
			if err := dash.Start(); err != nil {
				logger.Error("dashboard exited", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	if dash != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = dash.Stop(shutdownCtx)
	}
	return nil
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func bootstrapMarket(ctx context.Context, g *gate.Gate, cfg config.MarketConfig) (types.Market, error) {
	pairs, err := g.AssetPairs(ctx, cfg.Pair)
	if err != nil {
		return types.Market{
			Symbol:         cfg.Pair,
			PriceDecimals:  cfg.PairDecimals,
			VolumeDecimals: cfg.LotDecimals,
			Base:           cfg.Base,
			Quote:          cfg.Quote,
			FeePct:         cfg.FeePct,
		}, nil
	}
	info, ok := pairs[cfg.Pair]
	if !ok {
		return types.Market{}, fmt.Errorf("asset pair %q not found", cfg.Pair)
	}
	feePct := cfg.FeePct
	if f, err := parsePct(info.FeeTakerPct); err == nil {
		feePct = f
	}
	return types.Market{
		Symbol:         cfg.Pair,
		PriceDecimals:  info.PairDecimals,
		VolumeDecimals: info.LotDecimals,
		Base:           info.Base,
		Quote:          info.Quote,
		FeePct:         feePct,
	}, nil
}

func parsePct(s string) (float64, error) {
	var v float64
	_, err := fmt.Sscanf(s, "%f", &v)
	return v / 100, err
}

// liveOrdersLoop polls OpenOrders and feeds the result into the Maker ahead
// of each round, since the OPE itself has no query surface.
func liveOrdersLoop(ctx context.Context, g *gate.Gate, m *maker.Maker, mkt types.Market, delay time.Duration, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				open, err := g.OpenOrders(ctx)
				if err != nil {
					logger.Warn("open orders poll failed", "error", err)
					continue
				}
				live := make([]types.LiveOrder, 0, len(open))
				for _, o := range open {
					lo, err := openOrderToLive(o, mkt.PriceDecimals)
					if err != nil {
						logger.Warn("malformed open order", "oid", o.OID, "error", err)
						continue
					}
					live = append(live, lo)
				}
				m.SetLiveOrders(live)
			}
		}
	}()
}

func openOrderToLive(o types.OpenOrderInfo, priceDecimals int) (types.LiveOrder, error) {
	tick, err := types.ParsePriceTick(o.Price, priceDecimals)
	if err != nil {
		return types.LiveOrder{}, err
	}
	var volFloat float64
	if _, err := fmt.Sscanf(o.Volume, "%f", &volFloat); err != nil {
		return types.LiveOrder{}, err
	}
	return types.LiveOrder{OID: o.OID, PriceTick: tick, Volume: volFloat}, nil
}
