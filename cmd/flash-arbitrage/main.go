// Command flash-arbitrage is the arbitrage-detection launcher: it
// discovers live market-data feeds through the shared registry,
// consumes trades off the ring transport to keep a price cache warm,
// periodically re-evaluates the known pool set for profitable crossings,
// and records each opportunity's predictions in the validation reporter
// and its gas cost in the gas-distribution tracker as it goes; it neither
// computes accuracy nor acts on flagged anomalies itself. Pool-reserve
// ingestion itself (the on-chain log adapter) is an
// external collaborator, the same boundary collector's exchange adapter
// sits behind.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowrelay/marketdata/internal/amm"
	"github.com/flowrelay/marketdata/internal/arbitrage"
	"github.com/flowrelay/marketdata/internal/config"
	"github.com/flowrelay/marketdata/internal/feed"
	"github.com/flowrelay/marketdata/internal/gasmetrics"
	"github.com/flowrelay/marketdata/internal/registry"
	"github.com/flowrelay/marketdata/internal/ring"
	"github.com/flowrelay/marketdata/internal/types"
	"github.com/flowrelay/marketdata/internal/validation"
	"github.com/flowrelay/marketdata/pkg/observability"
	"github.com/shopspring/decimal"
)

const sweepInterval = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(config.ObservabilityConfig{LogLevel: "info", LogFormat: "text", ServiceName: "flash-arbitrage"}).
			Error(context.Background(), "config load failed", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability)
	sysLog := observability.NewSystemLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedRegistry, err := feed.NewRegistry(cfg.Registry.Dir)
	if err != nil {
		logger.Error(ctx, "failed to open feed registry", err)
		os.Exit(1)
	}
	instruments := registry.New()
	prices := arbitrage.NewTradePriceCache()
	pools := arbitrage.NewMemoryPoolStore()

	params := amm.MultiHopParams{
		MaxSlippageBps:    cfg.Detector.MaxSlippageBps,
		PerHopSlippageCap: cfg.Detector.PerHopSlippageCap,
		BaseGasUSD:        decimal.RequireFromString("2"),
		PerHopGasUSD:      decimal.RequireFromString("1"),
		GasSafetyFactor:   decimal.NewFromFloat(cfg.Detector.GasSafetyFactor),
	}
	detector := arbitrage.NewDetector(pools, prices, params)
	gasTracker := gasmetrics.NewTracker(gasmetrics.DefaultWindowSize)
	reporter := validation.NewReporter()

	rings := make(map[string]*ring.Ring)
	discovered, err := feedRegistry.Discover()
	if err != nil {
		logger.Warn(ctx, "feed discovery failed", map[string]interface{}{"error": err.Error()})
	}

	var tradeFeedIDs []string
	for _, m := range discovered {
		if m.FeedType != feed.TypeTrades {
			continue
		}
		r, err := ring.New(ring.KindTrade, m.Capacity, ring.OverwriteUnread)
		if err != nil {
			logger.Warn(ctx, "skipping feed with invalid capacity", map[string]interface{}{"feed_id": m.FeedID, "error": err.Error()})
			continue
		}
		rings[m.FeedID] = r
		tradeFeedIDs = append(tradeFeedIDs, m.FeedID)
	}

	readers, err := feed.InitializeReaders(discovered, rings)
	if err != nil {
		logger.Warn(ctx, "reader initialization failed", map[string]interface{}{"error": err.Error()})
	}

	for _, reader := range readers {
		go consumeTrades(ctx, reader, instruments, prices, sysLog)
	}

	go sweepLoop(ctx, pools, detector, gasTracker, reporter, logger)

	sysLog.LogSystemEvent(ctx, "started", "flash-arbitrage", map[string]interface{}{
		"trade_feeds": len(tradeFeedIDs),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sysLog.LogSystemEvent(ctx, "shutdown", "flash-arbitrage", nil)
}

// consumeTrades drains a single feed's ring and keeps the price cache
// warm. The ring only carries the lossy instrument hint (spec §4.4's
// fixed 64-byte TradeRecord), so resolution goes through the registry's
// secondary hint index — acceptable here since it only ever widens the
// price cache's key set, never substitutes for a full-id equality check
// in the detector itself.
func consumeTrades(ctx context.Context, reader *feed.Reader, instruments *registry.Registry, prices *arbitrage.TradePriceCache, sysLog *observability.SystemLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := reader.Tier.Wait(ctx); err != nil {
			return
		}

		slots, err := reader.Ring.ReadAvailable(reader.ConsumerID)
		if err != nil {
			sysLog.LogSystemEvent(ctx, "reader-fallback", "flash-arbitrage", map[string]interface{}{
				"feed_id": reader.FeedID, "error": err.Error(),
			})
			continue
		}
		for _, slot := range slots {
			rec := ring.DecodeTrade(slot)
			if id, ok := instruments.LookupByHint(rec.InstrumentHint); ok {
				prices.Update(id, types.USD(rec.PriceUSD).Decimal())
			}
		}
		if len(slots) > 0 {
			_ = reader.Ring.Release(reader.ConsumerID, len(slots))
		}
	}
}

// sweepLoop periodically re-evaluates every known pool against every
// other, since pool-reserve arrival itself comes from an external
// adapter rather than the codec TLV stream modeled here. Opportunities
// found feed the gas tracker's named scenario so later anomaly checks
// have a baseline, and their predicted values are recorded in the
// validation reporter immediately (realized outcomes are observed by the
// same external adapter that settles trades).
func sweepLoop(ctx context.Context, store *arbitrage.MemoryPoolStore, detector *arbitrage.Detector, gasTracker *gasmetrics.Tracker, reporter *validation.Reporter, logger *observability.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var found int
			for _, pool := range store.AllPools() {
				opps, errs := detector.OnPoolUpdate(pool)
				found += len(opps)
				for _, err := range errs {
					logger.Debug(ctx, "sweep candidate rejected", map[string]interface{}{"error": err.Error()})
				}
				for _, opp := range opps {
					gasTracker.Insert("sweep."+string(opp.Strategy), opp.GasCostUSD.InexactFloat64())

					// Realized gas/slippage/profit only become known once
					// the trade settles on-chain, which (like pool-reserve
					// ingestion itself) arrives through the external
					// chain-log adapter, not this sweep. Predicted values
					// are recorded here so Reporter.Compute has a
					// population to score once that adapter starts calling
					// reporter.Record with the realized fields filled in.
					reporter.Record(validation.PredictionRecord{
						OpportunityID:        opp.OpportunityID,
						PredictedGasUSD:      opp.GasCostUSD.InexactFloat64(),
						PredictedSlippageBps: opp.TotalSlippageBps.InexactFloat64(),
						PredictedProfitUSD:   opp.ExpectedProfitUSD.InexactFloat64(),
					})
				}
			}
			logger.Debug(ctx, "arbitrage sweep tick", map[string]interface{}{"opportunities": found})
		}
	}
}
