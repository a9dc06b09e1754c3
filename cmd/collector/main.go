// Command collector runs a single exchange-feed producer: it owns a
// ring buffer for trades (and, once wired to a real exchange adapter,
// order-book deltas), advertises it through the feed registry, and
// maintains its heartbeat. The exchange-specific ingestion logic itself
// is an external collaborator per the pipeline's scope — this binary is
// the thin launcher that wires a producer into C4/C5.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowrelay/marketdata/internal/config"
	"github.com/flowrelay/marketdata/internal/feed"
	"github.com/flowrelay/marketdata/internal/ring"
	"github.com/flowrelay/marketdata/pkg/observability"
)

func main() {
	exchange := flag.String("exchange", "binance", "exchange name for this collector's feed id")
	symbol := flag.String("symbol", "BTCUSDT", "symbol this collector produces trades for")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := observability.NewLogger(cfg.Observability)

	registry, err := feed.NewRegistry(cfg.Registry.Dir)
	if err != nil {
		log.Fatalf("failed to open feed registry: %v", err)
	}

	var policy ring.OverflowPolicy
	if cfg.Ring.OverflowPolicy == "backpressure" {
		policy = ring.Backpressure
	} else {
		policy = ring.OverwriteUnread
	}

	tradeRing, err := ring.New(ring.KindTrade, cfg.Ring.DefaultCapacity, policy)
	if err != nil {
		log.Fatalf("failed to create trade ring: %v", err)
	}

	feedID := *exchange + "-" + *symbol + "-trades"
	sym := *symbol
	meta := feed.Metadata{
		FeedID:        feedID,
		FeedType:      feed.TypeTrades,
		Path:          cfg.Registry.Dir + "/" + feedID + ".ring",
		Exchange:      *exchange,
		Symbol:        &sym,
		Capacity:      tradeRing.Capacity(),
		CreatedAt:     time.Now().Unix(),
		LastHeartbeat: time.Now().Unix(),
		ProducerPID:   os.Getpid(),
	}
	if err := registry.RegisterFeed(meta); err != nil {
		log.Fatalf("failed to register feed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	perf := observability.NewPerformanceMonitor(logger)
	defer perf.Stop()

	go heartbeatLoop(ctx, registry, feedID, cfg.Registry.HeartbeatInterval, logger)
	go ringMetricsLoop(ctx, tradeRing, perf)

	logger.Info(ctx, "collector started", map[string]interface{}{
		"feed_id":  feedID,
		"exchange": *exchange,
		"symbol":   *symbol,
		"capacity": tradeRing.Capacity(),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "collector shutting down", nil)
}

// ringMetricsLoop periodically samples this producer's own ring so
// drops and capacity pressure show up in the performance monitor even
// though this process has no consumers of its own to report lag for.
func ringMetricsLoop(ctx context.Context, r *ring.Ring, perf *observability.PerformanceMonitor) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			perf.RecordRingMetrics(0, 0, r.Dropped())
		}
	}
}

func heartbeatLoop(ctx context.Context, registry *feed.Registry, feedID string, interval time.Duration, logger *observability.Logger) {
	if interval <= 0 {
		interval = feed.HeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := registry.UpdateHeartbeat(feedID); err != nil {
				logger.Warn(ctx, "heartbeat update failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
