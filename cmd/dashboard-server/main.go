// Command dashboard-server is the pipeline's egress surface: it
// discovers live order-book-delta feeds through the registry and
// streams each decoded delta record to WebSocket subscribers.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowrelay/marketdata/internal/config"
	"github.com/flowrelay/marketdata/internal/feed"
	"github.com/flowrelay/marketdata/internal/orderbook"
	"github.com/flowrelay/marketdata/internal/ring"
	"github.com/flowrelay/marketdata/pkg/middleware"
	"github.com/flowrelay/marketdata/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability)
	tracingProvider, err := observability.NewTracingProvider(cfg.Observability)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer tracingProvider.Shutdown(context.Background())

	feedRegistry, err := feed.NewRegistry(cfg.Registry.Dir)
	if err != nil {
		log.Fatalf("failed to open feed registry: %v", err)
	}

	tracker := orderbook.NewTracker(orderbook.DefaultDepth)
	hub := newHub(tracker, logger)

	rings := make(map[string]*ring.Ring)
	discovered, err := feedRegistry.Discover()
	if err != nil {
		logger.Warn(context.Background(), "feed discovery failed", map[string]interface{}{"error": err.Error()})
	}
	for _, m := range discovered {
		if m.FeedType != feed.TypeOrderBookDeltas {
			continue
		}
		r, err := ring.New(ring.KindOrderBookDelta, m.Capacity, ring.OverwriteUnread)
		if err != nil {
			continue
		}
		rings[m.FeedID] = r
	}
	readers, err := feed.InitializeReaders(discovered, rings)
	if err != nil {
		logger.Warn(context.Background(), "reader initialization failed", map[string]interface{}{"error": err.Error()})
	}
	for _, reader := range readers {
		go hub.consumeDeltas(context.Background(), reader)
	}

	healthChecker := observability.NewHealthChecker(logger)
	healthChecker.RegisterCheck("feed_registry", observability.FeedRegistryHealthCheck(func() (int, error) {
		feeds, err := feedRegistry.Discover()
		return len(feeds), err
	}))
	for _, reader := range readers {
		r, consumerID := reader.Ring, reader.ConsumerID
		healthChecker.RegisterCheck("ring_lag_"+reader.FeedID, observability.RingLagHealthCheck(func() (int64, error) {
			return r.ConsumerLag(consumerID)
		}, cfg.Ring.LagWarnThreshold))
	}
	healthServer := observability.NewHealthServer(healthChecker, observability.ServiceInfo{
		Name:        cfg.Observability.ServiceName,
		Version:     "1.0.0",
		Environment: "production",
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      setupRoutes(hub, healthServer, cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(context.Background(), "starting dashboard server", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(context.Background(), "shutting down dashboard server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info(context.Background(), "dashboard server stopped", nil)
}

func setupRoutes(hub *hub, healthServer *observability.HealthServer, cfg *config.Config, logger *observability.Logger) http.Handler {
	mux := http.NewServeMux()

	handler := middleware.Recovery(logger)(
		middleware.Logging(logger)(
			middleware.Tracing("dashboard-server")(
				middleware.CORS(cfg.Server.CORSAllowedOrigins)(
					middleware.RateLimit(cfg.RateLimit)(mux),
				),
			),
		),
	)

	healthServer.RegisterRoutes(mux)
	mux.HandleFunc("GET /ws/orderbook", hub.handleSubscribe)

	return handler
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub fans out order-book snapshots/deltas reconstructed from the ring
// transport to every connected WebSocket subscriber.
type hub struct {
	tracker *orderbook.Tracker
	logger  *observability.Logger

	mu   sync.RWMutex
	subs map[*websocket.Conn]struct{}
}

func newHub(tracker *orderbook.Tracker, logger *observability.Logger) *hub {
	return &hub{tracker: tracker, logger: logger, subs: make(map[*websocket.Conn]struct{})}
}

func (h *hub) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.subs[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Subscribers are read-only; the only inbound traffic is control
	// frames (ping/close), which ReadMessage still needs to drain.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) broadcast(v interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.subs {
		if err := conn.WriteJSON(v); err != nil {
			h.logger.Debug(context.Background(), "dropping slow subscriber", map[string]interface{}{"error": err.Error()})
		}
	}
}

// consumeDeltas drains one feed's order-book-delta ring, decodes each
// record, and broadcasts the decoded delta to subscribers; no snapshot
// state is reconstructed here.
func (h *hub) consumeDeltas(ctx context.Context, reader *feed.Reader) {
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
			h.logger.Warn(ctx, "reader fallback", map[string]interface{}{"feed_id": reader.FeedID, "error": err.Error()})
			continue
		}
		for _, slot := range slots {
			rec := ring.DecodeDelta(slot)
			h.broadcast(rec)
		}
		if len(slots) > 0 {
			_ = reader.Ring.Release(reader.ConsumerID, len(slots))
		}
	}
}
