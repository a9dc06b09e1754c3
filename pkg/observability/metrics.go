package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics and Prometheus integration
// for the pipeline's own domain: wire-codec throughput, ring transport
// health, arbitrage-detector output and gas anomalies, alongside generic
// HTTP request metrics.
type MetricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *prometheus.Registry

	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	codecMessagesParsed  metric.Int64Counter
	codecParseRejections metric.Int64Counter

	ringRecordsPublished metric.Int64Counter
	ringRecordsDropped   metric.Int64Counter
	ringConsumerLag      metric.Float64Gauge

	opportunitiesDetected metric.Int64Counter
	opportunityProfitUSD  metric.Float64Histogram
	gasAnomaliesDetected  metric.Int64Counter
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Namespace      string
	Port           int
	Enabled        bool
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	// Create Prometheus registry
	registry := prometheus.NewRegistry()

	// Create Prometheus exporter
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	// Create resource
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	// Set global meter provider
	otel.SetMeterProvider(meterProvider)

	// Create meter
	meter := meterProvider.Meter(cfg.ServiceName)

	// Initialize metrics
	mp := &MetricsProvider{
		meterProvider: meterProvider,
		meter:         meter,
		registry:      registry,
	}

	if err := mp.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return mp, nil
}

// initializeMetrics creates all application metrics
func (mp *MetricsProvider) initializeMetrics() error {
	var err error

	// HTTP metrics
	mp.httpRequestsTotal, err = mp.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	mp.httpRequestDuration, err = mp.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	// Codec metrics (C2)
	mp.codecMessagesParsed, err = mp.meter.Int64Counter(
		"codec_messages_parsed_total",
		metric.WithDescription("Total wire messages successfully parsed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create codec_messages_parsed_total counter: %w", err)
	}

	mp.codecParseRejections, err = mp.meter.Int64Counter(
		"codec_parse_rejections_total",
		metric.WithDescription("Total wire messages rejected by ParseFast/ParseValidated"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create codec_parse_rejections_total counter: %w", err)
	}

	// Ring transport metrics (C4)
	mp.ringRecordsPublished, err = mp.meter.Int64Counter(
		"ring_records_published_total",
		metric.WithDescription("Total records published to the ring transport"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ring_records_published_total counter: %w", err)
	}

	mp.ringRecordsDropped, err = mp.meter.Int64Counter(
		"ring_records_dropped_total",
		metric.WithDescription("Total records dropped under the overwrite-unread overflow policy"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ring_records_dropped_total counter: %w", err)
	}

	mp.ringConsumerLag, err = mp.meter.Float64Gauge(
		"ring_consumer_lag_records",
		metric.WithDescription("Most recently observed consumer lag, in records"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ring_consumer_lag_records gauge: %w", err)
	}

	// Arbitrage detector metrics (C8)
	mp.opportunitiesDetected, err = mp.meter.Int64Counter(
		"arbitrage_opportunities_detected_total",
		metric.WithDescription("Total profitable arbitrage candidates emitted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create arbitrage_opportunities_detected_total counter: %w", err)
	}

	mp.opportunityProfitUSD, err = mp.meter.Float64Histogram(
		"arbitrage_opportunity_profit_usd",
		metric.WithDescription("Expected profit in USD for emitted opportunities"),
		metric.WithUnit("{usd}"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return fmt.Errorf("failed to create arbitrage_opportunity_profit_usd histogram: %w", err)
	}

	// Gas-distribution tracker metrics (C11)
	mp.gasAnomaliesDetected, err = mp.meter.Int64Counter(
		"gas_anomalies_detected_total",
		metric.WithDescription("Total gas-cost anomalies flagged across all scenarios"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create gas_anomalies_detected_total counter: %w", err)
	}

	return nil
}

// HTTP Metrics Methods

// RecordHTTPRequest records an HTTP request metric
func (mp *MetricsProvider) RecordHTTPRequest(ctx context.Context, method, path, status string, duration time.Duration) {
	if mp.httpRequestsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	}

	mp.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// Codec Metrics Methods

// RecordCodecParse records a single ParseFast/ParseValidated outcome.
func (mp *MetricsProvider) RecordCodecParse(ctx context.Context, domain string, accepted bool) {
	if mp.codecMessagesParsed == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("domain", domain)}
	if accepted {
		mp.codecMessagesParsed.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	mp.codecParseRejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Ring Transport Metrics Methods

// RecordRingPublish records a single successful ring publish.
func (mp *MetricsProvider) RecordRingPublish(ctx context.Context, feedID string) {
	if mp.ringRecordsPublished == nil {
		return
	}
	mp.ringRecordsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("feed_id", feedID)))
}

// RecordRingDrop records a record dropped under OverwriteUnread.
func (mp *MetricsProvider) RecordRingDrop(ctx context.Context, feedID string) {
	if mp.ringRecordsDropped == nil {
		return
	}
	mp.ringRecordsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("feed_id", feedID)))
}

// UpdateRingConsumerLag records the most recently observed lag for a
// consumer.
func (mp *MetricsProvider) UpdateRingConsumerLag(ctx context.Context, feedID string, consumerID int, lag int64) {
	if mp.ringConsumerLag == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("feed_id", feedID),
		attribute.Int("consumer_id", consumerID),
	}
	mp.ringConsumerLag.Record(ctx, float64(lag), metric.WithAttributes(attrs...))
}

// Arbitrage Detector Metrics Methods

// RecordOpportunity records a detected arbitrage opportunity's strategy
// tag and expected profit.
func (mp *MetricsProvider) RecordOpportunity(ctx context.Context, strategy string, profitUSD float64) {
	if mp.opportunitiesDetected == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("strategy", strategy)}
	mp.opportunitiesDetected.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.opportunityProfitUSD.Record(ctx, profitUSD, metric.WithAttributes(attrs...))
}

// Gas-Distribution Tracker Metrics Methods

// RecordGasAnomaly records a single flagged anomaly for a named scenario.
func (mp *MetricsProvider) RecordGasAnomaly(ctx context.Context, scenario, method, severity string) {
	if mp.gasAnomaliesDetected == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("scenario", scenario),
		attribute.String("method", method),
		attribute.String("severity", severity),
	}
	mp.gasAnomaliesDetected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// StartMetricsServer starts the Prometheus metrics HTTP server
func (mp *MetricsProvider) StartMetricsServer(port int) error {
	if mp.registry == nil {
		return fmt.Errorf("metrics not enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider == nil {
		return nil
	}
	return mp.meterProvider.Shutdown(ctx)
}
