package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"raffler/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the raffle engine
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	mu            sync.RWMutex

	entriesCreatedCounter metric.Int64Counter
	drawsCompletedCounter metric.Int64Counter
	payoutsCounter        metric.Int64Counter
	payoutDurationHist    metric.Float64Histogram
	chainRPCErrorsCounter metric.Int64Counter
	queryDurationHist     metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// newResource describes this service on top of the SDK defaults. The semconv
// version has to match the one the SDK's default resource is built with or
// the merge fails on conflicting schema URLs.
func newResource(cfg *config.Config) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.OTelServiceName),
			attribute.String("environment", cfg.Environment),
		),
	)
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meter != nil {
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return nil
	}

	res, err := newResource(mp.config)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)
	otel.SetMeterProvider(mp.meterProvider)

	if err := mp.createInstruments(mp.meterProvider.Meter("raffler")); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	log.Info("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments on meter
func (mp *MetricsProvider) createInstruments(meter metric.Meter) error {
	var err error

	mp.entriesCreatedCounter, err = meter.Int64Counter(
		EntriesCreatedTotal,
		metric.WithDescription("Total number of verified raffle entries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create entries counter: %w", err)
	}

	mp.drawsCompletedCounter, err = meter.Int64Counter(
		DrawsCompletedTotal,
		metric.WithDescription("Total number of completed draws"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create draws counter: %w", err)
	}

	mp.payoutsCounter, err = meter.Int64Counter(
		PayoutsTotal,
		metric.WithDescription("Total number of finished payout attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create payouts counter: %w", err)
	}

	mp.payoutDurationHist, err = meter.Float64Histogram(
		PayoutDuration,
		metric.WithDescription("Duration of prize transfers in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return fmt.Errorf("failed to create payout duration histogram: %w", err)
	}

	mp.chainRPCErrorsCounter, err = meter.Int64Counter(
		ChainRPCErrorsTotal,
		metric.WithDescription("Total number of failed settlement chain RPC calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create chain RPC error counter: %w", err)
	}

	mp.queryDurationHist, err = meter.Float64Histogram(
		DatabaseQueryDuration,
		metric.WithDescription("Duration of engine transactions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create query duration histogram: %w", err)
	}

	mp.meter = meter
	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordEntryCreated counts a verified entry
func (mp *MetricsProvider) RecordEntryCreated() {
	if !mp.isEnabled() {
		return
	}
	mp.entriesCreatedCounter.Add(context.Background(), 1)
}

// RecordDrawCompleted counts a completed draw by randomness mode
func (mp *MetricsProvider) RecordDrawCompleted(mode string) {
	if !mp.isEnabled() {
		return
	}
	mp.drawsCompletedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelMode, mode)),
	)
}

// RecordPayout counts a finished payout attempt and its transfer duration
func (mp *MetricsProvider) RecordPayout(status string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String(LabelStatus, status))
	mp.payoutsCounter.Add(context.Background(), 1, attrs)
	mp.payoutDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordChainRPCError counts a failed chain call
func (mp *MetricsProvider) RecordChainRPCError(method string) {
	if !mp.isEnabled() {
		return
	}
	mp.chainRPCErrorsCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelMethod, method)),
	)
}

// RecordTransaction records how long one engine transaction took
func (mp *MetricsProvider) RecordTransaction(operation string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}
	mp.queryDurationHist.Record(context.Background(), duration.Seconds(),
		metric.WithAttributes(attribute.String(LabelOperation, operation)),
	)
}

// isEnabled reports whether instruments exist
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.meter != nil
}
