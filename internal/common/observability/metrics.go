package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"dominion-workers/internal/common/metrics"
)

// Observability records job and completion telemetry through an OpenTelemetry meter
// exported in Prometheus format. The zero value is usable and records only the
// promauto vectors.
type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	jobCounter         otelmetric.Int64Counter
	jobDuration        otelmetric.Float64Histogram
	completionCounter  otelmetric.Int64Counter
	completionDuration otelmetric.Float64Histogram
}

// New registers the exporter on the default Prometheus registerer.
func New(serviceName string) *Observability {
	return NewWithRegisterer(serviceName, promclient.DefaultRegisterer)
}

func NewWithRegisterer(serviceName string, registerer promclient.Registerer) *Observability {
	exporter, err := prometheus.New(prometheus.WithRegisterer(registerer))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	completionCounter, _ := meter.Int64Counter(
		"dominion.completions",
		otelmetric.WithDescription("Number of completion calls"),
	)

	completionDuration, _ := meter.Float64Histogram(
		"dominion.completion.duration",
		otelmetric.WithDescription("Completion call latency"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		jobCounter:         jobCounter,
		jobDuration:        jobDuration,
		completionCounter:  completionCounter,
		completionDuration: completionDuration,
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordInvocation records one completion call for category. An empty failureKind is a success.
func (o *Observability) RecordInvocation(ctx context.Context, category, failureKind string, elapsed time.Duration) {
	metrics.ObserveCompletion(category, failureKind, elapsed)

	outcome := metrics.OutcomeSuccess
	if failureKind != "" {
		outcome = metrics.OutcomeFailure
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("category", category),
		attribute.String("outcome", outcome),
		attribute.String("failure_kind", failureKind),
	)

	if o.completionCounter != nil {
		o.completionCounter.Add(ctx, 1, attrs)
	}
	if o.completionDuration != nil {
		o.completionDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
