// Package observe provides the observability primitives used across voxbridge:
// OpenTelemetry metrics and tracing, trace-aware structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed in
// Prometheus format by the handler returned from [InitProvider]. Tests should
// build their own [Metrics] with [NewMetrics] and a manual reader to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/voxbridge"

// Pipeline stage names used as the "stage" attribute and in span names.
const (
	StageDownload      = "download"
	StageTranscode     = "transcode"
	StageTranscription = "transcription"
	StageDetection     = "detection"
	StageTranslation   = "translation"
	StageSynthesis     = "synthesis"
	StageDelivery      = "delivery"
)

// Metrics holds all metric instruments. The zero value is not usable; build it
// with [NewMetrics].
type Metrics struct {
	// StageDuration tracks per-stage latency. Attributes: stage, status.
	StageDuration metric.Float64Histogram

	// ProviderRequests counts vendor calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts vendor failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// Fallbacks counts fallback steps taken. Attributes: kind, step.
	Fallbacks metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes.
	// Attributes: breaker, to.
	BreakerTransitions metric.Int64Counter

	// Messages counts processed inbound messages. Attributes: kind, outcome.
	Messages metric.Int64Counter

	// QueueDepth tracks tasks waiting for a dispatch worker.
	QueueDepth metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP handling time. Attributes: method, route, status_class.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets covers a webhook round trip up to a slow synthesis call.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60,
}

// NewMetrics creates all instruments on the given [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("voxbridge.stage.duration",
		metric.WithDescription("Latency of one message pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("voxbridge.provider.requests",
		metric.WithDescription("Vendor API requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxbridge.provider.errors",
		metric.WithDescription("Vendor API errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("voxbridge.fallbacks",
		metric.WithDescription("Fallback steps taken by kind and step."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voxbridge.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.Messages, err = m.Int64Counter("voxbridge.messages",
		metric.WithDescription("Inbound messages processed by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("voxbridge.dispatch.queue_depth",
		metric.WithDescription("Inbound messages waiting for a worker."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxbridge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on the global meter
// provider. Call it after [InitProvider] so instruments land on the exporter.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStage records the duration since start for stage.
func (m *Metrics) ObserveStage(ctx context.Context, stage string, start time.Time, err error) {
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status(err)),
		),
	)
}

// RecordProviderRequest counts one vendor call and, on failure, one error.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind string, err error) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status(err)),
		),
	)
	if err != nil {
		m.ProviderErrors.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("provider", provider),
				attribute.String("kind", kind),
			),
		)
	}
}

// RecordFallback counts one fallback step, e.g. kind "synthesis", step "language_only".
func (m *Metrics) RecordFallback(ctx context.Context, kind, step string) {
	m.Fallbacks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("step", step),
		),
	)
}

// RecordBreakerTransition counts a circuit breaker moving to state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("to", to),
		),
	)
}

// RecordMessage counts one processed inbound message.
func (m *Metrics) RecordMessage(ctx context.Context, kind, outcome string) {
	m.Messages.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		),
	)
}
