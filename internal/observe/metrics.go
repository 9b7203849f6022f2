// Package observe provides application-wide observability primitives for the
// avatar performance engine: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all performer metrics.
const meterName = "github.com/avatarstage/performer"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// DirectorDuration tracks a single director role call's latency
	// (performance, stage, or camera). Use with attribute "role".
	DirectorDuration metric.Float64Histogram

	// PipelineDuration tracks the full director pipeline run (all three
	// roles, including any chunking) for one song.
	PipelineDuration metric.Float64Histogram

	// CompileDuration tracks plan-to-timeline compilation latency.
	CompileDuration metric.Float64Histogram

	// TickDuration tracks a single engine scheduler tick's processing time.
	TickDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts LLM provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("role", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderRetries counts retry attempts made by the streaming client.
	ProviderRetries metric.Int64Counter

	// PlanFallbacks counts times a director role's output fell back to the
	// heuristic plan instead of the parsed LLM output.
	PlanFallbacks metric.Int64Counter

	// BlocksCompiled counts timeline blocks emitted by the compiler. Use
	// with attribute "layer".
	BlocksCompiled metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("role", ...)
	ProviderErrors metric.Int64Counter

	// EngineErrors counts executor errors surfaced during playback.
	EngineErrors metric.Int64Counter

	// --- Gauges ---

	// ActivePerformances tracks the number of currently playing timelines.
	ActivePerformances metric.Int64UpDownCounter

	// ActiveDirectorCalls tracks in-flight director requests across all
	// roles.
	ActiveDirectorCalls metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for the director/compile/tick latency distribution.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// tickBuckets defines histogram bucket boundaries for sub-frame engine tick
// timings, which are expected to stay well under one 60Hz frame (16.6ms).
var tickBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0166, 0.033, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DirectorDuration, err = m.Float64Histogram("performer.director.duration",
		metric.WithDescription("Latency of a single director role call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("performer.pipeline.duration",
		metric.WithDescription("End-to-end director pipeline latency for one song."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CompileDuration, err = m.Float64Histogram("performer.compile.duration",
		metric.WithDescription("Latency of plan-to-timeline compilation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TickDuration, err = m.Float64Histogram("performer.engine.tick_duration",
		metric.WithDescription("Processing time of a single engine scheduler tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("performer.provider.requests",
		metric.WithDescription("Total LLM provider requests by provider, role, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRetries, err = m.Int64Counter("performer.provider.retries",
		metric.WithDescription("Total retry attempts issued by the streaming client."),
	); err != nil {
		return nil, err
	}
	if met.PlanFallbacks, err = m.Int64Counter("performer.plan.fallbacks",
		metric.WithDescription("Total times a director role fell back to the heuristic plan."),
	); err != nil {
		return nil, err
	}
	if met.BlocksCompiled, err = m.Int64Counter("performer.compile.blocks",
		metric.WithDescription("Total timeline blocks emitted by the compiler, by layer."),
	); err != nil {
		return nil, err
	}

	if met.ProviderErrors, err = m.Int64Counter("performer.provider.errors",
		metric.WithDescription("Total provider errors by provider and role."),
	); err != nil {
		return nil, err
	}
	if met.EngineErrors, err = m.Int64Counter("performer.engine.errors",
		metric.WithDescription("Total executor errors surfaced during playback."),
	); err != nil {
		return nil, err
	}

	if met.ActivePerformances, err = m.Int64UpDownCounter("performer.active_performances",
		metric.WithDescription("Number of currently playing timelines."),
	); err != nil {
		return nil, err
	}
	if met.ActiveDirectorCalls, err = m.Int64UpDownCounter("performer.active_director_calls",
		metric.WithDescription("Number of in-flight director requests across all roles."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("performer.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, role, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("role", role),
			attribute.String("status", status),
		),
	)
}

// RecordProviderRetry records a single retry attempt.
func (m *Metrics) RecordProviderRetry(ctx context.Context, provider, role string) {
	m.ProviderRetries.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("role", role),
		),
	)
}

// RecordPlanFallback records a director role falling back to the heuristic
// plan.
func (m *Metrics) RecordPlanFallback(ctx context.Context, role string) {
	m.PlanFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

// RecordBlocksCompiled records the number of blocks emitted for a layer.
func (m *Metrics) RecordBlocksCompiled(ctx context.Context, layer string, count int64) {
	m.BlocksCompiled.Add(ctx, count, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, role string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("role", role),
		),
	)
}

// RecordEngineError records an executor error counter increment.
func (m *Metrics) RecordEngineError(ctx context.Context, layer string) {
	m.EngineErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}
