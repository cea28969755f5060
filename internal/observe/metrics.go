// Package observe provides application-wide observability primitives for
// Cadenza: OpenTelemetry metrics, tracing, and structured logging helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Cadenza metrics.
const meterName = "github.com/talandis/cadenza"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SynthesisDuration tracks per-segment speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// GenerationDuration tracks whole-script generation latency.
	GenerationDuration metric.Float64Histogram

	// LiveSessionDuration tracks live voice session lifetimes.
	LiveSessionDuration metric.Float64Histogram

	// --- Counters ---

	// SynthesisSegments counts synthesised segments. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	SynthesisSegments metric.Int64Counter

	// AudioChunks counts audio chunks produced, batch and live.
	AudioChunks metric.Int64Counter

	// LiveTurns counts sealed live conversation turns. Use with attribute:
	//   attribute.String("speaker", ...)
	LiveTurns metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("cadenza.synthesis.duration",
		metric.WithDescription("Latency of one speech synthesis call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("cadenza.generation.duration",
		metric.WithDescription("Latency of a whole script generation run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LiveSessionDuration, err = m.Float64Histogram("cadenza.live.session.duration",
		metric.WithDescription("Lifetime of a live voice session."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SynthesisSegments, err = m.Int64Counter("cadenza.synthesis.segments",
		metric.WithDescription("Total synthesised segments by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunks, err = m.Int64Counter("cadenza.audio.chunks",
		metric.WithDescription("Total audio chunks produced, batch and live."),
	); err != nil {
		return nil, err
	}
	if met.LiveTurns, err = m.Int64Counter("cadenza.live.turns",
		metric.WithDescription("Total sealed live conversation turns by speaker."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("cadenza.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("cadenza.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
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

// RecordSegment is a convenience method that records a synthesised segment
// counter increment with the standard attribute set.
func (m *Metrics) RecordSegment(ctx context.Context, provider, status string) {
	m.SynthesisSegments.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTurn is a convenience method that records a sealed live turn.
func (m *Metrics) RecordTurn(ctx context.Context, speaker string) {
	m.LiveTurns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("speaker", speaker)),
	)
}
