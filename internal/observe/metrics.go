// Package observe provides application-wide observability primitives for
// rollbot: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all rollbot metrics.
const meterName = "github.com/mrwong99/rollbot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RollDuration tracks the time a single roll job spends in the
	// executor, from submission to result.
	RollDuration metric.Float64Histogram

	// DispatchDuration tracks end-to-end command dispatch latency, from
	// an inbound message to a rendered CommandResult.
	DispatchDuration metric.Float64Histogram

	// StorageOpDuration tracks how long a storage.Actor operation waits
	// on its owning bucket, including any cache-miss load.
	StorageOpDuration metric.Float64Histogram

	// --- Counters ---

	// RollsEvaluated counts evaluated roll expressions. Use with
	// attributes: attribute.String("client_type", ...), attribute.Bool("ok", ...)
	RollsEvaluated metric.Int64Counter

	// CommandsDispatched counts dispatched commands by result tag. Use
	// with attributes: attribute.String("client_type", ...), attribute.String("result", ...)
	CommandsDispatched metric.Int64Counter

	// StorageCacheHits counts bucket cache hits and misses. Use with
	// attribute: attribute.Bool("hit", ...)
	StorageCacheHits metric.Int64Counter

	// PersistWrites counts write-back operations submitted to the
	// persistence worker. Use with attribute: attribute.String("status", ...)
	PersistWrites metric.Int64Counter

	// --- Error counters ---

	// RollErrors counts roll evaluation failures by cause, e.g.
	// "divide_by_zero", "overflow", "timeout".
	RollErrors metric.Int64Counter

	// --- Gauges ---

	// PersistQueueDepth tracks the number of pending write-back tasks
	// queued on the persistence worker.
	PersistQueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds), tuned
// for sub-second dispatch and roll-evaluation latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RollDuration, err = m.Float64Histogram("rollbot.roll.duration",
		metric.WithDescription("Latency of a single roll job in the executor."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("rollbot.dispatch.duration",
		metric.WithDescription("End-to-end command dispatch latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StorageOpDuration, err = m.Float64Histogram("rollbot.storage.op.duration",
		metric.WithDescription("Latency of a storage actor operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.RollsEvaluated, err = m.Int64Counter("rollbot.rolls.evaluated",
		metric.WithDescription("Total roll expressions evaluated."),
	); err != nil {
		return nil, err
	}
	if met.CommandsDispatched, err = m.Int64Counter("rollbot.commands.dispatched",
		metric.WithDescription("Total commands dispatched by result tag."),
	); err != nil {
		return nil, err
	}
	if met.StorageCacheHits, err = m.Int64Counter("rollbot.storage.cache_lookups",
		metric.WithDescription("Total bucket cache lookups by hit/miss."),
	); err != nil {
		return nil, err
	}
	if met.PersistWrites, err = m.Int64Counter("rollbot.persist.writes",
		metric.WithDescription("Total persistence write-back tasks by status."),
	); err != nil {
		return nil, err
	}

	if met.RollErrors, err = m.Int64Counter("rollbot.rolls.errors",
		metric.WithDescription("Total roll evaluation errors by cause."),
	); err != nil {
		return nil, err
	}

	if met.PersistQueueDepth, err = m.Int64UpDownCounter("rollbot.persist.queue_depth",
		metric.WithDescription("Pending write-back tasks queued on the persistence worker."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("rollbot.http.request.duration",
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

// RecordRoll is a convenience method that records a roll-evaluated counter
// increment and its duration.
func (m *Metrics) RecordRoll(ctx context.Context, clientType string, ok bool, duration float64) {
	m.RollsEvaluated.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("client_type", clientType),
			attribute.Bool("ok", ok),
		),
	)
	m.RollDuration.Record(ctx, duration)
}

// RecordCommand is a convenience method that records a dispatched-command
// counter increment with the standard attribute set.
func (m *Metrics) RecordCommand(ctx context.Context, clientType, result string) {
	m.CommandsDispatched.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("client_type", clientType),
			attribute.String("result", result),
		),
	)
}

// RecordCacheLookup is a convenience method that records a storage bucket
// cache lookup outcome.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.StorageCacheHits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

// RecordRollError is a convenience method that records a roll evaluation
// error counter increment.
func (m *Metrics) RecordRollError(ctx context.Context, cause string) {
	m.RollErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
}
