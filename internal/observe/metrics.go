// Package observe provides the observability primitives for Pranaflow:
// OpenTelemetry metric instruments, tracing helpers, and the HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and surface on
// /metrics via the Prometheus exporter bridge ([InitProvider]). Production
// code shares the [DefaultMetrics] instance; tests build their own with
// [NewMetrics] and a private meter provider so readings never bleed between
// tests.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all Pranaflow instruments.
const meterName = "github.com/pranaflow/pranaflow"

// Metrics holds the application's metric instruments. The OTel instrument
// types are safe for concurrent use.
type Metrics struct {
	// SessionDuration tracks how long finished sessions ran, in seconds.
	// Attributes: kind (practice|meditation), outcome (completed|saved).
	SessionDuration metric.Float64Histogram

	// AccuracyReadings is the distribution of accuracy values the feedback
	// loop consumed. Attribute: source.
	AccuracyReadings metric.Float64Histogram

	// SpeakDuration is speech synthesis and playback latency.
	SpeakDuration metric.Float64Histogram

	// HTTPRequestDuration is request latency. Attributes: method, path,
	// status.
	HTTPRequestDuration metric.Float64Histogram

	// CuesSpoken counts utterances that reached the speech backend.
	// Attributes: cue, status (ok|error).
	CuesSpoken metric.Int64Counter

	// CuesSuppressed counts utterances the gate refused. Attribute: reason
	// (muted|throttled).
	CuesSuppressed metric.Int64Counter

	// TimerTicks counts processed one-second elapsed ticks.
	TimerTicks metric.Int64Counter

	// RecordsPersisted counts session records written to history.
	// Attributes: store, status (ok|error).
	RecordsPersisted metric.Int64Counter

	// StoreErrors counts history and journal store failures. Attribute:
	// store.
	StoreErrors metric.Int64Counter

	// ActiveSessions is the number of live sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// durationBuckets spans a single speech round-trip up to a long meditation
// sit, in seconds.
var durationBuckets = []float64{
	0.1, 0.5, 1, 5, 30, 60, 300, 600, 1200, 1800, 3600,
}

// accuracyBuckets matches the classifier tier boundaries so the tier mix is
// readable straight off the histogram.
var accuracyBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// instruments collects creation errors so NewMetrics reads as one literal
// instead of ten error checks. The first error wins.
type instruments struct {
	meter metric.Meter
	err   error
}

func (b *instruments) histogram(name, desc, unit string, buckets []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	if err != nil && b.err == nil {
		b.err = err
	}
	return h
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}

func (b *instruments) upDownCounter(name, desc string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &instruments{meter: mp.Meter(meterName)}
	m := &Metrics{
		SessionDuration: b.histogram("pranaflow.session.duration",
			"Duration of finished sessions by kind and outcome.", "s", durationBuckets),
		AccuracyReadings: b.histogram("pranaflow.accuracy.readings",
			"Distribution of pose accuracy readings.", "", accuracyBuckets),
		SpeakDuration: b.histogram("pranaflow.speech.duration",
			"Latency of speech synthesis and playback.", "s", nil),
		HTTPRequestDuration: b.histogram("pranaflow.http.request.duration",
			"HTTP request latency by method, path and status.", "s", nil),
		CuesSpoken: b.counter("pranaflow.cues.spoken",
			"Total spoken cues by cue kind and status."),
		CuesSuppressed: b.counter("pranaflow.cues.suppressed",
			"Total cues refused by the gate, by reason."),
		TimerTicks: b.counter("pranaflow.timer.ticks",
			"Total processed elapsed-time ticks."),
		RecordsPersisted: b.counter("pranaflow.records.persisted",
			"Total session records written, by store and status."),
		StoreErrors: b.counter("pranaflow.store.errors",
			"Total storage failures by store."),
		ActiveSessions: b.upDownCounter("pranaflow.active_sessions",
			"Number of live practice or meditation sessions."),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the shared [Metrics] instance, created on first use
// from the global meter provider. Instrument creation on the global provider
// cannot fail, hence the panic.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr shortens attribute.String at call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCue records a spoken cue with the standard attribute set.
func (m *Metrics) RecordCue(ctx context.Context, cue, status string) {
	m.CuesSpoken.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("cue", cue),
			attribute.String("status", status),
		),
	)
}

// RecordCueSuppressed records a gate refusal.
func (m *Metrics) RecordCueSuppressed(ctx context.Context, reason string) {
	m.CuesSuppressed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordPersist records a session-record write.
func (m *Metrics) RecordPersist(ctx context.Context, store, status string) {
	m.RecordsPersisted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("store", store),
			attribute.String("status", status),
		),
	)
}

// RecordStoreError records a storage failure.
func (m *Metrics) RecordStoreError(ctx context.Context, store string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("store", store)),
	)
}
