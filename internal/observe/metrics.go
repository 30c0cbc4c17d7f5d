// Package observe provides the observability primitives of barkeep:
// OpenTelemetry metrics, tracing, trace-aware logging, and the HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]; [Handler] serves them at /metrics. Tests
// should build their own [Metrics] with [NewMetrics] and a manual reader
// instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every barkeep metric.
const meterName = "github.com/MrWong99/barkeep"

// Metrics holds the application's instruments. The OTel types synchronise
// themselves, so a Metrics value is safe for concurrent use.
type Metrics struct {
	// CommandDuration is the latency of one ProcessVoiceOrder call, by
	// intent.
	CommandDuration metric.Float64Histogram

	// LLMDuration and TTSDuration track provider latency.
	LLMDuration metric.Float64Histogram
	TTSDuration metric.Float64Histogram

	// Commands counts processed commands by intent and outcome
	// (ok, partial, clarify, rejected, error).
	Commands metric.Int64Counter

	// GateRejections counts cooldown rejections by channel.
	GateRejections metric.Int64Counter

	// Matches counts catalog matches by method.
	Matches metric.Int64Counter

	// UnresolvedEntities counts item phrases without a match, by reason.
	UnresolvedEntities metric.Int64Counter

	// Escalations counts ambiguity resolutions by source (llm, local).
	Escalations metric.Int64Counter

	// ProviderRequests counts provider calls by provider, kind and status.
	ProviderRequests metric.Int64Counter

	// CartPublishes counts cart bus publications by status.
	CartPublishes metric.Int64Counter

	// ActiveSessions tracks live sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration is the latency of HTTP requests by method and
	// route.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}
	counter := func(name, desc string) (metric.Int64Counter, error) {
		return m.Int64Counter(name, metric.WithDescription(desc))
	}

	if met.CommandDuration, err = histogram("barkeep.command.duration", "Latency of voice command processing."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = histogram("barkeep.llm.duration", "Latency of LLM ambiguity resolution."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = histogram("barkeep.tts.duration", "Latency of speech synthesis."); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = histogram("barkeep.http.duration", "HTTP request latency by method and route."); err != nil {
		return nil, err
	}

	if met.Commands, err = counter("barkeep.commands", "Processed voice commands by intent and outcome."); err != nil {
		return nil, err
	}
	if met.GateRejections, err = counter("barkeep.gate.rejections", "Commands rejected by the cooldown gate, by channel."); err != nil {
		return nil, err
	}
	if met.Matches, err = counter("barkeep.match", "Catalog matches by method."); err != nil {
		return nil, err
	}
	if met.UnresolvedEntities, err = counter("barkeep.entities.unresolved", "Item phrases without a catalog match, by reason."); err != nil {
		return nil, err
	}
	if met.Escalations, err = counter("barkeep.escalations", "Ambiguity resolutions by source."); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = counter("barkeep.provider.requests", "Provider API requests by provider, kind and status."); err != nil {
		return nil, err
	}
	if met.CartPublishes, err = counter("barkeep.cart.publishes", "Cart bus publications by status."); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("barkeep.sessions.active",
		metric.WithDescription("Number of live ordering sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on the global
// meter provider. It panics if instrument creation fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCommand counts one processed command.
func (m *Metrics) RecordCommand(ctx context.Context, intent, outcome string) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(Attr("intent", intent), Attr("outcome", outcome)))
}

// RecordGateRejection counts one cooldown rejection.
func (m *Metrics) RecordGateRejection(ctx context.Context, channel string) {
	m.GateRejections.Add(ctx, 1, metric.WithAttributes(Attr("channel", channel)))
}

// RecordMatch counts one catalog match.
func (m *Metrics) RecordMatch(ctx context.Context, method string) {
	m.Matches.Add(ctx, 1, metric.WithAttributes(Attr("method", method)))
}

// RecordUnresolved counts one unresolved item phrase.
func (m *Metrics) RecordUnresolved(ctx context.Context, reason string) {
	m.UnresolvedEntities.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordEscalation counts one ambiguity resolution.
func (m *Metrics) RecordEscalation(ctx context.Context, source string) {
	m.Escalations.Add(ctx, 1, metric.WithAttributes(Attr("source", source)))
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("kind", kind),
			Attr("status", status),
		),
	)
}

// RecordCartPublish counts one cart bus publication.
func (m *Metrics) RecordCartPublish(ctx context.Context, status string) {
	m.CartPublishes.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}
