package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metric attribute keys, following the llm.* semantic conventions.
var (
	attrModel        = attribute.Key("llm.model")
	attrRequestModel = attribute.Key("llm.request.model")
	attrTokenType    = attribute.Key("llm.token_type")
	attrStreaming    = attribute.Key("llm.streaming")
	attrStatus       = attribute.Key("llm.response.status")
)

// UsageOptions describes one finished request for metric recording.
type UsageOptions struct {
	// Model is the upstream model actually called.
	Model string
	// RequestModel is the model the client asked for.
	RequestModel string
	InputTokens  int
	OutputTokens int
	Streamed     bool
	// Status is "success", "error" or "canceled".
	Status    string
	LatencyMs int64
}

// TokenTracker records request and token metrics. A nil tracker is valid
// and records nothing, so callers never branch on metrics being enabled.
type TokenTracker struct {
	tokenUsage      metric.Int64Counter
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

// NewTokenTracker registers the instruments on the given meter.
func NewTokenTracker(meter metric.Meter) (*TokenTracker, error) {
	tt := &TokenTracker{}
	var err error

	tt.tokenUsage, err = meter.Int64Counter(
		"llm.token.usage",
		metric.WithDescription("LLM token usage by type (input/output)"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	tt.requestCount, err = meter.Int64Counter(
		"llm.request.count",
		metric.WithDescription("Number of proxied LLM requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	tt.requestDuration, err = meter.Float64Histogram(
		"llm.request.duration",
		metric.WithDescription("Proxied request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	tt.requestErrors, err = meter.Int64Counter(
		"llm.request.errors",
		metric.WithDescription("Number of failed proxied requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return tt, nil
}

// RecordUsage records one finished request.
func (tt *TokenTracker) RecordUsage(ctx context.Context, opts UsageOptions) {
	if tt == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attrModel.String(opts.Model),
		attrRequestModel.String(opts.RequestModel),
		attrStreaming.Bool(opts.Streamed),
		attrStatus.String(opts.Status),
	}

	if opts.InputTokens > 0 {
		tt.tokenUsage.Add(ctx, int64(opts.InputTokens),
			metric.WithAttributes(append(attrs, attrTokenType.String("input"))...))
	}
	if opts.OutputTokens > 0 {
		tt.tokenUsage.Add(ctx, int64(opts.OutputTokens),
			metric.WithAttributes(append(attrs, attrTokenType.String("output"))...))
	}

	tt.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if opts.LatencyMs > 0 {
		tt.requestDuration.Record(ctx, float64(opts.LatencyMs), metric.WithAttributes(attrs...))
	}
	if opts.Status == "error" {
		tt.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// MeterSetup owns the meter provider and its exporter pipeline.
type MeterSetup struct {
	provider *sdkmetric.MeterProvider

	// Tracker is nil when metrics are disabled.
	Tracker *TokenTracker
}

// NewMeterSetup builds a periodic stdout metrics pipeline and registers it
// as the global provider. Returns (nil, nil) when disabled.
func NewMeterSetup(enabled bool, interval time.Duration) (*MeterSetup, error) {
	if !enabled {
		return nil, nil
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	tracker, err := NewTokenTracker(provider.Meter("cc-launcher"))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	return &MeterSetup{provider: provider, Tracker: tracker}, nil
}

// Shutdown flushes and stops the pipeline.
func (ms *MeterSetup) Shutdown(ctx context.Context) error {
	if ms == nil || ms.provider == nil {
		return nil
	}
	return ms.provider.Shutdown(ctx)
}
