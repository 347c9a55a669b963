package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "evidence-lens"

// Metrics holds the metric instruments. A nil *Metrics is valid and records
// nothing, so packages can take one without caring whether telemetry is on.
type Metrics struct {
	// LLM token counters (partitioned by provider + model)
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// Classifications partitioned by outcome (ok, cache, error)
	Classifications metric.Int64Counter

	// Model catalog
	ModelCacheHits   metric.Int64Counter
	ModelCacheMisses metric.Int64Counter
	ModelFallbacks   metric.Int64Counter

	// Result cache
	ResultCacheHits   metric.Int64Counter
	ResultCacheMisses metric.Int64Counter
}

// NewMetrics creates all instruments on the global MeterProvider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.InputTokens, "llm.tokens.input", "Total LLM input tokens consumed", "{token}"},
		{&m.OutputTokens, "llm.tokens.output", "Total LLM output tokens consumed", "{token}"},
		{&m.Classifications, "classifications.total", "Page classifications partitioned by outcome (ok, cache, error)", ""},
		{&m.ModelCacheHits, "model_cache.hits", "Model lists served from the settings cache", ""},
		{&m.ModelCacheMisses, "model_cache.misses", "Model lists fetched from the provider", ""},
		{&m.ModelFallbacks, "model_list.fallbacks", "Model lists replaced by the built-in fallback", ""},
		{&m.ResultCacheHits, "result_cache.hits", "Classifications reused for unchanged page text", ""},
		{&m.ResultCacheMisses, "result_cache.misses", "Classifications that required a provider call", ""},
	}

	for _, c := range counters {
		opts := []metric.Int64CounterOption{metric.WithDescription(c.desc)}
		if c.unit != "" {
			opts = append(opts, metric.WithUnit(c.unit))
		}
		ctr, err := meter.Int64Counter(c.name, opts...)
		if err != nil {
			return nil, err
		}
		*c.dst = ctr
	}

	return m, nil
}

func providerAttrs(provider, model string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
}

// RecordTokens records LLM token usage.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := providerAttrs(provider, model)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}

// RecordClassification records the outcome of one refresh.
func (m *Metrics) RecordClassification(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.Classifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("classification.outcome", outcome),
	))
}

// RecordModelCache records whether a model list came from the cache.
func (m *Metrics) RecordModelCache(ctx context.Context, provider string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("llm.provider", provider))
	if hit {
		m.ModelCacheHits.Add(ctx, 1, attrs)
		return
	}
	m.ModelCacheMisses.Add(ctx, 1, attrs)
}

// RecordModelFallback records a model list degraded to the fallback.
func (m *Metrics) RecordModelFallback(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.ModelFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("llm.provider", provider)))
}

// RecordResultCacheHit records a result cache hit.
func (m *Metrics) RecordResultCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.ResultCacheHits.Add(ctx, 1)
}

// RecordResultCacheMiss records a result cache miss.
func (m *Metrics) RecordResultCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.ResultCacheMisses.Add(ctx, 1)
}
