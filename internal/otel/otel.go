// Package otel wires OpenTelemetry for evidence-lens.
//
// Provider calls become GenAI client spans and token usage, classification
// outcomes and cache behaviour become counters. Both are exported over
// OTLP/HTTP when otel_endpoint is configured; otherwise every instrument is
// a no-op and callers need not check.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "evidence-lens"

// DefaultExportInterval is how often metrics are pushed.
const DefaultExportInterval = 15 * time.Second

// Version is copied from cmd.Version before Init.
var Version = "dev"

// OTELConfig is the subset of config.Config needed by Init.
type OTELConfig struct {
	Endpoint string // OTLP base URL; /v1/traces and /v1/metrics are appended
	Headers  string // key=value,key2=value2 as in OTEL_EXPORTER_OTLP_HEADERS
	// ExportInterval defaults to DefaultExportInterval.
	ExportInterval time.Duration
}

// Telemetry holds the OTEL providers and metric instruments.
type Telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider

	Tracer  trace.Tracer
	Metrics *Metrics
}

// collector is a parsed OTLP/HTTP destination.
type collector struct {
	host     string // host:port
	basePath string // without trailing slash
	insecure bool
	headers  map[string]string
}

// parseHeaders splits "key=value,key2=value2". Pairs without a key are skipped.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers
}

func parseCollector(endpoint, headers string) (collector, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return collector{}, fmt.Errorf("otel: invalid endpoint URL %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return collector{}, fmt.Errorf("otel: endpoint %q has no host", endpoint)
	}
	return collector{
		host:     u.Host,
		basePath: strings.TrimRight(u.Path, "/"),
		insecure: u.Scheme == "http",
		headers:  parseHeaders(headers),
	}, nil
}

func (c collector) tracerProvider(ctx context.Context, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(c.host),
		otlptracehttp.WithURLPath(c.basePath + "/v1/traces"),
	}
	if c.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(c.headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(c.headers))
	}

	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

func (c collector) meterProvider(ctx context.Context, res *resource.Resource, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(c.host),
		otlpmetrichttp.WithURLPath(c.basePath + "/v1/metrics"),
	}
	if c.insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(c.headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(c.headers))
	}

	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	), nil
}

// Init sets up the global tracer and meter providers. An empty endpoint
// leaves the no-op globals in place.
func Init(ctx context.Context, cfg OTELConfig) (*Telemetry, error) {
	t := &Telemetry{}

	if cfg.Endpoint != "" {
		c, err := parseCollector(cfg.Endpoint, cfg.Headers)
		if err != nil {
			return nil, err
		}

		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(Version),
			),
			resource.WithHost(),
		)
		if err != nil {
			return nil, fmt.Errorf("otel resource: %w", err)
		}

		interval := cfg.ExportInterval
		if interval <= 0 {
			interval = DefaultExportInterval
		}

		if t.tp, err = c.tracerProvider(ctx, res); err != nil {
			return nil, err
		}
		if t.mp, err = c.meterProvider(ctx, res, interval); err != nil {
			_ = t.tp.Shutdown(ctx)
			return nil, err
		}
		otel.SetTracerProvider(t.tp)
		otel.SetMeterProvider(t.mp)
	}

	t.Tracer = otel.Tracer(serviceName)

	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	t.Metrics = metrics
	return t, nil
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
