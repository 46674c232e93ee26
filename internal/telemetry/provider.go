package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

// Option overrides provider construction, mostly for tests.
type Option func(*providerOptions)

type providerOptions struct {
	traceExporter trace.SpanExporter
	metricReader  metric.Reader
}

// WithTraceExporter replaces the OTLP span exporter.
func WithTraceExporter(exp trace.SpanExporter) Option {
	return func(o *providerOptions) {
		o.traceExporter = exp
	}
}

// WithMetricReader replaces the periodic OTLP metric reader.
func WithMetricReader(r metric.Reader) Option {
	return func(o *providerOptions) {
		o.metricReader = r
	}
}

// newResource creates a resource describing the service.
func newResource(cfg *Config) (*resource.Resource, error) {
	// Standalone resource: resource.Default() carries a different schema URL.
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	), nil
}

func tlsConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
	}
}

// newSpanExporter creates the OTLP span exporter for the configured protocol.
func newSpanExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	switch cfg.Protocol {
	case ProtocolHTTPProtobuf:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint)),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig()))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(stripScheme(cfg.Endpoint)),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig())))
		}
		return otlptracegrpc.New(ctx, opts...)
	}
}

// newTracerProvider creates a TracerProvider with a batching exporter.
func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource, o providerOptions) (*trace.TracerProvider, error) {
	exporter := o.traceExporter
	if exporter == nil {
		var err error
		exporter, err = newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
	}

	var sampler trace.Sampler
	switch {
	case cfg.Sampling.Rate >= 1.0:
		sampler = trace.AlwaysSample()
	case cfg.Sampling.Rate <= 0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.TraceIDRatioBased(cfg.Sampling.Rate)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(sampler)),
	), nil
}

// newMetricReader creates a periodic reader over the OTLP metric exporter.
func newMetricReader(ctx context.Context, cfg *Config) (metric.Reader, error) {
	// Prometheus-compatible backends need cumulative temporality.
	cumulative := func(metric.InstrumentKind) metricdata.Temporality {
		return metricdata.CumulativeTemporality
	}

	var (
		exporter metric.Exporter
		err      error
	)
	switch cfg.Protocol {
	case ProtocolHTTPProtobuf:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetrichttp.WithTemporalitySelector(cumulative),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(tlsConfig()))
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetricgrpc.WithTemporalitySelector(cumulative),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig())))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	return metric.NewPeriodicReader(exporter,
		metric.WithInterval(cfg.Metrics.ExportInterval.Duration()),
	), nil
}

// newMeterProvider creates a MeterProvider, or nil when metrics are disabled.
func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource, o providerOptions) (*metric.MeterProvider, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	reader := o.metricReader
	if reader == nil {
		var err error
		reader, err = newMetricReader(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
	), nil
}

// stripScheme removes http:// or https:// from an endpoint URL.
// The OTLP exporters expect host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}
