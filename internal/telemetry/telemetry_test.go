package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fyrsmithlabs/featureflow/internal/config"
)

// restoreGlobals puts the global providers back after a test installs its own.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_EnabledInstallsProviders(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.ServiceVersion = "9.9.9"

	tel, err := New(ctx, cfg, WithTraceExporter(spans), WithMetricReader(reader))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)

	_, span := otel.Tracer("featureflow/test").Start(ctx, "workflow.step")
	span.SetAttributes(attribute.String("workflow.id", "wf-00000001"))
	span.End()

	counter, err := otel.Meter("featureflow/test").Int64Counter("featureflow.test_total")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, tel.ForceFlush(ctx))

	stubs := spans.GetSpans()
	require.Len(t, stubs, 1)
	assert.Equal(t, "workflow.step", stubs[0].Name)
	version, ok := stubs[0].Resource.Set().Value("service.version")
	require.True(t, ok)
	assert.Equal(t, "9.9.9", version.AsString())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "featureflow.test_total" {
				found = true
			}
		}
	}
	assert.True(t, found, "global meter should feed the installed reader")

	require.NoError(t, tel.Shutdown(ctx))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_MetricsDisabled(t *testing.T) {
	restoreGlobals(t)

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics.Enabled = false

	tel, err := New(context.Background(), cfg, WithTraceExporter(tracetest.NewInMemoryExporter()))
	require.NoError(t, err)
	assert.Nil(t, tel.meterProvider)
	assert.NotNil(t, tel.tracerProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})

	health := tel.Health()
	assert.False(t, health.Healthy)
	assert.True(t, health.Degraded)
}

func TestTelemetry_ShutdownWithTimeout(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Shutdown.Timeout = config.Duration(100 * time.Millisecond)

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, tel.Shutdown(ctx))
	assert.False(t, tel.Health().Healthy)
}

func TestSetDegraded(t *testing.T) {
	tel := &Telemetry{config: NewDefaultConfig()}
	tel.healthy.Store(true)

	tel.setDegraded("tracer provider failed: %v", "dial refused")

	health := tel.Health()
	assert.True(t, health.Degraded)
	assert.Equal(t, []string{"tracer provider failed: dial refused"}, health.Reasons)
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("test").Start(context.Background(), "reviewer.check")
	span.SetAttributes(
		attribute.String("reviewer", "claude"),
		attribute.Bool("available", true),
		attribute.Int64("attempts", 2),
	)
	span.End()

	tt.AssertSpanExists(t, "reviewer.check")
	tt.AssertSpanAttribute(t, "reviewer.check", "reviewer", "claude")
	tt.AssertSpanAttribute(t, "reviewer.check", "available", true)
	tt.AssertSpanAttribute(t, "reviewer.check", "attempts", int64(2))
	assert.Nil(t, tt.SpanByName("missing"))

	counter, err := tt.Meter("test").Int64Counter("test.count")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, tt.MetricReader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)
}
