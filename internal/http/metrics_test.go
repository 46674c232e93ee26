package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/featureflow/internal/logging"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &HTTPMetrics{
		meter:  mp.Meter(httpInstrumentationName),
		logger: logging.NewNop(),
	}
	m.init()

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/workflows/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})

	for _, path := range []string{"/health", "/api/v1/workflows/a-00000001", "/api/v1/workflows/b-00000002"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			found[mt.Name] = true
			switch mt.Name {
			case "featureflow.http.requests_total":
				sum, ok := mt.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				byRoute := map[string]int64{}
				for _, dp := range sum.DataPoints {
					route, _ := dp.Attributes.Value(attribute.Key("endpoint"))
					byRoute[route.AsString()] += dp.Value
				}
				assert.Equal(t, map[string]int64{
					"/health":               1,
					"/api/v1/workflows/:id": 2,
				}, byRoute, "workflow ids must not become label values")
			case "featureflow.http.request_duration_seconds":
				hist, ok := mt.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				var total uint64
				for _, dp := range hist.DataPoints {
					total += dp.Count
				}
				assert.Equal(t, uint64(3), total)
			}
		}
	}

	assert.True(t, found["featureflow.http.requests_total"], "requests counter not found")
	assert.True(t, found["featureflow.http.request_duration_seconds"], "duration histogram not found")
	assert.True(t, found["featureflow.http.response_size_bytes"], "response size histogram not found")
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/workflows/:id/step", "/api/v1/workflows/:id/step"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input))
	}
}
